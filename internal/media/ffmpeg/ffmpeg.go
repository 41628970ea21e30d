// Package ffmpeg cuts audio recordings into time-bounded segments.
package ffmpeg

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// ExtractSegment copies length of audio starting at offset from src into dst
// without re-encoding. dst is overwritten when it exists.
func ExtractSegment(ctx context.Context, binary, src, dst string, offset, length time.Duration) error {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	if strings.TrimSpace(src) == "" || strings.TrimSpace(dst) == "" {
		return errors.New("ffmpeg segment: empty path")
	}
	if length <= 0 {
		return errors.Newf("ffmpeg segment: non-positive length %s", length)
	}

	cmd := exec.CommandContext(ctx, binary, SegmentArgs(src, dst, offset, length)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "ffmpeg segment %s@%s: %s", src, offset, tail(string(output)))
	}
	return nil
}

// SegmentArgs returns the ffmpeg argument vector ExtractSegment runs.
func SegmentArgs(src, dst string, offset, length time.Duration) []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-ss", seconds(offset),
		"-t", seconds(length),
		"-i", src,
		"-c", "copy",
		dst,
	}
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

func tail(output string) string {
	output = strings.TrimSpace(output)
	if idx := strings.LastIndex(output, "\n"); idx >= 0 {
		return output[idx+1:]
	}
	return output
}
