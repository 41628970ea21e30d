package ffprobe

import (
	"context"
	"encoding/json"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

const defaultBinary = "ffprobe"

// Audio is the subset of ffprobe output the chunk planner reads: container
// length and size plus the length of every audio stream.
type Audio struct {
	Container Field   `json:"format"`
	Streams   []Field `json:"streams"`
}

// Field holds the numeric strings ffprobe prints for a container or stream.
type Field struct {
	Duration string `json:"duration"`
	Size     string `json:"size,omitempty"`
}

// Probe runs ffprobe restricted to audio streams and decodes the reply.
func Probe(ctx context.Context, binary, path string) (Audio, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Audio{}, errors.New("ffprobe: empty path")
	}
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = defaultBinary
	}
	args := []string{
		"-v", "error",
		"-select_streams", "a",
		"-show_entries", "format=duration,size:stream=duration",
		"-of", "json",
		"--", path,
	}
	out, err := exec.CommandContext(ctx, binary, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if msg := strings.TrimSpace(string(exitErr.Stderr)); msg != "" {
				return Audio{}, errors.Wrapf(err, "ffprobe %s: %s", path, msg)
			}
		}
		return Audio{}, errors.Wrapf(err, "ffprobe %s", path)
	}
	return Decode(out)
}

// Decode parses ffprobe's JSON reply.
func Decode(payload []byte) (Audio, error) {
	var a Audio
	if err := json.Unmarshal(payload, &a); err != nil {
		return Audio{}, errors.Wrap(err, "decode ffprobe output")
	}
	return a, nil
}

// Duration returns the playback length of the recording at path.
func Duration(ctx context.Context, binary, path string) (time.Duration, error) {
	a, err := Probe(ctx, binary, path)
	if err != nil {
		return 0, err
	}
	d, ok := a.Length()
	if !ok {
		return 0, errors.Newf("ffprobe reported no usable duration for %s", path)
	}
	return d, nil
}

// Length prefers the container duration and falls back to the longest audio
// stream. ok is false when neither yields a positive value.
func (a Audio) Length() (time.Duration, bool) {
	if secs, ok := seconds(a.Container.Duration); ok {
		return secs, true
	}
	var longest time.Duration
	for _, s := range a.Streams {
		if secs, ok := seconds(s.Duration); ok && secs > longest {
			longest = secs
		}
	}
	return longest, longest > 0
}

// Bytes returns the container size, or 0 when absent or malformed.
func (a Audio) Bytes() int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(a.Container.Size), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func seconds(raw string) (time.Duration, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return time.Duration(v * float64(time.Second)), true
}
