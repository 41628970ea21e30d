package logs

import (
	"bufio"
	"context"
	"io"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"
)

const (
	maxLineBytes      = 1024 * 1024
	defaultFollowPoll = 250 * time.Millisecond
)

// Tailer reads log files through an afero filesystem.
type Tailer struct {
	fs   afero.Fs
	poll time.Duration
}

// NewTailer reads from fs; nil uses the OS filesystem.
func NewTailer(fs afero.Fs) *Tailer {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Tailer{fs: fs, poll: defaultFollowPoll}
}

// WithPoll sets how often Follow checks for new lines.
func (t *Tailer) WithPoll(d time.Duration) *Tailer {
	if d > 0 {
		t.poll = d
	}
	return t
}

// Last returns up to limit trailing lines and the offset just past them.
// A missing file yields no lines at offset 0.
func (t *Tailer) Last(path string, limit int) ([]string, int64, error) {
	file, err := t.fs.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, errors.Wrap(err, "open log file")
	}
	defer file.Close()

	if info, err := file.Stat(); err != nil {
		return nil, 0, errors.Wrap(err, "stat log file")
	} else if info.IsDir() {
		return nil, 0, errors.Newf("log path %q is a directory", path)
	}

	if limit <= 0 {
		offset, err := file.Seek(0, io.SeekEnd)
		return nil, offset, errors.Wrap(err, "seek log file")
	}

	ring := make([]string, limit)
	count, next := 0, 0
	offset, err := scanLines(file, func(line string) {
		ring[next] = line
		next = (next + 1) % limit
		if count < limit {
			count++
		}
	})
	if err != nil {
		return nil, 0, err
	}

	lines := make([]string, count)
	start := 0
	if count == limit {
		start = next
	}
	for i := range lines {
		lines[i] = ring[(start+i)%limit]
	}
	return lines, offset, nil
}

// From returns the complete lines written at or after offset, and the new
// offset. An offset past the end of the file restarts at 0.
func (t *Tailer) From(path string, offset int64) ([]string, int64, error) {
	info, err := t.fs.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, offset, errors.Wrap(err, "stat log file")
	}
	if offset < 0 || offset > info.Size() {
		offset = 0
	}

	file, err := t.fs.Open(path)
	if err != nil {
		return nil, offset, errors.Wrap(err, "open log file")
	}
	defer file.Close()
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, errors.Wrap(err, "seek log file")
	}

	var lines []string
	read, err := scanLines(file, func(line string) { lines = append(lines, line) })
	if err != nil {
		return nil, offset, err
	}
	return lines, offset + read, nil
}

// Follow emits lines appended after offset until ctx is cancelled.
func (t *Tailer) Follow(ctx context.Context, path string, offset int64, emit func(string)) error {
	ticker := time.NewTicker(t.poll)
	defer ticker.Stop()
	for {
		lines, next, err := t.From(path, offset)
		if err != nil {
			return err
		}
		for _, line := range lines {
			emit(line)
		}
		offset = next

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// scanLines feeds each newline-terminated line to fn and returns the bytes
// consumed. A trailing partial line is left for the next read.
func scanLines(r io.Reader, fn func(string)) (int64, error) {
	reader := bufio.NewReaderSize(r, 64*1024)
	var consumed int64
	for {
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			return consumed, nil
		}
		if err != nil {
			return consumed, errors.Wrap(err, "read log file")
		}
		consumed += int64(len(line))
		if len(line) > maxLineBytes {
			line = line[:maxLineBytes]
		}
		fn(trimNewline(line))
	}
}

func trimNewline(line string) string {
	line = line[:len(line)-1]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line
}
