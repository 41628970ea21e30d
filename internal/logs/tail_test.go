package logs_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"diarist/internal/logs"
)

const logPath = "/state/logs/scheduler.log"

func writeLog(t *testing.T, fs afero.Fs, content string) {
	t.Helper()
	if err := afero.WriteFile(fs, logPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
}

func appendLog(t *testing.T, fs afero.Fs, content string) {
	t.Helper()
	f, err := fs.OpenFile(logPath, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("append: %v", err)
	}
}

func TestLastLines(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeLog(t, fs, "a\nb\nc\n")

	lines, offset, err := logs.NewTailer(fs).Last(logPath, 2)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if len(lines) != 2 || lines[0] != "b" || lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", lines)
	}
	if offset != 6 {
		t.Fatalf("expected offset 6, got %d", offset)
	}
}

func TestLastMissingFile(t *testing.T) {
	lines, offset, err := logs.NewTailer(afero.NewMemMapFs()).Last(logPath, 5)
	if err != nil || len(lines) != 0 || offset != 0 {
		t.Fatalf("expected empty result, got %v %d %v", lines, offset, err)
	}
}

func TestFromLeavesPartialLine(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeLog(t, fs, "one\ntw")
	tailer := logs.NewTailer(fs)

	lines, offset, err := tailer.From(logPath, 0)
	if err != nil {
		t.Fatalf("From: %v", err)
	}
	if len(lines) != 1 || lines[0] != "one" || offset != 4 {
		t.Fatalf("unexpected read %#v at %d", lines, offset)
	}

	appendLog(t, fs, "o\n")
	lines, _, err = tailer.From(logPath, offset)
	if err != nil {
		t.Fatalf("From: %v", err)
	}
	if len(lines) != 1 || lines[0] != "two" {
		t.Fatalf("expected completed line, got %#v", lines)
	}
}

func TestFromRestartsAfterRotation(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeLog(t, fs, "fresh\n")

	lines, _, err := logs.NewTailer(fs).From(logPath, 500)
	if err != nil {
		t.Fatalf("From: %v", err)
	}
	if len(lines) != 1 || lines[0] != "fresh" {
		t.Fatalf("expected rotated file read from start, got %#v", lines)
	}
}

func TestFollowEmitsAppendedLines(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeLog(t, fs, "start\n")
	tailer := logs.NewTailer(fs).WithPoll(10 * time.Millisecond)
	_, offset, err := tailer.Last(logPath, 1)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	var got []string
	done := make(chan error, 1)
	go func() {
		done <- tailer.Follow(ctx, logPath, offset, func(line string) {
			mu.Lock()
			got = append(got, line)
			mu.Unlock()
		})
	}()

	appendLog(t, fs, "later\n")
	deadline := time.Now().Add(5 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("follow did not emit appended line")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Follow: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "later" {
		t.Fatalf("unexpected lines %#v", got)
	}
}
