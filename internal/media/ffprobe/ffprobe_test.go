package ffprobe

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDecodeMemo(t *testing.T) {
	payload := []byte(`{
  "streams": [{"duration": "4320.00"}],
  "format": {"duration": "4320.5", "size": "69120000"}
}`)
	a, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	d, ok := a.Length()
	if !ok || d != 4320*time.Second+500*time.Millisecond {
		t.Fatalf("unexpected length %s ok=%v", d, ok)
	}
	if a.Bytes() != 69120000 {
		t.Fatalf("unexpected size %d", a.Bytes())
	}
}

func TestLengthFallsBackToLongestStream(t *testing.T) {
	a := Audio{Streams: []Field{{Duration: "10.5"}, {Duration: "12"}, {Duration: "N/A"}}}
	d, ok := a.Length()
	if !ok || d != 12*time.Second {
		t.Fatalf("expected 12s from streams, got %s ok=%v", d, ok)
	}
}

func TestLengthAndBytesRejectGarbage(t *testing.T) {
	a := Audio{Container: Field{Duration: "bad", Size: "-1"}}
	if _, ok := a.Length(); ok {
		t.Fatal("expected no usable length")
	}
	if a.Bytes() != 0 {
		t.Fatalf("expected size 0, got %d", a.Bytes())
	}
	if _, err := Decode([]byte("not json")); err == nil {
		t.Fatal("expected decode error")
	}
}

func writeStub(t *testing.T, body string) string {
	t.Helper()
	script := filepath.Join(t.TempDir(), "ffprobe")
	if err := os.WriteFile(script, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return script
}

func TestDurationRunsBinary(t *testing.T) {
	script := writeStub(t, `echo '{"streams":[],"format":{"duration":"90.5"}}'`)
	got, err := Duration(context.Background(), script, "memo.mp3")
	if err != nil {
		t.Fatalf("Duration: %v", err)
	}
	if got != 90*time.Second+500*time.Millisecond {
		t.Fatalf("unexpected duration %s", got)
	}
}

func TestDurationErrors(t *testing.T) {
	empty := writeStub(t, `echo '{}'`)
	if _, err := Duration(context.Background(), empty, "memo.mp3"); err == nil {
		t.Fatal("expected error for missing duration")
	}
	failing := writeStub(t, `echo 'memo.mp3: No such file' >&2; exit 1`)
	if _, err := Duration(context.Background(), failing, "memo.mp3"); err == nil {
		t.Fatal("expected error from failing probe")
	}
	if _, err := Probe(context.Background(), empty, "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
