package api

import (
	"testing"
	"time"

	"diarist/internal/store"
	"diarist/internal/supervisor"
)

func TestFromSnapshot(t *testing.T) {
	started := time.Date(2026, 3, 14, 9, 30, 0, 123_000_000, time.UTC)
	snap := supervisor.Snapshot{
		Status: store.Status{IsRunning: true, PID: store.IntPtr(42), LastStarted: &started},
		PIDs:   []int{42},
	}
	got := FromSnapshot(snap)
	if !got.Running || got.PID != 42 || got.LastStarted != "2026-03-14T09:30:00.123Z" {
		t.Fatalf("unexpected status %+v", got)
	}
	if got.LastStopped != "" || got.NextCycleAt != "" {
		t.Fatalf("expected empty optional timestamps, got %+v", got)
	}
	parsed, ok := ParseTime(got.LastStarted)
	if !ok || !parsed.Equal(started) {
		t.Fatalf("ParseTime = %v %v", parsed, ok)
	}
}

func TestFromRunsPerDay(t *testing.T) {
	if s := FromRunsPerDay(0); s.Mode != "run-once" || s.IntervalSeconds != 0 {
		t.Fatalf("unexpected run-once schedule %+v", s)
	}
	if s := FromRunsPerDay(24); s.Mode != "interval" || s.IntervalSeconds != 3600 {
		t.Fatalf("unexpected hourly schedule %+v", s)
	}
}

func TestFromLogEntriesKeepsOrder(t *testing.T) {
	ts := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	entries := FromLogEntries([]store.LogEntry{
		{ID: 2, Timestamp: ts.Add(time.Minute), Action: store.ActionStop, Actor: "bob", Success: true},
		{ID: 1, Timestamp: ts, Action: store.ActionStart, Actor: "alice"},
	})
	if len(entries) != 2 || entries[0].ID != 2 || entries[0].Action != "stop" || entries[1].Actor != "alice" {
		t.Fatalf("unexpected entries %+v", entries)
	}
}
