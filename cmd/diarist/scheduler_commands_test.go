package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"diarist/internal/api"
	"diarist/internal/store"
	"diarist/internal/supervisor"
)

func TestStatusWhenStopped(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Stopped")
	requireContains(t, out, "1 run(s) per day, every 24h0m0s")
	requireContains(t, out, "Dependencies")
	requireContains(t, out, "Readiness")
	requireContains(t, out, "Diary directory")
}

func TestStatusCorrectsStaleRunningFlag(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()
	if err := env.store.MarkRunning(ctx, 999999, time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}

	out, _, err := runCLI(t, []string{"status", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var resp api.StatusResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if resp.Scheduler.Running {
		t.Fatalf("expected stale flag corrected, got %+v", resp.Scheduler)
	}

	status, err := env.store.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.IsRunning || status.PID != nil {
		t.Fatalf("expected stored status corrected, got %+v", status)
	}
}

func TestStopWhenNotRunning(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"stop"}, env.configPath)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "Scheduler is not running")

	entries, err := env.store.RecentLogs(context.Background(), 1)
	if err != nil {
		t.Fatalf("RecentLogs: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != store.ActionStop || entries[0].Success {
		t.Fatalf("expected failed stop entry, got %+v", entries)
	}
	if entries[0].Actor != "operator" {
		t.Fatalf("expected default actor, got %q", entries[0].Actor)
	}
}

type fakeStarter struct {
	ack supervisor.StartAck
	err error
}

func (f fakeStarter) Start(context.Context, string) (supervisor.StartAck, error) {
	return f.ack, f.err
}

type fakeStopper struct {
	ack supervisor.StopAck
	err error
}

func (f fakeStopper) Stop(context.Context, string) (supervisor.StopAck, error) {
	return f.ack, f.err
}

func TestRunStartMessages(t *testing.T) {
	tests := []struct {
		name    string
		starter fakeStarter
		want    string
	}{
		{"started", fakeStarter{ack: supervisor.StartAck{PID: 42}}, "Scheduler started (pid 42)"},
		{"completed", fakeStarter{ack: supervisor.StartAck{PID: 42, Completed: true}}, "ran its single cycle"},
		{"already running", fakeStarter{err: &supervisor.AlreadyRunningError{PID: 7}}, "already running (pid 7)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if err := runStart(context.Background(), &out, tt.starter, "operator"); err != nil {
				t.Fatalf("runStart: %v", err)
			}
			requireContains(t, out.String(), tt.want)
		})
	}
}

func TestRunStartSurfacesFailure(t *testing.T) {
	var out bytes.Buffer
	err := runStart(context.Background(), &out, fakeStarter{err: &supervisor.StartFailedError{PID: 3, ExitCode: 2, Reason: "exited with status 2"}}, "operator")
	if err == nil {
		t.Fatal("expected start failure to be returned")
	}
}

func TestRunStopMessages(t *testing.T) {
	tests := []struct {
		name    string
		stopper fakeStopper
		want    string
	}{
		{"graceful", fakeStopper{ack: supervisor.StopAck{PIDs: []int{9}, Outcome: supervisor.StopGraceful}}, "Scheduler stopped (pid 9)"},
		{"forced", fakeStopper{ack: supervisor.StopAck{PIDs: []int{9, 10}, Outcome: supervisor.StopForced}}, "killed (pid 9, 10)"},
		{"already stopped", fakeStopper{ack: supervisor.StopAck{Outcome: supervisor.StopAlreadyStopped}}, "already exited"},
		{"not running", fakeStopper{err: &supervisor.NotRunningError{}}, "not running"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if err := runStop(context.Background(), &out, tt.stopper, "operator"); err != nil {
				t.Fatalf("runStop: %v", err)
			}
			requireContains(t, out.String(), tt.want)
		})
	}
}
