package stage_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"

	"diarist/internal/stage"
	"diarist/internal/store"
)

type fakeHandler struct {
	name   string
	result stage.Result
	err    error
	panic  bool
	calls  *[]string
	ctxErr error
}

func (f *fakeHandler) Name() string { return f.name }

func (f *fakeHandler) Run(ctx context.Context) (stage.Result, error) {
	*f.calls = append(*f.calls, f.name)
	f.ctxErr = ctx.Err()
	if f.panic {
		panic("boom")
	}
	return f.result, f.err
}

func (f *fakeHandler) HealthCheck(context.Context) stage.Health { return stage.Healthy(f.name) }

type memoryRecorder struct {
	mu      sync.Mutex
	entries []store.LogEntry
}

func (m *memoryRecorder) AppendLog(_ context.Context, entry store.LogEntry) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return int64(len(m.entries)), nil
}

func TestRunCycleAttemptsEveryStageInOrder(t *testing.T) {
	var calls []string
	handlers := []stage.Handler{
		&fakeHandler{name: "download", result: stage.Result{Outcome: stage.OutcomeSucceeded}, calls: &calls},
		&fakeHandler{name: "transcribe", result: stage.Result{ExitCode: 2}, err: errors.New("provider down"), calls: &calls},
		&fakeHandler{name: "process", result: stage.NoOp("process", "no pending input"), calls: &calls},
	}
	recorder := &memoryRecorder{}

	report := stage.NewRunner(handlers, recorder, nil).RunCycle(context.Background(), "cycle-1")

	if strings.Join(calls, ",") != "download,transcribe,process" {
		t.Fatalf("unexpected call order %v", calls)
	}
	if report.Failed != 1 {
		t.Fatalf("expected 1 failure, got %d", report.Failed)
	}
	if len(recorder.entries) != 3 {
		t.Fatalf("expected one log entry per stage, got %d", len(recorder.entries))
	}
	wantSuccess := []bool{true, false, true}
	for i, entry := range recorder.entries {
		if entry.Action != store.ActionStageResult {
			t.Fatalf("entry %d: unexpected action %q", i, entry.Action)
		}
		if entry.Success != wantSuccess[i] {
			t.Fatalf("entry %d: success=%v, want %v", i, entry.Success, wantSuccess[i])
		}
		if entry.CycleID != "cycle-1" {
			t.Fatalf("entry %d: unexpected cycle id %q", i, entry.CycleID)
		}
	}
	if !strings.Contains(recorder.entries[1].Message, "Transcribe failed (exit 2)") {
		t.Fatalf("unexpected failure message %q", recorder.entries[1].Message)
	}
	if !strings.Contains(recorder.entries[2].Message, "Process skipped") {
		t.Fatalf("unexpected no-op message %q", recorder.entries[2].Message)
	}
	if report.Results[2].Outcome != stage.OutcomeNoOp || !report.Results[2].Success() {
		t.Fatalf("expected no-op to count as success, got %+v", report.Results[2])
	}
}

func TestRunCycleRecoversPanics(t *testing.T) {
	var calls []string
	handlers := []stage.Handler{
		&fakeHandler{name: "download", panic: true, calls: &calls},
		&fakeHandler{name: "process", calls: &calls},
	}
	report := stage.NewRunner(handlers, nil, nil).RunCycle(context.Background(), "c")
	if len(calls) != 2 {
		t.Fatalf("expected both stages attempted, got %v", calls)
	}
	if report.Results[0].Outcome != stage.OutcomeFailed || report.Results[0].ExitCode != -1 {
		t.Fatalf("expected panic to become a failure, got %+v", report.Results[0])
	}
	if report.Results[1].Outcome != stage.OutcomeSucceeded {
		t.Fatalf("expected empty outcome to default to succeeded, got %+v", report.Results[1])
	}
}

func TestRunCycleIgnoresCallerCancellation(t *testing.T) {
	var calls []string
	handler := &fakeHandler{name: "download", calls: &calls}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stage.NewRunner([]stage.Handler{handler}, nil, nil).RunCycle(ctx, "c")
	if handler.ctxErr != nil {
		t.Fatalf("expected stage context to survive stop, got %v", handler.ctxErr)
	}
}

func TestResultSummaryAndLabel(t *testing.T) {
	if got := stage.Label("post-process"); got != "Post Process" {
		t.Fatalf("unexpected label %q", got)
	}
	ok := stage.Result{Stage: "download", Outcome: stage.OutcomeSucceeded, Outputs: []string{"a", "b"}}
	if got := ok.Summary(); got != "Download succeeded (exit 0, 2 output(s))" {
		t.Fatalf("unexpected summary %q", got)
	}
	noop := stage.NoOp("process", "")
	if got := noop.Summary(); got != "Process skipped: no pending input" {
		t.Fatalf("unexpected summary %q", got)
	}
}

func TestUnavailableStageFailsEveryCycle(t *testing.T) {
	broken := stage.NewUnavailable("transcribe", errors.New("no api key"))
	runner := stage.NewRunner([]stage.Handler{broken}, nil, nil)
	for range 2 {
		report := runner.RunCycle(context.Background(), "c")
		if report.Failed != 1 || report.Results[0].ExitCode != 1 {
			t.Fatalf("expected failing stage, got %+v", report)
		}
	}
	if h := broken.HealthCheck(context.Background()); h.Ready || h.Detail != "no api key" {
		t.Fatalf("unexpected health %+v", h)
	}
}

func TestCheckHealthReportsEveryStage(t *testing.T) {
	runner := stage.NewRunner([]stage.Handler{
		&fakeHandler{name: "download"},
		stage.NewUnavailable("transcribe", errors.New("no api key")),
	}, nil, nil)
	checks := runner.CheckHealth(context.Background())
	if len(checks) != 2 || !checks[0].Ready || checks[1].Ready {
		t.Fatalf("unexpected checks %+v", checks)
	}
	if bad := stage.NotReady(checks); len(bad) != 1 || bad[0].Name != "transcribe" {
		t.Fatalf("unexpected not-ready set %+v", bad)
	}
}

func TestLabelConcurrentCallers(t *testing.T) {
	names := map[string]string{"download": "Download", "post-process": "Post Process", "speech_to_text": "Speech To Text"}
	var wg sync.WaitGroup
	errs := make(chan string, 64)
	for range 16 {
		for name, want := range names {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if got := stage.Label(name); got != want {
					errs <- name + " -> " + got
				}
			}()
		}
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Errorf("unexpected label %s", msg)
	}
}
