package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordStage(t *testing.T) {
	StageRunsTotal.Reset()
	RecordStage("download", "succeeded", 2*time.Second)
	RecordStage("download", "succeeded", time.Second)

	if got := testutil.ToFloat64(StageRunsTotal.WithLabelValues("download", "succeeded")); got != 2 {
		t.Fatalf("expected 2 stage runs, got %v", got)
	}
}

func TestSetSchedulerStateIsOneHot(t *testing.T) {
	states := []string{"idle", "running", "executing", "sleeping", "terminated"}
	SetSchedulerState("sleeping", states)

	for _, s := range states {
		want := 0.0
		if s == "sleeping" {
			want = 1
		}
		if got := testutil.ToFloat64(SchedulerState.WithLabelValues(s)); got != want {
			t.Fatalf("state %s = %v, want %v", s, got, want)
		}
	}
}

func TestSupervisorCounters(t *testing.T) {
	SupervisorActionsTotal.Reset()
	RecordSupervisorAction("stop", "forced")
	if got := testutil.ToFloat64(SupervisorActionsTotal.WithLabelValues("stop", "forced")); got != 1 {
		t.Fatalf("expected 1 forced stop, got %v", got)
	}

	SetSchedulerRunning(true)
	if got := testutil.ToFloat64(SchedulerRunning); got != 1 {
		t.Fatalf("expected running gauge 1, got %v", got)
	}
}
