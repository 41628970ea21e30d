// Package metrics holds the Prometheus instruments shared by the scheduler
// process and the control surfaces. Each process exposes the default registry
// on its own /metrics endpoint.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StageRunsTotal counts stage completions by outcome (succeeded/no-op/failed).
	StageRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diarist_stage_runs_total",
			Help: "Pipeline stage completions by stage and outcome",
		},
		[]string{"stage", "outcome"},
	)

	// StageDuration observes wall time per stage run.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "diarist_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 900, 1800, 3600},
		},
		[]string{"stage"},
	)

	// CyclesTotal counts completed pipeline cycles.
	CyclesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "diarist_cycles_total",
			Help: "Completed pipeline cycles",
		},
	)

	// SchedulerState exposes the interval scheduler state as a one-hot gauge.
	SchedulerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "diarist_scheduler_state",
			Help: "Interval scheduler state (1 for the current state)",
		},
		[]string{"state"},
	)

	// TranscriptionRequestsTotal counts provider submissions by variant and result.
	TranscriptionRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diarist_transcription_requests_total",
			Help: "Transcription submissions by variant and result (ok/transient/permanent)",
		},
		[]string{"variant", "result"},
	)

	// TranscriptionChunksTotal counts audio segments produced by chunking.
	TranscriptionChunksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diarist_transcription_chunks_total",
			Help: "Audio segments produced when input exceeds the variant bound",
		},
		[]string{"variant"},
	)

	// SupervisorActionsTotal counts start/stop requests by outcome.
	SupervisorActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diarist_supervisor_actions_total",
			Help: "Supervisor start/stop requests by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	// StatusCorrectionsTotal counts persisted status rows corrected by discovery.
	StatusCorrectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diarist_status_corrections_total",
			Help: "Persisted scheduler status corrections after live discovery",
		},
		[]string{"direction"},
	)

	// SchedulerRunning reports the last reconciled liveness (0 or 1).
	SchedulerRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "diarist_scheduler_running",
			Help: "Scheduler liveness from the last reconciled status read",
		},
	)
)

// RecordStage records one stage completion.
func RecordStage(stage, outcome string, duration time.Duration) {
	StageRunsTotal.WithLabelValues(stage, outcome).Inc()
	StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// SetSchedulerState marks state as current and clears the others.
func SetSchedulerState(state string, all []string) {
	for _, s := range all {
		value := 0.0
		if s == state {
			value = 1
		}
		SchedulerState.WithLabelValues(s).Set(value)
	}
}

// RecordTranscription records one provider submission.
func RecordTranscription(variant, result string) {
	TranscriptionRequestsTotal.WithLabelValues(variant, result).Inc()
}

// RecordChunks records the number of segments produced for one input.
func RecordChunks(variant string, count int) {
	TranscriptionChunksTotal.WithLabelValues(variant).Add(float64(count))
}

// RecordSupervisorAction records a start or stop outcome.
func RecordSupervisorAction(action, outcome string) {
	SupervisorActionsTotal.WithLabelValues(action, outcome).Inc()
}

// RecordStatusCorrection records a reconciliation that flipped is_running.
func RecordStatusCorrection(direction string) {
	StatusCorrectionsTotal.WithLabelValues(direction).Inc()
}

// SetSchedulerRunning updates the liveness gauge.
func SetSchedulerRunning(running bool) {
	if running {
		SchedulerRunning.Set(1)
		return
	}
	SchedulerRunning.Set(0)
}
