package schedulerrun

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"diarist/internal/config"
	"diarist/internal/diary"
	"diarist/internal/logging"
	"diarist/internal/metrics"
	"diarist/internal/scheduler"
	"diarist/internal/stage"
	"diarist/internal/store"
	"diarist/internal/transcribe"
)

// BuildHandlers wires the fixed download, transcribe, process table. The
// transcribe slot uses the built-in selector unless a command overrides it.
// A hosted backend without credentials becomes a stage that fails each cycle
// instead of stopping the scheduler.
func BuildHandlers(cfg *config.Config, logger *slog.Logger) ([]stage.Handler, error) {
	download, err := stage.NewCommandStage("download", cfg.Stages.Download, cfg.Pipeline)
	if err != nil {
		return nil, err
	}
	process, err := stage.NewCommandStage("process", cfg.Stages.Process, cfg.Pipeline)
	if err != nil {
		return nil, err
	}

	var transcribeStage stage.Handler
	if strings.TrimSpace(cfg.Stages.Transcribe.Command) != "" {
		cmdStage, err := stage.NewCommandStage(transcribe.StageName, cfg.Stages.Transcribe, cfg.Pipeline)
		if err != nil {
			return nil, err
		}
		transcribeStage = cmdStage
	} else {
		backend, err := transcribe.NewBackend(cfg.Transcription, logger)
		if err != nil {
			logging.WarnWithContext(logger, "transcription backend unavailable", "backend_unavailable",
				logging.String(logging.FieldVariant, cfg.Transcription.Variant),
				logging.String(logging.FieldImpact, "the transcribe stage fails every cycle until fixed"),
				logging.Error(err),
			)
			transcribeStage = stage.NewUnavailable(transcribe.StageName, err)
		} else {
			selector := transcribe.NewSelector(cfg.Transcription, backend, logger)
			transcribeStage = transcribe.NewStage(cfg, selector, logger)
		}
	}
	return []stage.Handler{download, transcribeStage, process}, nil
}

// CycleStore is the persistence one cycle writes to.
type CycleStore interface {
	stage.LogRecorder
	RecordCycle(ctx context.Context, startedAt, next time.Time) error
	PruneLogs(ctx context.Context, keep int) (int64, error)
}

// Cycle is the scheduler callback: diary rollover, then every stage, then
// bookkeeping.
type Cycle struct {
	runner    *stage.Runner
	diary     *diary.Manager
	store     CycleStore
	retention int
	logger    *slog.Logger
	now       func() time.Time
}

// NewCycle builds the cycle callback.
func NewCycle(runner *stage.Runner, manager *diary.Manager, st CycleStore, retention int, logger *slog.Logger) *Cycle {
	return &Cycle{
		runner:    runner,
		diary:     manager,
		store:     st,
		retention: retention,
		logger:    logging.NewComponentLogger(logger, "cycle"),
		now:       time.Now,
	}
}

// Run performs one cycle. Stage and bookkeeping failures are logged; only
// the scheduler's own loop decides whether another cycle follows.
func (c *Cycle) Run(ctx context.Context, info scheduler.CycleInfo) error {
	logger := logging.WithContext(ctx, c.logger)

	if c.diary != nil {
		if _, err := c.diary.CheckRollover(ctx, info.StartedAt); err != nil {
			logging.WarnWithContext(logger, "diary rollover failed", "diary_rollover_failed",
				logging.String(logging.FieldImpact, "entries keep going to the previous partition"),
				logging.Error(err),
			)
		}
	}

	report := c.runner.RunCycle(ctx, info.ID)
	metrics.CyclesTotal.Inc()

	finished := c.now()
	var next time.Time
	if !info.PlannedNext.IsZero() {
		next = scheduler.NextRun(info.StartedAt, finished.Sub(info.StartedAt), info.PlannedNext.Sub(info.StartedAt))
	}
	if err := c.store.RecordCycle(ctx, info.StartedAt, next); err != nil {
		logger.Warn("failed to record cycle", logging.Error(err))
	}

	if _, err := c.store.AppendLog(ctx, store.LogEntry{
		Timestamp: finished,
		Actor:     "scheduler",
		Action:    store.ActionCycle,
		CycleID:   info.ID,
		Success:   report.Failed == 0,
		Message:   cycleSummary(report),
	}); err != nil {
		logger.Warn("failed to record cycle summary", logging.Error(err))
	}

	if c.retention > 0 {
		pruned, err := c.store.PruneLogs(ctx, c.retention)
		if err != nil {
			logger.Warn("failed to prune scheduler log", logging.Error(err))
		} else if pruned > 0 {
			logger.Debug("pruned scheduler log", logging.Int64("removed", pruned))
		}
	}
	return nil
}

func cycleSummary(report stage.CycleReport) string {
	total := len(report.Results)
	if report.Failed == 0 {
		return fmt.Sprintf("cycle complete: %d stage(s) ok", total)
	}
	var failed []string
	for _, r := range report.Results {
		if !r.Success() {
			failed = append(failed, r.Stage)
		}
	}
	return fmt.Sprintf("cycle complete: %d of %d stage(s) failed (%s)", report.Failed, total, strings.Join(failed, ", "))
}
