package stage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"diarist/internal/logging"
	"diarist/internal/metrics"
	"diarist/internal/services"
	"diarist/internal/store"
)

// LogRecorder persists one scheduler log entry per stage completion.
type LogRecorder interface {
	AppendLog(ctx context.Context, entry store.LogEntry) (int64, error)
}

// CycleReport summarizes one pass through every configured stage.
type CycleReport struct {
	CycleID string
	Results []Result
	Failed  int
}

// Runner executes the configured stages strictly in order.
type Runner struct {
	handlers []Handler
	recorder LogRecorder
	logger   *slog.Logger
	actor    string
	now      func() time.Time
}

// NewRunner constructs a Runner over handlers. recorder may be nil in tests
// that only inspect the returned report.
func NewRunner(handlers []Handler, recorder LogRecorder, logger *slog.Logger) *Runner {
	return &Runner{
		handlers: append([]Handler(nil), handlers...),
		recorder: recorder,
		logger:   logging.NewComponentLogger(logger, "runner"),
		actor:    "scheduler",
		now:      time.Now,
	}
}

// Handlers returns the configured stages in execution order.
func (r *Runner) Handlers() []Handler {
	return append([]Handler(nil), r.handlers...)
}

// CheckHealth asks every stage for its readiness and warns about each stage
// that is expected to fail.
func (r *Runner) CheckHealth(ctx context.Context) []Health {
	checks := make([]Health, 0, len(r.handlers))
	for _, h := range r.handlers {
		checks = append(checks, h.HealthCheck(ctx))
	}
	for _, h := range NotReady(checks) {
		logging.WarnWithContext(r.logger, "stage not ready", "stage_not_ready",
			logging.String(logging.FieldStage, h.Name),
			logging.String("detail", h.Detail),
			logging.String(logging.FieldImpact, "the stage fails each cycle until fixed"),
		)
	}
	return checks
}

// RunCycle attempts every stage once, in order, even after a failure. Stages
// run on a context that ignores cancellation of ctx so a stop request never
// aborts in-flight work; per-stage timeouts still apply.
func (r *Runner) RunCycle(ctx context.Context, cycleID string) CycleReport {
	runCtx := services.WithCycleID(context.WithoutCancel(ctx), cycleID)
	report := CycleReport{CycleID: cycleID, Results: make([]Result, 0, len(r.handlers))}

	for _, handler := range r.handlers {
		result := r.runStage(runCtx, handler)
		if !result.Success() {
			report.Failed++
		}
		report.Results = append(report.Results, result)
	}
	return report
}

func (r *Runner) runStage(ctx context.Context, handler Handler) Result {
	name := handler.Name()
	stageCtx := services.WithStage(ctx, name)
	logger := logging.WithContext(stageCtx, r.logger)

	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))
	started := r.now()

	result, err := safeRun(stageCtx, handler)
	result.Stage = name
	result.Duration = r.now().Sub(started)
	if err != nil {
		result.Outcome = OutcomeFailed
		if result.ExitCode == 0 {
			result.ExitCode = -1
		}
		if strings.TrimSpace(result.Message) == "" {
			result.Message = err.Error()
		} else {
			result.Message = fmt.Sprintf("%s: %s", err.Error(), result.Message)
		}
		err = errors.Mark(err, services.ErrStageFailure)
	}
	if result.Outcome == "" {
		result.Outcome = OutcomeSucceeded
	}

	switch result.Outcome {
	case OutcomeFailed:
		logging.ErrorWithContext(logger, "stage failed", "stage_failure",
			logging.Int("exit_code", result.ExitCode),
			logging.String("error_class", services.Classify(err)),
			logging.Duration("duration", result.Duration),
			logging.String(logging.FieldErrorHint, "the stage runs again next cycle; inspect its output"),
			logging.Error(err),
		)
	case OutcomeNoOp:
		logger.Info("stage had no work",
			logging.String(logging.FieldEventType, "stage_noop"),
			logging.String("reason", result.Message),
		)
	default:
		logger.Info("stage completed",
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.Int("exit_code", result.ExitCode),
			logging.Int("outputs", len(result.Outputs)),
			logging.Duration("duration", result.Duration),
		)
	}
	metrics.RecordStage(name, string(result.Outcome), result.Duration)

	if r.recorder != nil {
		cycleID, _ := services.CycleIDFromContext(ctx)
		entry := store.LogEntry{
			Timestamp: r.now(),
			Actor:     r.actor,
			Action:    store.ActionStageResult,
			Stage:     name,
			CycleID:   cycleID,
			Success:   result.Success(),
			Message:   result.Summary(),
		}
		if _, recErr := r.recorder.AppendLog(ctx, entry); recErr != nil {
			logging.WarnWithContext(logger, "stage result not recorded", "stage_record_failed",
				logging.String(logging.FieldImpact, "control surface history is missing this stage result"),
				logging.Error(recErr),
			)
		}
	}
	return result
}

func safeRun(ctx context.Context, handler Handler) (result Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = Result{Outcome: OutcomeFailed, ExitCode: -1}
			err = services.Wrap(services.ErrStageFailure, "stage", handler.Name(), "panic", errors.Newf("%v", rec))
		}
	}()
	return handler.Run(ctx)
}
