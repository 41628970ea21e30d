package schedulerrun

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"diarist/internal/config"
	"diarist/internal/deps"
	"diarist/internal/diary"
	"diarist/internal/logging"
	"diarist/internal/preflight"
	"diarist/internal/scheduler"
	"diarist/internal/stage"
	"diarist/internal/store"
)

// ErrAlreadyRunning is returned when the scheduler lock is held.
var ErrAlreadyRunning = errors.New("another diarist scheduler is already running")

// Options configures the scheduler process.
type Options struct {
	// ConfigPath is watched for edits; empty disables the watcher.
	ConfigPath string
	// Logger overrides the configured logger (tests).
	Logger *slog.Logger
	// Handlers overrides the configured stage table (tests).
	Handlers []stage.Handler
}

// Run executes the scheduler process until SIGINT/SIGTERM, cancellation of
// ctx, or the end of the single cycle when runs_per_day is 0.
func Run(ctx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	signalCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	lock := flock.New(cfg.SchedulerLockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return errors.Wrap(err, "acquire scheduler lock")
	}
	if !locked {
		return errors.WithHint(ErrAlreadyRunning, "use `diarist stop` before starting another scheduler")
	}
	defer lock.Unlock()

	logger := opts.Logger
	if logger == nil {
		logger, err = logging.NewFromConfig(cfg, "scheduler.log")
		if err != nil {
			return errors.Wrap(err, "init logger")
		}
	}
	logDependencySnapshot(logger, cfg)
	logReadiness(signalCtx, logger, cfg)

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		return err
	}
	defer st.Close()

	pid := os.Getpid()
	if err := st.MarkRunning(signalCtx, pid, time.Now()); err != nil {
		return err
	}
	defer markStopped(st, cfg, pid, logger)

	handlers := opts.Handlers
	if handlers == nil {
		handlers, err = BuildHandlers(cfg, logger)
		if err != nil {
			return err
		}
	}
	runner := stage.NewRunner(handlers, st, logger)
	runner.CheckHealth(signalCtx)
	cycle := NewCycle(runner, diary.NewManager(cfg, st, logger), st, cfg.Scheduler.LogRetentionEntries, logger)
	sched, err := scheduler.New(scheduler.Options{
		RunsPerDay: cfg.Scheduler.RunsPerDay,
		Cycle:      cycle.Run,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	runCtx, stopAux := context.WithCancel(signalCtx)
	defer stopAux()
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		defer stopAux()
		return sched.Run(signalCtx)
	})
	if opts.ConfigPath != "" {
		g.Go(func() error {
			if err := WatchConfig(gctx, opts.ConfigPath, st, logger); err != nil {
				logger.Warn("config watcher disabled", logging.Error(err))
			}
			return nil
		})
	}
	if addr := strings.TrimSpace(cfg.Scheduler.MetricsListen); addr != "" {
		g.Go(func() error {
			serveMetrics(gctx, addr, logger)
			return nil
		})
	}
	err = g.Wait()
	logger.Info("diarist scheduler shutting down")
	return err
}

func markStopped(st *store.Store, cfg *config.Config, pid int, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	updated, err := st.MarkStopped(ctx, pid, time.Now())
	if err != nil {
		logger.Warn("failed to record scheduler stop", logging.Error(err))
		return
	}
	if updated && cfg.Scheduler.RunsPerDay == 0 {
		if _, err := st.AppendLog(ctx, store.LogEntry{
			Actor:   "scheduler",
			Action:  store.ActionStop,
			Success: true,
			Message: "completed",
		}); err != nil {
			logger.Warn("failed to record run-once completion", logging.Error(err))
		}
	}
}

func serveMetrics(ctx context.Context, addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Warn("metrics listener disabled", logging.String("addr", addr), logging.Error(err))
		return
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logger.Info("metrics listening", logging.String("addr", ln.Addr().String()))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("metrics server stopped", logging.Error(err))
	}
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	statuses := deps.CheckBinaries(deps.Requirements(cfg))
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String(logging.FieldVariant, cfg.Transcription.Variant),
		logging.Int("runs_per_day", cfg.Scheduler.RunsPerDay),
	}
	for _, s := range statuses {
		key := strings.ReplaceAll(strings.ToLower(s.Name), " ", "_")
		attrs = append(attrs, logging.Bool(key+"_available", s.Available))
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
	for _, s := range deps.Missing(statuses) {
		logging.WarnWithContext(logger, "dependency missing", "dependency_missing",
			logging.String("dependency", s.Name),
			logging.String("command", s.Command),
			logging.String("detail", s.Detail),
			logging.String(logging.FieldImpact, "stages that need it fail until it is installed"),
		)
	}
}

func logReadiness(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	for _, r := range preflight.Failed(preflight.RunAll(ctx, cfg, preflight.Options{})) {
		logging.WarnWithContext(logger, "readiness check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldImpact, "cycles that need it fail until it is fixed"),
		)
	}
}
