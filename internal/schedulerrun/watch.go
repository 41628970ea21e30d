package schedulerrun

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"

	"diarist/internal/logging"
	"diarist/internal/stage"
	"diarist/internal/store"
)

// configDebounce coalesces the burst of events a single save produces.
const configDebounce = 300 * time.Millisecond

// ConfigChangedMessage is the log entry written when the config file changes
// under a running scheduler.
const ConfigChangedMessage = "configuration changed; applies after restart"

// WatchConfig reports edits to path until ctx is done. Settings are never
// reloaded. The parent directory is watched so editors that replace the file
// are seen.
func WatchConfig(ctx context.Context, path string, recorder stage.LogRecorder, logger *slog.Logger) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	logger = logging.NewComponentLogger(logger, "config-watch")
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create config watcher")
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return errors.Wrapf(err, "watch %s", filepath.Dir(path))
	}

	var (
		pending <-chan time.Time
		lastOp  fsnotify.Op
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", logging.Error(err))
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			lastOp = event.Op
			pending = time.After(configDebounce)
		case <-pending:
			pending = nil
			logging.WarnWithContext(logger, "config file changed", "config_changed",
				logging.String("path", path),
				logging.String("op", lastOp.String()),
				logging.String(logging.FieldImpact, "the running scheduler keeps its current settings"),
				logging.String(logging.FieldErrorHint, "restart the scheduler to apply the change"),
			)
			if recorder == nil {
				continue
			}
			if _, err := recorder.AppendLog(ctx, store.LogEntry{
				Actor:   "scheduler",
				Action:  store.ActionConfigChanged,
				Success: true,
				Message: ConfigChangedMessage,
			}); err != nil {
				logger.Warn("failed to record config change", logging.Error(err))
			}
		}
	}
}
