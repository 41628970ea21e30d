package diary

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"

	"diarist/internal/config"
	"diarist/internal/logging"
	"diarist/internal/services"
)

// DateLayout is the persisted and file-name date format.
const DateLayout = "060102"

// ErrInvalidDate marks a date string that is not YYMMDD.
var ErrInvalidDate = errors.New("invalid diary date")

// StateStore persists the active diary date.
type StateStore interface {
	DiaryDate(ctx context.Context) (string, error)
	SetDiaryDate(ctx context.Context, date string) error
}

// Rollover reports what CheckRollover did.
type Rollover struct {
	Rolled      bool   `json:"rolled"`
	Previous    string `json:"previous,omitempty"`
	NewDate     string `json:"new_date"`
	SkippedDays int    `json:"skipped_days"`
	Partition   string `json:"partition"`
	Created     bool   `json:"created"`
}

// Manager owns the active diary date.
type Manager struct {
	state      StateStore
	fs         afero.Fs
	dir        string
	format     string
	autoUpdate bool
	logger     *slog.Logger
}

// NewManager builds a Manager from the diary and paths configuration.
func NewManager(cfg *config.Config, state StateStore, logger *slog.Logger) *Manager {
	return &Manager{
		state:      state,
		fs:         afero.NewOsFs(),
		dir:        cfg.Paths.DiaryDir,
		format:     cfg.Diary.EntriesFileFormat,
		autoUpdate: cfg.Diary.AutoUpdateDate,
		logger:     logging.NewComponentLogger(logger, "diary"),
	}
}

// WithFs swaps the filesystem partitions are written to.
func (m *Manager) WithFs(fs afero.Fs) *Manager {
	if fs != nil {
		m.fs = fs
	}
	return m
}

// Current returns the persisted active date, or "" before the first cycle.
func (m *Manager) Current(ctx context.Context) (string, error) {
	date, err := m.state.DiaryDate(ctx)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "diary", "read date", "", err)
	}
	return date, nil
}

// PartitionPath is the diary file for date.
func (m *Manager) PartitionPath(date string) string {
	return filepath.Join(m.dir, strings.ReplaceAll(m.format, "{date}", date))
}

// CheckRollover advances the active date to the local day of now when they
// differ. A gap of several days jumps directly to today. With automatic
// updates disabled the persisted date is left alone unless it was never set.
func (m *Manager) CheckRollover(ctx context.Context, now time.Time) (Rollover, error) {
	today := now.Local().Format(DateLayout)
	current, err := m.Current(ctx)
	if err != nil {
		return Rollover{}, err
	}

	if current == today || (current != "" && !m.autoUpdate) {
		return Rollover{NewDate: current, Partition: m.PartitionPath(current)}, nil
	}

	roll := Rollover{Rolled: true, Previous: current, NewDate: today, Partition: m.PartitionPath(today)}
	if current != "" {
		roll.SkippedDays = skippedDays(current, now)
	}
	if err := m.state.SetDiaryDate(ctx, today); err != nil {
		return Rollover{}, services.Wrap(services.ErrTransient, "diary", "save date", today, err)
	}
	created, err := m.ensurePartition(today, now)
	if err != nil {
		return roll, err
	}
	roll.Created = created

	logger := logging.WithContext(ctx, m.logger)
	logger.Info("diary date rolled over",
		logging.String(logging.FieldEventType, "diary_rollover"),
		logging.String("previous", current),
		logging.String("date", today),
		logging.String("partition", roll.Partition),
		logging.Bool("created", created),
	)
	if roll.SkippedDays > 0 {
		logging.WarnWithContext(logger, "diary skipped days without a cycle", "diary_days_skipped",
			logging.Int("skipped_days", roll.SkippedDays),
			logging.String(logging.FieldImpact, "no partition exists for the skipped days"),
			logging.String(logging.FieldErrorHint, "expected when the scheduler was stopped; no action needed"),
		)
	}
	return roll, nil
}

// SetDate overrides the active date. The partition is opened when missing.
func (m *Manager) SetDate(ctx context.Context, date string, now time.Time) (string, error) {
	date = strings.TrimSpace(date)
	if _, err := ParseDate(date); err != nil {
		return "", err
	}
	if err := m.state.SetDiaryDate(ctx, date); err != nil {
		return "", services.Wrap(services.ErrTransient, "diary", "save date", date, err)
	}
	if _, err := m.ensurePartition(date, now); err != nil {
		return "", err
	}
	m.logger.Info("diary date set",
		logging.String(logging.FieldEventType, "diary_date_set"),
		logging.String("date", date),
	)
	return m.PartitionPath(date), nil
}

// ParseDate validates a YYMMDD string.
func ParseDate(date string) (time.Time, error) {
	parsed, err := time.ParseInLocation(DateLayout, date, time.Local)
	if err != nil || len(date) != len(DateLayout) {
		return time.Time{}, errors.Mark(errors.Newf("diary date %q must be YYMMDD", date), ErrInvalidDate)
	}
	return parsed, nil
}

func (m *Manager) ensurePartition(date string, now time.Time) (bool, error) {
	path := m.PartitionPath(date)
	if err := m.fs.MkdirAll(m.dir, 0o755); err != nil {
		return false, errors.Wrap(err, "create diary dir")
	}
	file, err := m.fs.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}
		return false, errors.Wrapf(err, "create partition %s", path)
	}
	defer file.Close()

	heading := date
	if parsed, perr := ParseDate(date); perr == nil {
		heading = parsed.Format("2006-01-02")
	}
	header := fmt.Sprintf("# Diary Entries for %s\n\n## System Note - %s\n\nNew day started. Previous entries are in the previous day's file.\n\n",
		heading, now.Local().Format("15:04"))
	if _, err := io.WriteString(file, header); err != nil {
		return false, errors.Wrapf(err, "write partition header %s", path)
	}
	return true, nil
}

// skippedDays counts whole days strictly between previous and now's day.
func skippedDays(previous string, now time.Time) int {
	prev, err := ParseDate(previous)
	if err != nil {
		return 0
	}
	local := now.Local()
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.Local)
	days := int(today.Sub(prev).Hours()/24+0.5) - 1
	if days < 0 {
		return 0
	}
	return days
}
