package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
)

const statusColumns = "is_running, last_started, last_stopped, pid, last_cycle_at, next_cycle_at"

// Status returns the persisted scheduler status. A store that has never been
// written returns the zero Status.
func (s *Store) Status(ctx context.Context) (Status, error) {
	ctx = ensureContext(ctx)
	var (
		running                                int
		started, stopped, lastCycle, nextCycle sql.NullString
		pid                                    sql.NullInt64
	)
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			"SELECT "+statusColumns+" FROM scheduler_status WHERE id = 1",
		).Scan(&running, &started, &stopped, &pid, &lastCycle, &nextCycle)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, errors.Wrap(err, "read scheduler status")
	}

	status := Status{IsRunning: running != 0}
	if pid.Valid {
		status.PID = IntPtr(int(pid.Int64))
	}
	for _, field := range []struct {
		raw sql.NullString
		dst **time.Time
	}{
		{started, &status.LastStarted},
		{stopped, &status.LastStopped},
		{lastCycle, &status.LastCycleAt},
		{nextCycle, &status.NextCycleAt},
	} {
		parsed, err := parseTime(field.raw)
		if err != nil {
			return Status{}, err
		}
		*field.dst = parsed
	}
	return status, nil
}

// SaveStatus replaces the lifecycle columns of the status row. Cycle columns
// are owned by the scheduler and left untouched.
func (s *Store) SaveStatus(ctx context.Context, status Status) error {
	var pid any
	if status.PID != nil {
		pid = *status.PID
	}
	_, err := s.execWithRetry(ctx, `
INSERT INTO scheduler_status (id, is_running, last_started, last_stopped, pid, updated_at)
VALUES (1, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    is_running = excluded.is_running,
    last_started = excluded.last_started,
    last_stopped = excluded.last_stopped,
    pid = excluded.pid,
    updated_at = excluded.updated_at`,
		boolToInt(status.IsRunning),
		formatTimePtr(status.LastStarted),
		formatTimePtr(status.LastStopped),
		pid,
		formatTime(s.now()),
	)
	return errors.Wrap(err, "save scheduler status")
}

// RecordCycle stores the start of the latest cycle and the planned next one.
// A zero next time clears the column (run-once mode).
func (s *Store) RecordCycle(ctx context.Context, startedAt, next time.Time) error {
	var nextValue any
	if !next.IsZero() {
		nextValue = formatTime(next)
	}
	_, err := s.execWithRetry(ctx, `
INSERT INTO scheduler_status (id, last_cycle_at, next_cycle_at, updated_at)
VALUES (1, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    last_cycle_at = excluded.last_cycle_at,
    next_cycle_at = excluded.next_cycle_at,
    updated_at = excluded.updated_at`,
		formatTime(startedAt), nextValue, formatTime(s.now()),
	)
	return errors.Wrap(err, "record cycle")
}

// MarkRunning records pid as the live scheduler. last_started is kept when the
// row already names this pid, which is the case when a supervisor spawned it.
func (s *Store) MarkRunning(ctx context.Context, pid int, at time.Time) error {
	_, err := s.execWithRetry(ctx, `
INSERT INTO scheduler_status (id, is_running, last_started, pid, updated_at)
VALUES (1, 1, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    is_running = 1,
    last_started = CASE WHEN scheduler_status.pid = excluded.pid AND scheduler_status.last_started IS NOT NULL
        THEN scheduler_status.last_started ELSE excluded.last_started END,
    pid = excluded.pid,
    updated_at = excluded.updated_at`,
		formatTime(at), pid, formatTime(s.now()),
	)
	return errors.Wrap(err, "mark scheduler running")
}

// MarkStopped clears the running flag only if the row still names pid, so a
// scheduler exiting late cannot overwrite the record of its successor.
func (s *Store) MarkStopped(ctx context.Context, pid int, at time.Time) (bool, error) {
	res, err := s.execWithRetry(ctx, `
UPDATE scheduler_status
SET is_running = 0, last_stopped = ?, pid = NULL, next_cycle_at = NULL, updated_at = ?
WHERE id = 1 AND pid = ?`,
		formatTime(at), formatTime(s.now()), pid,
	)
	if err != nil {
		return false, errors.Wrap(err, "mark scheduler stopped")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "mark scheduler stopped")
	}
	return n > 0, nil
}
