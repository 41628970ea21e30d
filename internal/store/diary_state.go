package store

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
)

// DiaryDate returns the persisted diary date, or "" when none was recorded.
func (s *Store) DiaryDate(ctx context.Context) (string, error) {
	ctx = ensureContext(ctx)
	var date string
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx, "SELECT active_date FROM diary_state WHERE id = 1").Scan(&date)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "read diary date")
	}
	return date, nil
}

// SetDiaryDate persists the diary date.
func (s *Store) SetDiaryDate(ctx context.Context, date string) error {
	_, err := s.execWithRetry(ctx, `
INSERT INTO diary_state (id, active_date, updated_at) VALUES (1, ?, ?)
ON CONFLICT(id) DO UPDATE SET active_date = excluded.active_date, updated_at = excluded.updated_at`,
		date, formatTime(s.now()),
	)
	return errors.Wrap(err, "save diary date")
}
