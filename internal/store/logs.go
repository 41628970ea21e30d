package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/cockroachdb/errors"
)

// AppendLog inserts a log entry and returns its id. A zero timestamp is
// replaced with the current time.
func (s *Store) AppendLog(ctx context.Context, entry LogEntry) (int64, error) {
	if strings.TrimSpace(string(entry.Action)) == "" {
		return 0, errors.New("append log: action is required")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}
	actor := strings.TrimSpace(entry.Actor)
	if actor == "" {
		actor = "system"
	}
	res, err := s.execWithRetry(ctx, `
INSERT INTO scheduler_log (timestamp, actor, action, stage, cycle_id, success, message)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		formatTime(entry.Timestamp), actor, string(entry.Action), entry.Stage, entry.CycleID,
		boolToInt(entry.Success), entry.Message,
	)
	if err != nil {
		return 0, errors.Wrap(err, "append scheduler log")
	}
	id, err := res.LastInsertId()
	return id, errors.Wrap(err, "append scheduler log")
}

// RecentLogs returns up to limit entries, newest first.
func (s *Store) RecentLogs(ctx context.Context, limit int) ([]LogEntry, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = 10
	}
	var entries []LogEntry
	err := retryOnBusy(ctx, func() error {
		entries = entries[:0]
		rows, err := s.db.QueryContext(ctx, `
SELECT id, timestamp, actor, action, stage, cycle_id, success, message
FROM scheduler_log
ORDER BY timestamp DESC, id DESC
LIMIT ?`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				entry   LogEntry
				ts      sql.NullString
				action  string
				success int
			)
			if err := rows.Scan(&entry.ID, &ts, &entry.Actor, &action, &entry.Stage, &entry.CycleID, &success, &entry.Message); err != nil {
				return err
			}
			parsed, err := parseTime(ts)
			if err != nil {
				return err
			}
			if parsed != nil {
				entry.Timestamp = *parsed
			}
			entry.Action = Action(action)
			entry.Success = success != 0
			entries = append(entries, entry)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, errors.Wrap(err, "list scheduler log")
	}
	return entries, nil
}

// PruneLogs deletes all but the newest keep entries. keep <= 0 disables pruning.
func (s *Store) PruneLogs(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	res, err := s.execWithRetry(ctx, `
DELETE FROM scheduler_log
WHERE id NOT IN (SELECT id FROM scheduler_log ORDER BY timestamp DESC, id DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, errors.Wrap(err, "prune scheduler log")
	}
	n, err := res.RowsAffected()
	return n, errors.Wrap(err, "prune scheduler log")
}
