package store

import (
	"context"
	_ "embed"
	"strconv"

	"github.com/cockroachdb/errors"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is stamped into PRAGMA user_version. Bump it with schema.sql.
const schemaVersion = 1

// ErrSchemaMismatch is returned when the database was written by a different
// schema version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

func (s *Store) userVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, errors.Wrap(err, "read schema version")
	}
	return v, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	v, err := s.userVersion(ctx)
	if err != nil {
		return err
	}
	switch v {
	case schemaVersion:
		return nil
	case 0:
		return s.createSchema(ctx)
	default:
		return errors.WithHintf(
			errors.Wrapf(ErrSchemaMismatch, "database has version %d, expected %d", v, schemaVersion),
			"delete %s to start with a fresh status history", s.path,
		)
	}
}

// createSchema runs schema.sql and stamps the version in one transaction so a
// concurrent opener either sees both or neither.
func (s *Store) createSchema(ctx context.Context) error {
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return errors.Wrap(err, "begin schema tx")
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return errors.Wrap(err, "create schema")
		}
		// PRAGMA does not accept bound parameters.
		if _, err := tx.ExecContext(ctx, "PRAGMA user_version = "+strconv.Itoa(schemaVersion)); err != nil {
			return errors.Wrap(err, "stamp schema version")
		}
		return errors.Wrap(tx.Commit(), "commit schema")
	})
}
