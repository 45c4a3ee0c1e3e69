package session

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// layoutVersion is stored in PRAGMA user_version. Session rows are
// disposable, so a database written by another layout is refused rather
// than migrated.
const layoutVersion = 1

// ErrSchemaMismatch reports a session database written with a different layout.
var ErrSchemaMismatch = errors.New("session database layout mismatch")

func (s *Store) initSchema(ctx context.Context) error {
	var current int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	switch current {
	case layoutVersion:
		return nil
	case 0:
		// fresh file
	default:
		return fmt.Errorf("%w: %s is at layout %d, this build uses %d; remove the file to start over",
			ErrSchemaMismatch, s.path, current, layoutVersion)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin layout tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}
	// PRAGMA does not accept bound parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", layoutVersion)); err != nil {
		return fmt.Errorf("stamp user_version: %w", err)
	}
	return tx.Commit()
}
