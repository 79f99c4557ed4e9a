package queue

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is stored in PRAGMA user_version. Bump it when schema.sql
// changes and add the step that brings the previous version forward.
const schemaVersion = 2

// upgrades maps a version to the statements that lift it to version+1.
var upgrades = map[int]string{
	1: `ALTER TABLE jobs ADD COLUMN origin TEXT NOT NULL DEFAULT 'service';
CREATE INDEX idx_jobs_origin_phase ON jobs(origin, phase);`,
}

// ErrSchemaMismatch indicates the database was created by a different schema version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

func (s *Store) initSchema(ctx context.Context) error {
	var version int
	if err := s.db.GetContext(ctx, &version, "PRAGMA user_version"); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	switch {
	case version == schemaVersion:
		return nil
	case version == 0:
		return s.createSchema(ctx)
	case version > 0 && version < schemaVersion:
		return s.upgradeSchema(ctx, version)
	default:
		return fmt.Errorf("%w: %s has version %d, expected %d (delete it to start over)",
			ErrSchemaMismatch, s.path, version, schemaVersion)
	}
}

// createSchema applies schema.sql and stamps the version in one transaction.
func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	// PRAGMA does not accept bound parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

// upgradeSchema applies each step from version up to schemaVersion in one
// transaction.
func (s *Store) upgradeSchema(ctx context.Context, version int) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upgrade tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for v := version; v < schemaVersion; v++ {
		step, ok := upgrades[v]
		if !ok {
			return fmt.Errorf("%w: no upgrade from version %d", ErrSchemaMismatch, v)
		}
		if _, err := tx.ExecContext(ctx, step); err != nil {
			return fmt.Errorf("upgrade schema from version %d: %w", v, err)
		}
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}
