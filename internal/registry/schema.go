package registry

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/Goosie/nostr-object-identity/internal/phash"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

var (
	// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
	ErrSchemaMismatch = errors.New("schema version mismatch")
	// ErrGeneratorMismatch indicates the stored fingerprints were produced by another generator version.
	ErrGeneratorMismatch = errors.New("fingerprint generator version mismatch")
)

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var (
		version   int
		generator string
	)
	err = s.db.QueryRowContext(ctx, "SELECT version, generator_version FROM schema_version LIMIT 1").Scan(&version, &generator)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to start over)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	if generator != phash.Version {
		return fmt.Errorf("%w: database fingerprints use %q, this build produces %q",
			ErrGeneratorMismatch, generator, phash.Version)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_version (version, generator_version) VALUES (?, ?)",
		schemaVersion, phash.Version,
	); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}
