// Package store implements the relational persistence layer: accounts,
// switch history, quota snapshots and vault metadata, each guarded by
// transactions and a versioned schema.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/ladzaretti/migrate"

	// Package sqlite is a CGo-free port of SQLite/SQLite3.
	_ "modernc.org/sqlite"
)

const pragma = `
PRAGMA journal_mode = WAL;
PRAGMA foreign_keys = ON;
PRAGMA busy_timeout = 5000;
`

var (
	//go:embed migrations/codex_vault
	migrationsFS embed.FS

	schemaMigrations = migrate.EmbeddedMigrations{
		FS:   migrationsFS,
		Path: "migrations/codex_vault",
	}
)

// Store binds the four tables named in the data model (accounts,
// switch_history, quota_snapshots, vault_meta) behind a single writer
// connection and a separate read pool.
//
// All mutating methods run inside a transaction; reads may run
// concurrently with each other and with an in-flight write.
type Store struct {
	write    *sql.DB
	read     *sql.DB
	migrator *migrate.Migrator
}

// Open opens (creating if necessary) the SQLite database file at path
// and applies any pending schema migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	write, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open write connection: %w", err)
	}

	// A single writer connection serializes all mutating statements,
	// mirroring the teacher vault's in-process single-connection model.
	write.SetMaxOpenConns(1)

	if _, err := write.ExecContext(ctx, pragma); err != nil {
		write.Close()
		return nil, fmt.Errorf("apply pragma: %w", err)
	}

	read, err := sql.Open("sqlite", path)
	if err != nil {
		write.Close()
		return nil, fmt.Errorf("open read pool: %w", err)
	}

	if _, err := read.ExecContext(ctx, pragma); err != nil {
		write.Close()
		read.Close()

		return nil, fmt.Errorf("apply pragma to read pool: %w", err)
	}

	m := migrate.New(write, migrate.SQLiteDialect{})

	if _, err := m.ApplyContext(ctx, schemaMigrations); err != nil {
		write.Close()
		read.Close()

		return nil, fmt.Errorf("apply schema migrations: %w", err)
	}

	return &Store{write: write, read: read, migrator: m}, nil
}

// SchemaVersion reports the currently applied migration version,
// surfaced through get_runtime_diagnostics.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	schema, err := s.migrator.CurrentSchemaVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("current schema version: %w", err)
	}

	return schema.Version, nil
}

// Close releases both the writer connection and the read pool.
func (s *Store) Close() error {
	werr := s.write.Close()
	rerr := s.read.Close()

	if werr != nil {
		return werr
	}

	return rerr
}

// withTx runs fn inside a write transaction, committing on success and
// rolling back on any returned error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (retErr error) {
	tx, err := s.write.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
			return
		}

		retErr = tx.Commit()
	}()

	return fn(tx)
}
