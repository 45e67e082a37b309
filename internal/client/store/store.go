// Package store opens the local SQLite database and keeps its schema current.
//
// The schema is versioned by goose; the goose version table holds the single
// schema version integer. An older database is migrated in place. A database
// written by a newer build, or one that cannot be migrated, is deleted and
// rebuilt empty: the local store is a cache of the remote store, so the only
// data lost are unpushed outbox entries.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/lotkeeper/internal/client/migrations"
	"github.com/dmitrijs2005/lotkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/lotkeeper/internal/common"
	"github.com/dmitrijs2005/lotkeeper/internal/dbx"
	"github.com/dmitrijs2005/lotkeeper/internal/filex"
	"github.com/dmitrijs2005/lotkeeper/internal/logging"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// cacheTables are wiped by WipeCache. pending_sync is absent.
var cacheTables = []string{
	"companies", "sales", "lots", "contacts", "documents", "categories",
	"photos", "photo_blobs", "conflicts",
}

var migrationsFS fs.FS = migrations.Migrations

type Store struct {
	DB   *sql.DB
	path string
	log  logging.Logger
}

// Open opens (creating if needed) the database at path and migrates it to
// the latest schema version.
func Open(ctx context.Context, path string, log logging.Logger) (*Store, error) {
	log = log.With("component", "store")

	db, err := openDB(path)
	if err != nil {
		return nil, err
	}

	err = migrate(ctx, db, log)
	if err == nil {
		return &Store{DB: db, path: path, log: log}, nil
	}
	if !errors.Is(err, common.ErrSchemaVersion) {
		_ = db.Close()
		return nil, err
	}

	log.Warn(ctx, "local store schema incompatible, recreating", "path", path, "error", err)
	_ = db.Close()

	if err := removeFiles(path); err != nil {
		return nil, err
	}

	db, err = openDB(path)
	if err != nil {
		return nil, err
	}
	if err := migrate(ctx, db, log); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate recreated store: %w", err)
	}
	return &Store{DB: db, path: path, log: log}, nil
}

func openDB(path string) (*sql.DB, error) {
	if path != MemoryPath {
		if _, err := filex.EnsureParentDir(path); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}
	// One connection: in-memory databases are per connection, and the store
	// is the single serialization point for local writes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure local store: %w", err)
	}
	return db, nil
}

func newProvider(db *sql.DB) (*goose.Provider, error) {
	return goose.NewProvider(goose.DialectSQLite3, db, migrationsFS)
}

func migrate(ctx context.Context, db *sql.DB, log logging.Logger) error {
	p, err := newProvider(db)
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	current, target, err := p.GetVersions(ctx)
	if err != nil {
		return fmt.Errorf("%w: read version: %w", common.ErrSchemaVersion, err)
	}
	if current > target {
		return fmt.Errorf("%w: database version %d, latest known %d", common.ErrSchemaVersion, current, target)
	}
	if current == target {
		return nil
	}

	if _, err := p.Up(ctx); err != nil {
		return fmt.Errorf("%w: migrate %d -> %d: %w", common.ErrSchemaVersion, current, target, err)
	}
	log.Info(ctx, "local store migrated", "from", current, "to", target)
	return nil
}

func removeFiles(path string) error {
	if path == MemoryPath {
		return nil
	}
	for _, f := range []string{path, path + "-wal", path + "-shm", path + "-journal"} {
		if err := os.Remove(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", f, err)
		}
	}
	return nil
}

// Version returns the schema version recorded in the database.
func (s *Store) Version(ctx context.Context) (int64, error) {
	p, err := newProvider(s.DB)
	if err != nil {
		return 0, err
	}
	return p.GetDBVersion(ctx)
}

// WipeCache deletes every cached row while keeping the outbox, so mutations
// that were never pushed survive a full reset. Of the metadata only the pull
// cursor is dropped; the temporary lot counter keeps counting down.
func (s *Store) WipeCache(ctx context.Context) error {
	return dbx.WithTx(ctx, s.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, t := range cacheTables {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
				return fmt.Errorf("%w: wipe %s: %w", common.ErrLocalWrite, t, err)
			}
		}
		return metadata.ResetLastSyncTime(ctx, metadata.NewSQLiteRepository(tx))
	})
}

func (s *Store) Close() error {
	return s.DB.Close()
}
