// Package storage is the client's local SQLite database: record stores, sync
// metadata, and schema migrations.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/pressly/goose/v3"

	"github.com/mpavlenko/docketsync/internal/client/migrations"
	"github.com/mpavlenko/docketsync/internal/dbx"
)

// DB binds the stores to either the root database handle or, for a DB
// produced by WithTx, to one transaction.
type DB struct {
	root *sql.DB // nil on tx-bound handles
	db   dbx.DBTX
}

// Open opens (creating if needed) the SQLite database at path.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	// A single connection sidesteps SQLITE_BUSY between the stores.
	db.SetMaxOpenConns(1)
	return &DB{root: db, db: db}, nil
}

func (d *DB) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, d.root, ".")
}

func (d *DB) Close() error {
	if d.root == nil {
		return nil
	}
	return d.root.Close()
}

func (d *DB) Cases() *CaseStore { return &CaseStore{db: d.db} }
func (d *DB) Dates() *DateStore { return &DateStore{db: d.db} }
func (d *DB) Meta() *MetaStore  { return &MetaStore{db: d.db} }

// WithTx runs fn with a DB bound to a transaction, committing on success and
// rolling back on error.
func (d *DB) WithTx(ctx context.Context, fn func(ctx context.Context, tx *DB) error) error {
	if d.root == nil {
		return fn(ctx, d)
	}
	return dbx.WithTx(ctx, d.root, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, &DB{db: tx})
	})
}

// DeleteCaseCascade removes a case and all of its dates in one transaction.
// Rows the server has never seen are dropped outright; synced rows become
// tombstones awaiting the next push.
func (d *DB) DeleteCaseCascade(ctx context.Context, id string, atMs int64) error {
	return d.WithTx(ctx, func(ctx context.Context, tx *DB) error {
		if err := tx.Cases().Delete(ctx, id, atMs); err != nil {
			return err
		}
		return tx.Dates().DeleteByCase(ctx, id, atMs)
	})
}

// Wipe clears every table. Used when a different account logs in on this
// device, so one user's data never leaks into another's session.
func (d *DB) Wipe(ctx context.Context) error {
	return d.WithTx(ctx, func(ctx context.Context, tx *DB) error {
		for _, table := range []string{"case_dates", "cases", "metadata"} {
			if _, err := tx.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return err
			}
		}
		return nil
	})
}
