package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mpavlenko/docketsync/internal/dbx"
	"github.com/mpavlenko/docketsync/internal/server/migrations"
	"github.com/mpavlenko/docketsync/internal/server/repositories/cases"
	"github.com/mpavlenko/docketsync/internal/server/repositories/dates"
	"github.com/mpavlenko/docketsync/internal/server/repositories/ownerkeys"
	"github.com/mpavlenko/docketsync/internal/server/repositories/users"
)

// PostgresManager binds the repositories to either the root *sql.DB or, for
// a manager produced by WithTx, to one transaction.
type PostgresManager struct {
	root *sql.DB // nil on tx-bound managers
	db   dbx.DBTX
}

func NewPostgresManager(dsn string) (*PostgresManager, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	return &PostgresManager{root: db, db: db}, nil
}

func (m *PostgresManager) Cases() cases.Repository {
	return cases.NewPostgresRepository(m.db)
}

func (m *PostgresManager) Dates() dates.Repository {
	return dates.NewPostgresRepository(m.db)
}

func (m *PostgresManager) Users() users.Repository {
	return users.NewPostgresRepository(m.db)
}

func (m *PostgresManager) OwnerKeys() ownerkeys.Repository {
	return ownerkeys.NewPostgresRepository(m.db)
}

func (m *PostgresManager) WithTx(ctx context.Context, fn func(ctx context.Context, tm Manager) error) error {
	if m.root == nil {
		// Already transactional; run in the same tx.
		return fn(ctx, m)
	}
	return dbx.WithTx(ctx, m.root, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, &PostgresManager{db: tx})
	})
}

func (m *PostgresManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, m.root, ".")
}

func (m *PostgresManager) Close() error {
	if m.root == nil {
		return nil
	}
	return m.root.Close()
}
