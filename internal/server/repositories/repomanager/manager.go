// Package repomanager aggregates the per-entity repositories behind one
// storage handle, with PostgreSQL and in-memory implementations.
package repomanager

import (
	"context"

	"github.com/mpavlenko/docketsync/internal/server/repositories/cases"
	"github.com/mpavlenko/docketsync/internal/server/repositories/dates"
	"github.com/mpavlenko/docketsync/internal/server/repositories/ownerkeys"
	"github.com/mpavlenko/docketsync/internal/server/repositories/users"
)

// Manager hands out repositories bound to the same storage handle. WithTx
// runs fn with a Manager bound to a transaction; record-level push
// operations stay non-transactional by design, WithTx exists for the
// delete-plus-cascade step only.
type Manager interface {
	Cases() cases.Repository
	Dates() dates.Repository
	Users() users.Repository
	OwnerKeys() ownerkeys.Repository

	WithTx(ctx context.Context, fn func(ctx context.Context, m Manager) error) error
	RunMigrations(ctx context.Context) error
	Close() error
}
