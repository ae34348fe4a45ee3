package repomanager

import (
	"context"

	"github.com/mpavlenko/docketsync/internal/server/repositories/cases"
	"github.com/mpavlenko/docketsync/internal/server/repositories/dates"
	"github.com/mpavlenko/docketsync/internal/server/repositories/ownerkeys"
	"github.com/mpavlenko/docketsync/internal/server/repositories/users"
)

// MemoryManager backs the repositories with in-process maps. WithTx runs fn
// against the same state without rollback; tests that need failure-path
// atomicity use a real database.
type MemoryManager struct {
	cases     *cases.MemoryRepository
	dates     *dates.MemoryRepository
	users     *users.MemoryRepository
	ownerKeys *ownerkeys.MemoryRepository
}

func NewMemoryManager() *MemoryManager {
	return &MemoryManager{
		cases:     cases.NewMemoryRepository(),
		dates:     dates.NewMemoryRepository(),
		users:     users.NewMemoryRepository(),
		ownerKeys: ownerkeys.NewMemoryRepository(),
	}
}

func (m *MemoryManager) Cases() cases.Repository         { return m.cases }
func (m *MemoryManager) Dates() dates.Repository         { return m.dates }
func (m *MemoryManager) Users() users.Repository         { return m.users }
func (m *MemoryManager) OwnerKeys() ownerkeys.Repository { return m.ownerKeys }

func (m *MemoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, tm Manager) error) error {
	return fn(ctx, m)
}

func (m *MemoryManager) RunMigrations(ctx context.Context) error { return nil }

func (m *MemoryManager) Close() error { return nil }
