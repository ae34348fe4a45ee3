package ownerkeys

import (
	"context"
	"sync"
	"time"

	"github.com/mpavlenko/docketsync/internal/common"
	"github.com/mpavlenko/docketsync/internal/server/models"
)

// MemoryRepository is a map-backed Repository used by tests and local runs.
type MemoryRepository struct {
	mu   sync.RWMutex
	keys map[string]models.OwnerKey
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{keys: make(map[string]models.OwnerKey)}
}

func (r *MemoryRepository) Get(ctx context.Context, ownerID string) (*models.OwnerKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.keys[ownerID]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := k
	return &cp, nil
}

func (r *MemoryRepository) Upsert(ctx context.Context, key *models.OwnerKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *key
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	r.keys[key.OwnerID] = stored
	return nil
}
