package cases

import (
	"context"
	"sync"

	"github.com/mpavlenko/docketsync/internal/common"
	"github.com/mpavlenko/docketsync/internal/server/models"
)

// MemoryRepository is a map-backed Repository used by tests and local runs.
type MemoryRepository struct {
	mu    sync.RWMutex
	items map[string]map[string]models.Case // ownerID -> id -> case
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[string]map[string]models.Case)}
}

func (r *MemoryRepository) Get(ctx context.Context, ownerID, id string) (*models.Case, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.items[ownerID][id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := c
	return &cp, nil
}

func (r *MemoryRepository) Insert(ctx context.Context, c *models.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	owned, ok := r.items[c.OwnerID]
	if !ok {
		owned = make(map[string]models.Case)
		r.items[c.OwnerID] = owned
	}
	if _, exists := owned[c.ID]; exists {
		return common.ErrAlreadyExists
	}
	owned[c.ID] = *c
	return nil
}

func (r *MemoryRepository) Update(ctx context.Context, c *models.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	owned := r.items[c.OwnerID]
	if _, exists := owned[c.ID]; !exists {
		return common.ErrNotFound
	}
	owned[c.ID] = *c
	return nil
}

func (r *MemoryRepository) SelectOwned(ctx context.Context, ownerID string) ([]*models.Case, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*models.Case
	for _, c := range r.items[ownerID] {
		cp := c
		result = append(result, &cp)
	}
	return result, nil
}

func (r *MemoryRepository) CountActive(ctx context.Context, ownerID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, c := range r.items[ownerID] {
		if !c.Deleted {
			n++
		}
	}
	return n, nil
}
