package dates

import (
	"context"
	"sync"

	"github.com/mpavlenko/docketsync/internal/common"
	"github.com/mpavlenko/docketsync/internal/server/models"
)

// MemoryRepository is a map-backed Repository used by tests and local runs.
type MemoryRepository struct {
	mu    sync.RWMutex
	items map[string]map[string]models.CaseDate // ownerID -> id -> date
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[string]map[string]models.CaseDate)}
}

func (r *MemoryRepository) Get(ctx context.Context, ownerID, id string) (*models.CaseDate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.items[ownerID][id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := d
	return &cp, nil
}

func (r *MemoryRepository) Insert(ctx context.Context, d *models.CaseDate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	owned, ok := r.items[d.OwnerID]
	if !ok {
		owned = make(map[string]models.CaseDate)
		r.items[d.OwnerID] = owned
	}
	if _, exists := owned[d.ID]; exists {
		return common.ErrAlreadyExists
	}
	owned[d.ID] = *d
	return nil
}

func (r *MemoryRepository) Update(ctx context.Context, d *models.CaseDate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	owned := r.items[d.OwnerID]
	if _, exists := owned[d.ID]; !exists {
		return common.ErrNotFound
	}
	owned[d.ID] = *d
	return nil
}

func (r *MemoryRepository) SelectOwned(ctx context.Context, ownerID string) ([]*models.CaseDate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*models.CaseDate
	for _, d := range r.items[ownerID] {
		cp := d
		result = append(result, &cp)
	}
	return result, nil
}

func (r *MemoryRepository) CountActiveByCase(ctx context.Context, ownerID, caseID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, d := range r.items[ownerID] {
		if d.CaseID == caseID && !d.Deleted {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) TombstoneByCase(ctx context.Context, ownerID, caseID string, atMs int64) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, d := range r.items[ownerID] {
		if d.CaseID == caseID && !d.Deleted {
			d.Deleted = true
			d.UpdatedAtMs = atMs
			r.items[ownerID][id] = d
			ids = append(ids, id)
		}
	}
	return ids, nil
}
