package users

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mpavlenko/docketsync/internal/common"
	"github.com/mpavlenko/docketsync/internal/server/models"
)

// MemoryRepository is a map-backed Repository used by tests and local runs.
type MemoryRepository struct {
	mu    sync.RWMutex
	byID  map[string]models.User
	names map[string]string // username -> id
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:  make(map[string]models.User),
		names: make(map[string]string),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, u *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.names[u.Username]; taken {
		return nil, common.ErrAlreadyExists
	}
	stored := *u
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	r.byID[stored.ID] = stored
	r.names[stored.Username] = stored.ID
	return &stored, nil
}

func (r *MemoryRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.names[username]
	if !ok {
		return nil, common.ErrNotFound
	}
	u := r.byID[id]
	return &u, nil
}
