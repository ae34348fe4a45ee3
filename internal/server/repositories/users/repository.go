// Package users provides server-side storage for accounts.
package users

import (
	"context"

	"github.com/mpavlenko/docketsync/internal/server/models"
)

type Repository interface {
	// Create stores a new user, assigning an id when empty, and returns the
	// stored record. Returns common.ErrAlreadyExists on a duplicate username.
	Create(ctx context.Context, u *models.User) (*models.User, error)

	// GetByUsername returns a user or common.ErrNotFound.
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}
