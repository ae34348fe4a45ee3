// Package cases provides server-side storage for Case records.
package cases

import (
	"context"

	"github.com/mpavlenko/docketsync/internal/server/models"
)

// Repository is the storage contract used by the reconciliation services.
// All lookups are scoped to an owner; (ownerID, id) identifies a record.
type Repository interface {
	// Get returns a case or common.ErrNotFound.
	Get(ctx context.Context, ownerID, id string) (*models.Case, error)

	// Insert creates a case, returning common.ErrAlreadyExists when the id
	// is already present for the owner.
	Insert(ctx context.Context, c *models.Case) error

	// Update overwrites a case, returning common.ErrNotFound when absent.
	Update(ctx context.Context, c *models.Case) error

	// SelectOwned returns every case of the owner, tombstones included.
	SelectOwned(ctx context.Context, ownerID string) ([]*models.Case, error)

	// CountActive counts the owner's non-deleted cases.
	CountActive(ctx context.Context, ownerID string) (int, error)
}
