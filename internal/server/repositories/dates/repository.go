// Package dates provides server-side storage for CaseDate records.
package dates

import (
	"context"

	"github.com/mpavlenko/docketsync/internal/server/models"
)

// Repository is the storage contract for case dates. All lookups are scoped
// to an owner; (ownerID, id) identifies a record.
type Repository interface {
	// Get returns a date or common.ErrNotFound.
	Get(ctx context.Context, ownerID, id string) (*models.CaseDate, error)

	// Insert creates a date, returning common.ErrAlreadyExists when the id
	// is already present for the owner.
	Insert(ctx context.Context, d *models.CaseDate) error

	// Update overwrites a date, returning common.ErrNotFound when absent.
	Update(ctx context.Context, d *models.CaseDate) error

	// SelectOwned returns every date of the owner, tombstones included.
	SelectOwned(ctx context.Context, ownerID string) ([]*models.CaseDate, error)

	// CountActiveByCase counts non-deleted dates under one case.
	CountActiveByCase(ctx context.Context, ownerID, caseID string) (int, error)

	// TombstoneByCase soft-deletes every live date under the case, stamping
	// atMs as the new updated_at_ms, and returns the tombstoned ids.
	TombstoneByCase(ctx context.Context, ownerID, caseID string, atMs int64) ([]string, error)
}
