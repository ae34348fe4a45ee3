// Package ownerkeys provides server-side escrow storage for per-owner DEKs.
package ownerkeys

import (
	"context"

	"github.com/mpavlenko/docketsync/internal/server/models"
)

type Repository interface {
	// Get returns the escrowed key for owner or common.ErrNotFound.
	Get(ctx context.Context, ownerID string) (*models.OwnerKey, error)

	// Upsert stores or replaces the escrowed key for its owner.
	Upsert(ctx context.Context, key *models.OwnerKey) error
}
