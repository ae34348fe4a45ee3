package ownerkeys

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mpavlenko/docketsync/internal/common"
	"github.com/mpavlenko/docketsync/internal/dbx"
	"github.com/mpavlenko/docketsync/internal/server/models"
)

// PostgresRepository implements escrow storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, ownerID string) (*models.OwnerKey, error) {
	query := `SELECT owner_id, key_hex, version, created_at FROM owner_keys WHERE owner_id=$1`
	row := r.db.QueryRowContext(ctx, query, ownerID)

	var k models.OwnerKey
	err := row.Scan(&k.OwnerID, &k.KeyHex, &k.Version, &k.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select owner key: %w", err)
	}
	return &k, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, key *models.OwnerKey) error {
	query := `
		INSERT INTO owner_keys (owner_id, key_hex, version)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner_id)
		DO UPDATE SET key_hex = EXCLUDED.key_hex, version = EXCLUDED.version
	`
	_, err := r.db.ExecContext(ctx, query, key.OwnerID, key.KeyHex, key.Version)
	if err != nil {
		return fmt.Errorf("failed to upsert owner key: %w", err)
	}
	return nil
}
