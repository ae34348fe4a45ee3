package dates

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mpavlenko/docketsync/internal/common"
	"github.com/mpavlenko/docketsync/internal/dbx"
	"github.com/mpavlenko/docketsync/internal/server/models"
	"github.com/mpavlenko/docketsync/internal/server/repositories/fieldcol"
)

// PostgresRepository implements date storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const dateColumns = `id, owner_id, case_id, date, notes, notes_env, created_at_ms, updated_at_ms, deleted`

func scanDate(scan func(dest ...any) error) (*models.CaseDate, error) {
	var (
		item            models.CaseDate
		notes, notesEnv sql.NullString
	)
	if err := scan(
		&item.ID, &item.OwnerID, &item.CaseID, &item.Date,
		&notes, &notesEnv, &item.CreatedAtMs, &item.UpdatedAtMs, &item.Deleted,
	); err != nil {
		return nil, err
	}
	var err error
	if item.Notes, err = fieldcol.FromColumns(notes, notesEnv); err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *PostgresRepository) Get(ctx context.Context, ownerID, id string) (*models.CaseDate, error) {
	query := `SELECT ` + dateColumns + ` FROM case_dates WHERE owner_id=$1 AND id=$2`
	row := r.db.QueryRowContext(ctx, query, ownerID, id)
	item, err := scanDate(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select date: %w", err)
	}
	return item, nil
}

func (r *PostgresRepository) Insert(ctx context.Context, d *models.CaseDate) error {
	notes, notesEnv, err := fieldcol.ToColumns(d.Notes)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO case_dates (id, owner_id, case_id, date, notes, notes_env,
			created_at_ms, updated_at_ms, deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (owner_id, id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query,
		d.ID, d.OwnerID, d.CaseID, d.Date, notes, notesEnv,
		d.CreatedAtMs, d.UpdatedAtMs, d.Deleted)
	if err != nil {
		return fmt.Errorf("failed to insert date: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrAlreadyExists
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, d *models.CaseDate) error {
	notes, notesEnv, err := fieldcol.ToColumns(d.Notes)
	if err != nil {
		return err
	}
	query := `
		UPDATE case_dates SET case_id=$3, date=$4, notes=$5, notes_env=$6,
			created_at_ms=$7, updated_at_ms=$8, deleted=$9
		WHERE owner_id=$1 AND id=$2
	`
	res, err := r.db.ExecContext(ctx, query,
		d.OwnerID, d.ID, d.CaseID, d.Date, notes, notesEnv,
		d.CreatedAtMs, d.UpdatedAtMs, d.Deleted)
	if err != nil {
		return fmt.Errorf("failed to update date: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) SelectOwned(ctx context.Context, ownerID string) ([]*models.CaseDate, error) {
	query := `SELECT ` + dateColumns + ` FROM case_dates WHERE owner_id=$1`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to select dates: %w", err)
	}
	defer rows.Close()

	var result []*models.CaseDate
	for rows.Next() {
		item, err := scanDate(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) CountActiveByCase(ctx context.Context, ownerID, caseID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM case_dates WHERE owner_id=$1 AND case_id=$2 AND NOT deleted`,
		ownerID, caseID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count dates: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) TombstoneByCase(ctx context.Context, ownerID, caseID string, atMs int64) ([]string, error) {
	query := `
		UPDATE case_dates SET deleted=TRUE, updated_at_ms=$3
		WHERE owner_id=$1 AND case_id=$2 AND NOT deleted
		RETURNING id
	`
	rows, err := r.db.QueryContext(ctx, query, ownerID, caseID, atMs)
	if err != nil {
		return nil, fmt.Errorf("failed to cascade tombstones: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
