package cases

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

// PostgresRepository implements case storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const caseColumns = `id, owner_id, plaintiff, plaintiff_env, defendant, defendant_env,
		title, title_env, details, details_env, created_at_ms, updated_at_ms, deleted`

func scanCase(scan func(dest ...any) error) (*models.Case, error) {
	var (
		item                                 models.Case
		plaintiff, plaintiffEnv              sql.NullString
		defendant, defendantEnv              sql.NullString
		title, titleEnv, details, detailsEnv sql.NullString
	)
	if err := scan(
		&item.ID, &item.OwnerID,
		&plaintiff, &plaintiffEnv, &defendant, &defendantEnv,
		&title, &titleEnv, &details, &detailsEnv,
		&item.CreatedAtMs, &item.UpdatedAtMs, &item.Deleted,
	); err != nil {
		return nil, err
	}

	var err error
	if item.Plaintiff, err = fieldcol.FromColumns(plaintiff, plaintiffEnv); err != nil {
		return nil, err
	}
	if item.Defendant, err = fieldcol.FromColumns(defendant, defendantEnv); err != nil {
		return nil, err
	}
	if item.Title, err = fieldcol.FromColumns(title, titleEnv); err != nil {
		return nil, err
	}
	if item.Details, err = fieldcol.FromColumns(details, detailsEnv); err != nil {
		return nil, err
	}
	return &item, nil
}

type caseColumnValues struct {
	plaintiff, plaintiffEnv sql.NullString
	defendant, defendantEnv sql.NullString
	title, titleEnv         sql.NullString
	details, detailsEnv     sql.NullString
}

func splitCaseFields(c *models.Case) (caseColumnValues, error) {
	var v caseColumnValues
	var err error
	if v.plaintiff, v.plaintiffEnv, err = fieldcol.ToColumns(c.Plaintiff); err != nil {
		return v, err
	}
	if v.defendant, v.defendantEnv, err = fieldcol.ToColumns(c.Defendant); err != nil {
		return v, err
	}
	if v.title, v.titleEnv, err = fieldcol.ToColumns(c.Title); err != nil {
		return v, err
	}
	if v.details, v.detailsEnv, err = fieldcol.ToColumns(c.Details); err != nil {
		return v, err
	}
	return v, nil
}

func (r *PostgresRepository) Get(ctx context.Context, ownerID, id string) (*models.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE owner_id=$1 AND id=$2`
	row := r.db.QueryRowContext(ctx, query, ownerID, id)
	item, err := scanCase(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select case: %w", err)
	}
	return item, nil
}

func (r *PostgresRepository) Insert(ctx context.Context, c *models.Case) error {
	v, err := splitCaseFields(c)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO cases (id, owner_id, plaintiff, plaintiff_env, defendant, defendant_env,
			title, title_env, details, details_env, created_at_ms, updated_at_ms, deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (owner_id, id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query,
		c.ID, c.OwnerID, v.plaintiff, v.plaintiffEnv, v.defendant, v.defendantEnv,
		v.title, v.titleEnv, v.details, v.detailsEnv, c.CreatedAtMs, c.UpdatedAtMs, c.Deleted)
	if err != nil {
		return fmt.Errorf("failed to insert case: %w", err)
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

func (r *PostgresRepository) Update(ctx context.Context, c *models.Case) error {
	v, err := splitCaseFields(c)
	if err != nil {
		return err
	}
	query := `
		UPDATE cases SET plaintiff=$3, plaintiff_env=$4, defendant=$5, defendant_env=$6,
			title=$7, title_env=$8, details=$9, details_env=$10,
			created_at_ms=$11, updated_at_ms=$12, deleted=$13
		WHERE owner_id=$1 AND id=$2
	`
	res, err := r.db.ExecContext(ctx, query,
		c.OwnerID, c.ID, v.plaintiff, v.plaintiffEnv, v.defendant, v.defendantEnv,
		v.title, v.titleEnv, v.details, v.detailsEnv, c.CreatedAtMs, c.UpdatedAtMs, c.Deleted)
	if err != nil {
		return fmt.Errorf("failed to update case: %w", err)
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

func (r *PostgresRepository) SelectOwned(ctx context.Context, ownerID string) ([]*models.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE owner_id=$1`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to select cases: %w", err)
	}
	defer rows.Close()

	var result []*models.Case
	for rows.Next() {
		item, err := scanCase(rows.Scan)
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

func (r *PostgresRepository) CountActive(ctx context.Context, ownerID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cases WHERE owner_id=$1 AND NOT deleted`, ownerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count cases: %w", err)
	}
	return n, nil
}
