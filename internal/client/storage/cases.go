package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/mpavlenko/docketsync/internal/client/models"
	"github.com/mpavlenko/docketsync/internal/common"
	"github.com/mpavlenko/docketsync/internal/dbx"
)

// CaseStore persists local cases and tracks their sync status.
type CaseStore struct {
	db dbx.DBTX
}

const caseColumns = "id, plaintiff, defendant, title, details, created_at_ms, updated_at_ms, deleted, sync_status"

func scanCase(row interface{ Scan(dest ...any) error }) (*models.Case, error) {
	var c models.Case
	err := row.Scan(&c.ID, &c.Plaintiff, &c.Defendant, &c.Title, &c.Details,
		&c.CreatedAtMs, &c.UpdatedAtMs, &c.Deleted, &c.SyncStatus)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Insert stores a locally created case pending its first push.
func (s *CaseStore) Insert(ctx context.Context, c *models.Case) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cases (`+caseColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		c.ID, c.Plaintiff, c.Defendant, c.Title, c.Details,
		c.CreatedAtMs, c.UpdatedAtMs, models.StatusCreated)
	return err
}

// Update overwrites a case's fields and moves a synced row to the updated
// state; a never-pushed row stays in the created state so it still lands in
// the created list.
func (s *CaseStore) Update(ctx context.Context, c *models.Case) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE cases SET plaintiff = ?, defendant = ?, title = ?, details = ?,
			updated_at_ms = ?,
			sync_status = CASE WHEN sync_status = ? THEN ? ELSE ? END
		WHERE id = ?`,
		c.Plaintiff, c.Defendant, c.Title, c.Details, c.UpdatedAtMs,
		models.StatusCreated, models.StatusCreated, models.StatusUpdated, c.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *CaseStore) Get(ctx context.Context, id string) (*models.Case, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+caseColumns+" FROM cases WHERE id = ?", id)
	c, err := scanCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	return c, err
}

// ListActive returns non-deleted cases in creation order.
func (s *CaseStore) ListActive(ctx context.Context) ([]*models.Case, error) {
	return s.selectCases(ctx, "SELECT "+caseColumns+" FROM cases WHERE deleted = 0 ORDER BY created_at_ms, id")
}

// Delete removes a case locally. A never-pushed row is dropped outright;
// a synced row becomes a tombstone carried by the next push.
func (s *CaseStore) Delete(ctx context.Context, id string, atMs int64) error {
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.SyncStatus == models.StatusCreated {
		_, err = s.db.ExecContext(ctx, "DELETE FROM cases WHERE id = ?", id)
		return err
	}
	_, err = s.db.ExecContext(ctx,
		"UPDATE cases SET deleted = 1, updated_at_ms = ? WHERE id = ?", atMs, id)
	return err
}

// PendingCreated returns live rows born locally since the last push.
func (s *CaseStore) PendingCreated(ctx context.Context) ([]*models.Case, error) {
	return s.selectCases(ctx,
		"SELECT "+caseColumns+" FROM cases WHERE deleted = 0 AND sync_status = ? ORDER BY created_at_ms, id",
		models.StatusCreated)
}

// PendingUpdated returns live rows edited since their last sync.
func (s *CaseStore) PendingUpdated(ctx context.Context) ([]*models.Case, error) {
	return s.selectCases(ctx,
		"SELECT "+caseColumns+" FROM cases WHERE deleted = 0 AND sync_status = ? ORDER BY created_at_ms, id",
		models.StatusUpdated)
}

// PendingDeletedIDs returns ids of local tombstones awaiting push.
func (s *CaseStore) PendingDeletedIDs(ctx context.Context) ([]string, error) {
	return selectIDs(ctx, s.db, "SELECT id FROM cases WHERE deleted = 1 ORDER BY id")
}

// MarkSynced flags rows the server has acknowledged.
func (s *CaseStore) MarkSynced(ctx context.Context, ids []string) error {
	return execByIDs(ctx, s.db, "UPDATE cases SET sync_status = ? WHERE id IN", ids, models.StatusSynced)
}

// PurgeDeleted drops pushed tombstones; the server holds them from here on.
func (s *CaseStore) PurgeDeleted(ctx context.Context, ids []string) error {
	return execByIDs(ctx, s.db, "DELETE FROM cases WHERE deleted = 1 AND id IN", ids)
}

// ApplyRemote upserts a record arriving from a pull, stamped synced.
func (s *CaseStore) ApplyRemote(ctx context.Context, c *models.Case) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cases (`+caseColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT(id) DO UPDATE SET
			plaintiff = excluded.plaintiff, defendant = excluded.defendant,
			title = excluded.title, details = excluded.details,
			created_at_ms = excluded.created_at_ms, updated_at_ms = excluded.updated_at_ms,
			deleted = 0, sync_status = excluded.sync_status`,
		c.ID, c.Plaintiff, c.Defendant, c.Title, c.Details,
		c.CreatedAtMs, c.UpdatedAtMs, models.StatusSynced)
	return err
}

// RemoveRemote drops rows the server reports as deleted.
func (s *CaseStore) RemoveRemote(ctx context.Context, ids []string) error {
	return execByIDs(ctx, s.db, "DELETE FROM cases WHERE id IN", ids)
}

func (s *CaseStore) selectCases(ctx context.Context, query string, args ...any) ([]*models.Case, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*models.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func selectIDs(ctx context.Context, db dbx.DBTX, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
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
	return ids, rows.Err()
}

// execByIDs runs query (ending in "... IN") against the given ids. Extra
// placeholders preceding the IN list are bound from pre.
func execByIDs(ctx context.Context, db dbx.DBTX, query string, ids []string, pre ...any) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, 0, len(pre)+len(ids))
	args = append(args, pre...)
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := db.ExecContext(ctx, query+" ("+placeholders+")", args...)
	return err
}
