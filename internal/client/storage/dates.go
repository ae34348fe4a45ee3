package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mpavlenko/docketsync/internal/client/models"
	"github.com/mpavlenko/docketsync/internal/common"
	"github.com/mpavlenko/docketsync/internal/dbx"
)

// DateStore persists local case dates. Photo attachments stay on this device:
// photo_path is never sent and never overwritten by pulled data.
type DateStore struct {
	db dbx.DBTX
}

const dateColumns = "id, case_id, date, notes, photo_path, created_at_ms, updated_at_ms, deleted, sync_status"

func scanDate(row interface{ Scan(dest ...any) error }) (*models.CaseDate, error) {
	var d models.CaseDate
	err := row.Scan(&d.ID, &d.CaseID, &d.Date, &d.Notes, &d.PhotoPath,
		&d.CreatedAtMs, &d.UpdatedAtMs, &d.Deleted, &d.SyncStatus)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *DateStore) Insert(ctx context.Context, d *models.CaseDate) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO case_dates (`+dateColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		d.ID, d.CaseID, d.Date, d.Notes, d.PhotoPath,
		d.CreatedAtMs, d.UpdatedAtMs, models.StatusCreated)
	return err
}

func (s *DateStore) Update(ctx context.Context, d *models.CaseDate) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE case_dates SET date = ?, notes = ?, updated_at_ms = ?,
			sync_status = CASE WHEN sync_status = ? THEN ? ELSE ? END
		WHERE id = ?`,
		d.Date, d.Notes, d.UpdatedAtMs,
		models.StatusCreated, models.StatusCreated, models.StatusUpdated, d.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *DateStore) Get(ctx context.Context, id string) (*models.CaseDate, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+dateColumns+" FROM case_dates WHERE id = ?", id)
	d, err := scanDate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	return d, err
}

// ListByCase returns the case's non-deleted dates in calendar order.
func (s *DateStore) ListByCase(ctx context.Context, caseID string) ([]*models.CaseDate, error) {
	return s.selectDates(ctx,
		"SELECT "+dateColumns+" FROM case_dates WHERE case_id = ? AND deleted = 0 ORDER BY date, id", caseID)
}

// SetPhotoPath attaches a device-local photo. Sync status is untouched:
// attachments are not synced state.
func (s *DateStore) SetPhotoPath(ctx context.Context, id, path string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE case_dates SET photo_path = ? WHERE id = ?", path, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *DateStore) Delete(ctx context.Context, id string, atMs int64) error {
	d, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if d.SyncStatus == models.StatusCreated {
		_, err = s.db.ExecContext(ctx, "DELETE FROM case_dates WHERE id = ?", id)
		return err
	}
	_, err = s.db.ExecContext(ctx,
		"UPDATE case_dates SET deleted = 1, updated_at_ms = ? WHERE id = ?", atMs, id)
	return err
}

// DeleteByCase removes every live date under a case, following the same
// drop-or-tombstone rule as Delete.
func (s *DateStore) DeleteByCase(ctx context.Context, caseID string, atMs int64) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM case_dates WHERE case_id = ? AND sync_status = ?",
		caseID, models.StatusCreated); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		"UPDATE case_dates SET deleted = 1, updated_at_ms = ? WHERE case_id = ? AND deleted = 0",
		atMs, caseID)
	return err
}

func (s *DateStore) PendingCreated(ctx context.Context) ([]*models.CaseDate, error) {
	return s.selectDates(ctx,
		"SELECT "+dateColumns+" FROM case_dates WHERE deleted = 0 AND sync_status = ? ORDER BY created_at_ms, id",
		models.StatusCreated)
}

func (s *DateStore) PendingUpdated(ctx context.Context) ([]*models.CaseDate, error) {
	return s.selectDates(ctx,
		"SELECT "+dateColumns+" FROM case_dates WHERE deleted = 0 AND sync_status = ? ORDER BY created_at_ms, id",
		models.StatusUpdated)
}

func (s *DateStore) PendingDeletedIDs(ctx context.Context) ([]string, error) {
	return selectIDs(ctx, s.db, "SELECT id FROM case_dates WHERE deleted = 1 ORDER BY id")
}

func (s *DateStore) MarkSynced(ctx context.Context, ids []string) error {
	return execByIDs(ctx, s.db, "UPDATE case_dates SET sync_status = ? WHERE id IN", ids, models.StatusSynced)
}

func (s *DateStore) PurgeDeleted(ctx context.Context, ids []string) error {
	return execByIDs(ctx, s.db, "DELETE FROM case_dates WHERE deleted = 1 AND id IN", ids)
}

// ApplyRemote upserts a pulled record. photo_path is deliberately left alone
// on update so a local attachment survives remote edits.
func (s *DateStore) ApplyRemote(ctx context.Context, d *models.CaseDate) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO case_dates (`+dateColumns+`)
		VALUES (?, ?, ?, ?, '', ?, ?, 0, ?)
		ON CONFLICT(id) DO UPDATE SET
			case_id = excluded.case_id, date = excluded.date, notes = excluded.notes,
			created_at_ms = excluded.created_at_ms, updated_at_ms = excluded.updated_at_ms,
			deleted = 0, sync_status = excluded.sync_status`,
		d.ID, d.CaseID, d.Date, d.Notes,
		d.CreatedAtMs, d.UpdatedAtMs, models.StatusSynced)
	return err
}

func (s *DateStore) RemoveRemote(ctx context.Context, ids []string) error {
	return execByIDs(ctx, s.db, "DELETE FROM case_dates WHERE id IN", ids)
}

func (s *DateStore) selectDates(ctx context.Context, query string, args ...any) ([]*models.CaseDate, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*models.CaseDate
	for rows.Next() {
		d, err := scanDate(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}
