// Package services implements the server-side business logic: the pull/push
// reconcilers, quota guard, account handling, and key escrow.
package services

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"

	"github.com/mpavlenko/docketsync/internal/common"
	"github.com/mpavlenko/docketsync/internal/logging"
	"github.com/mpavlenko/docketsync/internal/models"
	"github.com/mpavlenko/docketsync/internal/server/config"
	srvmodels "github.com/mpavlenko/docketsync/internal/server/models"
	"github.com/mpavlenko/docketsync/internal/server/repositories/repomanager"
	"github.com/mpavlenko/docketsync/internal/vault"
)

// SyncService reconciles client change sets with server state.
//
// Pull never mutates state. Push applies what it can record by record and
// skips the rest; only a batch over the pre-flight ceilings or an
// infrastructure failure rejects a push wholesale.
type SyncService struct {
	manager repomanager.Manager
	quota   *QuotaGuard
	keyring *vault.Keyring
	cfg     *config.Config
	log     logging.Logger

	now func() int64 // millis clock, swappable in tests
}

func NewSyncService(manager repomanager.Manager, quota *QuotaGuard, keyring *vault.Keyring, cfg *config.Config, log logging.Logger) *SyncService {
	return &SyncService{
		manager: manager,
		quota:   quota,
		keyring: keyring,
		cfg:     cfg,
		log:     log,
		now:     models.NowMillis,
	}
}

// Pull returns every owned record modified strictly after sinceMs, partitioned
// into created / updated / deleted per entity type, plus the server timestamp
// the client should persist as its next cursor.
//
// Tombstones travel as bare ids. Enveloped fields are decrypted when the
// owner key is resolvable; a record that fails to decrypt is excluded and
// logged rather than failing the pull. Without a resolvable key envelopes
// pass through untouched for the client to open.
func (s *SyncService) Pull(ctx context.Context, ownerID string, sinceMs int64) (*models.PullResponse, error) {
	ts := s.now()
	key := s.resolveKey(ctx, ownerID)
	changes := models.NewChanges()

	allCases, err := s.manager.Cases().SelectOwned(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("loading cases: %w", err)
	}
	for _, sc := range allCases {
		if sc.UpdatedAtMs <= sinceMs {
			continue
		}
		if sc.Deleted {
			changes.Cases.Deleted = append(changes.Cases.Deleted, sc.ID)
			continue
		}
		wc := wireCase(sc)
		if err := decryptCaseFields(wc, key); err != nil {
			s.log.Warn(ctx, "undecryptable case excluded from pull", "owner", ownerID, "id", sc.ID, "error", err)
			continue
		}
		if sc.CreatedAtMs > sinceMs {
			changes.Cases.Created = append(changes.Cases.Created, wc)
		} else {
			changes.Cases.Updated = append(changes.Cases.Updated, wc)
		}
	}

	allDates, err := s.manager.Dates().SelectOwned(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("loading dates: %w", err)
	}
	for _, sd := range allDates {
		if sd.UpdatedAtMs <= sinceMs {
			continue
		}
		if sd.Deleted {
			changes.CaseDates.Deleted = append(changes.CaseDates.Deleted, sd.ID)
			continue
		}
		wd := wireDate(sd)
		if err := decryptField(&wd.Notes, key); err != nil {
			s.log.Warn(ctx, "undecryptable date excluded from pull", "owner", ownerID, "id", sd.ID, "error", err)
			continue
		}
		if sd.CreatedAtMs > sinceMs {
			changes.CaseDates.Created = append(changes.CaseDates.Created, wd)
		} else {
			changes.CaseDates.Updated = append(changes.CaseDates.Updated, wd)
		}
	}

	sortChanges(changes)
	return &models.PullResponse{Changes: *changes, Timestamp: ts}, nil
}

// Push applies a client change set. The whole batch is rejected with
// common.ErrBatchTooLarge when it exceeds a pre-flight ceiling; past that
// gate, records are applied independently and problems with one never undo
// another. Case changes are processed before date changes so a date
// referencing a case deleted in the same batch is rejected, not orphaned.
//
// The returned report lists applied ids and per-record skips; the transport
// layer decides whether to expose it.
func (s *SyncService) Push(ctx context.Context, ownerID string, ch *models.Changes) (*models.PushReport, error) {
	if err := s.checkCeilings(ch); err != nil {
		return nil, err
	}

	nowMs := s.now()

	var key []byte
	if s.cfg.EncryptionEnabled {
		var err error
		key, err = s.ensureKey(ctx, ownerID)
		if err != nil {
			return nil, fmt.Errorf("resolving owner key: %w", err)
		}
	}

	report := &models.PushReport{
		Cases:     models.EntityReport{Applied: []string{}},
		CaseDates: models.EntityReport{Applied: []string{}},
	}

	for _, c := range ch.Cases.Created {
		if err := s.applyCase(ctx, ownerID, c, true, key, nowMs, &report.Cases); err != nil {
			return nil, err
		}
	}
	for _, c := range ch.Cases.Updated {
		if err := s.applyCase(ctx, ownerID, c, false, key, nowMs, &report.Cases); err != nil {
			return nil, err
		}
	}
	for _, id := range ch.Cases.Deleted {
		if err := s.deleteCase(ctx, ownerID, id, nowMs, &report.Cases); err != nil {
			return nil, err
		}
	}

	for _, d := range ch.CaseDates.Created {
		if err := s.applyDate(ctx, ownerID, d, true, key, nowMs, &report.CaseDates); err != nil {
			return nil, err
		}
	}
	for _, d := range ch.CaseDates.Updated {
		if err := s.applyDate(ctx, ownerID, d, false, key, nowMs, &report.CaseDates); err != nil {
			return nil, err
		}
	}
	for _, id := range ch.CaseDates.Deleted {
		if err := s.deleteDate(ctx, ownerID, id, nowMs, &report.CaseDates); err != nil {
			return nil, err
		}
	}

	s.log.Info(ctx, "push applied", "owner", ownerID,
		"cases_applied", len(report.Cases.Applied), "cases_skipped", len(report.Cases.Skipped),
		"dates_applied", len(report.CaseDates.Applied), "dates_skipped", len(report.CaseDates.Skipped))
	return report, nil
}

func (s *SyncService) checkCeilings(ch *models.Changes) error {
	if limit := s.cfg.MaxCaseChangesPerPush; limit > 0 && ch.CaseTotal() > limit {
		return fmt.Errorf("%w: %d case changes exceed the limit of %d", common.ErrBatchTooLarge, ch.CaseTotal(), limit)
	}
	if limit := s.cfg.MaxDateChangesPerPush; limit > 0 && ch.DateTotal() > limit {
		return fmt.Errorf("%w: %d date changes exceed the limit of %d", common.ErrBatchTooLarge, ch.DateTotal(), limit)
	}
	if limit := s.cfg.MaxArrayLenPerPush; limit > 0 && ch.MaxArrayLen() > limit {
		return fmt.Errorf("%w: a change list exceeds the limit of %d entries", common.ErrBatchTooLarge, limit)
	}
	return nil
}

// applyCase handles one created or updated case. A creation whose id already
// exists falls back to the update path, which is also what keeps tombstoned
// ids from being resurrected by a re-create.
func (s *SyncService) applyCase(ctx context.Context, ownerID string, c *models.Case, create bool, key []byte, nowMs int64, report *models.EntityReport) error {
	c.Normalize(nowMs)
	if err := c.Validate(); err != nil {
		s.skip(ctx, report, c.ID, models.SkipValidation, err)
		return nil
	}

	stored, err := s.manager.Cases().Get(ctx, ownerID, c.ID)
	if errors.Is(err, common.ErrNotFound) {
		if !create {
			s.skip(ctx, report, c.ID, models.SkipNotFound, err)
			return nil
		}
		if qerr := s.quota.CheckCaseCreate(ctx, ownerID); qerr != nil {
			if errors.Is(qerr, common.ErrQuotaExceeded) {
				s.skip(ctx, report, c.ID, models.SkipQuota, qerr)
				return nil
			}
			return qerr
		}
		if err := encryptCaseFields(c, key); err != nil {
			return err
		}
		err = s.manager.Cases().Insert(ctx, storedCase(ownerID, c))
		if err == nil {
			report.Applied = append(report.Applied, c.ID)
			return nil
		}
		if !errors.Is(err, common.ErrAlreadyExists) {
			return err
		}
		// Lost an insert race to another device; apply as an update.
		stored, err = s.manager.Cases().Get(ctx, ownerID, c.ID)
	}
	if err != nil {
		return err
	}

	if stored.UpdatedAtMs > c.UpdatedAtMs {
		s.skip(ctx, report, c.ID, models.SkipConflict,
			fmt.Errorf("stored revision %d is newer than incoming %d", stored.UpdatedAtMs, c.UpdatedAtMs))
		return nil
	}

	c.CreatedAtMs = stored.CreatedAtMs
	if stored.Deleted {
		c.Deleted = true // tombstones are permanent
	}
	if err := encryptCaseFields(c, key); err != nil {
		return err
	}

	sc := storedCase(ownerID, c)
	if c.Deleted && !stored.Deleted {
		if err := s.tombstoneCaseTx(ctx, sc, c.UpdatedAtMs); err != nil {
			return err
		}
	} else if err := s.manager.Cases().Update(ctx, sc); err != nil {
		return err
	}

	report.Applied = append(report.Applied, c.ID)
	return nil
}

// deleteCase tombstones a case by id. Deleting a missing id is reported as a
// skip, deleting an already-deleted one is an idempotent success.
func (s *SyncService) deleteCase(ctx context.Context, ownerID, id string, nowMs int64, report *models.EntityReport) error {
	stored, err := s.manager.Cases().Get(ctx, ownerID, id)
	if errors.Is(err, common.ErrNotFound) {
		s.skip(ctx, report, id, models.SkipNotFound, err)
		return nil
	}
	if err != nil {
		return err
	}
	if stored.Deleted {
		report.Applied = append(report.Applied, id)
		return nil
	}

	stored.Deleted = true
	stored.UpdatedAtMs = nowMs
	if err := s.tombstoneCaseTx(ctx, stored, nowMs); err != nil {
		return err
	}

	report.Applied = append(report.Applied, id)
	return nil
}

// tombstoneCaseTx writes the case tombstone and cascades to its live dates in
// one transaction, so no pull can observe a deleted case with live children.
func (s *SyncService) tombstoneCaseTx(ctx context.Context, c *srvmodels.Case, atMs int64) error {
	return s.manager.WithTx(ctx, func(ctx context.Context, m repomanager.Manager) error {
		if err := m.Cases().Update(ctx, c); err != nil {
			return err
		}
		ids, err := m.Dates().TombstoneByCase(ctx, c.OwnerID, c.ID, atMs)
		if err != nil {
			return err
		}
		if len(ids) > 0 {
			s.log.Info(ctx, "cascaded case deletion", "owner", c.OwnerID, "case", c.ID, "dates", len(ids))
		}
		return nil
	})
}

// applyDate handles one created or updated date. Both paths require a live
// parent case.
func (s *SyncService) applyDate(ctx context.Context, ownerID string, d *models.CaseDate, create bool, key []byte, nowMs int64, report *models.EntityReport) error {
	d.Normalize(nowMs)
	if err := d.Validate(); err != nil {
		s.skip(ctx, report, d.ID, models.SkipValidation, err)
		return nil
	}

	parent, err := s.manager.Cases().Get(ctx, ownerID, d.CaseID)
	if errors.Is(err, common.ErrNotFound) || (err == nil && parent.Deleted) {
		s.skip(ctx, report, d.ID, models.SkipReferential,
			fmt.Errorf("%w: case %s does not exist", common.ErrReferentialIntegrity, d.CaseID))
		return nil
	}
	if err != nil {
		return err
	}

	stored, err := s.manager.Dates().Get(ctx, ownerID, d.ID)
	if errors.Is(err, common.ErrNotFound) {
		if !create {
			s.skip(ctx, report, d.ID, models.SkipNotFound, err)
			return nil
		}
		if qerr := s.quota.CheckDateCreate(ctx, ownerID, d.CaseID); qerr != nil {
			if errors.Is(qerr, common.ErrQuotaExceeded) {
				s.skip(ctx, report, d.ID, models.SkipQuota, qerr)
				return nil
			}
			return qerr
		}
		if err := encryptField(&d.Notes, key); err != nil {
			return err
		}
		err = s.manager.Dates().Insert(ctx, storedDate(ownerID, d))
		if err == nil {
			report.Applied = append(report.Applied, d.ID)
			return nil
		}
		if !errors.Is(err, common.ErrAlreadyExists) {
			return err
		}
		stored, err = s.manager.Dates().Get(ctx, ownerID, d.ID)
	}
	if err != nil {
		return err
	}

	if stored.UpdatedAtMs > d.UpdatedAtMs {
		s.skip(ctx, report, d.ID, models.SkipConflict,
			fmt.Errorf("stored revision %d is newer than incoming %d", stored.UpdatedAtMs, d.UpdatedAtMs))
		return nil
	}

	d.CreatedAtMs = stored.CreatedAtMs
	if stored.Deleted {
		d.Deleted = true
	}
	if err := encryptField(&d.Notes, key); err != nil {
		return err
	}
	if err := s.manager.Dates().Update(ctx, storedDate(ownerID, d)); err != nil {
		return err
	}

	report.Applied = append(report.Applied, d.ID)
	return nil
}

func (s *SyncService) deleteDate(ctx context.Context, ownerID, id string, nowMs int64, report *models.EntityReport) error {
	stored, err := s.manager.Dates().Get(ctx, ownerID, id)
	if errors.Is(err, common.ErrNotFound) {
		s.skip(ctx, report, id, models.SkipNotFound, err)
		return nil
	}
	if err != nil {
		return err
	}
	if !stored.Deleted {
		stored.Deleted = true
		stored.UpdatedAtMs = nowMs
		if err := s.manager.Dates().Update(ctx, stored); err != nil {
			return err
		}
	}

	report.Applied = append(report.Applied, id)
	return nil
}

func (s *SyncService) skip(ctx context.Context, report *models.EntityReport, id, reason string, err error) {
	report.Skipped = append(report.Skipped, models.Skip{ID: id, Reason: reason})
	s.log.Warn(ctx, "push record skipped", "id", id, "reason", reason, "error", err)
}

// resolveKey returns the owner DEK from the keyring or escrow, or nil when no
// key exists or the lookup fails. It never generates key material; pull must
// not mint a key for an owner that has none.
func (s *SyncService) resolveKey(ctx context.Context, ownerID string) []byte {
	if key := s.keyring.Get(ownerID); len(key) == vault.KeySize {
		return key
	}
	stored, err := s.manager.OwnerKeys().Get(ctx, ownerID)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			s.log.Warn(ctx, "owner key lookup failed", "owner", ownerID, "error", err)
		}
		return nil
	}
	key, err := hex.DecodeString(stored.KeyHex)
	if err != nil || len(key) != vault.KeySize {
		s.log.Warn(ctx, "escrowed owner key is malformed", "owner", ownerID)
		return nil
	}
	s.keyring.Put(ownerID, key)
	return key
}

// ensureKey resolves the owner DEK for encryption, generating and escrowing
// one when the owner has none. The escrow row is the durable copy: a fresh
// key is persisted before anything is encrypted with it, otherwise a restart
// could strand ciphertext with no key.
func (s *SyncService) ensureKey(ctx context.Context, ownerID string) ([]byte, error) {
	if key := s.keyring.Get(ownerID); len(key) == vault.KeySize {
		return key, nil
	}

	stored, err := s.manager.OwnerKeys().Get(ctx, ownerID)
	switch {
	case err == nil:
		key, derr := hex.DecodeString(stored.KeyHex)
		if derr != nil || len(key) != vault.KeySize {
			return nil, fmt.Errorf("escrowed key for owner %s is malformed", ownerID)
		}
		s.keyring.Put(ownerID, key)
		return key, nil
	case errors.Is(err, common.ErrNotFound):
		// No key yet; generate one below.
	default:
		return nil, err
	}

	key, err := vault.GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := s.manager.OwnerKeys().Upsert(ctx, &srvmodels.OwnerKey{
		OwnerID: ownerID,
		KeyHex:  hex.EncodeToString(key),
		Version: 1,
	}); err != nil {
		return nil, fmt.Errorf("escrowing fresh key: %w", err)
	}
	s.keyring.Put(ownerID, key)
	s.log.Info(ctx, "generated owner key", "owner", ownerID)
	return key, nil
}

// sortChanges orders every list by id. Storage iteration order is
// unspecified; a stable order keeps responses reproducible.
func sortChanges(ch *models.Changes) {
	sort.Slice(ch.Cases.Created, func(i, j int) bool { return ch.Cases.Created[i].ID < ch.Cases.Created[j].ID })
	sort.Slice(ch.Cases.Updated, func(i, j int) bool { return ch.Cases.Updated[i].ID < ch.Cases.Updated[j].ID })
	sort.Strings(ch.Cases.Deleted)
	sort.Slice(ch.CaseDates.Created, func(i, j int) bool { return ch.CaseDates.Created[i].ID < ch.CaseDates.Created[j].ID })
	sort.Slice(ch.CaseDates.Updated, func(i, j int) bool { return ch.CaseDates.Updated[i].ID < ch.CaseDates.Updated[j].ID })
	sort.Strings(ch.CaseDates.Deleted)
}
