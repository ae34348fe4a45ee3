// Package sync is the client-side orchestrator: one pull-apply-push cycle,
// serialized so concurrent triggers coalesce instead of interleaving.
package sync

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"sync/atomic"

	"github.com/mpavlenko/docketsync/internal/client/api"
	clientmodels "github.com/mpavlenko/docketsync/internal/client/models"
	"github.com/mpavlenko/docketsync/internal/client/storage"
	"github.com/mpavlenko/docketsync/internal/common"
	"github.com/mpavlenko/docketsync/internal/logging"
	"github.com/mpavlenko/docketsync/internal/models"
	"github.com/mpavlenko/docketsync/internal/vault"
)

// State of the orchestrator, observable for status displays.
type State int32

const (
	StateIdle State = iota
	StatePulling
	StateApplying
	StatePushing
)

func (s State) String() string {
	switch s {
	case StatePulling:
		return "pulling"
	case StateApplying:
		return "applying"
	case StatePushing:
		return "pushing"
	default:
		return "idle"
	}
}

// Orchestrator drives sync cycles against one local database and one server.
type Orchestrator struct {
	db      *storage.DB
	api     api.Client
	encrypt bool
	log     logging.Logger

	state atomic.Int32

	mu      stdsync.Mutex
	running bool
	pending bool
}

func New(db *storage.DB, apiClient api.Client, encrypt bool, log logging.Logger) *Orchestrator {
	return &Orchestrator{db: db, api: apiClient, encrypt: encrypt, log: log}
}

// State returns the current cycle phase.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

func (o *Orchestrator) setState(s State) {
	o.state.Store(int32(s))
}

// Sync runs pull-apply-push. At most one cycle runs at a time: a call made
// while a cycle is in flight marks a pending trigger and returns immediately;
// the running call executes one more cycle before finishing, so no trigger is
// lost and no two cycles interleave.
func (o *Orchestrator) Sync(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.pending = true
		o.mu.Unlock()
		return nil
	}
	o.running = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	for {
		err := o.runCycle(ctx)

		o.mu.Lock()
		again := o.pending
		o.pending = false
		o.mu.Unlock()

		if err != nil || !again {
			return err
		}
	}
}

func (o *Orchestrator) runCycle(ctx context.Context) error {
	defer o.setState(StateIdle)

	token, err := o.db.Meta().Get(ctx, storage.MetaAccessToken)
	if errors.Is(err, common.ErrNotFound) || (err == nil && token == "") {
		return fmt.Errorf("%w: not logged in", common.ErrUnauthorized)
	}
	if err != nil {
		return err
	}

	var key []byte
	if o.encrypt {
		v := vault.New(metaKeyCache{o.db.Meta()}, apiEscrow{api: o.api, meta: o.db.Meta(), token: token, log: o.log}, o.log)
		if key, err = v.EnsureKey(ctx); err != nil {
			return fmt.Errorf("resolving owner key: %w", err)
		}
	}

	o.setState(StatePulling)
	since, err := o.db.Meta().GetInt64(ctx, storage.MetaLastPulledAt)
	if err != nil {
		return err
	}
	resp, err := o.api.Pull(ctx, token, since)
	if err != nil {
		return fmt.Errorf("pull: %w", err)
	}

	o.setState(StateApplying)
	if err := o.applyRemote(ctx, resp, key); err != nil {
		return fmt.Errorf("applying pulled changes: %w", err)
	}

	o.setState(StatePushing)
	if err := o.pushLocal(ctx, token, key); err != nil {
		return fmt.Errorf("push: %w", err)
	}
	return nil
}

// applyRemote applies a pull response and advances the cursor in the same
// transaction, so a crash between the two cannot skip changes. The cursor
// moves only after a successful local apply.
func (o *Orchestrator) applyRemote(ctx context.Context, resp *models.PullResponse, key []byte) error {
	return o.db.WithTx(ctx, func(ctx context.Context, tx *storage.DB) error {
		for _, wc := range append(resp.Changes.Cases.Created, resp.Changes.Cases.Updated...) {
			local, err := inCase(wc, key)
			if err != nil {
				o.log.Warn(ctx, "skipping unreadable pulled case", "id", wc.ID, "error", err)
				continue
			}
			if err := o.applyRemoteCase(ctx, tx, local); err != nil {
				return err
			}
		}
		if err := tx.Cases().RemoveRemote(ctx, resp.Changes.Cases.Deleted); err != nil {
			return err
		}

		for _, wd := range append(resp.Changes.CaseDates.Created, resp.Changes.CaseDates.Updated...) {
			local, err := inDate(wd, key)
			if err != nil {
				o.log.Warn(ctx, "skipping unreadable pulled date", "id", wd.ID, "error", err)
				continue
			}
			if err := o.applyRemoteDate(ctx, tx, local); err != nil {
				return err
			}
		}
		if err := tx.Dates().RemoveRemote(ctx, resp.Changes.CaseDates.Deleted); err != nil {
			return err
		}

		return tx.Meta().SetInt64(ctx, storage.MetaLastPulledAt, resp.Timestamp)
	})
}

// applyRemoteCase upserts a pulled case unless the local row carries
// unpushed edits; those stay put and race through the next push, where the
// server's ordering guard arbitrates.
func (o *Orchestrator) applyRemoteCase(ctx context.Context, tx *storage.DB, c *clientmodels.Case) error {
	existing, err := tx.Cases().Get(ctx, c.ID)
	if err == nil && existing.SyncStatus != clientmodels.StatusSynced {
		o.log.Debug(ctx, "keeping local edit over pulled case", "id", c.ID)
		return nil
	}
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return err
	}
	return tx.Cases().ApplyRemote(ctx, c)
}

func (o *Orchestrator) applyRemoteDate(ctx context.Context, tx *storage.DB, d *clientmodels.CaseDate) error {
	existing, err := tx.Dates().Get(ctx, d.ID)
	if err == nil && existing.SyncStatus != clientmodels.StatusSynced {
		o.log.Debug(ctx, "keeping local edit over pulled date", "id", d.ID)
		return nil
	}
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return err
	}
	return tx.Dates().ApplyRemote(ctx, d)
}

// pushLocal sends all pending local changes and, on success, marks them
// synced and purges pushed tombstones.
func (o *Orchestrator) pushLocal(ctx context.Context, token string, key []byte) error {
	ch := models.NewChanges()

	createdCases, err := o.db.Cases().PendingCreated(ctx)
	if err != nil {
		return err
	}
	updatedCases, err := o.db.Cases().PendingUpdated(ctx)
	if err != nil {
		return err
	}
	deletedCaseIDs, err := o.db.Cases().PendingDeletedIDs(ctx)
	if err != nil {
		return err
	}
	createdDates, err := o.db.Dates().PendingCreated(ctx)
	if err != nil {
		return err
	}
	updatedDates, err := o.db.Dates().PendingUpdated(ctx)
	if err != nil {
		return err
	}
	deletedDateIDs, err := o.db.Dates().PendingDeletedIDs(ctx)
	if err != nil {
		return err
	}

	for _, c := range createdCases {
		wc, err := outCase(c, key)
		if err != nil {
			return err
		}
		ch.Cases.Created = append(ch.Cases.Created, wc)
	}
	for _, c := range updatedCases {
		wc, err := outCase(c, key)
		if err != nil {
			return err
		}
		ch.Cases.Updated = append(ch.Cases.Updated, wc)
	}
	ch.Cases.Deleted = append(ch.Cases.Deleted, deletedCaseIDs...)

	for _, d := range createdDates {
		wd, err := outDate(d, key)
		if err != nil {
			return err
		}
		ch.CaseDates.Created = append(ch.CaseDates.Created, wd)
	}
	for _, d := range updatedDates {
		wd, err := outDate(d, key)
		if err != nil {
			return err
		}
		ch.CaseDates.Updated = append(ch.CaseDates.Updated, wd)
	}
	ch.CaseDates.Deleted = append(ch.CaseDates.Deleted, deletedDateIDs...)

	if ch.Empty() {
		return nil
	}

	resp, err := o.api.Push(ctx, token, ch)
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("%w: push rejected: %s", common.ErrInternal, resp.Error)
	}

	return o.db.WithTx(ctx, func(ctx context.Context, tx *storage.DB) error {
		caseIDs := make([]string, 0, len(createdCases)+len(updatedCases))
		for _, c := range createdCases {
			caseIDs = append(caseIDs, c.ID)
		}
		for _, c := range updatedCases {
			caseIDs = append(caseIDs, c.ID)
		}
		if err := tx.Cases().MarkSynced(ctx, caseIDs); err != nil {
			return err
		}
		if err := tx.Cases().PurgeDeleted(ctx, deletedCaseIDs); err != nil {
			return err
		}

		dateIDs := make([]string, 0, len(createdDates)+len(updatedDates))
		for _, d := range createdDates {
			dateIDs = append(dateIDs, d.ID)
		}
		for _, d := range updatedDates {
			dateIDs = append(dateIDs, d.ID)
		}
		if err := tx.Dates().MarkSynced(ctx, dateIDs); err != nil {
			return err
		}
		return tx.Dates().PurgeDeleted(ctx, deletedDateIDs)
	})
}
