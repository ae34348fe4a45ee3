package sync

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clientmodels "github.com/mpavlenko/docketsync/internal/client/models"
	"github.com/mpavlenko/docketsync/internal/client/storage"
	"github.com/mpavlenko/docketsync/internal/common"
	"github.com/mpavlenko/docketsync/internal/logging"
	"github.com/mpavlenko/docketsync/internal/models"
	"github.com/mpavlenko/docketsync/internal/vault"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// fakeAPI scripts the server side of a sync cycle.
type fakeAPI struct {
	mu stdsync.Mutex

	pullResp  *models.PullResponse
	pullErr   error
	pullGate  chan struct{} // when set, Pull blocks until the gate closes
	pullCalls int

	pushResp *models.PushResponse
	pushErr  error
	pushed   []*models.Changes

	escrowed *models.KeyPayload
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		pullResp: &models.PullResponse{Changes: *models.NewChanges(), Timestamp: 5000},
		pushResp: &models.PushResponse{OK: true},
	}
}

func (f *fakeAPI) Register(ctx context.Context, username, password string) error { return nil }
func (f *fakeAPI) Login(ctx context.Context, username, password string) (string, error) {
	return "tok", nil
}

func (f *fakeAPI) Pull(ctx context.Context, token string, lastPulledAtMs int64) (*models.PullResponse, error) {
	f.mu.Lock()
	f.pullCalls++
	gate := f.pullGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if f.pullErr != nil {
		return nil, f.pullErr
	}
	return f.pullResp, nil
}

func (f *fakeAPI) Push(ctx context.Context, token string, ch *models.Changes) (*models.PushResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushErr != nil {
		return nil, f.pushErr
	}
	f.pushed = append(f.pushed, ch)
	return f.pushResp, nil
}

func (f *fakeAPI) GetKey(ctx context.Context, token string) (*models.KeyPayload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.escrowed == nil {
		return nil, common.ErrNotFound
	}
	return f.escrowed, nil
}

func (f *fakeAPI) PutKey(ctx context.Context, token string, payload *models.KeyPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.escrowed = payload
	return nil
}

func (f *fakeAPI) Ping(ctx context.Context) error { return nil }

func (f *fakeAPI) pushCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pushed)
}

type fixture struct {
	db   *storage.DB
	api  *fakeAPI
	orch *Orchestrator
}

func newFixture(t *testing.T, encrypt bool) *fixture {
	t.Helper()

	db, err := storage.Open(filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.RunMigrations(context.Background()))

	// A logged-in session.
	require.NoError(t, db.Meta().Set(context.Background(), storage.MetaAccessToken, "tok"))

	api := newFakeAPI()
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return &fixture{db: db, api: api, orch: New(db, api, encrypt, log)}
}

func TestSync_NotLoggedIn(t *testing.T) {
	f := newFixture(t, false)
	require.NoError(t, f.db.Meta().Delete(context.Background(), storage.MetaAccessToken))

	err := f.orch.Sync(context.Background())
	assert.ErrorIs(t, err, common.ErrUnauthorized)
	assert.Zero(t, f.api.pullCalls)
}

func TestSync_AppliesPullAndAdvancesCursor(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	f.api.pullResp.Changes.Cases.Created = append(f.api.pullResp.Changes.Cases.Created, &models.Case{
		ID:          "c1",
		Plaintiff:   models.PlainField("Smith"),
		Title:       models.PlainField("Smith v. Jones"),
		CreatedAtMs: 1000,
		UpdatedAtMs: 1000,
	})
	f.api.pullResp.Changes.CaseDates.Created = append(f.api.pullResp.Changes.CaseDates.Created, &models.CaseDate{
		ID:          "d1",
		CaseID:      "c1",
		Date:        "2026-09-15",
		Notes:       models.PlainField("bring file"),
		CreatedAtMs: 1000,
		UpdatedAtMs: 1000,
	})

	require.NoError(t, f.orch.Sync(ctx))

	got, err := f.db.Cases().Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Smith", got.Plaintiff)
	assert.Equal(t, clientmodels.StatusSynced, got.SyncStatus)

	gotDate, err := f.db.Dates().Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "bring file", gotDate.Notes)

	cursor, err := f.db.Meta().GetInt64(ctx, storage.MetaLastPulledAt)
	require.NoError(t, err)
	assert.EqualValues(t, 5000, cursor)

	// Nothing pending locally, so no push happened.
	assert.Zero(t, f.api.pushCount())
	assert.Equal(t, StateIdle, f.orch.State())
}

func TestSync_AppliesRemoteTombstones(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	require.NoError(t, f.db.Cases().Insert(ctx, &clientmodels.Case{ID: "c1", CreatedAtMs: 1000, UpdatedAtMs: 1000}))
	require.NoError(t, f.db.Cases().MarkSynced(ctx, []string{"c1"}))

	f.api.pullResp.Changes.Cases.Deleted = []string{"c1"}

	require.NoError(t, f.orch.Sync(ctx))

	_, err := f.db.Cases().Get(ctx, "c1")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSync_PushesPendingAndMarksSynced(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	// One fresh case, one synced-then-edited case, one synced-then-deleted.
	require.NoError(t, f.db.Cases().Insert(ctx, &clientmodels.Case{ID: "new", Title: "fresh", CreatedAtMs: 1000, UpdatedAtMs: 1000}))
	require.NoError(t, f.db.Cases().Insert(ctx, &clientmodels.Case{ID: "edited", CreatedAtMs: 1000, UpdatedAtMs: 1000}))
	require.NoError(t, f.db.Cases().Insert(ctx, &clientmodels.Case{ID: "gone", CreatedAtMs: 1000, UpdatedAtMs: 1000}))
	require.NoError(t, f.db.Cases().MarkSynced(ctx, []string{"edited", "gone"}))
	require.NoError(t, f.db.Cases().Update(ctx, &clientmodels.Case{ID: "edited", Title: "edited title", UpdatedAtMs: 2000}))
	require.NoError(t, f.db.Cases().Delete(ctx, "gone", 3000))

	require.NoError(t, f.orch.Sync(ctx))

	require.Equal(t, 1, f.api.pushCount())
	pushed := f.api.pushed[0]
	require.Len(t, pushed.Cases.Created, 1)
	assert.Equal(t, "new", pushed.Cases.Created[0].ID)
	require.Len(t, pushed.Cases.Updated, 1)
	assert.Equal(t, "edited", pushed.Cases.Updated[0].ID)
	assert.Equal(t, []string{"gone"}, pushed.Cases.Deleted)

	got, err := f.db.Cases().Get(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, clientmodels.StatusSynced, got.SyncStatus)

	// The pushed tombstone is purged; the server owns it now.
	ids, err := f.db.Cases().PendingDeletedIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	// A second cycle has nothing left to push.
	require.NoError(t, f.orch.Sync(ctx))
	assert.Equal(t, 1, f.api.pushCount())
}

func TestSync_PullFailureLeavesCursorAndPendingUntouched(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	require.NoError(t, f.db.Meta().SetInt64(ctx, storage.MetaLastPulledAt, 4000))
	require.NoError(t, f.db.Cases().Insert(ctx, &clientmodels.Case{ID: "c1", Title: "draft", CreatedAtMs: 1000, UpdatedAtMs: 1000}))

	f.api.pullErr = fmt.Errorf("%w: connection refused", common.ErrNetwork)

	err := f.orch.Sync(ctx)
	assert.ErrorIs(t, err, common.ErrNetwork)

	// The failed cycle left no trace: same cursor, same pending row, no push.
	cursor, err := f.db.Meta().GetInt64(ctx, storage.MetaLastPulledAt)
	require.NoError(t, err)
	assert.EqualValues(t, 4000, cursor)

	created, err := f.db.Cases().PendingCreated(ctx)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "c1", created[0].ID)

	assert.Zero(t, f.api.pushCount())
	assert.Equal(t, StateIdle, f.orch.State())
}

func TestSync_PushFailureKeepsPendingForNextCycle(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	require.NoError(t, f.db.Cases().Insert(ctx, &clientmodels.Case{ID: "new", Title: "fresh", CreatedAtMs: 1000, UpdatedAtMs: 1000}))
	require.NoError(t, f.db.Cases().Insert(ctx, &clientmodels.Case{ID: "gone", CreatedAtMs: 1000, UpdatedAtMs: 1000}))
	require.NoError(t, f.db.Cases().MarkSynced(ctx, []string{"gone"}))
	require.NoError(t, f.db.Cases().Delete(ctx, "gone", 2000))

	f.api.pushErr = fmt.Errorf("%w: bad gateway", common.ErrNetwork)

	err := f.orch.Sync(ctx)
	assert.ErrorIs(t, err, common.ErrNetwork)

	// Pull and apply succeeded, so the cursor did advance; the push failure
	// must not touch dirty markers or the tombstone.
	cursor, err := f.db.Meta().GetInt64(ctx, storage.MetaLastPulledAt)
	require.NoError(t, err)
	assert.EqualValues(t, 5000, cursor)

	created, err := f.db.Cases().PendingCreated(ctx)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "new", created[0].ID)

	deleted, err := f.db.Cases().PendingDeletedIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"gone"}, deleted)

	// The next cycle carries everything that was left behind.
	f.api.mu.Lock()
	f.api.pushErr = nil
	f.api.mu.Unlock()
	require.NoError(t, f.orch.Sync(ctx))
	require.Equal(t, 1, f.api.pushCount())
	require.Len(t, f.api.pushed[0].Cases.Created, 1)
	assert.Equal(t, "new", f.api.pushed[0].Cases.Created[0].ID)
	assert.Equal(t, []string{"gone"}, f.api.pushed[0].Cases.Deleted)

	got, err := f.db.Cases().Get(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, clientmodels.StatusSynced, got.SyncStatus)
}

func TestSync_LocalEditsSurvivePull(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	require.NoError(t, f.db.Cases().Insert(ctx, &clientmodels.Case{ID: "c1", Title: "local edit", CreatedAtMs: 1000, UpdatedAtMs: 4000}))

	f.api.pullResp.Changes.Cases.Created = append(f.api.pullResp.Changes.Cases.Created, &models.Case{
		ID:          "c1",
		Title:       models.PlainField("remote version"),
		CreatedAtMs: 1000,
		UpdatedAtMs: 2000,
	})

	require.NoError(t, f.orch.Sync(ctx))

	// The pending local edit was kept and pushed; the server's ordering
	// guard is the arbiter, not the pull apply.
	got, err := f.db.Cases().Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "local edit", got.Title)
	require.Equal(t, 1, f.api.pushCount())
	require.Len(t, f.api.pushed[0].Cases.Created, 1)
	assert.Equal(t, "local edit", f.api.pushed[0].Cases.Created[0].Title.Plain)
}

func TestSync_EncryptsOutboundAndEscrowsKey(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	require.NoError(t, f.db.Cases().Insert(ctx, &clientmodels.Case{
		ID: "c1", Plaintiff: "Smith", Title: "Smith v. Jones", CreatedAtMs: 1000, UpdatedAtMs: 1000,
	}))

	require.NoError(t, f.orch.Sync(ctx))

	// A key was generated and escrowed on first sync.
	require.NotNil(t, f.api.escrowed)
	key, err := hex.DecodeString(f.api.escrowed.KeyHex)
	require.NoError(t, err)
	require.Len(t, key, vault.KeySize)

	require.Equal(t, 1, f.api.pushCount())
	wc := f.api.pushed[0].Cases.Created[0]
	require.True(t, wc.Plaintiff.Encrypted())
	require.True(t, wc.Title.Encrypted())

	plain, err := vault.DecryptField(wc.Plaintiff.Enc, key)
	require.NoError(t, err)
	assert.Equal(t, "Smith", plain)
}

func TestSync_DecryptsInboundEnvelopes(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	key, err := vault.GenerateKey()
	require.NoError(t, err)
	f.api.escrowed = &models.KeyPayload{KeyHex: hex.EncodeToString(key), Version: 1}

	env, err := vault.EncryptField("Confidential v. Sealed", key)
	require.NoError(t, err)
	f.api.pullResp.Changes.Cases.Created = append(f.api.pullResp.Changes.Cases.Created, &models.Case{
		ID:          "c1",
		Title:       models.EncryptedField(env),
		CreatedAtMs: 1000,
		UpdatedAtMs: 1000,
	})

	require.NoError(t, f.orch.Sync(ctx))

	got, err := f.db.Cases().Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Confidential v. Sealed", got.Title)

	// The downloaded key is cached for the next cycle.
	cached, err := f.db.Meta().Get(ctx, storage.MetaOwnerKey)
	require.NoError(t, err)
	assert.Equal(t, f.api.escrowed.KeyHex, cached)
}

func TestSync_CoalescesConcurrentTriggers(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	gate := make(chan struct{})
	f.api.pullGate = gate

	var wg stdsync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, f.orch.Sync(ctx))
	}()

	// Wait until the first cycle is inside Pull, then trigger again.
	require.Eventually(t, func() bool {
		f.api.mu.Lock()
		defer f.api.mu.Unlock()
		return f.api.pullCalls == 1
	}, waitFor, tick)

	require.NoError(t, f.orch.Sync(ctx), "a trigger during a running cycle returns immediately")

	f.api.mu.Lock()
	f.api.pullGate = nil
	f.api.mu.Unlock()
	close(gate)
	wg.Wait()

	// The pending trigger ran exactly one extra cycle.
	assert.Equal(t, 2, f.api.pullCalls)
}
