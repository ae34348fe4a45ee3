package httpapi

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpavlenko/docketsync/internal/logging"
	"github.com/mpavlenko/docketsync/internal/models"
	"github.com/mpavlenko/docketsync/internal/server/config"
	"github.com/mpavlenko/docketsync/internal/server/repositories/repomanager"
	"github.com/mpavlenko/docketsync/internal/server/services"
	"github.com/mpavlenko/docketsync/internal/vault"
)

func newTestServer(t *testing.T, mutate func(cfg *config.Config)) *httptest.Server {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "test-secret"
	cfg.EncryptionEnabled = false
	if mutate != nil {
		mutate(cfg)
	}

	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	m := repomanager.NewMemoryManager()
	kr := vault.NewKeyring()

	srv := NewServer(cfg,
		services.NewUserService(m, cfg.SecretKey, cfg.AccessTokenValidityDuration, log),
		services.NewKeyService(m, kr),
		services.NewSyncService(m, services.NewQuotaGuard(m, cfg.MaxCasesPerOwner, cfg.MaxDatesPerCase), kr, cfg, log),
		log)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, ts *httptest.Server, method, path, token string, body any) (int, []byte) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func registerAndLogin(t *testing.T, ts *httptest.Server, username string) string {
	t.Helper()

	creds := models.Credentials{Username: username, Password: "pw"}
	status, _ := doJSON(t, ts, http.MethodPost, "/users/register", "", creds)
	require.Equal(t, http.StatusOK, status)

	status, body := doJSON(t, ts, http.MethodPost, "/users/login", "", creds)
	require.Equal(t, http.StatusOK, status)

	var tok models.TokenResponse
	require.NoError(t, json.Unmarshal(body, &tok))
	require.NotEmpty(t, tok.AccessToken)
	return tok.AccessToken
}

func TestPing(t *testing.T) {
	ts := newTestServer(t, nil)

	status, body := doJSON(t, ts, http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "pong", string(body))
}

func TestRegister_Duplicate(t *testing.T) {
	ts := newTestServer(t, nil)
	creds := models.Credentials{Username: "alice", Password: "pw"}

	status, _ := doJSON(t, ts, http.MethodPost, "/users/register", "", creds)
	assert.Equal(t, http.StatusOK, status)

	status, _ = doJSON(t, ts, http.MethodPost, "/users/register", "", creds)
	assert.Equal(t, http.StatusConflict, status)
}

func TestLogin_BadPassword(t *testing.T) {
	ts := newTestServer(t, nil)
	registerAndLogin(t, ts, "alice")

	status, _ := doJSON(t, ts, http.MethodPost, "/users/login", "",
		models.Credentials{Username: "alice", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestSync_RequiresToken(t *testing.T) {
	ts := newTestServer(t, nil)

	status, _ := doJSON(t, ts, http.MethodPost, "/sync/pull", "", models.PullRequest{})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = doJSON(t, ts, http.MethodPost, "/sync/pull", "garbage", models.PullRequest{})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestSync_PushThenPull(t *testing.T) {
	ts := newTestServer(t, nil)
	token := registerAndLogin(t, ts, "alice")

	push := models.PushRequest{Changes: *models.NewChanges()}
	push.Changes.Cases.Created = append(push.Changes.Cases.Created, &models.Case{
		ID:          "c1",
		Plaintiff:   models.PlainField("Smith"),
		Defendant:   models.PlainField("Jones"),
		Title:       models.PlainField("Smith v. Jones"),
		CreatedAtMs: 1000,
		UpdatedAtMs: 1000,
	})

	status, body := doJSON(t, ts, http.MethodPost, "/sync/push", token, push)
	require.Equal(t, http.StatusOK, status)
	var pushResp models.PushResponse
	require.NoError(t, json.Unmarshal(body, &pushResp))
	assert.True(t, pushResp.OK)
	assert.Nil(t, pushResp.Applied, "report is off by default")

	status, body = doJSON(t, ts, http.MethodPost, "/sync/pull", token, models.PullRequest{})
	require.Equal(t, http.StatusOK, status)
	var pullResp models.PullResponse
	require.NoError(t, json.Unmarshal(body, &pullResp))
	require.Len(t, pullResp.Changes.Cases.Created, 1)
	assert.Equal(t, "c1", pullResp.Changes.Cases.Created[0].ID)
	assert.Positive(t, pullResp.Timestamp)

	// Another account sees nothing.
	other := registerAndLogin(t, ts, "bob")
	status, body = doJSON(t, ts, http.MethodPost, "/sync/pull", other, models.PullRequest{})
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &pullResp))
	assert.True(t, pullResp.Changes.Empty())
}

func TestSync_PullAcceptsISOTimestamp(t *testing.T) {
	ts := newTestServer(t, nil)
	token := registerAndLogin(t, ts, "alice")

	status, body := doJSON(t, ts, http.MethodPost, "/sync/pull", token,
		map[string]string{"last_pulled_at": "2023-11-14T22:13:20Z"})
	require.Equal(t, http.StatusOK, status)

	var pullResp models.PullResponse
	require.NoError(t, json.Unmarshal(body, &pullResp))
	assert.True(t, pullResp.Changes.Empty())
}

func TestSync_PushAckEnabled(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) { cfg.AckApplied = true })
	token := registerAndLogin(t, ts, "alice")

	push := models.PushRequest{Changes: *models.NewChanges()}
	push.Changes.Cases.Updated = append(push.Changes.Cases.Updated, &models.Case{
		ID:          "ghost",
		CreatedAtMs: 1000,
		UpdatedAtMs: 1000,
	})

	status, body := doJSON(t, ts, http.MethodPost, "/sync/push", token, push)
	require.Equal(t, http.StatusOK, status)

	var pushResp models.PushResponse
	require.NoError(t, json.Unmarshal(body, &pushResp))
	assert.True(t, pushResp.OK)
	require.NotNil(t, pushResp.Applied)
	require.Len(t, pushResp.Applied.Cases.Skipped, 1)
	assert.Equal(t, models.SkipNotFound, pushResp.Applied.Cases.Skipped[0].Reason)
}

func TestSync_PushBatchTooLarge(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) { cfg.MaxCaseChangesPerPush = 1 })
	token := registerAndLogin(t, ts, "alice")

	push := models.PushRequest{Changes: *models.NewChanges()}
	push.Changes.Cases.Deleted = append(push.Changes.Cases.Deleted, "a", "b")

	status, body := doJSON(t, ts, http.MethodPost, "/sync/push", token, push)
	assert.Equal(t, http.StatusBadRequest, status)

	var pushResp models.PushResponse
	require.NoError(t, json.Unmarshal(body, &pushResp))
	assert.False(t, pushResp.OK)
	assert.NotEmpty(t, pushResp.Error)
}

func TestKeyEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	token := registerAndLogin(t, ts, "alice")

	status, _ := doJSON(t, ts, http.MethodGet, "/users/key", token, nil)
	assert.Equal(t, http.StatusNotFound, status)

	key, err := vault.GenerateKey()
	require.NoError(t, err)
	payload := models.KeyPayload{KeyHex: hex.EncodeToString(key), Version: 1}

	status, _ = doJSON(t, ts, http.MethodPost, "/users/key", token, payload)
	require.Equal(t, http.StatusOK, status)

	status, body := doJSON(t, ts, http.MethodGet, "/users/key", token, nil)
	require.Equal(t, http.StatusOK, status)

	var got models.KeyPayload
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, payload, got)

	status, _ = doJSON(t, ts, http.MethodPost, "/users/key", token, models.KeyPayload{KeyHex: "xx"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestPush_MalformedBody(t *testing.T) {
	ts := newTestServer(t, nil)
	token := registerAndLogin(t, ts, "alice")

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/sync/push", bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
