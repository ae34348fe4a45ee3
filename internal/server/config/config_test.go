package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func resetArgs(t *testing.T, args ...string) {
	t.Helper()
	old := os.Args
	os.Args = append([]string{"server"}, args...)
	t.Cleanup(func() { os.Args = old })
}

func TestLoadConfig_Defaults(t *testing.T) {
	resetArgs(t)

	cfg := LoadConfig()

	assert.Equal(t, ":8080", cfg.EndpointAddr)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenValidityDuration)
	assert.Equal(t, 100, cfg.MaxCasesPerOwner)
	assert.Equal(t, 20, cfg.MaxDatesPerCase)
	assert.Equal(t, 500, cfg.MaxCaseChangesPerPush)
	assert.Equal(t, 500, cfg.MaxDateChangesPerPush)
	assert.Equal(t, 200, cfg.MaxArrayLenPerPush)
	assert.True(t, cfg.EncryptionEnabled)
	assert.False(t, cfg.AckApplied)
}

func TestLoadConfig_Flags(t *testing.T) {
	resetArgs(t, "-a", ":9090", "-q", "5", "-n", "3", "-p", "50", "-l", "25", "-k")

	cfg := LoadConfig()

	assert.Equal(t, ":9090", cfg.EndpointAddr)
	assert.Equal(t, 5, cfg.MaxCasesPerOwner)
	assert.Equal(t, 3, cfg.MaxDatesPerCase)
	assert.Equal(t, 50, cfg.MaxCaseChangesPerPush)
	assert.Equal(t, 50, cfg.MaxDateChangesPerPush)
	assert.Equal(t, 25, cfg.MaxArrayLenPerPush)
	assert.True(t, cfg.AckApplied)
}

func TestLoadConfig_EnvOverlay(t *testing.T) {
	resetArgs(t)
	t.Setenv("ADDRESS", ":7070")
	t.Setenv("SECRET_KEY", "env-secret")
	t.Setenv("ENCRYPTION_ENABLED", "false")

	cfg := LoadConfig()

	assert.Equal(t, ":7070", cfg.EndpointAddr)
	assert.Equal(t, "env-secret", cfg.SecretKey)
	assert.False(t, cfg.EncryptionEnabled)
}

func TestLoadConfig_JsonOverlay(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "conf*.json")
	assert.NoError(t, err)
	_, err = f.WriteString(`{
		"endpoint_addr": ":6060",
		"access_token_validity_duration": "30m",
		"max_cases_per_owner": 7,
		"ack_applied": true
	}`)
	assert.NoError(t, err)
	assert.NoError(t, f.Close())

	resetArgs(t, "-c", f.Name())

	cfg := LoadConfig()

	assert.Equal(t, ":6060", cfg.EndpointAddr)
	assert.Equal(t, 30*time.Minute, cfg.AccessTokenValidityDuration)
	assert.Equal(t, 7, cfg.MaxCasesPerOwner)
	assert.True(t, cfg.AckApplied)
	// Untouched fields keep defaults.
	assert.Equal(t, 20, cfg.MaxDatesPerCase)
}
