package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, "http://127.0.0.1:8080", cfg.ServerEndpointAddr)
	assert.NotEmpty(t, cfg.DBPath)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.True(t, cfg.EncryptionEnabled)
}

func TestLoadConfig_EnvOverlay(t *testing.T) {
	t.Setenv("SERVER_ADDRESS", "http://sync.example.com")
	t.Setenv("DB_PATH", "/tmp/test.db")
	t.Setenv("ENCRYPTION_ENABLED", "false")
	t.Setenv("REQUEST_TIMEOUT", "3s")

	cfg := LoadConfig()

	assert.Equal(t, "http://sync.example.com", cfg.ServerEndpointAddr)
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
	assert.False(t, cfg.EncryptionEnabled)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
}

func TestLoadConfig_JsonOverlay(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "conf*.json")
	assert.NoError(t, err)
	_, err = f.WriteString(`{
		"server_endpoint_addr": "http://other.example.com",
		"request_timeout": "5s"
	}`)
	assert.NoError(t, err)
	assert.NoError(t, f.Close())

	t.Setenv("CONFIG", f.Name())

	cfg := LoadConfig()

	assert.Equal(t, "http://other.example.com", cfg.ServerEndpointAddr)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	// Untouched fields keep defaults.
	assert.True(t, cfg.EncryptionEnabled)
}
