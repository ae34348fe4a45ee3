// Package config handles configuration for the client component.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds runtime settings for the docketsync client.
type Config struct {
	ServerEndpointAddr string
	DBPath             string
	RequestTimeout     time.Duration

	// EncryptionEnabled makes the client envelope sensitive fields before
	// push and open envelopes on pull.
	EncryptionEnabled bool
}

// LoadDefaults populates Config with sensible defaults. The database lands
// next to the user's config unless overridden.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "http://127.0.0.1:8080"
	c.DBPath = defaultDBPath()
	c.RequestTimeout = 10 * time.Second
	c.EncryptionEnabled = true
}

func defaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "docketsync.db"
	}
	return filepath.Join(dir, "docketsync", "docketsync.db")
}

func parseEnv(c *Config) {
	if v := os.Getenv("SERVER_ADDRESS"); v != "" {
		c.ServerEndpointAddr = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("ENCRYPTION_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.EncryptionEnabled = b
		}
	}
	if v := os.Getenv("REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.RequestTimeout = d
		}
	}
}

// LoadConfig builds a Config from defaults, the environment, and an optional
// JSON file named by the CONFIG environment variable. The command line
// belongs to the CLI, so the config file is not flag-addressable here.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg)
	return cfg
}
