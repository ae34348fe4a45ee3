package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/mpavlenko/docketsync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations can
// be given either as strings like "10s" or as integer nanoseconds.
type JsonConfig struct {
	ServerEndpointAddr string         `json:"server_endpoint_addr"`
	DBPath             string         `json:"db_path"`
	RequestTimeout     timex.Duration `json:"request_timeout"`
	EncryptionEnabled  *bool          `json:"encryption_enabled"`
}

func parseJson(cfg *Config) {
	jsonConfigFile := os.Getenv("CONFIG")
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerEndpointAddr != "" {
		cfg.ServerEndpointAddr = jc.ServerEndpointAddr
	}
	if jc.DBPath != "" {
		cfg.DBPath = jc.DBPath
	}
	if jc.RequestTimeout.Duration != 0 {
		cfg.RequestTimeout = time.Duration(jc.RequestTimeout.Duration)
	}
	if jc.EncryptionEnabled != nil {
		cfg.EncryptionEnabled = *jc.EncryptionEnabled
	}
}
