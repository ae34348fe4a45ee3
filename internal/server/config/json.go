package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/mpavlenko/docketsync/internal/flagx"
	"github.com/mpavlenko/docketsync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations can
// be given either as strings like "15m" or as integer nanoseconds.
type JsonConfig struct {
	EndpointAddr                string         `json:"endpoint_addr"`
	DatabaseDSN                 string         `json:"database_dsn"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	MaxCasesPerOwner            *int           `json:"max_cases_per_owner"`
	MaxDatesPerCase             *int           `json:"max_dates_per_case"`
	MaxCaseChangesPerPush       *int           `json:"max_case_changes_per_push"`
	MaxDateChangesPerPush       *int           `json:"max_date_changes_per_push"`
	MaxArrayLenPerPush          *int           `json:"max_array_len_per_push"`
	EncryptionEnabled           *bool          `json:"encryption_enabled"`
	AckApplied                  *bool          `json:"ack_applied"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// the -c/-config flags, if any. Absent fields keep their current values;
// read or unmarshal errors panic (caller may recover).
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
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

	if jc.EndpointAddr != "" {
		cfg.EndpointAddr = jc.EndpointAddr
	}
	if jc.DatabaseDSN != "" {
		cfg.DatabaseDSN = jc.DatabaseDSN
	}
	if jc.SecretKey != "" {
		cfg.SecretKey = jc.SecretKey
	}
	if jc.AccessTokenValidityDuration.Duration != 0 {
		cfg.AccessTokenValidityDuration = time.Duration(jc.AccessTokenValidityDuration.Duration)
	}
	if jc.MaxCasesPerOwner != nil {
		cfg.MaxCasesPerOwner = *jc.MaxCasesPerOwner
	}
	if jc.MaxDatesPerCase != nil {
		cfg.MaxDatesPerCase = *jc.MaxDatesPerCase
	}
	if jc.MaxCaseChangesPerPush != nil {
		cfg.MaxCaseChangesPerPush = *jc.MaxCaseChangesPerPush
	}
	if jc.MaxDateChangesPerPush != nil {
		cfg.MaxDateChangesPerPush = *jc.MaxDateChangesPerPush
	}
	if jc.MaxArrayLenPerPush != nil {
		cfg.MaxArrayLenPerPush = *jc.MaxArrayLenPerPush
	}
	if jc.EncryptionEnabled != nil {
		cfg.EncryptionEnabled = *jc.EncryptionEnabled
	}
	if jc.AckApplied != nil {
		cfg.AckApplied = *jc.AckApplied
	}
}
