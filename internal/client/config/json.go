package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/driftsync/driftsync/internal/flagx"
	"github.com/driftsync/driftsync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like "15s"
// or as integer nanoseconds.
type JsonConfig struct {
	Server         string         `json:"server"`
	Database       string         `json:"database"`
	Insecure       bool           `json:"insecure"`
	RequestTimeout timex.Duration `json:"request_timeout"`
	RequestRate    float64        `json:"request_rate"`
	LogLevel       string         `json:"log_level"`
}

// parseJson overlays Config with values loaded from a JSON file selected
// via -c or -config. Panics on read or unmarshal errors.
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

	if jc.Server != "" {
		cfg.Server = jc.Server
	}
	if jc.Database != "" {
		cfg.Database = jc.Database
	}
	cfg.Insecure = jc.Insecure
	if jc.RequestTimeout.Duration != 0 {
		cfg.RequestTimeout = time.Duration(jc.RequestTimeout.Duration)
	}
	if jc.RequestRate != 0 {
		cfg.RequestRate = jc.RequestRate
	}
	if jc.LogLevel != "" {
		cfg.LogLevel = jc.LogLevel
	}
}
