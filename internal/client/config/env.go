package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays Config with values from a .env file (if one exists in
// the working directory) and the process environment. Real environment
// variables win over the .env file.
func parseEnv(cfg *Config) {
	_ = godotenv.Load()

	if v := os.Getenv("DRIFTSYNC_SERVER"); v != "" {
		cfg.Server = v
	}
	if v := os.Getenv("DRIFTSYNC_DB"); v != "" {
		cfg.Database = v
	}
	if v := os.Getenv("DRIFTSYNC_INSECURE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Insecure = b
		}
	}
	if v := os.Getenv("DRIFTSYNC_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RequestTimeout = d
		}
	}
	if v := os.Getenv("DRIFTSYNC_RATE"); v != "" {
		if r, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RequestRate = r
		}
	}
	if v := os.Getenv("DRIFTSYNC_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}
