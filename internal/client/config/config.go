// Package config loads runtime configuration for the driftsync CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional .env file plus process environment (see parseEnv).
//  3. Optional JSON file selected via flags: -c or -config (see parseJson).
//  4. Command-line flags (see parseFlags), which override earlier values.
package config

import "time"

// Config holds runtime settings for the driftsync CLI.
type Config struct {
	// Server is the host[:port] of the home node.
	Server string
	// Database is the path of the local replica database.
	Database string
	// Insecure switches HTTP and websocket traffic to plaintext.
	Insecure bool
	// RequestTimeout bounds every API call.
	RequestTimeout time.Duration
	// RequestRate caps outbound requests per second; zero means unlimited.
	RequestRate float64
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.Server = ""
	c.Database = "driftsync.db"
	c.Insecure = false
	c.RequestTimeout = 15 * time.Second
	c.RequestRate = 0
	c.LogLevel = "info"
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from the environment, JSON (if present) and command-line flags. Later
// sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
