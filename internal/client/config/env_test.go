package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseEnv(t *testing.T) {
	t.Setenv("DRIFTSYNC_SERVER", "node.example:443")
	t.Setenv("DRIFTSYNC_DB", "/tmp/replica.db")
	t.Setenv("DRIFTSYNC_INSECURE", "true")
	t.Setenv("DRIFTSYNC_TIMEOUT", "30s")
	t.Setenv("DRIFTSYNC_RATE", "2.5")
	t.Setenv("DRIFTSYNC_LOG_LEVEL", "debug")

	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)

	assert.Equal(t, "node.example:443", cfg.Server)
	assert.Equal(t, "/tmp/replica.db", cfg.Database)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 2.5, cfg.RequestRate)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParseEnv_InvalidValuesIgnored(t *testing.T) {
	t.Setenv("DRIFTSYNC_INSECURE", "maybe")
	t.Setenv("DRIFTSYNC_TIMEOUT", "soon")
	t.Setenv("DRIFTSYNC_RATE", "fast")

	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)

	assert.False(t, cfg.Insecure)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, float64(0), cfg.RequestRate)
}
