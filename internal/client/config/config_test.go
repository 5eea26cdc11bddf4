package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	assert.Equal(t, "", cfg.Server)
	assert.Equal(t, "driftsync.db", cfg.Database)
	assert.False(t, cfg.Insecure)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, float64(0), cfg.RequestRate)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfig_UsesDefaults(t *testing.T) {
	orig := os.Args
	t.Cleanup(func() { os.Args = orig })
	os.Args = []string{"testbin"}

	cfg := LoadConfig()
	assert.Equal(t, "driftsync.db", cfg.Database)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
}
