package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseJson(t *testing.T) {
	orig := os.Args
	t.Cleanup(func() { os.Args = orig })

	t.Run("loads from file", func(t *testing.T) {
		path := writeTempJSON(t, `{
			"server": "node.example:443",
			"database": "/tmp/replica.db",
			"insecure": true,
			"request_timeout": "10s",
			"request_rate": 4,
			"log_level": "warn"
		}`)
		os.Args = []string{"testbin", "-config", path}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, "node.example:443", cfg.Server)
		assert.Equal(t, "/tmp/replica.db", cfg.Database)
		assert.True(t, cfg.Insecure)
		assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
		assert.Equal(t, float64(4), cfg.RequestRate)
		assert.Equal(t, "warn", cfg.LogLevel)
	})

	t.Run("no flag leaves config unchanged", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, "driftsync.db", cfg.Database)
		assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	})

	t.Run("missing file panics", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", filepath.Join(t.TempDir(), "absent.json")}

		cfg := &Config{}
		cfg.LoadDefaults()
		require.Panics(t, func() { parseJson(cfg) })
	})
}
