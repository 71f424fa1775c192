package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/infinity/internal/addressing"
	"github.com/roach88/infinity/internal/store"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "infinity.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, addressing.Namespace, cfg.Namespace)
	assert.Equal(t, store.DefaultRetryPolicy, cfg.RetryPolicy())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
db: /var/lib/infinity/state.db
stop_on_error: true
log:
  level: debug
  dir: /var/log/infinity
retry:
  retries: 3
  initial_delay: 250ms
  multiplier: 1.5
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/infinity/state.db", cfg.DB)
	assert.True(t, cfg.StopOnError)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/var/log/infinity", cfg.LoggingOptions().Dir)
	assert.Equal(t, store.RetryPolicy{Retries: 3, InitialDelay: 250 * time.Millisecond, Multiplier: 1.5}, cfg.RetryPolicy())
	assert.Equal(t, addressing.Namespace, cfg.Namespace, "unset keys keep their defaults")
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_UnknownKey(t *testing.T) {
	_, err := Load(writeConfig(t, "database: x.db\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "db: from-file.db\nlog:\n  level: info\n")
	t.Setenv("INFINITY_DB", "from-env.db")
	t.Setenv("INFINITY_LOG_LEVEL", "error")
	t.Setenv("INFINITY_RETRY_INITIAL_DELAY", "2s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env.db", cfg.DB)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, 2*time.Second, cfg.Retry.InitialDelay)
}

func TestLoad_BadEnv(t *testing.T) {
	t.Setenv("INFINITY_RETRY_RETRIES", "many")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"empty namespace", func(c *Config) { c.Namespace = "" }, ""},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"short namespace", func(c *Config) { c.Namespace = "abc" }, "namespace"},
		{"non-hex namespace", func(c *Config) { c.Namespace = "zzzzzz" }, "not hex"},
		{"negative delay", func(c *Config) { c.Retry.InitialDelay = -time.Second }, "initial_delay"},
		{"small multiplier", func(c *Config) { c.Retry.Multiplier = 0.5 }, "multiplier"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
