package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/config.yaml")
	require.NoError(t, err)

	require.Equal(t, 2000, cfg.Ensemble.AdapterTimeoutMS)
	require.Equal(t, 2*time.Second, cfg.AdapterTimeout())
	require.Equal(t, 10, cfg.Session.Window)
	require.Equal(t, 30*time.Minute, cfg.SessionTimeout())
	require.Equal(t, 5*time.Minute, cfg.SweepInterval())
	require.InDelta(t, 0.4, cfg.Priority.Urgency, 1e-9)
	require.InDelta(t, 0.35, cfg.Ensemble.Weights.Keyword, 1e-9)
	require.Equal(t, "logs", cfg.LogsDir)
	require.False(t, cfg.Debug)

	// Both Load paths return a validated config.
	require.NoError(t, cfg.validate())
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	dir, err := os.MkdirTemp("", "config-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
debug: true
metrics-addr: ":9102"
ensemble:
  adapter-timeout-ms: 500
  weights:
    keyword: 0.5
    lexicon: 0.2
    llm: 0.3
session:
  window: 4
  timeout-minutes: 10
history:
  redis-addr: "localhost:6379"
  ttl-hours: 24
store:
  path: "data/reports.db"
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.True(t, cfg.Debug)
	require.Equal(t, ":9102", cfg.MetricsAddr)
	require.Equal(t, 500*time.Millisecond, cfg.AdapterTimeout())
	require.InDelta(t, 0.5, cfg.Ensemble.Weights.Keyword, 1e-9)
	require.Equal(t, 4, cfg.Session.Window)
	require.Equal(t, 10*time.Minute, cfg.SessionTimeout())
	require.Equal(t, "localhost:6379", cfg.History.RedisAddr)
	require.Equal(t, 24*time.Hour, cfg.HistoryTTL())
	require.Equal(t, "data/reports.db", cfg.Store.Path)

	// Untouched sections keep their defaults.
	require.InDelta(t, 0.3, cfg.Priority.Category, 1e-9)
}

func TestLoad_EnvSuppliesSecrets(t *testing.T) {
	t.Setenv("PUBLICBRIDGE_LLM_API_KEY", "sk-test")
	t.Setenv("PUBLICBRIDGE_REDIS_PASSWORD", "hunter2")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "sk-test", cfg.LLM.APIKey)
	require.Equal(t, "hunter2", cfg.History.Password)
}

func TestLoad_FileKeyBeatsEnv(t *testing.T) {
	t.Setenv("PUBLICBRIDGE_LLM_API_KEY", "sk-env")

	dir, err := os.MkdirTemp("", "config-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  api-key: sk-file\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "sk-file", cfg.LLM.APIKey)
}

func TestLoad_RejectsNegativeValues(t *testing.T) {
	dir, err := os.MkdirTemp("", "config-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	tests := []struct {
		name string
		body string
	}{
		{"negative timeout", "ensemble:\n  adapter-timeout-ms: -1\n"},
		{"negative window", "session:\n  window: -1\n"},
		{"negative weight", "ensemble:\n  weights:\n    keyword: -0.5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "bad.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0644))
			_, err := Load(path)
			require.Error(t, err)
		})
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	dir, err := os.MkdirTemp("", "config-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("debug: [unclosed"), 0644))

	_, err = Load(path)
	require.Error(t, err)
}
