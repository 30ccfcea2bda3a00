package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rydnr/bytehot-observe/pkg/bytehot/testgen"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load("", "BYTEHOT_TEST_DEFAULTS_")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 100, cfg.Snapshot.MaxEvents)
	assert.Equal(t, 5*time.Minute, cfg.Snapshot.MaxTimeWindow)
	assert.Equal(t, "https://rydnr.github.io/bytehot", cfg.Docs.BaseURL)
	assert.Equal(t, []string{"md", "json"}, cfg.Report.Formats)
	assert.Equal(t, "bytehot:events", cfg.Redis.Key)
	assert.Equal(t, testgen.FrameworkEventDriven, cfg.TestGenConfig().Framework)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeFile(t, "bytehot.yaml", `
log:
  level: debug
  format: json
snapshot:
  max_events: 20
  max_time_window: 90s
  event_type_patterns:
    - "ClassFile*"
testgen:
  framework: junit5
redis:
  addr: localhost:6379
`)
	cfg, err := load(path, "BYTEHOT_TEST_YAML_")
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 20, cfg.Snapshot.MaxEvents)
	assert.Equal(t, 90*time.Second, cfg.Snapshot.MaxTimeWindow)
	assert.Equal(t, []string{"ClassFile*"}, cfg.SnapshotConfig().EventTypePatterns)
	assert.Equal(t, testgen.FrameworkJUnit5, cfg.TestGenConfig().Framework)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.True(t, cfg.Snapshot.IncludeCausalAnalysis, "unset keys keep their defaults")
}

func TestLoad_TOMLFile(t *testing.T) {
	path := writeFile(t, "bytehot.toml", `
[docs]
base_url = "https://docs.example.com/bytehot"
max_recent_events = 25

[report]
dir = "/tmp/reports"
formats = ["json"]
`)
	cfg, err := load(path, "BYTEHOT_TEST_TOML_")
	require.NoError(t, err)

	assert.Equal(t, "https://docs.example.com/bytehot", cfg.Docs.BaseURL)
	assert.Equal(t, 25, cfg.Docs.MaxRecentEvents)
	assert.Equal(t, "/tmp/reports", cfg.Report.Dir)
	assert.Equal(t, []string{"json"}, cfg.Report.Formats)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "bytehot.yaml", "snapshot:\n  max_events: 20\n")
	t.Setenv("BYTEHOT_TEST_ENV_SNAPSHOT__MAX_EVENTS", "7")
	t.Setenv("BYTEHOT_TEST_ENV_DOCS__FLOW_CACHE_TTL", "45s")
	t.Setenv("BYTEHOT_TEST_ENV_LOG__LEVEL", "warn")

	cfg, err := load(path, "BYTEHOT_TEST_ENV_")
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Snapshot.MaxEvents)
	assert.Equal(t, 45*time.Second, cfg.Docs.FlowCacheTTL)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"log level", map[string]string{"LOG__LEVEL": "verbose"}},
		{"confidence", map[string]string{"SNAPSHOT__MIN_CAUSAL_CONFIDENCE": "1.5"}},
		{"framework", map[string]string{"TESTGEN__FRAMEWORK": "spock"}},
		{"base url", map[string]string{"DOCS__BASE_URL": "not a url"}},
		{"redis addr", map[string]string{"REDIS__ADDR": "localhost"}},
		{"pattern", map[string]string{"SNAPSHOT__EVENT_TYPE_PATTERNS": "Class["}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prefix := "BYTEHOT_TEST_INVALID_"
			for k, v := range tt.env {
				t.Setenv(prefix+k, v)
			}
			_, err := load("", prefix)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
		})
	}
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	path := writeFile(t, "bytehot.ini", "x=1")
	_, err := Load(path)
	assert.ErrorContains(t, err, "unsupported config format")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDocProviderOptions(t *testing.T) {
	cfg := Default()
	assert.Len(t, cfg.DocProviderOptions(), 3)
}
