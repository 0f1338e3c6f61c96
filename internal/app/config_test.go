package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig("")

	require.NoError(t, err)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Zero(t, cfg.MetricsPort)
}

func TestLoadConfig_FromYAMLFile(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	path := filepath.Join(t.TempDir(), "fitgrid.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
manifest: pipelines/
data: run.yaml
pipeline: scaling
outputs: [model]
fit: [scaled, model]
log_format: json
log_level: debug
metrics_port: 9102
`), 0o600))

	// --- Act ---
	cfg, err := LoadConfig(path)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, "pipelines/", cfg.ManifestPath)
	assert.Equal(t, "run.yaml", cfg.DataPath)
	assert.Equal(t, "scaling", cfg.Pipeline)
	assert.Equal(t, []string{"model"}, cfg.Outputs)
	assert.Equal(t, []string{"scaled", "model"}, cfg.Fit)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 9102, cfg.MetricsPort)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))

	require.NoError(t, err)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	// No t.Parallel: environment variables are process-wide.
	t.Setenv("FITGRID__LOG_LEVEL", "warn")
	t.Setenv("FITGRID__MANIFEST", "from-env.hcl")
	t.Setenv("FITGRID__METRICS_PORT", "9200")

	cfg, err := LoadConfig("")

	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "from-env.hcl", cfg.ManifestPath)
	assert.Equal(t, 9200, cfg.MetricsPort)
}

func TestLoadConfig_EnvironmentWinsOverFile(t *testing.T) {
	// No t.Parallel: environment variables are process-wide.
	path := filepath.Join(t.TempDir(), "fitgrid.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\n"), 0o600))
	t.Setenv("FITGRID__LOG_LEVEL", "error")

	cfg, err := LoadConfig(path)

	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name: "valid",
			cfg:  Config{ManifestPath: "p.hcl", LogFormat: "text", LogLevel: "info"},
		},
		{
			name:    "missing manifest",
			cfg:     Config{LogFormat: "text", LogLevel: "info"},
			wantErr: "manifest path is required",
		},
		{
			name:    "bad log format",
			cfg:     Config{ManifestPath: "p.hcl", LogFormat: "xml", LogLevel: "info"},
			wantErr: "invalid log format",
		},
		{
			name:    "bad log level",
			cfg:     Config{ManifestPath: "p.hcl", LogFormat: "text", LogLevel: "loud"},
			wantErr: "invalid log level",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}
