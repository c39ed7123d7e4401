package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every INEQ_* variable the tests touch and restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"INEQ_LOGGING_LEVEL", "INEQ_LOGGING_OUTPUT", "INEQ_LOGGING_FILE_PATH",
		"INEQ_SOURCE_BASE_URL", "INEQ_SOURCE_PER_PAGE", "INEQ_SOURCE_HTTP_TIMEOUT",
		"INEQ_SOURCE_REQUEST_RATE", "INEQ_SOURCE_REQUEST_BURST",
		"INEQ_OUTPUT_ROOT", "INEQ_OUTPUT_FIGURE_DPI", "INEQ_OUTPUT_WORKBOOK",
		"INEQ_ANALYSIS_MAX_LAG", "INEQ_TELEMETRY_TRACING", "INEQ_TELEMETRY_METRICS",
		EnvConfigFile,
	}
	for _, envVar := range envVars {
		if val, ok := os.LookupEnv(envVar); ok {
			t.Cleanup(func() { os.Setenv(envVar, val) })
		} else {
			t.Cleanup(func() { os.Unsetenv(envVar) })
		}
		os.Unsetenv(envVar)
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFrom(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		file        string
		wantErr     bool
		errContains string
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults without file or env",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "info", cfg.Logging.Level)
				assert.Equal(t, "json", cfg.Logging.Format)
				assert.Equal(t, "both", cfg.Logging.Output)
				assert.Equal(t, DefaultWorldBankURL, cfg.Source.BaseURL)
				assert.Equal(t, DefaultPerPage, cfg.Source.PerPage)
				assert.Equal(t, 30*time.Second, cfg.Source.HTTPTimeout)
				assert.Equal(t, DefaultFigureDPI, cfg.Output.FigureDPI)
				assert.Equal(t, DefaultMaxLag, cfg.Analysis.MaxLag)
				assert.True(t, cfg.Telemetry.Tracing)
				assert.True(t, cfg.Output.Workbook)
			},
		},
		{
			name: "yaml file overrides defaults",
			file: `
logging:
  level: debug
source:
  per_page: 500
  http_timeout: 10s
output:
  root: /tmp/ineq
  figure_dpi: 150
analysis:
  max_lag: 3
`,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.Logging.Level)
				assert.Equal(t, 500, cfg.Source.PerPage)
				assert.Equal(t, 10*time.Second, cfg.Source.HTTPTimeout)
				assert.Equal(t, "/tmp/ineq", cfg.Output.Root)
				assert.Equal(t, 150, cfg.Output.FigureDPI)
				assert.Equal(t, 3, cfg.Analysis.MaxLag)
				// untouched by the file
				assert.Equal(t, DefaultWorldBankURL, cfg.Source.BaseURL)
			},
		},
		{
			name: "env overrides file",
			file: "logging:\n  level: debug\n",
			env: map[string]string{
				"INEQ_LOGGING_LEVEL":       "WARN",
				"INEQ_SOURCE_REQUEST_RATE": "0.5",
				"INEQ_TELEMETRY_METRICS":   "false",
				"INEQ_SOURCE_BASE_URL":     "http://localhost:9000/v2/",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "warn", cfg.Logging.Level)
				assert.Equal(t, 0.5, cfg.Source.RequestRate)
				assert.False(t, cfg.Telemetry.Metrics)
				assert.Equal(t, "http://localhost:9000/v2", cfg.Source.BaseURL)
			},
		},
		{
			name:        "invalid base url",
			env:         map[string]string{"INEQ_SOURCE_BASE_URL": "not a url"},
			wantErr:     true,
			errContains: "BaseURL must be a valid URL",
		},
		{
			name:        "invalid log level",
			file:        "logging:\n  level: verbose\n",
			wantErr:     true,
			errContains: "Level must be one of",
		},
		{
			name:        "non positive rate",
			env:         map[string]string{"INEQ_SOURCE_REQUEST_RATE": "0"},
			wantErr:     true,
			errContains: "RequestRate must be greater than 0",
		},
		{
			name:        "malformed yaml",
			file:        "logging: [unterminated",
			wantErr:     true,
			errContains: "failed to load config from file",
		},
		{
			name:        "malformed env value",
			env:         map[string]string{"INEQ_SOURCE_PER_PAGE": "many"},
			wantErr:     true,
			errContains: "failed to load config from env",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				os.Setenv(k, v)
			}

			path := ""
			if tt.file != "" {
				path = writeConfigFile(t, tt.file)
			}

			cfg, err := LoadFrom(path)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

func TestLoad_ExplicitFileFromEnv(t *testing.T) {
	clearEnv(t)
	path := writeConfigFile(t, "output:\n  figure_dpi: 96\n")
	os.Setenv(EnvConfigFile, path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 96, cfg.Output.FigureDPI)
}

func TestLoadFrom_MissingFileIsIgnored(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Source, cfg.Source)
}

func TestValidate_ConsoleOutputNeedsNoFile(t *testing.T) {
	cfg := Default()
	cfg.Logging.Output = "console"
	cfg.Logging.FilePath = ""
	assert.NoError(t, cfg.Validate())

	cfg.Logging.Output = "file"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FilePath is required")
}

func TestConstants(t *testing.T) {
	indicators := Indicators()
	require.Len(t, indicators, 10)
	assert.Equal(t, "SI.POV.GINI", indicators[0].Code)
	assert.Equal(t, "Gini", indicators[0].Name)

	seen := make(map[string]bool)
	for _, ind := range indicators {
		assert.False(t, seen[ind.Name], "duplicate column %s", ind.Name)
		seen[ind.Name] = true
	}

	countries := Countries()
	assert.Len(t, countries, 31)
	for _, c := range countries {
		assert.Len(t, c, 3)
	}
	assert.Less(t, StartYear, EndYear)
}
