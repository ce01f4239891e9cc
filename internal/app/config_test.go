package app

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/specialistvlad/chidori/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "upper case level is normalized", mutate: func(c *Config) { c.LogLevel = "DEBUG" }},
		{name: "yaml output", mutate: func(c *Config) { c.Output = "yaml" }},
		{name: "zstd compression", mutate: func(c *Config) { c.Compression = "zstd" }},
		{name: "missing server", mutate: func(c *Config) { c.ServerURL = "" }, wantErr: "ServerURL"},
		{name: "bad level", mutate: func(c *Config) { c.LogLevel = "trace" }, wantErr: "LogLevel"},
		{name: "bad format", mutate: func(c *Config) { c.LogFormat = "xml" }, wantErr: "LogFormat"},
		{name: "bad compression", mutate: func(c *Config) { c.Compression = "gzip" }, wantErr: "Compression"},
		{name: "zero concurrency", mutate: func(c *Config) { c.WorkerConcurrency = 0 }, wantErr: "WorkerConcurrency"},
		{name: "bad attribution", mutate: func(c *Config) { c.Attribution = "guess" }, wantErr: "Attribution"},
		{name: "bad port", mutate: func(c *Config) { c.HealthcheckPort = 70000 }, wantErr: "HealthcheckPort"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			got, err := NewConfig(cfg)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, strings.ToLower(cfg.LogLevel), got.LogLevel)
		})
	}
}

func TestConfig_ApplyEnv(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	err := cfg.ApplyEnv(MapEnv(map[string]string{
		"CHIDORI_SERVER_URL":         "https://runtime:443",
		"CHIDORI_FILE_ID":            "f1",
		"CHIDORI_BRANCH":             "3",
		"CHIDORI_STARTUP_TIMEOUT":    "30s",
		"CHIDORI_WORKER_CONCURRENCY": "8",
		"CHIDORI_OUTPUT":             "yaml",
	}))
	require.NoError(t, err)

	assert.Equal(t, "https://runtime:443", cfg.ServerURL)
	assert.Equal(t, "f1", cfg.FileID)
	assert.Equal(t, uint64(3), cfg.Branch)
	assert.Equal(t, 30*time.Second, cfg.StartupTimeout)
	assert.Equal(t, 8, cfg.WorkerConcurrency)
	assert.Equal(t, "yaml", cfg.Output)
	assert.Equal(t, "info", cfg.LogLevel, "unset variables keep their value")
}

func TestConfig_ApplyEnvReportsEveryBadValue(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	err := cfg.ApplyEnv(MapEnv(map[string]string{
		"CHIDORI_BRANCH":        "-1",
		"CHIDORI_POLL_INTERVAL": "soon",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHIDORI_BRANCH")
	assert.Contains(t, err.Error(), "CHIDORI_POLL_INTERVAL")
}

func TestOSEnv_ProcessEnvironmentOverridesDotenv(t *testing.T) {
	dir := testutil.WriteFiles(t, map[string]string{
		".env": "CHIDORI_FILE_ID=from-file\nCHIDORI_LOG_LEVEL=warn\n",
	})
	t.Setenv("CHIDORI_FILE_ID", "from-env")

	env, err := OSEnv(filepath.Join(dir, ".env"))
	require.NoError(t, err)

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv(env))
	assert.Equal(t, "from-env", cfg.FileID)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestOSEnv_MissingFileIsIgnored(t *testing.T) {
	t.Parallel()

	env, err := OSEnv(filepath.Join(t.TempDir(), ".env"))
	require.NoError(t, err)
	_, ok := env("CHIDORI_SOMETHING_UNSET")
	assert.False(t, ok)
}
