package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "mediaparser_jobs", config.Queue.Name)
	assert.Equal(t, 3, config.Queue.MaxReceive)
	assert.Equal(t, 10, config.Processing.BatchCommitSize)
	assert.InDelta(t, 0.10, config.Processing.ErrorThreshold, 1e-9)
	assert.Equal(t, 2000, config.Processing.MinValidYear)
	assert.Contains(t, config.Processing.AllowedExtensions, ".heic")
	assert.NoError(t, config.Validate())
}

func TestLoadFromFiles_LaterFilesOverride(t *testing.T) {
	dir := t.TempDir()

	base := filepath.Join(dir, "base.toml")
	require.NoError(t, os.WriteFile(base, []byte(`
[server]
port = 9000

[processing]
timezone = "Australia/Sydney"
`), 0644))

	local := filepath.Join(dir, "local.toml")
	require.NoError(t, os.WriteFile(local, []byte(`
[server]
port = 9001
`), 0644))

	config, err := LoadFromFiles(base, local)
	require.NoError(t, err)

	assert.Equal(t, 9001, config.Server.Port)
	assert.Equal(t, "Australia/Sydney", config.Processing.Timezone)
	// Untouched settings keep their defaults.
	assert.Equal(t, "localhost", config.Server.Host)
	assert.Equal(t, "5m", config.Queue.VisibilityTimeout)
}

func TestLoadFromFiles_MissingFile(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad timezone", func(c *Config) { c.Processing.Timezone = "Mars/Olympus" }},
		{"error threshold above one", func(c *Config) { c.Processing.ErrorThreshold = 1.5 }},
		{"negative error threshold", func(c *Config) { c.Processing.ErrorThreshold = -0.1 }},
		{"zero batch size", func(c *Config) { c.Processing.BatchCommitSize = 0 }},
		{"zero cluster window", func(c *Config) { c.Processing.ClusterWindowSecs = 0 }},
		{"bad probe timeout", func(c *Config) { c.Tools.ProbeTimeout = "soon" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			config := NewDefaultConfig()
			tc.mutate(config)
			assert.Error(t, config.Validate())
		})
	}
}

func TestDurationHelpers(t *testing.T) {
	q := QueueConfig{PollInterval: "250ms", VisibilityTimeout: "2m", RetryDelay: "10s"}
	assert.Equal(t, 250*time.Millisecond, q.PollIntervalDuration())
	assert.Equal(t, 2*time.Minute, q.VisibilityTimeoutDuration())
	assert.Equal(t, 10*time.Second, q.RetryDelayDuration())

	// Unparseable or non-positive values fall back to safe defaults.
	bad := QueueConfig{PollInterval: "often", VisibilityTimeout: "-1s", RetryDelay: ""}
	assert.Equal(t, time.Second, bad.PollIntervalDuration())
	assert.Equal(t, 5*time.Minute, bad.VisibilityTimeoutDuration())
	assert.Equal(t, 30*time.Second, bad.RetryDelayDuration())
}

func TestClusterWindow(t *testing.T) {
	config := NewDefaultConfig()
	assert.Equal(t, 5*time.Second, config.ClusterWindow())

	config.Processing.ClusterWindowSecs = 2.5
	assert.Equal(t, 2500*time.Millisecond, config.ClusterWindow())
}

func TestApplyFlagOverrides(t *testing.T) {
	config := NewDefaultConfig()

	ApplyFlagOverrides(config, 0, "")
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "localhost", config.Server.Host)

	ApplyFlagOverrides(config, 9090, "0.0.0.0")
	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7777")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("CLUSTER_WINDOW_SECONDS", "8")

	config, err := LoadFromFiles()
	require.NoError(t, err)
	assert.Equal(t, 7777, config.Server.Port)
	assert.Equal(t, "UTC", config.Processing.Timezone)
	assert.Equal(t, 8*time.Second, config.ClusterWindow())
}
