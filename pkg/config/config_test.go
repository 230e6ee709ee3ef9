package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/launcher/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "launcher.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 2*time.Second, cfg.Deployment.SettleDelay)
	assert.Equal(t, "default", cfg.Namespace)
	assert.Equal(t, "local", cfg.Release)
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().API, cfg.API)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
dataDir: /var/lib/launcher
release: dev
log:
  level: debug
  json: true
probes:
  timeout: 30s
  concurrency: 8
deployment:
  settleDelay: 500ms
  pollInterval: 1m
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/launcher", cfg.DataDir)
	assert.Equal(t, "dev", cfg.Release)
	assert.Equal(t, 30*time.Second, cfg.Probes.Timeout)
	assert.Equal(t, 8, cfg.Probes.Concurrency)
	assert.Equal(t, 500*time.Millisecond, cfg.Deployment.SettleDelay)
	assert.Equal(t, time.Minute, cfg.Deployment.PollInterval)
	// untouched fields keep defaults
	assert.Equal(t, "default", cfg.Namespace)

	assert.Equal(t, log.Config{Level: log.DebugLevel, JSONOutput: true}, cfg.LoggerConfig())
	assert.Equal(t, 8, cfg.HealthConfig().Concurrency)
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Probes, cfg.Probes)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown field", "dataDirectory: /tmp\n", "YAML parse error"},
		{"bad level", "log:\n  level: verbose\n", "log.level"},
		{"bad address", "api:\n  address: localhost\n", "api.address"},
		{"zero concurrency", "probes:\n  concurrency: 0\n", "probes.concurrency"},
		{"negative settle", "deployment:\n  settleDelay: -1s\n", "settleDelay"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvDataDir, "/tmp/launcher")
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvLogJSON, "true")
	t.Setenv(EnvAPIAddress, "127.0.0.1:8080")
	t.Setenv(EnvKubeconfig, "/tmp/kubeconfig")

	cfg, err := Load(writeConfig(t, "dataDir: /from/file\n"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/launcher", cfg.DataDir)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, "127.0.0.1:8080", cfg.API.Address)
	assert.Equal(t, "/tmp/kubeconfig", cfg.Kubeconfig)
}
