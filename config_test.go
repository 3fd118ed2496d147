package wspool

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "pool.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("WS_TOKEN", "secret-token")

	path := writeConfig(t, `endpoints:
  - url: wss://stream.example.com/feed
    timeout: 30s
    max_concurrent_tasks: 4
    ping_interval: 15s
    headers:
      Authorization: Bearer ${WS_TOKEN}
  - url: wss://stream.example.com/trades
    reopen_interval: 12h
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Endpoints, 2)

	first := cfg.Endpoints[0]
	assert.Equal(t, "wss://stream.example.com/feed", first.URL)
	assert.Equal(t, 30*time.Second, first.Timeout.Std())
	assert.Equal(t, 4, first.MaxConcurrentTasks)
	assert.Equal(t, 15*time.Second, first.PingInterval.Std())
	assert.Equal(t, "Bearer secret-token", first.Headers["Authorization"])

	second := cfg.Endpoints[1]
	assert.Equal(t, 12*time.Hour, second.ReopenInterval.Std())
	assert.Equal(t, DefaultMaxConcurrentTasks, second.MaxConcurrentTasks)
}

func TestLoadConfigRejectsEmpty(t *testing.T) {
	path := writeConfig(t, `endpoints: []`)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one endpoint")
}

func TestLoadConfigRejectsBadScheme(t *testing.T) {
	path := writeConfig(t, `endpoints:
  - url: http://stream.example.com
`)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ws or wss")
}

func TestLoadConfigRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, `endpoints:
  - url: wss://stream.example.com
    timeout: soon
`)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse duration")
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestEndpointOptions(t *testing.T) {
	e := EndpointConfig{
		URL:                "wss://stream.example.com",
		Timeout:            Duration(time.Minute),
		MaxConcurrentTasks: 2,
		Headers:            map[string]string{"X-Api-Key": "k"},
	}

	cfg, err := newSettings(e.URL, e.Options()...)
	require.NoError(t, err)

	assert.Equal(t, time.Minute, cfg.timeout)
	assert.Equal(t, 2, cfg.maxConcurrentTasks)
	assert.Equal(t, "k", cfg.header.Get("X-Api-Key"))
}

func TestConfigTasks(t *testing.T) {
	cfg := &Config{
		Endpoints: []EndpointConfig{
			{URL: "wss://a.example.com", MaxConcurrentTasks: 1},
			{URL: "wss://b.example.com", MaxConcurrentTasks: 1},
		},
	}

	tasks := cfg.Tasks()
	require.Len(t, tasks, 2)

	// Each task is a ready-to-run supervised connection; with a cancelled
	// context it must come back without dialing anything.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, task := range tasks {
		assert.ErrorIs(t, task(ctx), context.Canceled)
	}
}
