package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestWatcherLoadsInitialConfig(t *testing.T) {
	path := writeConfigFile(t, t.TempDir(), minimalYAML)

	w, err := NewWatcher(path, nil, WithDebounceDelay(10*time.Millisecond))
	require.NoError(t, err)

	require.NoError(t, w.Start(context.Background()))
	defer func() { _ = w.Stop() }()

	cfg := w.LastConfig()
	require.NotNil(t, cfg)
	assert.Equal(t, ":8081", cfg.Server.ListenAddr)
}

func TestWatcherRejectsInvalidInitialConfig(t *testing.T) {
	path := writeConfigFile(t, t.TempDir(), "server:\n  listenAddr: \"\"\n")

	w, err := NewWatcher(path, nil)
	require.NoError(t, err)

	assert.Error(t, w.Start(context.Background()))
	_ = w.watcher.Close()
}

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, minimalYAML)

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	}, WithDebounceDelay(10*time.Millisecond))
	require.NoError(t, err)

	require.NoError(t, w.Start(context.Background()))
	defer func() { _ = w.Stop() }()

	updated := `
server:
  listenAddr: ":8082"
backend:
  targetUrl: "http://localhost:9000"
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, ":8082", cfg.Server.ListenAddr)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatcherKeepsLastConfigOnInvalidReload(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, minimalYAML)

	errs := make(chan error, 1)
	w, err := NewWatcher(path, nil,
		WithDebounceDelay(10*time.Millisecond),
		WithErrorCallback(func(err error) {
			select {
			case errs <- err:
			default:
			}
		}),
	)
	require.NoError(t, err)

	require.NoError(t, w.Start(context.Background()))
	defer func() { _ = w.Stop() }()

	require.NoError(t, os.WriteFile(path, []byte("backend:\n  targetUrl: \"\"\n"), 0o600))

	select {
	case <-errs:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for error callback")
	}

	cfg := w.LastConfig()
	require.NotNil(t, cfg)
	assert.Equal(t, ":8081", cfg.Server.ListenAddr)
}

func TestWatcherForceReload(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, minimalYAML)

	w, err := NewWatcher(path, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer func() { _ = w.Stop() }()

	updated := `
server:
  listenAddr: ":8083"
backend:
  targetUrl: "http://localhost:9000"
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))

	require.NoError(t, w.ForceReload())
	assert.Equal(t, ":8083", w.LastConfig().Server.ListenAddr)
}
