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

func TestWatch(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "sources:\n  - name: first\n    file: {path: /a}\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(cfg *Config) { reloaded <- cfg })
	}()

	// give the watcher time to register
	time.Sleep(200 * time.Millisecond)

	// an invalid edit is ignored
	require.NoError(t, os.WriteFile(path, []byte("sources:\n  - name: broken\n"), 0o600))
	select {
	case cfg := <-reloaded:
		t.Fatalf("unexpected reload with %d sources", len(cfg.Sources))
	case <-time.After(500 * time.Millisecond):
	}

	require.NoError(t, os.WriteFile(path, []byte("sources:\n  - name: second\n    file: {path: /b}\n"), 0o600))
	select {
	case cfg := <-reloaded:
		require.Len(t, cfg.Sources, 1)
		assert.Equal(t, "second", cfg.Sources[0].Name)
	case <-time.After(5 * time.Second):
		t.Fatal("configuration was not reloaded")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatchMissingDirectory(t *testing.T) {
	t.Parallel()

	err := Watch(context.Background(), filepath.Join(t.TempDir(), "missing", "config.yaml"), func(*Config) {})
	assert.Error(t, err)
}
