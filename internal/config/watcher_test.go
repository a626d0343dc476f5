package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, SaveConfig(path, DefaultConfig()))

	w, err := NewWatcher(path)
	require.NoError(t, err)
	w.debounce = 20 * time.Millisecond

	var (
		mu  sync.Mutex
		got *Config
	)
	w.OnReload(func(cfg *Config) {
		mu.Lock()
		defer mu.Unlock()
		got = cfg
	})

	require.NoError(t, w.Start())
	defer w.Stop()

	updated := DefaultConfig()
	updated.Smoothing.SmoothTimePosition = 0.5
	require.NoError(t, SaveConfig(path, updated))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got != nil && got.Smoothing.SmoothTimePosition == 0.5
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_IgnoresInvalidAndOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, SaveConfig(path, DefaultConfig()))

	w, err := NewWatcher(path)
	require.NoError(t, err)
	w.debounce = 20 * time.Millisecond

	var (
		mu    sync.Mutex
		calls int
	)
	w.OnReload(func(cfg *Config) {
		mu.Lock()
		defer mu.Unlock()
		calls++
	})

	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.toml"), []byte("x = 1\n"), 0644))
	require.NoError(t, os.WriteFile(path, []byte("[loop]\nframe_rate = -1.0\n"), 0644))

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, calls)
}

func TestWatcher_StopTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, SaveConfig(path, DefaultConfig()))

	w, err := NewWatcher(path)
	require.NoError(t, err)
	require.NoError(t, w.Start())

	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}
