package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/depotwatch/internal/config"
)

type recordingReloader struct {
	mu      sync.Mutex
	configs []*config.Config
}

func (r *recordingReloader) ReloadConfig(_ context.Context, cfg *config.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs = append(r.configs, cfg)
	return nil
}

func (r *recordingReloader) last() *config.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.configs) == 0 {
		return nil
	}
	return r.configs[len(r.configs)-1]
}

func writeWatchedConfig(t *testing.T, path, ids string) {
	t.Helper()
	content := []byte(`version: "1.0"
tracking:
  identifiers: [` + ids + `]
storage:
  backend: memory
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))
}

func TestConfigWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeWatchedConfig(t, path, `"730"`)

	target := &recordingReloader{}
	cw, err := NewConfigWatcher(path, target)
	require.NoError(t, err)
	cw.debounceTime = 20 * time.Millisecond
	t.Cleanup(func() { _ = cw.Stop(context.Background()) })

	require.NoError(t, cw.Start(t.Context()))

	writeWatchedConfig(t, path, `"730", "440"`)

	require.Eventually(t, func() bool {
		cfg := target.last()
		return cfg != nil && len(cfg.Tracking.Identifiers) == 2
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{"730", "440"}, target.last().Tracking.Identifiers)
}

func TestConfigWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeWatchedConfig(t, path, `"730"`)

	target := &recordingReloader{}
	cw, err := NewConfigWatcher(path, target)
	require.NoError(t, err)
	cw.debounceTime = 10 * time.Millisecond
	t.Cleanup(func() { _ = cw.Stop(context.Background()) })
	require.NoError(t, cw.Start(t.Context()))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0o600))

	time.Sleep(200 * time.Millisecond)
	assert.Nil(t, target.last())
}

func TestConfigWatcher_InvalidFileKeepsRunningConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeWatchedConfig(t, path, `"730"`)

	target := &recordingReloader{}
	cw, err := NewConfigWatcher(path, target)
	require.NoError(t, err)
	cw.debounceTime = 10 * time.Millisecond

	results := make(chan error, 4)
	cw.onReload = func(err error) { results <- err }
	t.Cleanup(func() { _ = cw.Stop(context.Background()) })
	require.NoError(t, cw.Start(t.Context()))

	require.NoError(t, os.WriteFile(path, []byte("version: \"9.9\"\n"), 0o600))

	select {
	case err := <-results:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("reload was not attempted")
	}
	assert.Nil(t, target.last())
}

func TestConfigWatcher_StopIsIdempotent(t *testing.T) {
	cw, err := NewConfigWatcher(filepath.Join(t.TempDir(), "config.yaml"), &recordingReloader{})
	require.NoError(t, err)
	require.NoError(t, cw.Stop(context.Background()))
	require.NoError(t, cw.Stop(context.Background()))
}
