package resource

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReportsWrites(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "model.obj")
	require.NoError(t, os.WriteFile(p, []byte("v 0 0 0\n"), 0o644))

	w, err := NewWatcher(WithDebounce(20 * time.Millisecond))
	require.NoError(t, err)
	defer w.Close()

	var fired atomic.Int32
	var got atomic.Value
	cancel, err := w.Watch(Locator(p), func(l Locator) {
		got.Store(l)
		fired.Add(1)
	})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(p, []byte("v 1 1 1\n"), 0o644))
	assert.Eventually(t, func() bool { return fired.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, Locator(p), got.Load())

	cancel()
	cancel()
	n := fired.Load()
	require.NoError(t, os.WriteFile(p, []byte("v 2 2 2\n"), 0o644))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, n, fired.Load())
}

func TestWatcherRejectsNonFileLocators(t *testing.T) {
	w, err := NewWatcher()
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Watch("https://example.com/a.glb", func(Locator) {})
	assert.ErrorIs(t, err, ErrNotWatchable)
	_, err = w.Watch("bundle:assets/a.glb", func(Locator) {})
	assert.ErrorIs(t, err, ErrNotWatchable)
}
