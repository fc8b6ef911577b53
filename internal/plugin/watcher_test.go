package plugin

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_FiresOnceAfterBurst(t *testing.T) {
	primary := t.TempDir()
	writePlugin(t, primary, "live", manifestJSON("live", "theme"))

	var fired atomic.Int32
	s := NewScanner(primary, t.TempDir(), SitePolicy{}, nil)
	w := NewWatcher(s, func(context.Context) { fired.Add(1) }, nil)

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	// A burst of writes inside the debounce window coalesces to one rescan.
	dir := filepath.Join(primary, "live")
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "index.ts"), []byte("export default {};"), 0o644))
		time.Sleep(20 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return fired.Load() == 1
	}, 5*time.Second, 50*time.Millisecond)

	// Quiet period: no further callbacks.
	time.Sleep(rescanDebounce + 200*time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestWatcher_IgnoresDotFiles(t *testing.T) {
	primary := t.TempDir()
	writePlugin(t, primary, "live", manifestJSON("live", "theme"))

	var fired atomic.Int32
	s := NewScanner(primary, t.TempDir(), SitePolicy{}, nil)
	w := NewWatcher(s, func(context.Context) { fired.Add(1) }, nil)

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(primary, "live", ".index.ts.swp"), []byte("x"), 0o644))

	time.Sleep(rescanDebounce + 300*time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}

func TestWatcher_StopPreventsPendingCallback(t *testing.T) {
	primary := t.TempDir()
	writePlugin(t, primary, "live", manifestJSON("live", "theme"))

	var fired atomic.Int32
	s := NewScanner(primary, t.TempDir(), SitePolicy{}, nil)
	w := NewWatcher(s, func(context.Context) { fired.Add(1) }, nil)

	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, os.WriteFile(filepath.Join(primary, "live", "index.ts"), []byte("x"), 0o644))

	// Stop inside the debounce window cancels the pending rescan.
	time.Sleep(50 * time.Millisecond)
	w.Stop()
	time.Sleep(rescanDebounce + 200*time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}
