package plugin

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// rescanDebounce coalesces the burst of events a single build or install
// produces into one rescan.
const rescanDebounce = 500 * time.Millisecond

// Watcher triggers a rescan callback whenever anything under the plugin
// roots changes. Hot reload is convenience tooling for plugin authors; the
// registry itself only changes when the rescan callback reinitializes it.
type Watcher struct {
	scanner *Scanner
	onDirty func(ctx context.Context)
	logger  *slog.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	timer   *time.Timer
}

// NewWatcher creates a watcher over the scanner's roots. onDirty runs after
// the debounce window whenever plugin files change.
func NewWatcher(scanner *Scanner, onDirty func(ctx context.Context), logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{scanner: scanner, onDirty: onDirty, logger: logger}
}

// Start begins watching both plugin roots and their plugin directories.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.watcher = fsw
	w.cancel = cancel
	w.mu.Unlock()

	for _, root := range w.scanner.Roots() {
		if root == "" {
			continue
		}
		if err := fsw.Add(root); err != nil {
			w.logger.Warn("cannot watch plugin root", "path", root, "error", err)
			continue
		}
		// Watch one level of plugin directories so source edits are seen.
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil || !d.IsDir() {
				return nil
			}
			_ = fsw.Add(path)
			return nil
		})
	}

	w.logger.Info("plugin hot reload enabled", "roots", w.scanner.Roots())
	go w.loop(ctx, fsw)
	return nil
}

// Stop ends the watch loop and releases the underlying watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	if w.watcher != nil {
		_ = w.watcher.Close()
		w.watcher = nil
	}
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("plugin watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	base := filepath.Base(event.Name)
	// Editor temp files and dot-directories are noise.
	if len(base) > 0 && base[0] == '.' {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel == nil {
		// Stopped; a late event must not arm a new timer.
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(rescanDebounce, func() {
		w.logger.Info("plugin files changed, rescanning", "trigger", event.Name)
		w.onDirty(ctx)
	})
}
