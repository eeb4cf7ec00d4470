package calibration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDelay is how long to wait for further writes before reloading.
// Editors save through temp files and renames, which fan out as several
// events for one logical edit.
const debounceDelay = 500 * time.Millisecond

// Watcher reloads the active configuration when the file changes on disk,
// so operator edits take effect without a restart.
type Watcher struct {
	store   *Store
	watcher *fsnotify.Watcher

	pendingMu sync.Mutex
	pending   bool
}

// NewWatcher creates a watcher bound to the store's data directory.
func NewWatcher(store *Store) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}

	return &Watcher{store: store, watcher: fsw}, nil
}

// Start begins watching. It returns after the watch is registered; event
// processing runs until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.store.dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Watch the directory, not the file: renames replace the inode and a
	// file watch would silently die on the first atomic save.
	if err := w.watcher.Add(w.store.dataDir); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	go w.processEvents(ctx)

	w.store.logger.Info("config watcher started", "dir", w.store.dataDir)
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func (w *Watcher) processEvents(ctx context.Context) {
	ticker := time.NewTicker(debounceDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.store.logger.Error("config watcher error", "error", err)

		case <-ticker.C:
			w.flushPending()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Base(event.Name) != activeFileName {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}

	w.pendingMu.Lock()
	w.pending = true
	w.pendingMu.Unlock()
}

func (w *Watcher) flushPending() {
	w.pendingMu.Lock()
	dirty := w.pending
	w.pending = false
	w.pendingMu.Unlock()

	if dirty {
		w.store.reload()
	}
}
