// Package watcher re-indexes a local search_index.js when a documentation
// build rewrites it.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce collapses the burst of events an editor or generator emits
// for one save.
const DefaultDebounce = 500 * time.Millisecond

// ChangeFunc is called once per settled change with the watched path.
type ChangeFunc func(ctx context.Context, path string) error

// Stats tracks watcher activity.
type Stats struct {
	Events        int
	Reloads       int
	Errors        int
	LastEventTime time.Time
	LastEventType string
}

// FileWatcher watches a single file through its parent directory, so the
// watch survives the file being replaced by rename.
type FileWatcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	path     string
	onChange ChangeFunc
	debounce time.Duration
	log      *zap.SugaredLogger

	pending  bool
	deadline time.Time
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	stats    Stats
}

// New creates a watcher for path. A zero debounce uses DefaultDebounce.
func New(path string, debounce time.Duration, onChange ChangeFunc, log *zap.SugaredLogger) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &FileWatcher{
		watcher:  w,
		path:     abs,
		onChange: onChange,
		debounce: debounce,
		log:      log,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Path returns the absolute path being watched.
func (fw *FileWatcher) Path() string {
	return fw.path
}

// Start begins watching. It is non-blocking.
func (fw *FileWatcher) Start(ctx context.Context) error {
	fw.mu.Lock()
	if fw.running {
		fw.mu.Unlock()
		return nil
	}
	fw.running = true
	fw.mu.Unlock()

	dir := filepath.Dir(fw.path)
	if err := fw.watcher.Add(dir); err != nil {
		fw.mu.Lock()
		fw.running = false
		fw.mu.Unlock()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	fw.log.Infof("✓ Watching %s for documentation rebuilds", fw.path)

	go fw.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit. A watcher
// that was never started only releases its resources.
func (fw *FileWatcher) Stop() {
	fw.mu.Lock()
	wasRunning := fw.running
	fw.running = false
	fw.mu.Unlock()

	if wasRunning {
		close(fw.stopCh)
		<-fw.doneCh
	}

	if err := fw.watcher.Close(); err != nil {
		fw.log.Warnf("Warning: Error closing watcher: %v", err)
	}
}

// Stats returns a snapshot of the watcher counters.
func (fw *FileWatcher) Stats() Stats {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.stats
}

func (fw *FileWatcher) run(ctx context.Context) {
	defer close(fw.doneCh)

	ticker := time.NewTicker(fw.debounce / 5)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-fw.stopCh:
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleEvent(event)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.log.Warnf("Warning: Watcher error: %v", err)
			fw.mu.Lock()
			fw.stats.Errors++
			fw.mu.Unlock()

		case <-ticker.C:
			fw.fireIfSettled(ctx)
		}
	}
}

func (fw *FileWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != fw.path {
		return
	}

	var eventType string
	switch {
	case event.Op&fsnotify.Create != 0:
		eventType = "create"
	case event.Op&fsnotify.Write != 0:
		eventType = "write"
	case event.Op&fsnotify.Rename != 0:
		eventType = "rename"
	default:
		// chmod and remove: nothing to index
		return
	}

	fw.log.Debugf("Watcher: %s event for %s", eventType, event.Name)

	fw.mu.Lock()
	fw.stats.Events++
	fw.stats.LastEventTime = time.Now()
	fw.stats.LastEventType = eventType
	fw.pending = true
	fw.deadline = time.Now().Add(fw.debounce)
	fw.mu.Unlock()
}

func (fw *FileWatcher) fireIfSettled(ctx context.Context) {
	fw.mu.Lock()
	if !fw.pending || time.Now().Before(fw.deadline) {
		fw.mu.Unlock()
		return
	}
	fw.pending = false
	fw.mu.Unlock()

	if fw.onChange == nil {
		return
	}

	if err := fw.onChange(ctx, fw.path); err != nil {
		fw.log.Warnf("Warning: Reload of %s failed: %v", fw.path, err)
		fw.mu.Lock()
		fw.stats.Errors++
		fw.mu.Unlock()
		return
	}

	fw.mu.Lock()
	fw.stats.Reloads++
	fw.mu.Unlock()
}
