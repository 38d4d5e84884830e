package selection

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DebounceDelay coalesces the burst of events produced by an atomic rewrite.
const DebounceDelay = 100 * time.Millisecond

// Logger is the logging surface the watcher needs.
type Logger interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

// Watch observes the selection file and calls fn with the stored URL whenever
// another process rewrites it. It returns once the watcher is installed; the
// watcher stops when ctx is done. The parent directory is watched because
// atomic rewrites replace the file's inode.
func Watch(ctx context.Context, store *FileStore, logger Logger, fn func(url string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating selection watcher: %w", err)
	}

	dir := filepath.Dir(store.Path())
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	base := filepath.Base(store.Path())

	go func() {
		defer func() { _ = watcher.Close() }()

		var (
			mu            sync.Mutex
			debounceTimer *time.Timer
		)
		stopTimer := func() {
			mu.Lock()
			defer mu.Unlock()
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
		}
		defer stopTimer()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != base {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}

				mu.Lock()
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(DebounceDelay, func() {
					if ctx.Err() != nil {
						return
					}
					before := store.Get()
					if err := store.Reload(); err != nil {
						logger.Error("reloading selection file: %v", err)
						return
					}
					after := store.Get()
					if after == before {
						return
					}
					logger.Debug("selection file changed: %s", after)
					fn(after)
				})
				mu.Unlock()

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Error("selection watcher: %v", err)
			}
		}
	}()

	return nil
}
