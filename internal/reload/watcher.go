// Package reload watches a single on-disk file for changes and invokes a
// callback after a short debounce, so an operator-maintained file can be
// edited in place without restarting the daemon. serve uses it for the
// agent allowlist file only.
package reload

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mcpfleet/orchestrator/internal/logging"
)

// Watcher monitors a file for changes and triggers onChange.
type Watcher struct {
	path     string
	onChange func() error
	logger   *slog.Logger
	debounce time.Duration
}

// NewWatcher creates a file watcher for path. onChange runs (synchronously,
// on the Watch goroutine) after a burst of changes settles.
func NewWatcher(path string, onChange func() error) *Watcher {
	return &Watcher{
		path:     path,
		onChange: onChange,
		logger:   logging.Discard(),
		debounce: 300 * time.Millisecond,
	}
}

// SetLogger attaches a structured logger.
func (w *Watcher) SetLogger(logger *slog.Logger) {
	if logger != nil {
		w.logger = logger
	}
}

// SetDebounce overrides the default 300ms settle window.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Watch blocks until ctx is canceled, reloading on every debounced change.
//
// The parent directory is watched rather than the file itself: editors and
// config-management tools commonly save atomically (write a temp file, then
// rename it over the target), and fsnotify loses the watch on a renamed-away
// file. Watching the directory catches the rename along with direct writes.
func (w *Watcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	filename := filepath.Base(w.path)

	if err := watcher.Add(dir); err != nil {
		return err
	}

	w.logger.Info("watching file for changes", "path", w.path)

	var debounceTimer *time.Timer
	var debounceChan <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.logger.Debug("file changed", "event", event.Op.String())
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.NewTimer(w.debounce)
				debounceChan = debounceTimer.C
			}

		case <-debounceChan:
			w.logger.Info("change detected, reloading", "path", w.path)
			if err := w.onChange(); err != nil {
				w.logger.Error("reload failed", "path", w.path, "error", err)
			}
			debounceChan = nil

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "path", w.path, "error", err)
		}
	}
}
