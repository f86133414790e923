package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher keeps a Browser's category cache coherent with the storage root.
type Watcher struct {
	browser *Browser
	fsw     *fsnotify.Watcher
	logger  *slog.Logger
	root    string
}

// NewWatcher watches the storage root and every existing department directory and switches the
// browser to cached listings. The root must exist. Call Run to process events and Close to
// release the watch descriptors.
func NewWatcher(b *Browser, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = b.logger
	}
	root := b.resolver.Root()
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("watch storage root %s: not a directory", root)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(root); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch storage root: %w", err)
	}

	w := &Watcher{browser: b, fsw: fsw, logger: logger, root: root}
	for _, d := range b.Departments() {
		w.watchDepartment(d)
	}
	b.setCaching(true)
	return w, nil
}

// Run processes filesystem events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				// Events were lost; nothing cached can be trusted.
				w.browser.setCaching(true)
			}
			w.logger.Warn("storage watcher error", "error", err)
		}
	}
}

// Close stops watching and returns the browser to uncached reads.
func (w *Watcher) Close() error {
	w.browser.setCaching(false)
	return w.fsw.Close()
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) {
		return
	}

	parent, base := filepath.Dir(event.Name), filepath.Base(event.Name)
	switch {
	case parent == w.root:
		// A department directory itself appeared or went away.
		if !w.browser.resolver.Known(base) {
			return
		}
		if event.Has(fsnotify.Create) {
			w.watchDepartment(base)
		}
		w.browser.Invalidate(base)

	case filepath.Dir(parent) == w.root:
		dept := filepath.Base(parent)
		if !w.browser.resolver.Known(dept) {
			return
		}
		w.browser.Invalidate(dept)
		if event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
			w.logger.Debug("category changed", "department", dept, "category", base, "op", event.Op.String())
		}
	}
}

func (w *Watcher) watchDepartment(dept string) {
	dir, err := w.browser.resolver.Department(dept)
	if err != nil {
		return
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return
	}
	if err := w.fsw.Add(dir); err != nil {
		w.logger.Warn("cannot watch department directory", "department", dept, "error", err)
	}
}
