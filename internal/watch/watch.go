// Package watch reports font files as they land in a directory.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/logandonley/font-activator/pkg/fm"
)

// DefaultDebounce is how long a path must stay quiet before it is reported.
const DefaultDebounce = 300 * time.Millisecond

// Handler receives each settled font file. Calls are sequential.
type Handler func(fm.FontDescriptor)

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger used for watch events.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// Watcher watches a single directory, non-recursively.
type Watcher struct {
	dir      string
	handler  Handler
	debounce time.Duration
	logger   *zap.Logger

	watcher   *fsnotify.Watcher
	pending   map[string]time.Time
	closeOnce sync.Once
	closeErr  error
}

// New starts watching dir. Run must be called to deliver events.
func New(dir string, handler Handler, opts ...Option) (*Watcher, error) {
	if handler == nil {
		return nil, fmt.Errorf("watch handler is required")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &fm.DirectoryUnavailableError{Dir: dir, Err: err}
	}
	if !info.IsDir() {
		return nil, &fm.DirectoryUnavailableError{Dir: dir, Err: fmt.Errorf("not a directory")}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, &fm.DirectoryUnavailableError{Dir: dir, Err: err}
	}

	w := &Watcher{
		dir:      filepath.Clean(dir),
		handler:  handler,
		debounce: DefaultDebounce,
		logger:   zap.NewNop(),
		watcher:  fsw,
		pending:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Run delivers events until ctx is cancelled, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.Close()

	tick := w.debounce / 3
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	w.logger.Info("watching directory", zap.String("dir", w.dir), zap.Duration("debounce", w.debounce))

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("watch stopped", zap.String("dir", w.dir))
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher for %s closed", w.dir)
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher for %s closed", w.dir)
			}
			w.logger.Warn("watch error", zap.String("dir", w.dir), zap.Error(err))

		case now := <-ticker.C:
			w.flush(now)
		}
	}
}

// Close stops the underlying watcher. Safe to call more than once.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		w.closeErr = w.watcher.Close()
	})
	return w.closeErr
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !fm.IsFontFile(event.Name) {
		return
	}
	switch {
	case event.Has(fsnotify.Create):
		w.pending[event.Name] = time.Now()
	case event.Has(fsnotify.Write):
		// Only a file still being copied in; edits to settled fonts are not new.
		if _, ok := w.pending[event.Name]; ok {
			w.pending[event.Name] = time.Now()
		}
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		// Renamed away from here; a rename into the dir arrives as Create.
		delete(w.pending, event.Name)
	}
}

func (w *Watcher) flush(now time.Time) {
	for path, seen := range w.pending {
		if now.Sub(seen) < w.debounce {
			continue
		}
		delete(w.pending, path)

		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		font, ok := fm.NewDescriptor(path, fm.OriginImported)
		if !ok {
			continue
		}
		w.logger.Debug("font settled", zap.String("path", path))
		w.handler(font)
	}
}
