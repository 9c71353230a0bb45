package routing

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"switchyard/internal/logger"
)

// DefinitionsWatcher calls reload whenever the definitions file changes. Bursts of writes
// are collapsed into one reload after the debounce interval.
type DefinitionsWatcher struct {
	path     string
	reload   func(ctx context.Context) error
	debounce time.Duration
	logger   logger.Logger

	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	stopCh   chan struct{}
	reloadCh chan struct{}
	stopped  bool
}

func NewDefinitionsWatcher(path string, debounce time.Duration, reload func(ctx context.Context) error, log logger.Logger) (*DefinitionsWatcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve definitions path: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &DefinitionsWatcher{
		path:     absPath,
		reload:   reload,
		debounce: debounce,
		logger:   log,
		watcher:  w,
		stopCh:   make(chan struct{}),
		reloadCh: make(chan struct{}, 1),
	}, nil
}

// Start watches the directory holding the file, which also catches editors that replace
// the file by rename.
func (w *DefinitionsWatcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch definitions directory %s: %w", dir, err)
	}

	w.logger.Infow("Watching routing definitions", "path", w.path)

	go w.watchLoop(ctx)
	go w.reloadLoop(ctx)
	return nil
}

func (w *DefinitionsWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	return w.watcher.Close()
}

func (w *DefinitionsWatcher) watchLoop(ctx context.Context) {
	name := filepath.Base(w.path)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create), event.Has(fsnotify.Rename):
				w.logger.Debugw("Definitions change detected", "file", event.Name, "op", event.Op.String())
				w.trigger()
			case event.Has(fsnotify.Remove):
				w.logger.Warnw("Definitions file removed, keeping current configuration", "file", event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorw("Definitions watcher error", "error", err)
		}
	}
}

func (w *DefinitionsWatcher) reloadLoop(ctx context.Context) {
	var timer *time.Timer
	stop := func() {
		if timer != nil {
			timer.Stop()
		}
	}

	for {
		select {
		case <-ctx.Done():
			stop()
			return
		case <-w.stopCh:
			stop()
			return
		case <-w.reloadCh:
			stop()
			timer = time.AfterFunc(w.debounce, func() {
				if err := w.reload(ctx); err != nil {
					w.logger.Errorw("Failed to reload routing definitions", "path", w.path, "error", err)
					return
				}
				w.logger.Infow("Routing definitions reloaded", "path", w.path)
			})
		}
	}
}

func (w *DefinitionsWatcher) trigger() {
	select {
	case w.reloadCh <- struct{}{}:
	default:
	}
}
