package config

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/verticedb/vertice/internal/logger"
)

// Watcher reloads the configuration file when it changes on disk and hands
// the freshly validated result to a callback. The server uses it to adjust
// the log level at runtime without a restart.
//
// The watch is placed on the config file's directory rather than the file
// itself: editors and configuration management tools commonly replace the
// file atomically via rename, which would otherwise drop the watch.
type Watcher struct {
	path     string
	onChange func(*Config)

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher builds a watcher for the config file at path. onChange is
// invoked with every successfully loaded new configuration; load failures
// are logged and the previous configuration stays in effect.
func NewWatcher(path string, onChange func(*Config)) *Watcher {
	return &Watcher{path: path, onChange: onChange}
}

// Start begins watching. It is an error to start an already started
// watcher.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watcher != nil {
		return fmt.Errorf("config watcher already started")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	w.watcher = fsw
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	go w.loop(fsw, w.stopCh, w.doneCh)

	logger.Debug("Config hot-reload started", "path", w.path)
	return nil
}

func (w *Watcher) loop(fsw *fsnotify.Watcher, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	for {
		select {
		case <-stopCh:
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.reload()

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("Config watcher error", "error", err)
		}
	}
}

// reload loads and validates the file, invoking the callback on success.
func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		logger.Warn("Config reload failed, keeping previous configuration",
			"path", w.path,
			"error", err,
		)
		return
	}

	logger.Info("Configuration reloaded", "path", w.path)
	if w.onChange != nil {
		w.onChange(cfg)
	}
}

// Stop stops watching. Safe to call on a watcher that was never started.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watcher == nil {
		return
	}
	close(w.stopCh)
	_ = w.watcher.Close()
	<-w.doneCh
	w.watcher = nil
}
