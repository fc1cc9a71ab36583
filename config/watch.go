package config

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"borsatahmin/logger"
)

// Watcher reloads the config file when it changes on disk and hands the new
// snapshot to subscribers. Readers always see a complete config.
type Watcher struct {
	path    string
	mu      sync.RWMutex
	current *Config
	onSwap  []func(*Config)
	fsw     *fsnotify.Watcher
	done    chan struct{}
}

func NewWatcher(path string, initial *Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors replace files, which drops the watch on
	// the file itself.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		path:    path,
		current: initial,
		fsw:     fsw,
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Current returns the latest config snapshot.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnSwap registers a callback invoked with every successfully reloaded config.
func (w *Watcher) OnSwap(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onSwap = append(w.onSwap, fn)
}

func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				logger.L().Warnw("config reload failed, keeping previous", "path", w.path, "error", err)
				continue
			}
			w.mu.Lock()
			w.current = cfg
			callbacks := append([]func(*Config){}, w.onSwap...)
			w.mu.Unlock()
			for _, fn := range callbacks {
				fn(cfg)
			}
			logger.L().Infow("config reloaded", "path", w.path)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.L().Warnw("config watcher error", "error", err)
		}
	}
}
