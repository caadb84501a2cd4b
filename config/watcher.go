package config

import (
	"context"
	"fmt"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads a configuration file when it changes and notifies
// subscribers of every valid new configuration.
type Watcher struct {
	path     string
	log      *zap.Logger
	debounce time.Duration
	fs       *fsnotify.Watcher

	mu      sync.RWMutex
	current *Config
	subs    []func(*Config)
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithDebounce sets the delay between the last file event and the reload.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) { w.debounce = d }
}

// NewWatcher returns a watcher for the file at path, starting from
// initial. The directory is watched rather than the file so that editors
// replacing the file are noticed.
func NewWatcher(path string, initial *Config, log *zap.Logger, opts ...WatchOption) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: creating file watcher: %w", err)
	}
	if err := fs.Add(filepath.Dir(path)); err != nil {
		fs.Close()
		return nil, fmt.Errorf("config: watching %s: %w", path, err)
	}
	w := &Watcher{
		path:     filepath.Clean(path),
		log:      log,
		debounce: 200 * time.Millisecond,
		fs:       fs,
		current:  initial,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Current returns the last valid configuration.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnChange registers fn to be called with every reloaded configuration.
func (w *Watcher) OnChange(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subs = append(w.subs, fn)
}

// Run processes file events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()
	var (
		timer  *time.Timer
		reload <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path || !ev.Has(fsnotify.Write|fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.log.Debug("configuration file changed", zap.String("file", ev.Name), zap.Stringer("op", ev.Op))
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			reload = timer.C
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Error("file watcher error", zap.Error(err))
		case <-reload:
			reload = nil
			w.Reload()
		}
	}
}

// Reload reads the file again and notifies subscribers if it holds a
// valid configuration different from the current one.
func (w *Watcher) Reload() {
	next, err := Load(w.path)
	if err != nil {
		w.log.Error("invalid configuration after reload", zap.Error(err))
		return
	}
	w.mu.Lock()
	if reflect.DeepEqual(w.current, next) {
		w.mu.Unlock()
		w.log.Debug("configuration unchanged after reload")
		return
	}
	w.current = next
	subs := append(([]func(*Config))(nil), w.subs...)
	w.mu.Unlock()
	for _, fn := range subs {
		fn(next)
	}
	w.log.Info("configuration reloaded", zap.String("file", w.path), zap.Int("subscribers", len(subs)))
}
