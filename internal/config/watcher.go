package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vitaliydpua/appgw/internal/observability"
)

// Callback is called with each successfully reloaded configuration.
type Callback func(*Config)

// Watcher watches the configuration file and triggers reloads. The
// gateway uses it to apply throttle limit and exclusion changes
// without a restart.
type Watcher struct {
	path          string
	watcher       *fsnotify.Watcher
	callback      Callback
	logger        observability.Logger
	debounceDelay time.Duration

	mu         sync.RWMutex
	lastConfig *Config
	running    bool

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// WatcherOption is a functional option for the watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger sets the logger for the watcher.
func WithWatcherLogger(logger observability.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithDebounceDelay sets the debounce delay for file change events.
func WithDebounceDelay(delay time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounceDelay = delay
	}
}

// NewWatcher creates a configuration watcher.
func NewWatcher(path string, callback Callback, opts ...WatcherOption) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:          absPath,
		watcher:       fsWatcher,
		callback:      callback,
		logger:        observability.NopLogger(),
		debounceDelay: 100 * time.Millisecond,
		stopCh:        make(chan struct{}),
		stoppedCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start loads the initial configuration and begins watching. Watching
// the directory rather than the file survives editors and config-map
// mounts that replace the file.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	fail := func(err error) error {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}

	cfg, err := Load(w.path)
	if err != nil {
		return fail(err)
	}
	if err := Validate(cfg); err != nil {
		return fail(err)
	}

	w.mu.Lock()
	w.lastConfig = cfg
	w.mu.Unlock()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fail(err)
	}

	w.logger.Info("watching configuration file",
		observability.String("path", w.path),
	)

	go w.watch(ctx)
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.stoppedCh
	return w.watcher.Close()
}

// Last returns the last successfully loaded configuration.
func (w *Watcher) Last() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastConfig
}

// watch is the main watch loop with debounced reloads.
func (w *Watcher) watch(ctx context.Context) {
	defer close(w.stoppedCh)

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time

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
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.NewTimer(w.debounceDelay)
			debounceCh = debounceTimer.C

		case <-debounceCh:
			debounceCh = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watcher error", observability.Error(err))
		}
	}
}

// reload loads, validates and publishes a changed configuration. An
// invalid file keeps the previous configuration active.
func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Error("config reload failed", observability.Error(err))
		return
	}
	if err := Validate(cfg); err != nil {
		w.logger.Error("config validation failed", observability.Error(err))
		return
	}

	w.mu.Lock()
	w.lastConfig = cfg
	w.mu.Unlock()

	w.logger.Info("configuration reloaded")

	if w.callback != nil {
		w.callback(cfg)
	}
}
