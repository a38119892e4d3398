package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow collapses bursts of filesystem events (editors often write
// a temp file then rename it) into a single reload.
const debounceWindow = 100 * time.Millisecond

// Loader watches a TOML config file on disk and hot-reloads it, notifying
// registered callbacks whenever the parsed configuration changes. This is
// the only mechanism for live threshold tuning: the daemon never re-execs
// to pick up new anomaly/classifier thresholds.
type Loader struct {
	path string

	mu     sync.RWMutex
	config *Config

	watcher  *fsnotify.Watcher
	onChange []func(*Config)

	ctx    context.Context
	cancel context.CancelFunc

	errCh chan error
}

// NewLoader loads path (or defaults, if absent) and returns a Loader ready
// to Watch.
func NewLoader(path string) (*Loader, error) {
	if path == "" {
		path = ConfigPath()
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Loader{
		path:   path,
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
		errCh:  make(chan error, 8),
	}, nil
}

// Config returns the current configuration. Safe for concurrent use with
// reloads triggered by Watch.
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config
}

// OnChange registers fn to be called, with the new config, every time the
// watched file is successfully reloaded. fn is called from the debounce
// timer's goroutine; it must not block.
func (l *Loader) OnChange(fn func(*Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Errors returns the channel reload errors are delivered on. Reload errors
// never replace the last-known-good config.
func (l *Loader) Errors() <-chan error {
	return l.errCh
}

// Watch starts watching the config file's directory for writes. It returns
// immediately; call Close to stop.
func (l *Loader) Watch() error {
	if l.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: create watcher: %w", err)
	}
	l.watcher = watcher

	dir := dirOf(l.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("config: watch %s: %w", dir, err)
	}

	go l.watchLoop()
	return nil
}

func (l *Loader) watchLoop() {
	var debounce *time.Timer

	reload := func() {
		if err := l.reload(); err != nil {
			select {
			case l.errCh <- err:
			default:
			}
		}
	}

	for {
		select {
		case <-l.ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return
		case ev, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if baseOf(ev.Name) != baseOf(l.path) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceWindow, reload)
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			select {
			case l.errCh <- err:
			default:
			}
		}
	}
}

func (l *Loader) reload() error {
	cfg, err := Load(l.path)
	if err != nil {
		return fmt.Errorf("config: reload: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: reload validation: %w", err)
	}

	l.mu.Lock()
	l.config = cfg
	callbacks := append([]func(*Config){}, l.onChange...)
	l.mu.Unlock()

	for _, cb := range callbacks {
		cb(cfg)
	}
	return nil
}

// Close stops the watch goroutine and releases the underlying watcher.
func (l *Loader) Close() error {
	l.cancel()
	if l.watcher != nil {
		return l.watcher.Close()
	}
	return nil
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[:i]
		}
	}
	return "."
}

func baseOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[i+1:]
		}
	}
	return path
}
