package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Loader reads a YAML config file and watches it for changes.
type Loader struct {
	path     string
	logger   *slog.Logger
	mu       sync.RWMutex
	current  *RuleConfig
	onChange []func(*RuleConfig)
}

// NewLoader creates a Loader and performs the initial load.
func NewLoader(path string, logger *slog.Logger) (*Loader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loader{path: path, logger: logger}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	l.current = cfg
	return l, nil
}

// Path returns the watched file.
func (l *Loader) Path() string { return l.path }

// Config returns the current (latest) configuration.
func (l *Loader) Config() *RuleConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange registers a callback invoked whenever the config reloads.
func (l *Loader) OnChange(fn func(*RuleConfig)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Watch starts a background goroutine that hot-reloads the config on file changes.
// Call the returned stop function to clean up.
func (l *Loader) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	// The directory is watched; events are filtered to the config file.
	target := filepath.Clean(l.path)
	if err := w.Add(filepath.Dir(target)); err != nil {
		w.Close()
		return nil, fmt.Errorf("config watcher add %s: %w", l.path, err)
	}

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					if _, err := l.Reload(); err != nil {
						// Keep serving the previous config.
						l.logger.Warn("config reload failed", "path", l.path, "err", err)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				l.logger.Warn("config watcher error", "err", err)
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }, nil
}

// Reload forces an immediate re-read of the config file. An invalid file
// leaves the current config in place.
func (l *Loader) Reload() (*RuleConfig, error) {
	cfg, err := Load(l.path)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.current = cfg
	callbacks := make([]func(*RuleConfig), len(l.onChange))
	copy(callbacks, l.onChange)
	l.mu.Unlock()
	for _, fn := range callbacks {
		fn(cfg)
	}
	return cfg, nil
}

// Load reads and parses a rules file and applies defaults. It does not validate.
func Load(path string) (*RuleConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML rules and applies defaults.
func Parse(data []byte) (*RuleConfig, error) {
	var cfg RuleConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *RuleConfig) {
	if cfg.Runtime.DispatchWorkers == 0 {
		cfg.Runtime.DispatchWorkers = 8
	}
	if cfg.Runtime.QueueDepth == 0 {
		cfg.Runtime.QueueDepth = 1024
	}
	if cfg.Runtime.IntentTTLMs == 0 {
		cfg.Runtime.IntentTTLMs = 15 * 60 * 1000
	}
	if cfg.Runtime.IntentMaxEntries == 0 {
		cfg.Runtime.IntentMaxEntries = 10000
	}
	if cfg.Runtime.HistoryMaxRuns == 0 {
		cfg.Runtime.HistoryMaxRuns = 50000
	}
	if cfg.Execution.Gate == "" {
		cfg.Execution.Gate = GateDisabled
	}
	if cfg.Execution.Policy == "" {
		cfg.Execution.Policy = PolicyDisabled
	}
}
