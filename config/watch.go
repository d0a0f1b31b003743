package config

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// mutableTables lists the top-level config tables safe to apply
// without a restart. Every other table (global, security, agents) is
// boot-only: its singletons are wired once at startup, so a change is
// only picked up on the next restart.
var mutableTables = map[string]bool{
	"integration": true,
	"rate_limit":  true,
}

// Watcher reloads the config file on write and hands the reloaded
// config to its onApply callback.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	logger  *slog.Logger
	onApply func(*Config)
}

// NewWatcher starts watching path for changes. onApply is called with
// the whole newly-loaded config after every successful reload; the
// watcher does not compare it with the previous config or detect which
// tables changed, so picking out the mutable tables is left to onApply.
func NewWatcher(path string, logger *slog.Logger, onApply func(*Config)) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, err
	}
	w := &Watcher{path: path, watcher: fw, logger: logger, onApply: onApply}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.handleChange()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleChange() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("config reload failed, keeping previous config", "path", w.path, "error", err)
		return
	}
	w.logger.Info("config file changed; mutable tables (integration, rate_limit) applied live, others require a restart", "path", w.path)
	if w.onApply != nil {
		w.onApply(cfg)
	}
}

func (w *Watcher) Close() error { return w.watcher.Close() }

// MutableTable reports whether name is safe to hot-reload.
func MutableTable(name string) bool { return mutableTables[name] }
