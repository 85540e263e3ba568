package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/quarry-labs/quarry/internal/logger"
)

// reloadDebounce coalesces the burst of filesystem events an editor save
// produces into a single reload.
const reloadDebounce = 200 * time.Millisecond

// Watcher hot-reloads configuration and prompts when their files change on
// disk. It is meant for serve mode; one-shot CLI commands read their
// configuration once and exit before a reload could matter.
//
// The watch covers the directory holding config.toml (editors replace files
// by rename, and a watch on the old inode goes stale) and the prompt
// directory. Only events for config.toml itself and *.txt prompt files
// trigger a reload.
type Watcher struct {
	fsw      *fsnotify.Watcher
	config   *ConfigStore
	prompts  *PromptStore
	onReload func()

	closeOnce sync.Once
	done      chan struct{}
}

// NewWatcher creates a watcher over the given stores. The prompts store is
// optional. onReload, if non-nil, is called after every applied reload; it
// runs on the watcher goroutine and must not block.
func NewWatcher(config *ConfigStore, prompts *PromptStore, onReload func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	return &Watcher{
		fsw:      fsw,
		config:   config,
		prompts:  prompts,
		onReload: onReload,
		done:     make(chan struct{}),
	}, nil
}

// Start registers the watch paths and begins delivering reloads.
func (w *Watcher) Start() error {
	if err := w.fsw.Add(filepath.Dir(w.config.Path())); err != nil {
		return fmt.Errorf("watch config directory: %w", err)
	}

	if w.prompts != nil {
		// The prompt directory is created lazily on first Load; make sure
		// it exists so the watch can be registered up front.
		if err := os.MkdirAll(w.prompts.Dir(), 0700); err != nil {
			return fmt.Errorf("create prompt directory: %w", err)
		}
		if err := w.fsw.Add(w.prompts.Dir()); err != nil {
			return fmt.Errorf("watch prompt directory: %w", err)
		}
	}

	go w.loop()
	return nil
}

// Close stops the watcher. Safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fsw.Close()
	})
	return err
}

// loop consumes filesystem events, debounces them and applies reloads.
func (w *Watcher) loop() {
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	var configPending, promptsPending bool

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue // Chmod only
			}
			switch {
			case w.isConfigEvent(event.Name):
				configPending = true
			case w.isPromptEvent(event.Name):
				promptsPending = true
			default:
				continue
			}
			timer.Reset(reloadDebounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("Config watcher error: %v", err)

		case <-timer.C:
			w.reload(configPending, promptsPending)
			configPending, promptsPending = false, false
		}
	}
}

// isConfigEvent reports whether the event path is the config file itself.
// The config directory holds other entries (data/, prompts/, log files)
// whose churn must not trigger reloads.
func (w *Watcher) isConfigEvent(name string) bool {
	return filepath.Clean(name) == filepath.Clean(w.config.Path())
}

// isPromptEvent reports whether the event path is a prompt template.
func (w *Watcher) isPromptEvent(name string) bool {
	if w.prompts == nil {
		return false
	}
	return filepath.Dir(filepath.Clean(name)) == filepath.Clean(w.prompts.Dir()) &&
		strings.HasSuffix(name, ".txt")
}

// reload applies the pending changes and notifies the callback.
func (w *Watcher) reload(config, prompts bool) {
	changed := false

	if config {
		if err := w.config.Load(); err != nil {
			// Keep the previous data; a half-saved file will fire another
			// event once the write completes.
			logger.Warn("Reloading %s failed: %v", w.config.Path(), err)
		} else {
			logger.Info("Configuration reloaded from %s", w.config.Path())
			changed = true
		}
	}

	if prompts {
		w.prompts.Reload()
		logger.Info("Prompt templates reload on next use")
		changed = true
	}

	if changed && w.onReload != nil {
		w.onReload()
	}
}
