package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"whatsflow/internal/constants"
	"whatsflow/internal/models"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// reloadOps are the events that can leave a new file at the watched path.
const reloadOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename

// ConfigWatcher reloads the config file when it changes and hands the new
// value to listeners. Listeners pick the sections they can apply live.
type ConfigWatcher struct {
	path     string
	logger   *logrus.Logger
	debounce time.Duration
	current  atomic.Pointer[models.Config]

	mu        sync.Mutex
	listeners []func(*models.Config)
}

func NewConfigWatcher(configPath string, logger *logrus.Logger) *ConfigWatcher {
	return &ConfigWatcher{
		path:     filepath.Clean(configPath),
		logger:   logger,
		debounce: constants.DefaultConfigReloadDebounceMs * time.Millisecond,
	}
}

// GetConfig returns the last successfully loaded config, or nil before Start.
func (cw *ConfigWatcher) GetConfig() *models.Config {
	return cw.current.Load()
}

// OnConfigChange adds a listener. Listeners run in registration order on
// the watcher goroutine.
func (cw *ConfigWatcher) OnConfigChange(listener func(*models.Config)) {
	cw.mu.Lock()
	cw.listeners = append(cw.listeners, listener)
	cw.mu.Unlock()
}

// Start loads the config, then blocks applying changes until ctx is done.
func (cw *ConfigWatcher) Start(ctx context.Context) error {
	cfg, err := LoadConfig(cw.path)
	if err != nil {
		return err
	}
	cw.current.Store(cfg)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fsw.Close()

	// Editors replace the file, so the directory is what gets watched.
	if err := fsw.Add(filepath.Dir(cw.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(cw.path), err)
	}
	cw.logger.WithField("path", cw.path).Info("Watching configuration for changes")

	settle := time.NewTimer(time.Hour)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) == cw.path && ev.Op&reloadOps != 0 {
				settle.Reset(cw.debounce)
			}
		case <-settle.C:
			cw.reloadConfig()
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			cw.logger.WithError(err).Warn("File watcher error")
		}
	}
}

func (cw *ConfigWatcher) reloadConfig() {
	next, err := LoadConfig(cw.path)
	if err != nil {
		cw.logger.WithError(err).Error("Reloaded configuration is invalid, keeping the running one")
		return
	}

	prev := cw.current.Swap(next)
	cw.logger.WithField("changed", changedSections(prev, next)).Info("Configuration reloaded")

	cw.mu.Lock()
	listeners := append(([]func(*models.Config))(nil), cw.listeners...)
	cw.mu.Unlock()

	for i, listener := range listeners {
		cw.notify(i, listener, next)
	}
}

func (cw *ConfigWatcher) notify(index int, listener func(*models.Config), cfg *models.Config) {
	defer func() {
		if r := recover(); r != nil {
			cw.logger.WithFields(logrus.Fields{"listener": index, "panic": r}).Error("Config listener panicked")
		}
	}()
	listener(cfg)
}

// changedSections names the hot-reloadable parts that differ.
func changedSections(prev, next *models.Config) []string {
	if prev == nil {
		return nil
	}
	var changed []string
	if prev.AI != next.AI {
		changed = append(changed, "ai")
	}
	if prev.Replies != next.Replies {
		changed = append(changed, "replies")
	}
	if prev.RetentionDays != next.RetentionDays {
		changed = append(changed, "retention_days")
	}
	return changed
}
