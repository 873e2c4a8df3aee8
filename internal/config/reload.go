package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/codemusic/safetyscribe/internal/log"
)

// Holder holds configuration with atomic reloading capability. It provides
// thread-safe access and hot reloading from the config file.
type Holder struct {
	mu         sync.RWMutex
	current    Config
	configPath string
	logger     zerolog.Logger

	reloadMu        sync.RWMutex
	reloadListeners []chan<- Config
}

// NewHolder creates a configuration holder around the initial config.
func NewHolder(initial Config, configPath string) *Holder {
	return &Holder{
		current:    initial,
		configPath: configPath,
		logger:     log.WithComponent("config"),
	}
}

// Get returns the current configuration (thread-safe read).
func (h *Holder) Get() Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Subscribe registers a channel that receives every successfully reloaded
// configuration. Sends are non-blocking; slow listeners miss updates.
func (h *Holder) Subscribe(ch chan<- Config) {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()
	h.reloadListeners = append(h.reloadListeners, ch)
}

// Reload re-reads the config file and validates the result. On any failure
// the old configuration is kept, so updates are all-or-nothing.
func (h *Holder) Reload(_ context.Context) error {
	newCfg, err := Load(h.configPath)
	if err != nil {
		h.logger.Error().Err(err).Str("event", "config.reload_failed").Msg("failed to reload configuration")
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	old := h.current
	h.current = newCfg
	h.mu.Unlock()

	// Runtime-adjustable knobs take effect immediately.
	if old.LogLevel != newCfg.LogLevel {
		log.SetLevel(newCfg.LogLevel)
	}

	h.notifyListeners(newCfg)
	h.logger.Info().Str("event", "config.reloaded").Msg("configuration reloaded")
	return nil
}

func (h *Holder) notifyListeners(cfg Config) {
	h.reloadMu.RLock()
	defer h.reloadMu.RUnlock()
	for _, ch := range h.reloadListeners {
		select {
		case ch <- cfg:
		default:
		}
	}
}

// StartWatcher watches the config file and reloads on change. A missing or
// empty path is a no-op: config then comes from ENV only. Best-effort; the
// daemon runs fine without the watcher.
func (h *Holder) StartWatcher(ctx context.Context) error {
	if h.configPath == "" {
		h.logger.Debug().Str("event", "config.watch_skipped").Msg("no config file, watcher not started")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory: editors replace files, which drops the watch on
	// the file itself.
	if err := watcher.Add(filepath.Dir(h.configPath)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}

	go func() {
		defer func() { _ = watcher.Close() }()
		var debounce *time.Timer
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(h.configPath) {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				// Coalesce editor write bursts.
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(200*time.Millisecond, func() {
					_ = h.Reload(ctx)
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				h.logger.Warn().Err(err).Str("event", "config.watch_error").Msg("config watcher error")
			}
		}
	}()

	h.logger.Info().Str("event", "config.watching").Str("path", h.configPath).Msg("watching config file")
	return nil
}
