// ABOUTME: Config file watcher that applies routing option changes while running
// ABOUTME: Watches the parent directory so editors that replace the file are seen

package proxy

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/2389/agentmux/internal/config"
)

// reloadDebounce coalesces the burst of events one save produces.
const reloadDebounce = 200 * time.Millisecond

// watchConfig reloads host patterns, the default agent and key selection
// whenever the config file changes. It returns when ctx is done.
func (p *Proxy) watchConfig(ctx context.Context) error {
	if p.configPath == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(p.configPath)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(target), err)
	}
	p.logger.Debug("watching config", "path", target)

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			pending = timer.C
		case <-pending:
			pending = nil
			p.reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.logger.Warn("config watcher error", "error", err)
		}
	}
}

// reload applies the reloadable settings from the config file. Invalid
// files are logged and ignored.
func (p *Proxy) reload() {
	cfg, err := config.Load(p.configPath)
	if err != nil {
		p.logger.Warn("config reload failed, keeping current settings", "error", err)
		return
	}
	if restartRequired(p.config, cfg) {
		p.logger.Warn("agents, endpoints or database changed; restart to apply")
	}
	p.engine.UpdateOptions(routerOptions(cfg))
}

func restartRequired(old, updated *config.Config) bool {
	return old.Proxy.Endpoint != updated.Proxy.Endpoint ||
		old.Proxy.BackendEndpoint != updated.Proxy.BackendEndpoint ||
		old.Database.Path != updated.Database.Path ||
		!slices.Equal(old.Agents, updated.Agents)
}
