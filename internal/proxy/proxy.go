// ABOUTME: Proxy orchestrator that wires the controller, backend, store and routing engine
// ABOUTME: Runs startup detection, serves the proxy endpoint and shuts everything down in order

package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/agentmux/internal/agent"
	"github.com/2389/agentmux/internal/config"
	"github.com/2389/agentmux/internal/failcache"
	"github.com/2389/agentmux/internal/hostmatch"
	"github.com/2389/agentmux/internal/picker"
	"github.com/2389/agentmux/internal/process"
	"github.com/2389/agentmux/internal/router"
	"github.com/2389/agentmux/internal/store"
	"github.com/2389/agentmux/internal/transport"
)

// detectTimeout bounds the startup probe of the backend endpoint.
const detectTimeout = 5 * time.Second

// Proxy runs agentmux.
type Proxy struct {
	config     *config.Config
	configPath string

	controller *agent.Controller
	backend    *transport.Client
	failures   *failcache.Cache
	store      store.Store
	engine     *router.Engine
	server     *transport.Server
	logger     *slog.Logger
}

// New builds a proxy from cfg. configPath is watched for routing option
// changes while running; pass "" to disable reloading.
func New(cfg *config.Config, configPath string, logger *slog.Logger) (*Proxy, error) {
	if logger == nil {
		logger = slog.Default()
	}
	procs := process.NewOS(logger)

	controller, err := agent.NewController(definitions(cfg), procs, timing(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("creating agent controller: %w", err)
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}

	mappings, err := seedMappings(cfg, s)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	backend := transport.NewClient(cfg.Proxy.BackendEndpoint, cfg.Proxy.ConnectTimeout)
	failures := failcache.New(cfg.FailureTTL())

	engine, err := router.New(router.Config{
		Lifecycle: controller,
		Backend:   backend,
		Failures:  failures,
		Mappings:  mappings,
		Store:     s,
		Picker:    newPicker(cfg),
		Resolver:  newCallerResolver(procs, logger),
		Options:   routerOptions(cfg),
		Logger:    logger,
	})
	if err != nil {
		failures.Close()
		_ = s.Close()
		return nil, fmt.Errorf("creating routing engine: %w", err)
	}

	p := &Proxy{
		config:     cfg,
		configPath: configPath,
		controller: controller,
		backend:    backend,
		failures:   failures,
		store:      s,
		engine:     engine,
		logger:     logger.With("component", "proxy"),
	}
	p.server = transport.NewServer(transport.ServerConfig{
		Path:           cfg.Proxy.Endpoint,
		MaxConnections: cfg.Proxy.MaxConnections,
	}, engine, logger)
	return p, nil
}

// Ready is closed once the proxy endpoint is listening.
func (p *Proxy) Ready() <-chan struct{} {
	return p.server.Ready()
}

// Run detects the current agent, serves until ctx is cancelled or the
// server fails, and then shuts down.
func (p *Proxy) Run(ctx context.Context) error {
	p.detectCurrent(ctx)

	watchCtx, stopWatch := context.WithCancel(ctx)
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		if err := p.watchConfig(watchCtx); err != nil {
			p.logger.Warn("config watcher stopped", "error", err)
		}
	}()

	p.logger.Info("serving",
		"endpoint", p.config.Proxy.Endpoint,
		"backend", p.config.Proxy.BackendEndpoint,
		"agents", len(p.config.Agents))
	serverErr := p.server.Serve(ctx)
	if serverErr != nil {
		p.logger.Error("server error", "error", serverErr)
	}

	stopWatch()
	<-watchDone

	shutdownErr := p.Shutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// Shutdown waits for background agent starts and releases the cache and store.
// The endpoint itself is closed by Run when its context ends.
func (p *Proxy) Shutdown() error {
	p.logger.Info("shutting down proxy")

	p.engine.Close()
	p.failures.Close()

	var errs []error
	errs = appendCloseError(errs, "store close", p.store.Close())
	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	return nil
}

func (p *Proxy) detectCurrent(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, detectTimeout)
	defer cancel()
	p.controller.DetectCurrent(ctx, p.backend, p.engine.Mappings())
}

// appendCloseError appends a labeled error if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

func definitions(cfg *config.Config) []agent.Definition {
	defs := make([]agent.Definition, 0, len(cfg.Agents))
	for _, a := range cfg.Agents {
		defs = append(defs, agent.Definition{
			Name:           a.Name,
			ProcessName:    a.ProcessName,
			ExecutablePath: a.ExecutablePath,
			Priority:       a.Priority,
		})
	}
	return defs
}

func timing(cfg *config.Config) agent.Timing {
	return agent.Timing{
		SettleDelay:  cfg.Lifecycle.SettleDelay,
		StartupDelay: cfg.Lifecycle.StartupDelay,
		PollInterval: cfg.Lifecycle.TerminatePollInterval,
		PollAttempts: cfg.Lifecycle.TerminatePollAttempts,
	}
}

func routerOptions(cfg *config.Config) router.Options {
	patterns := make([]hostmatch.Pattern, 0, len(cfg.HostPatterns))
	for _, hp := range cfg.HostPatterns {
		patterns = append(patterns, hostmatch.Pattern{
			Pattern:     hp.Pattern,
			Fingerprint: hp.Fingerprint,
			Description: hp.Description,
		})
	}
	return router.Options{
		DefaultAgent:        cfg.DefaultAgent,
		HostPatterns:        patterns,
		KeySelection:        cfg.KeySelection.Enabled,
		KeySelectionTimeout: cfg.KeySelection.Timeout,
	}
}

// seedMappings builds the fingerprint map from config key_mappings and then
// the persisted mappings, which win on conflict.
func seedMappings(cfg *config.Config, s store.Store) (*router.FingerprintMap, error) {
	m := router.NewFingerprintMap()
	for _, km := range cfg.KeyMappings {
		if km.Fingerprint != "" {
			m.Set(km.Fingerprint, km.Agent)
		} else {
			m.Set(router.CommentKey(km.Comment), km.Agent)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	persisted, err := s.ListMappings(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading persisted mappings: %w", err)
	}
	for _, km := range persisted {
		m.Set(km.Fingerprint, km.Agent)
	}
	return m, nil
}

func newPicker(cfg *config.Config) picker.Picker {
	if !cfg.KeySelection.Enabled {
		return picker.First{}
	}
	if t, ok := picker.NewStdioTerminal(); ok {
		return t
	}
	return picker.First{}
}
