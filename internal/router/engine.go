// ABOUTME: Routing engine: serializes every request under one lock and dispatches by message type
// ABOUTME: Identities and sign requests are routed; everything else is forwarded to the current backend

package router

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/2389/agentmux/internal/agent"
	"github.com/2389/agentmux/internal/hostmatch"
	"github.com/2389/agentmux/internal/picker"
	"github.com/2389/agentmux/internal/protocol"
	"github.com/2389/agentmux/internal/store"
	"github.com/2389/agentmux/internal/transport"
)

// persistTimeout bounds a best-effort mapping write.
const persistTimeout = 2 * time.Second

// ErrNoIdentities indicates no configured agent offered any identity.
var ErrNoIdentities = errors.New("no identities available from any agent")

// Backend talks to whichever agent owns the backend endpoint.
type Backend interface {
	RequestIdentities(ctx context.Context) ([]protocol.Identity, error)
	Sign(ctx context.Context, req *protocol.SignRequest) ([]byte, error)
	Forward(ctx context.Context, req *protocol.Message) (*protocol.Message, error)
}

// Lifecycle switches which agent owns the backend endpoint.
type Lifecycle interface {
	Definitions() []agent.Definition
	Current() string
	SwitchTo(ctx context.Context, name string, startOthers, force bool) error
	EnsureRunning(ctx context.Context, name string) error
	StartOthers(ctx context.Context, except string) error
}

// FailureCache remembers (fingerprint, agent) pairs that recently failed.
type FailureCache interface {
	IsCached(fingerprint, agent string) bool
	CacheFailure(fingerprint, agent string)
	ClearFailure(fingerprint, agent string)
}

// CallerResolver derives the ssh connection context of a caller process.
type CallerResolver interface {
	Resolve(pid int) (*hostmatch.Context, bool)
}

// Options are the settings that can change while the engine runs.
type Options struct {
	DefaultAgent        string
	HostPatterns        []hostmatch.Pattern
	KeySelection        bool
	KeySelectionTimeout time.Duration
}

// Config wires an Engine. Lifecycle, Backend and Failures are required.
type Config struct {
	Lifecycle Lifecycle
	Backend   Backend
	Failures  FailureCache
	Mappings  *FingerprintMap // seeded mappings; created when nil
	Store     store.Store     // optional persistence
	Picker    picker.Picker   // optional; defaults to picker.First
	Resolver  CallerResolver  // optional caller context
	Options   Options
	Logger    *slog.Logger
}

type handlerFunc func(ctx context.Context, sess *transport.Session, req *protocol.Message) (*protocol.Message, error)

// Engine routes agent-protocol requests between backend agents.
type Engine struct {
	lifecycle Lifecycle
	backend   Backend
	failures  FailureCache
	mappings  *FingerprintMap
	store     store.Store
	picker    picker.Picker
	resolver  CallerResolver
	logger    *slog.Logger

	optsMu sync.RWMutex
	opts   Options

	// mu serializes all request handling; switching agents is a global
	// side effect on OS state.
	mu         sync.Mutex
	identities *identitySet
	scanned    bool
	handlers   map[protocol.MessageType]handlerFunc

	bgCtx         context.Context
	bgCancel      context.CancelFunc
	background    sync.WaitGroup
	othersPending atomic.Bool
}

// New creates an engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Lifecycle == nil || cfg.Backend == nil || cfg.Failures == nil {
		return nil, errors.New("router: lifecycle, backend and failure cache are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mappings := cfg.Mappings
	if mappings == nil {
		mappings = NewFingerprintMap()
	}
	pk := cfg.Picker
	if pk == nil {
		pk = picker.First{}
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	e := &Engine{
		lifecycle:  cfg.Lifecycle,
		backend:    cfg.Backend,
		failures:   cfg.Failures,
		mappings:   mappings,
		store:      cfg.Store,
		picker:     pk,
		resolver:   cfg.Resolver,
		logger:     logger.With("component", "router"),
		opts:       cfg.Options,
		identities: newIdentitySet(),
		bgCtx:      bgCtx,
		bgCancel:   bgCancel,
	}
	e.handlers = map[protocol.MessageType]handlerFunc{
		protocol.TypeRequestIdentities: e.handleRequestIdentities,
		protocol.TypeSignRequest:       e.handleSignRequest,
	}
	return e, nil
}

// Mappings returns the live fingerprint map.
func (e *Engine) Mappings() *FingerprintMap {
	return e.mappings
}

// Options returns the current runtime options.
func (e *Engine) Options() Options {
	e.optsMu.RLock()
	defer e.optsMu.RUnlock()
	return e.opts
}

// UpdateOptions replaces the runtime options, for example after a config reload.
func (e *Engine) UpdateOptions(opts Options) {
	e.optsMu.Lock()
	e.opts = opts
	e.optsMu.Unlock()
	e.logger.Info("routing options updated",
		"default_agent", opts.DefaultAgent,
		"host_patterns", len(opts.HostPatterns),
		"key_selection", opts.KeySelection)
}

// Handle serves one request. Routing failures become FAILURE replies;
// only cancellation and malformed requests are returned as errors.
func (e *Engine) Handle(ctx context.Context, sess *transport.Session, req *protocol.Message) (*protocol.Message, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, ok := e.handlers[req.Type]
	if !ok {
		h = e.forward
	}
	return h(ctx, sess, req)
}

// invalidatesScan lists forwarded requests that change an agent's key set.
var invalidatesScan = map[protocol.MessageType]bool{
	protocol.TypeAddIdentity:         true,
	protocol.TypeRemoveIdentity:      true,
	protocol.TypeRemoveAllIdentities: true,
	protocol.TypeAddIDConstrained:    true,
}

// forward relays req to the current backend unmodified.
func (e *Engine) forward(ctx context.Context, _ *transport.Session, req *protocol.Message) (*protocol.Message, error) {
	resp, err := e.backend.Forward(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.logger.Warn("forwarding request failed", "type", req.Type, "agent", e.lifecycle.Current(), "error", err)
		return protocol.NewFailure(), nil
	}

	if invalidatesScan[req.Type] && resp.Type == protocol.TypeSuccess {
		e.scanned = false
		e.logger.Debug("key set changed, identities will be rescanned", "type", req.Type)
	}
	return resp, nil
}

// Close stops background work and waits for it to finish.
func (e *Engine) Close() {
	e.bgCancel()
	e.background.Wait()
}

// startOthersAsync starts the remaining agents without holding the engine
// lock. At most one such task runs at a time.
func (e *Engine) startOthersAsync(active string) {
	if !e.othersPending.CompareAndSwap(false, true) {
		return
	}
	e.background.Add(1)
	go func() {
		defer e.background.Done()
		defer e.othersPending.Store(false)
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("starting remaining agents panicked", "panic", r)
			}
		}()

		if err := e.lifecycle.StartOthers(e.bgCtx, active); err != nil && e.bgCtx.Err() == nil {
			e.logger.Warn("starting remaining agents", "error", err)
		}
	}()
}
