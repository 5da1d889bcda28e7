// ABOUTME: Agent lifecycle controller enforcing a single owner of the shared agent endpoint.
// ABOUTME: Switches backends by terminating every configured agent before starting the target.

package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/agentmux/internal/process"
	"github.com/2389/agentmux/internal/protocol"
)

// Timing controls the waits around process switches.
type Timing struct {
	SettleDelay  time.Duration // after terminating agents, before starting the target
	StartupDelay time.Duration // after starting an agent, before it is used
	PollInterval time.Duration // between termination checks
	PollAttempts int           // termination checks before giving up
}

// DefaultTiming returns the production waits.
func DefaultTiming() Timing {
	return Timing{
		SettleDelay:  500 * time.Millisecond,
		StartupDelay: 1500 * time.Millisecond,
		PollInterval: 500 * time.Millisecond,
		PollAttempts: 10,
	}
}

// IdentityLister asks whichever agent holds the backend endpoint for its keys.
type IdentityLister interface {
	RequestIdentities(ctx context.Context) ([]protocol.Identity, error)
}

// MappingLookup resolves a key to the agent it is known to live in.
type MappingLookup interface {
	Lookup(fingerprint, comment string) (string, bool)
}

// Controller owns the belief about which agent holds the backend endpoint
// and is the only component that starts or terminates agent processes.
// The current agent is advisory: it can go stale if agents are started or
// killed outside agentmux.
type Controller struct {
	defs   []Definition // priority order
	procs  process.Manager
	timing Timing
	logger *slog.Logger

	// switchMu serializes process changes so a background start never
	// lands between another switch's terminate and start.
	switchMu sync.Mutex

	mu      sync.RWMutex
	current string
}

// NewController creates a controller for the given agent definitions.
func NewController(defs []Definition, procs process.Manager, timing Timing, logger *slog.Logger) (*Controller, error) {
	if err := validateDefinitions(defs); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		defs:   SortByPriority(defs),
		procs:  procs,
		timing: timing,
		logger: logger.With("component", "lifecycle"),
	}, nil
}

// Definitions returns the configured agents in priority order.
func (c *Controller) Definitions() []Definition {
	out := make([]Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Get returns the definition for name.
func (c *Controller) Get(name string) (Definition, bool) {
	for _, d := range c.defs {
		if d.Name == name {
			return d, true
		}
	}
	return Definition{}, false
}

// Current returns the agent believed to hold the endpoint, or "" if unknown.
func (c *Controller) Current() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

func (c *Controller) setCurrent(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = name
}

// SwitchTo makes name the owner of the backend endpoint. Every configured
// agent is terminated first because any of them may hold the endpoint.
// It is a no-op when name is already current and force is false.
// Process-control failures are logged and the switch proceeds.
func (c *Controller) SwitchTo(ctx context.Context, name string, startOthers, force bool) error {
	target, ok := c.Get(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAgent, name)
	}

	previous := c.Current()
	if previous == name && !force {
		return nil
	}

	c.switchMu.Lock()
	defer c.switchMu.Unlock()

	c.logger.Info("=== SWITCHING AGENT ===", "from", previous, "to", name, "forced", force)

	if err := c.terminateAll(ctx); err != nil {
		return err
	}
	if err := sleep(ctx, c.timing.SettleDelay); err != nil {
		return err
	}

	started, err := c.startIfMissing(ctx, target)
	if err != nil {
		return err
	}
	if started {
		if err := sleep(ctx, c.timing.StartupDelay); err != nil {
			return err
		}
	}

	if startOthers {
		if err := c.startOthersLocked(ctx, name); err != nil {
			c.logger.Warn("starting remaining agents", "error", err)
		}
	}

	c.setCurrent(name)
	c.logger.Info("agent active", "agent", name)
	return nil
}

// EnsureRunning starts name if none of its processes exist, without touching
// other agents, and optimistically records it as current.
func (c *Controller) EnsureRunning(ctx context.Context, name string) error {
	def, ok := c.Get(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAgent, name)
	}

	c.switchMu.Lock()
	started, err := c.startIfMissing(ctx, def)
	c.switchMu.Unlock()
	if err != nil {
		return err
	}
	if started {
		if err := sleep(ctx, c.timing.StartupDelay); err != nil {
			return err
		}
	}

	c.setCurrent(name)
	return nil
}

// StartOthers starts every configured agent except the named one that is
// not already running. It does not change the current agent.
func (c *Controller) StartOthers(ctx context.Context, except string) error {
	c.switchMu.Lock()
	defer c.switchMu.Unlock()
	return c.startOthersLocked(ctx, except)
}

func (c *Controller) startOthersLocked(ctx context.Context, except string) error {
	var errs []error
	for _, d := range c.defs {
		if d.Name == except {
			continue
		}
		if _, err := c.startIfMissing(ctx, d); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// startIfMissing starts def unless one of its processes is already running.
// Start failures are logged; only cancellation is returned as an error.
func (c *Controller) startIfMissing(ctx context.Context, def Definition) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	running, err := c.procs.List(def.ProcessName)
	if err != nil {
		c.logger.Warn("listing agent processes", "agent", def.Name, "error", err)
	}
	if len(running) > 0 {
		return false, nil
	}
	if def.ExecutablePath == "" {
		c.logger.Warn("agent not running and no executable configured", "agent", def.Name)
		return false, nil
	}

	if err := c.procs.Start(ctx, def.ExecutablePath); err != nil {
		c.logger.Warn("starting agent", "agent", def.Name, "path", def.ExecutablePath, "error", err)
		return false, nil
	}
	c.logger.Info("agent started", "agent", def.Name)
	return true, nil
}

// terminateAll signals every configured agent and polls until they exit.
// Survivors are logged; only cancellation is returned as an error.
func (c *Controller) terminateAll(ctx context.Context) error {
	for _, d := range c.defs {
		n, err := c.procs.TerminateAll(d.ProcessName)
		if err != nil {
			c.logger.Warn("terminating agent", "agent", d.Name, "error", err)
		}
		if n > 0 {
			c.logger.Debug("terminated agent processes", "agent", d.Name, "count", n)
		}
	}

	for attempt := 0; attempt < c.timing.PollAttempts; attempt++ {
		survivors := c.survivors()
		if len(survivors) == 0 {
			return nil
		}
		if err := sleep(ctx, c.timing.PollInterval); err != nil {
			return err
		}
	}

	if survivors := c.survivors(); len(survivors) > 0 {
		c.logger.Warn("agents still running after terminate, continuing", "agents", survivors)
	}
	return nil
}

// survivors returns the names of configured agents that still have processes.
func (c *Controller) survivors() []string {
	var names []string
	for _, d := range c.defs {
		procs, err := c.procs.List(d.ProcessName)
		if err == nil && len(procs) > 0 {
			names = append(names, d.Name)
		}
	}
	return names
}

// DetectCurrent guesses which agent holds the endpoint at startup by asking
// it for identities and tallying which agent each known key maps to. The
// agent with the most votes becomes current; a tie or no votes leaves the
// current agent unknown.
func (c *Controller) DetectCurrent(ctx context.Context, backend IdentityLister, mappings MappingLookup) (string, bool) {
	ids, err := backend.RequestIdentities(ctx)
	if err != nil {
		c.logger.Info("backend not reachable, current agent unknown", "error", err)
		return "", false
	}

	votes := make(map[string]int)
	for _, id := range ids {
		name, ok := mappings.Lookup(id.Fingerprint(), id.Comment)
		if !ok {
			continue
		}
		if _, known := c.Get(name); known {
			votes[name]++
		}
	}

	winner, best, tied := "", 0, false
	for _, d := range c.defs {
		n := votes[d.Name]
		switch {
		case n > best:
			winner, best, tied = d.Name, n, false
		case n == best && n > 0:
			tied = true
		}
	}

	if best == 0 || tied {
		c.logger.Info("could not determine current agent", "identities", len(ids), "votes", votes)
		return "", false
	}

	c.setCurrent(winner)
	c.logger.Info("detected current agent", "agent", winner, "votes", best)
	return winner, true
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
