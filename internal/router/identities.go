// ABOUTME: REQUEST_IDENTITIES handling: full agent scan, merged answer and caller-biased selection
// ABOUTME: A host pattern match advertises one key; ambiguous callers may be asked to pick

package router

import (
	"context"
	"fmt"

	"github.com/2389/agentmux/internal/hostmatch"
	"github.com/2389/agentmux/internal/picker"
	"github.com/2389/agentmux/internal/protocol"
	"github.com/2389/agentmux/internal/transport"
)

func (e *Engine) handleRequestIdentities(ctx context.Context, sess *transport.Session, _ *protocol.Message) (*protocol.Message, error) {
	if !e.scanned || e.identities.len() == 0 {
		if err := e.scan(ctx); err != nil {
			return nil, err
		}
	}

	ids := e.identities.list()
	if len(ids) == 0 {
		e.logger.Warn("answering identities with failure", "error", ErrNoIdentities)
		return protocol.NewFailure(), nil
	}

	return protocol.NewIdentitiesAnswer(e.selectForCaller(ctx, sess, ids)), nil
}

// scan asks every agent, in priority order, for its identities and merges
// them. Keys not yet mapped are mapped to the first agent that offered them.
// Only cancellation is returned as an error.
func (e *Engine) scan(ctx context.Context) error {
	e.logger.Info("scanning agents for identities")

	merged := newIdentitySet()
	for _, def := range e.lifecycle.Definitions() {
		if err := e.activate(ctx, def.Name); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.logger.Warn("activating agent for scan", "agent", def.Name, "error", err)
			continue
		}

		ids, err := e.backend.RequestIdentities(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.logger.Warn("listing identities", "agent", def.Name, "error", err)
			continue
		}

		added := 0
		for _, id := range ids {
			if merged.add(id) {
				added++
			}
			if e.mappings.SetIfAbsent(id.Fingerprint(), def.Name) {
				e.logger.Debug("mapped new key", "fingerprint", id.Fingerprint(), "comment", id.Comment, "agent", def.Name)
			}
		}
		e.logger.Info("agent identities", "agent", def.Name, "offered", len(ids), "new", added)
	}

	e.identities = merged
	e.scanned = true
	e.logger.Info("scan complete", "identities", merged.len())
	return nil
}

// activate makes name reachable on the backend endpoint, avoiding a full
// switch when it is already believed current.
func (e *Engine) activate(ctx context.Context, name string) error {
	if e.lifecycle.Current() == name {
		return e.lifecycle.EnsureRunning(ctx, name)
	}
	return e.lifecycle.SwitchTo(ctx, name, false, false)
}

// selectForCaller narrows the merged identities using the caller's ssh
// command line. The most specific matching host pattern wins when its key
// is available. With no matching pattern, a known host and key selection
// enabled, the picker chooses. Otherwise every identity is offered.
func (e *Engine) selectForCaller(ctx context.Context, sess *transport.Session, ids []protocol.Identity) []protocol.Identity {
	if e.resolver == nil || sess == nil || sess.PeerPID <= 0 {
		return ids
	}
	caller, ok := e.resolver.Resolve(sess.PeerPID)
	if !ok {
		return ids
	}

	opts := e.Options()
	if pattern, ok := hostmatch.BestMatch(caller, opts.HostPatterns); ok {
		for _, id := range ids {
			if id.Fingerprint() == pattern.Fingerprint {
				e.logger.Info("host pattern selected key",
					"host", caller.Host, "repository", caller.Repository,
					"pattern", pattern.Pattern, "fingerprint", pattern.Fingerprint)
				return []protocol.Identity{id}
			}
		}
		e.logger.Warn("host pattern key not offered by any agent", "pattern", pattern.Pattern, "fingerprint", pattern.Fingerprint)
		return ids
	}

	if caller.Host == "" || !opts.KeySelection || len(ids) <= 1 {
		return ids
	}

	chosen, err := e.picker.Pick(ctx, picker.Request{
		Host:       caller.Host,
		Repository: caller.Repository,
		Candidates: ids,
		Timeout:    opts.KeySelectionTimeout,
	})
	if err != nil || len(chosen) == 0 {
		if err != nil && ctx.Err() == nil {
			e.logger.Warn("key picker failed, offering all keys", "error", fmt.Errorf("picking for %s: %w", caller.Host, err))
		}
		return ids
	}
	e.logger.Info("key selection", "host", caller.Host, "offered", len(chosen), "of", len(ids))
	return chosen
}
