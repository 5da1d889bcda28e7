// ABOUTME: SIGN_REQUEST handling: resolve the target agent, then fail over by priority
// ABOUTME: Successful signs update the mapping, persist it and clear the failure entry

package router

import (
	"context"
	"fmt"

	"github.com/2389/agentmux/internal/protocol"
	"github.com/2389/agentmux/internal/store"
	"github.com/2389/agentmux/internal/transport"
)

func (e *Engine) handleSignRequest(ctx context.Context, _ *transport.Session, req *protocol.Message) (*protocol.Message, error) {
	sr, err := protocol.ParseSignRequest(req.Payload)
	if err != nil {
		return nil, fmt.Errorf("parsing sign request: %w", err)
	}

	fp := sr.Fingerprint()
	comment := e.identities.comment(fp)
	current := e.lifecycle.Current()
	target := e.resolveTarget(fp, comment, current)
	logger := e.logger.With("fingerprint", fp)
	logger.Info("sign request", "comment", comment, "target", target, "current", current)

	tried := make(map[string]bool)

	if target != "" {
		tried[target] = true
		if e.failures.IsCached(fp, target) {
			logger.Debug("skipping recently failed agent", "agent", target)
		} else {
			sig, err := e.attempt(ctx, target, sr, target != current)
			if err != nil && ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if err == nil {
				return e.signed(ctx, fp, comment, target, sig), nil
			}
		}
	}

	for _, def := range e.lifecycle.Definitions() {
		if tried[def.Name] {
			continue
		}
		tried[def.Name] = true
		if e.failures.IsCached(fp, def.Name) {
			logger.Debug("skipping recently failed agent", "agent", def.Name)
			continue
		}

		sig, err := e.attempt(ctx, def.Name, sr, true)
		if err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err == nil {
			return e.signed(ctx, fp, comment, def.Name, sig), nil
		}
	}

	logger.Warn("no agent could sign", "tried", len(tried))
	return protocol.NewFailure(), nil
}

// resolveTarget picks the first agent to try: the mapped agent, else the
// current agent, else the configured default. Unconfigured names are ignored.
func (e *Engine) resolveTarget(fingerprint, comment, current string) string {
	candidates := []string{current, e.Options().DefaultAgent}
	if mapped, ok := e.mappings.Lookup(fingerprint, comment); ok {
		candidates = append([]string{mapped}, candidates...)
	}
	for _, name := range candidates {
		if name != "" && e.configured(name) {
			return name
		}
	}
	return ""
}

func (e *Engine) configured(name string) bool {
	for _, d := range e.lifecycle.Definitions() {
		if d.Name == name {
			return true
		}
	}
	return false
}

// attempt signs with name, force-switching to it first when asked. Any
// failure other than cancellation is recorded in the failure cache.
func (e *Engine) attempt(ctx context.Context, name string, sr *protocol.SignRequest, switchFirst bool) ([]byte, error) {
	fp := sr.Fingerprint()

	if switchFirst {
		if err := e.lifecycle.SwitchTo(ctx, name, false, true); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.logger.Warn("switching agent for sign", "agent", name, "fingerprint", fp, "error", err)
			e.failures.CacheFailure(fp, name)
			return nil, err
		}
	}

	sig, err := e.backend.Sign(ctx, sr)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.logger.Info("agent could not sign", "agent", name, "fingerprint", fp, "error", err)
		e.failures.CacheFailure(fp, name)
		return nil, err
	}
	return sig, nil
}

// signed records a successful sign and builds the reply. Persistence is
// best-effort; the in-memory mapping stays authoritative.
func (e *Engine) signed(ctx context.Context, fp, comment, name string, sig []byte) *protocol.Message {
	e.mappings.Set(fp, name)
	e.failures.ClearFailure(fp, name)
	e.persist(ctx, &store.KeyMapping{Fingerprint: fp, Comment: comment, Agent: name})
	e.startOthersAsync(name)

	e.logger.Info("signed", "agent", name, "fingerprint", fp)
	return protocol.NewSignResponse(sig)
}

func (e *Engine) persist(ctx context.Context, m *store.KeyMapping) {
	if e.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := e.store.UpsertMapping(ctx, m); err != nil {
		e.logger.Warn("persisting key mapping", "fingerprint", m.Fingerprint, "agent", m.Agent, "error", err)
	}
}
