// ABOUTME: Picker abstraction for choosing among candidate identities
// ABOUTME: First is the default used when no person is available to ask

package picker

import (
	"context"
	"time"

	"github.com/2389/agentmux/internal/protocol"
)

// Request describes one ambiguous identities request.
type Request struct {
	Host       string
	Repository string
	Candidates []protocol.Identity
	Timeout    time.Duration
}

// Picker chooses which candidates to advertise. Implementations return at
// least one candidate whenever Candidates is non-empty.
type Picker interface {
	Pick(ctx context.Context, req Request) ([]protocol.Identity, error)
}

// Func adapts a function to Picker.
type Func func(ctx context.Context, req Request) ([]protocol.Identity, error)

// Pick calls f.
func (f Func) Pick(ctx context.Context, req Request) ([]protocol.Identity, error) {
	return f(ctx, req)
}

// First always picks the first candidate.
type First struct{}

// Pick returns the first candidate.
func (First) Pick(_ context.Context, req Request) ([]protocol.Identity, error) {
	return firstOf(req.Candidates), nil
}

func firstOf(ids []protocol.Identity) []protocol.Identity {
	if len(ids) == 0 {
		return nil
	}
	return ids[:1]
}
