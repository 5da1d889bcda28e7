// ABOUTME: Backend client that dials whichever agent owns the backend endpoint
// ABOUTME: One connection per request, bounded by a connect timeout

package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2389/agentmux/internal/protocol"
)

// DefaultConnectTimeout bounds dialing the backend endpoint.
const DefaultConnectTimeout = 2 * time.Second

// ErrBackendUnavailable indicates the backend endpoint could not be reached.
var ErrBackendUnavailable = errors.New("backend agent unavailable")

// ErrAgentRefused indicates the backend answered with FAILURE or an
// unexpected message type.
var ErrAgentRefused = errors.New("backend agent refused request")

// Client talks to the backend endpoint.
type Client struct {
	path    string
	timeout time.Duration
}

// NewClient creates a client for the backend endpoint at path.
func NewClient(path string, connectTimeout time.Duration) *Client {
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	return &Client{path: path, timeout: connectTimeout}
}

// Path returns the backend endpoint.
func (c *Client) Path() string {
	return c.path
}

// Do sends req on a fresh connection and returns the reply.
func (c *Client) Do(ctx context.Context, req *protocol.Message) (*protocol.Message, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.timeout)
	conn, err := dialEndpoint(dialCtx, c.path)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrBackendUnavailable, c.path, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := protocol.WriteMessage(conn, req); err != nil {
		return nil, c.ioError(ctx, "sending request", err)
	}
	resp, err := protocol.ReadMessage(conn)
	if err != nil {
		return nil, c.ioError(ctx, "reading response", err)
	}
	return resp, nil
}

// ioError prefers the context error so cancellation stays distinguishable.
func (c *Client) ioError(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("%s: %w", op, err)
}

// RequestIdentities lists the keys offered by the backend.
func (c *Client) RequestIdentities(ctx context.Context) ([]protocol.Identity, error) {
	resp, err := c.Do(ctx, &protocol.Message{Type: protocol.TypeRequestIdentities})
	if err != nil {
		return nil, err
	}
	if resp.Type != protocol.TypeIdentitiesAnswer {
		return nil, fmt.Errorf("%w: identities answered with %s", ErrAgentRefused, resp.Type)
	}
	ids, err := protocol.ParseIdentitiesAnswer(resp.Payload)
	if err != nil {
		return nil, fmt.Errorf("parsing identities: %w", err)
	}
	return ids, nil
}

// Sign asks the backend to sign with the requested key and returns the
// signature blob.
func (c *Client) Sign(ctx context.Context, req *protocol.SignRequest) ([]byte, error) {
	resp, err := c.Do(ctx, req.Message())
	if err != nil {
		return nil, err
	}
	if resp.Type != protocol.TypeSignResponse {
		return nil, fmt.Errorf("%w: sign answered with %s", ErrAgentRefused, resp.Type)
	}
	sig, err := protocol.ParseSignResponse(resp.Payload)
	if err != nil {
		return nil, fmt.Errorf("parsing signature: %w", err)
	}
	return sig, nil
}

// Forward relays an arbitrary message and returns the reply unmodified.
func (c *Client) Forward(ctx context.Context, req *protocol.Message) (*protocol.Message, error) {
	return c.Do(ctx, req)
}
