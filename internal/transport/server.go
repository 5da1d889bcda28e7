// ABOUTME: Proxy endpoint server: accepts callers and runs one request loop per connection
// ABOUTME: Bounds concurrent connections and closes them all on shutdown

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/agentmux/internal/protocol"
)

// DefaultMaxConnections caps concurrently served callers when unset.
const DefaultMaxConnections = 16

// Session describes one caller connection.
type Session struct {
	ID        string
	PeerPID   int // 0 when unknown
	StartedAt time.Time
}

// Handler answers one request. Returning an error closes the connection
// without a reply; routing failures must be returned as FAILURE messages.
type Handler interface {
	Handle(ctx context.Context, sess *Session, req *protocol.Message) (*protocol.Message, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, sess *Session, req *protocol.Message) (*protocol.Message, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, sess *Session, req *protocol.Message) (*protocol.Message, error) {
	return f(ctx, sess, req)
}

// ServerConfig configures a Server.
type ServerConfig struct {
	Path           string
	MaxConnections int
}

// Server serves the agent protocol on the proxy endpoint.
type Server struct {
	path    string
	handler Handler
	logger  *slog.Logger
	slots   chan struct{}
	ready   chan struct{}

	activeConnections sync.WaitGroup
}

// NewServer creates a server for cfg.Path. Call Serve to start it.
func NewServer(cfg ServerConfig, handler Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	limit := cfg.MaxConnections
	if limit <= 0 {
		limit = DefaultMaxConnections
	}
	return &Server{
		path:    cfg.Path,
		handler: handler,
		logger:  logger.With("component", "transport"),
		slots:   make(chan struct{}, limit),
		ready:   make(chan struct{}),
	}
}

// Ready is closed once the endpoint is listening.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Serve listens on the endpoint and blocks until ctx is cancelled. Live
// connections are closed on cancellation and Serve waits for their
// goroutines before returning.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := listenEndpoint(s.path)
	if err != nil {
		return err
	}
	defer func() {
		listener.Close()
		cleanupEndpoint(s.path)
	}()

	// Unblock Accept when the context is cancelled.
	stop := context.AfterFunc(ctx, func() { listener.Close() })
	defer stop()

	s.logger.Info("proxy listening", "endpoint", s.path, "max_connections", cap(s.slots))
	close(s.ready)

	for {
		select {
		case s.slots <- struct{}{}:
		case <-ctx.Done():
			s.activeConnections.Wait()
			return nil
		}

		conn, err := listener.Accept()
		if err != nil {
			<-s.slots
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.activeConnections.Add(1)
		go func() {
			defer func() {
				<-s.slots
				s.activeConnections.Done()
			}()
			s.handleConnection(ctx, conn)
		}()
	}

	s.activeConnections.Wait()
	return nil
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	sess := &Session{ID: uuid.NewString(), StartedAt: time.Now()}
	if pid, ok := peerPID(conn); ok {
		sess.PeerPID = pid
	}
	logger := s.logger.With("session", sess.ID[:8], "peer_pid", sess.PeerPID)
	logger.Debug("caller connected")

	for {
		req, err := protocol.ReadMessage(conn)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				logger.Debug("caller disconnected")
			case ctx.Err() != nil:
			case errors.Is(err, protocol.ErrMalformed):
				logger.Warn("closing connection after malformed message", "error", err)
			default:
				logger.Debug("read failed", "error", err)
			}
			return
		}

		resp, err := s.handler.Handle(ctx, sess, req)
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn("request aborted", "type", req.Type, "error", err)
			}
			return
		}

		if err := protocol.WriteMessage(conn, resp); err != nil {
			logger.Debug("write failed", "error", fmt.Errorf("writing %s: %w", resp.Type, err))
			return
		}
	}
}
