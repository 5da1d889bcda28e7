//go:build windows

// ABOUTME: Named pipe endpoints for the proxy and the backend agent on Windows
// ABOUTME: Pipe names look like \\.\pipe\openssh-ssh-agent

package transport

import (
	"context"
	"fmt"
	"net"

	winio "github.com/tailscale/go-winio"
)

// ownerOnly grants full access to the creating user and nobody else.
const ownerOnly = "D:P(A;;GA;;;OW)"

func listenEndpoint(path string) (net.Listener, error) {
	ln, err := winio.ListenPipe(path, &winio.PipeConfig{
		SecurityDescriptor: ownerOnly,
		InputBufferSize:    64 * 1024,
		OutputBufferSize:   64 * 1024,
	})
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", path, err)
	}
	return ln, nil
}

func cleanupEndpoint(string) {}

func dialEndpoint(ctx context.Context, path string) (net.Conn, error) {
	return winio.DialPipeContext(ctx, path)
}
