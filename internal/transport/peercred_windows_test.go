//go:build windows

package transport

import (
	"context"
	"fmt"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeerPID_NamedPipe(t *testing.T) {
	path := fmt.Sprintf(`\\.\pipe\agentmux-test-%d-%d`, os.Getpid(), time.Now().UnixNano())
	ln, err := listenEndpoint(path)
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := dialEndpoint(ctx, path)
	require.NoError(t, err)
	defer client.Close()

	select {
	case conn := <-accepted:
		defer conn.Close()
		pid, ok := peerPID(conn)
		require.True(t, ok)
		assert.Equal(t, os.Getpid(), pid)
	case <-ctx.Done():
		t.Fatal("pipe connection was not accepted")
	}
}
