//go:build !linux && !windows

package transport

import "net"

// peerPID is unsupported here; callers get no caller context.
func peerPID(net.Conn) (int, bool) {
	return 0, false
}
