//go:build windows

package transport

import (
	"net"

	"golang.org/x/sys/windows"
)

// peerPID asks the pipe server end for the connecting client's process ID.
func peerPID(conn net.Conn) (int, bool) {
	f, ok := conn.(interface{ Fd() uintptr })
	if !ok {
		return 0, false
	}
	var pid uint32
	if err := windows.GetNamedPipeClientProcessId(windows.Handle(f.Fd()), &pid); err != nil {
		return 0, false
	}
	return int(pid), true
}
