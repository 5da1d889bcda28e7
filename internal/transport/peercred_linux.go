//go:build linux

// ABOUTME: Reads the connecting process ID from a Unix socket via SO_PEERCRED
// ABOUTME: Used to find the ssh command line behind a proxy connection

package transport

import (
	"net"

	"golang.org/x/sys/unix"
)

func peerPID(conn net.Conn) (int, bool) {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return 0, false
	}
	raw, err := uc.SyscallConn()
	if err != nil {
		return 0, false
	}

	var cred *unix.Ucred
	var credErr error
	err = raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if err != nil || credErr != nil || cred == nil {
		return 0, false
	}
	return int(cred.Pid), true
}
