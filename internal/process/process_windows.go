//go:build windows

package process

import (
	"os"
	"syscall"
)

const createNewProcessGroup = 0x00000200

func detachedAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{CreationFlags: createNewProcessGroup}
}

// terminate kills the process; Windows has no SIGTERM for GUI applications.
func terminate(p *os.Process) error {
	return p.Kill()
}
