//go:build linux

package proxy

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// readCommandLine returns the argument vector of pid from procfs.
func readCommandLine(pid int) (commandLine, error) {
	raw, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/cmdline")
	if err != nil {
		return commandLine{}, fmt.Errorf("reading cmdline: %w", err)
	}
	raw = bytes.TrimRight(raw, "\x00")
	if len(raw) == 0 {
		return commandLine{}, fmt.Errorf("empty cmdline for pid %d", pid)
	}
	return commandLine{argv: strings.Split(string(raw), "\x00")}, nil
}
