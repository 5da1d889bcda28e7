//go:build windows

package proxy

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// readCommandLine returns the command line of pid as the process received
// it. Windows keeps a single string, so it is tokenized later.
func readCommandLine(pid int) (commandLine, error) {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return commandLine{}, fmt.Errorf("opening process %d: %w", pid, err)
	}
	defer windows.CloseHandle(h)

	buf := make([]byte, 512)
	for {
		var n uint32
		err = windows.NtQueryInformationProcess(h, windows.ProcessCommandLineInformation,
			unsafe.Pointer(&buf[0]), uint32(len(buf)), &n)
		if errors.Is(err, windows.STATUS_INFO_LENGTH_MISMATCH) && int(n) > len(buf) {
			buf = make([]byte, n)
			continue
		}
		if err != nil {
			return commandLine{}, fmt.Errorf("querying command line of %d: %w", pid, err)
		}
		break
	}

	line := (*windows.NTUnicodeString)(unsafe.Pointer(&buf[0])).String()
	if line == "" {
		return commandLine{}, fmt.Errorf("empty command line for pid %d", pid)
	}
	return commandLine{raw: line}, nil
}
