//go:build !linux && !windows

package proxy

import "errors"

func readCommandLine(int) (commandLine, error) {
	return commandLine{}, errors.New("command lines are not available on this platform")
}
