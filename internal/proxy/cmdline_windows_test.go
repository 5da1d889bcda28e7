//go:build windows

package proxy

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCommandLine_CurrentProcess(t *testing.T) {
	line, err := readCommandLine(os.Getpid())
	require.NoError(t, err)
	assert.Nil(t, line.argv)

	exe, err := os.Executable()
	require.NoError(t, err)
	assert.Contains(t, strings.ToLower(line.raw), strings.ToLower(strings.TrimSuffix(filepath.Base(exe), ".exe")))
}
