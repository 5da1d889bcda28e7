// ABOUTME: Tests for OS process primitives
// ABOUTME: Uses the test binary itself as a known running process

package process

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "1password", NormalizeName("1Password.exe"))
	assert.Equal(t, "ssh-agent", NormalizeName("/usr/bin/ssh-agent"))
	assert.Equal(t, "bitwarden", NormalizeName(`Bitwarden`))
}

func TestOS_ListFindsSelf(t *testing.T) {
	mgr := NewOS(nil)

	self, err := mgr.Find(os.Getpid())
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), self.PID)

	procs, err := mgr.List(self.Executable)
	require.NoError(t, err)

	found := false
	for _, p := range procs {
		if p.PID == os.Getpid() {
			found = true
		}
	}
	assert.True(t, found, "expected to find the test process by its own name")
}

func TestOS_ListUnknownName(t *testing.T) {
	procs, err := NewOS(nil).List("agentmux-no-such-process-name")
	require.NoError(t, err)
	assert.Empty(t, procs)
}

func TestOS_TerminateAllNoMatches(t *testing.T) {
	n, err := NewOS(nil).TerminateAll("agentmux-no-such-process-name")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestOS_StartMissingExecutable(t *testing.T) {
	err := NewOS(nil).Start(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestOS_StartCancelledContext(t *testing.T) {
	exe, err := os.Executable()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = NewOS(nil).Start(ctx, exe)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOS_Ancestors(t *testing.T) {
	chain := NewOS(nil).Ancestors(os.Getpid(), 4)
	require.NotEmpty(t, chain)
	assert.Equal(t, os.Getpid(), chain[0].PID)
	assert.LessOrEqual(t, len(chain), 4)
}
