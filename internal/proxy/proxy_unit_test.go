// ABOUTME: Unit tests for proxy wiring helpers and the caller resolver
// ABOUTME: Uses the in-memory store and a fake process ancestry

package proxy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/agentmux/internal/config"
	"github.com/2389/agentmux/internal/process"
	"github.com/2389/agentmux/internal/router"
	"github.com/2389/agentmux/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSeedMappings_PersistedWins(t *testing.T) {
	cfg := config.Default()
	cfg.KeyMappings = []config.KeyMappingConfig{
		{Fingerprint: "0123456789abcdef", Agent: "primary"},
		{Comment: "deploy@ci", Agent: "fallback"},
	}

	s := store.NewMockStore()
	require.NoError(t, s.UpsertMapping(context.Background(), &store.KeyMapping{
		Fingerprint: "0123456789abcdef",
		Agent:       "secondary",
	}))

	m, err := seedMappings(cfg, s)
	require.NoError(t, err)

	got, ok := m.Get("0123456789abcdef")
	require.True(t, ok)
	assert.Equal(t, "secondary", got)

	got, ok = m.Get(router.CommentKey("deploy@ci"))
	require.True(t, ok)
	assert.Equal(t, "fallback", got)
}

func TestRouterOptions(t *testing.T) {
	cfg := config.Default()
	cfg.DefaultAgent = "primary"
	cfg.KeySelection.Enabled = true
	cfg.KeySelection.Timeout = 3 * time.Second
	cfg.HostPatterns = []config.HostPatternConfig{
		{Pattern: "github.com:acme/*", Fingerprint: "0123456789abcdef", Description: "work"},
	}

	opts := routerOptions(cfg)
	assert.Equal(t, "primary", opts.DefaultAgent)
	assert.True(t, opts.KeySelection)
	assert.Equal(t, 3*time.Second, opts.KeySelectionTimeout)
	require.Len(t, opts.HostPatterns, 1)
	assert.Equal(t, "work", opts.HostPatterns[0].Description)
}

func TestDefinitionsAndTiming(t *testing.T) {
	cfg := config.Default()
	cfg.Agents = []config.AgentConfig{
		{Name: "a", ProcessName: "pa", ExecutablePath: "/bin/pa", Priority: 2},
	}
	cfg.Lifecycle.TerminatePollAttempts = 3

	defs := definitions(cfg)
	require.Len(t, defs, 1)
	assert.Equal(t, "pa", defs[0].ProcessName)
	assert.Equal(t, 2, defs[0].Priority)
	assert.Equal(t, 3, timing(cfg).PollAttempts)
	assert.Equal(t, cfg.Lifecycle.SettleDelay, timing(cfg).SettleDelay)
}

func TestRestartRequired(t *testing.T) {
	old := config.Default()
	old.Agents = []config.AgentConfig{{Name: "a", ProcessName: "a"}}

	same := *old
	same.Agents = []config.AgentConfig{{Name: "a", ProcessName: "a"}}
	same.DefaultAgent = "a"
	assert.False(t, restartRequired(old, &same))

	moved := *old
	moved.Proxy.Endpoint = "/elsewhere.sock"
	assert.True(t, restartRequired(old, &moved))

	renamed := *old
	renamed.Agents = []config.AgentConfig{{Name: "b", ProcessName: "a"}}
	assert.True(t, restartRequired(old, &renamed))
}

type fakeAncestry map[int][]process.Info

func (f fakeAncestry) Ancestors(pid, _ int) []process.Info {
	return f[pid]
}

func newTestResolver(chain fakeAncestry, lines map[int]commandLine) *callerResolver {
	r := newCallerResolver(chain, discardLogger())
	r.commandLine = func(pid int) (commandLine, error) {
		line, ok := lines[pid]
		if !ok {
			return commandLine{}, errors.New("no such process")
		}
		return line, nil
	}
	return r
}

func TestCallerResolver_FindsNearestSSH(t *testing.T) {
	chain := fakeAncestry{
		300: {
			{PID: 300, PPID: 200, Executable: "ssh"},
			{PID: 200, PPID: 100, Executable: "git"},
			{PID: 100, PPID: 1, Executable: "ssh"},
		},
	}
	r := newTestResolver(chain, map[int]commandLine{
		300: {argv: []string{"/usr/bin/ssh", "-o", "SendEnv=GIT_PROTOCOL", "git@github.com", "git-upload-pack 'acme/tools.git'"}},
		100: {argv: []string{"ssh", "admin@bastion"}},
	})

	ctx, ok := r.Resolve(300)
	require.True(t, ok)
	assert.Equal(t, "github.com", ctx.Host)
	assert.Equal(t, "git", ctx.User)
	assert.Equal(t, "acme/tools.git", ctx.Repository)
}

func TestCallerResolver_SingleStringCommandLine(t *testing.T) {
	chain := fakeAncestry{
		9: {
			{PID: 9, PPID: 5, Executable: "ssh.exe"},
			{PID: 5, PPID: 1, Executable: "git.exe"},
		},
	}
	r := newTestResolver(chain, map[int]commandLine{
		9: {raw: `"C:\Program Files\OpenSSH\ssh.exe" -o SendEnv=GIT_PROTOCOL git@github.com "git-upload-pack 'acme/tools.git'"`},
	})

	ctx, ok := r.Resolve(9)
	require.True(t, ok)
	assert.Equal(t, "github.com", ctx.Host)
	assert.Equal(t, "git-upload-pack", ctx.GitCommand)
	assert.Equal(t, "acme/tools.git", ctx.Repository)
}

func TestCallerResolver_NoSSHAncestor(t *testing.T) {
	chain := fakeAncestry{
		42: {{PID: 42, PPID: 1, Executable: "bash"}},
	}
	r := newTestResolver(chain, nil)

	_, ok := r.Resolve(42)
	assert.False(t, ok)
}

func TestCallerResolver_UnknownPeer(t *testing.T) {
	r := newTestResolver(fakeAncestry{}, nil)

	_, ok := r.Resolve(0)
	assert.False(t, ok)
}

func TestCallerResolver_UnreadableCommandLine(t *testing.T) {
	chain := fakeAncestry{
		7: {{PID: 7, PPID: 1, Executable: "ssh.exe"}},
	}
	r := newTestResolver(chain, nil)

	_, ok := r.Resolve(7)
	assert.False(t, ok)
}
