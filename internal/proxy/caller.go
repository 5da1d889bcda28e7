// ABOUTME: Resolves a caller's ssh connection context from its process ancestry
// ABOUTME: Finds the nearest ssh ancestor and parses its command line with hostmatch

package proxy

import (
	"log/slog"

	"github.com/2389/agentmux/internal/hostmatch"
	"github.com/2389/agentmux/internal/process"
)

// maxAncestorDepth bounds the walk from the peer process towards init.
const maxAncestorDepth = 8

// commandLine is a process command line as the platform exposes it: an
// argument vector where the kernel keeps one, a single string otherwise.
type commandLine struct {
	argv []string
	raw  string
}

func (c commandLine) parse() (*hostmatch.Context, bool) {
	if c.argv != nil {
		return hostmatch.ParseArgv(c.argv)
	}
	return hostmatch.ParseCommandLine(c.raw)
}

type ancestorWalker interface {
	Ancestors(pid, maxDepth int) []process.Info
}

// callerResolver implements router.CallerResolver.
type callerResolver struct {
	procs       ancestorWalker
	commandLine func(pid int) (commandLine, error)
	logger      *slog.Logger
}

func newCallerResolver(procs ancestorWalker, logger *slog.Logger) *callerResolver {
	return &callerResolver{
		procs:       procs,
		commandLine: readCommandLine,
		logger:      logger.With("component", "caller"),
	}
}

// Resolve returns the connection context of the ssh process that owns pid,
// or false when there is none.
func (r *callerResolver) Resolve(pid int) (*hostmatch.Context, bool) {
	if pid <= 0 {
		return nil, false
	}
	for _, p := range r.procs.Ancestors(pid, maxAncestorDepth) {
		if process.NormalizeName(p.Executable) != "ssh" {
			continue
		}
		line, err := r.commandLine(p.PID)
		if err != nil {
			r.logger.Debug("reading ssh command line", "pid", p.PID, "error", err)
			return nil, false
		}
		ctx, ok := line.parse()
		if ok {
			r.logger.Debug("resolved caller", "pid", pid, "host", ctx.Host, "repository", ctx.Repository)
		}
		return ctx, ok
	}
	return nil, false
}
