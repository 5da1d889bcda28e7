// ABOUTME: OS process primitives used by the agent lifecycle controller
// ABOUTME: Lists processes by executable name, starts detached executables, terminates by name

package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	ps "github.com/mitchellh/go-ps"
)

// ErrNotFound is returned when a process ID does not exist.
var ErrNotFound = errors.New("process not found")

// Info describes a running process.
type Info struct {
	PID        int
	PPID       int
	Executable string
}

// Manager enumerates, starts and terminates processes.
type Manager interface {
	// List returns processes whose executable name matches name.
	List(name string) ([]Info, error)
	// Start launches the executable detached from the caller.
	Start(ctx context.Context, path string) error
	// TerminateAll signals every process matching name and returns how
	// many were signalled.
	TerminateAll(name string) (int, error)
}

// OS is the Manager backed by the host operating system.
type OS struct {
	logger *slog.Logger
}

// NewOS creates an OS process manager.
func NewOS(logger *slog.Logger) *OS {
	if logger == nil {
		logger = slog.Default()
	}
	return &OS{logger: logger.With("component", "process")}
}

// NormalizeName lowercases an executable name and strips a trailing ".exe"
// so names compare equally across platforms.
func NormalizeName(name string) string {
	name = strings.ToLower(filepath.Base(name))
	return strings.TrimSuffix(name, ".exe")
}

// List returns processes whose executable name matches name.
func (o *OS) List(name string) ([]Info, error) {
	procs, err := ps.Processes()
	if err != nil {
		return nil, fmt.Errorf("listing processes: %w", err)
	}

	want := NormalizeName(name)
	var matches []Info
	for _, p := range procs {
		if NormalizeName(p.Executable()) == want {
			matches = append(matches, Info{PID: p.Pid(), PPID: p.PPid(), Executable: p.Executable()})
		}
	}
	return matches, nil
}

// Find returns the process with the given PID.
func (o *OS) Find(pid int) (Info, error) {
	p, err := ps.FindProcess(pid)
	if err != nil {
		return Info{}, fmt.Errorf("finding process %d: %w", pid, err)
	}
	if p == nil {
		return Info{}, ErrNotFound
	}
	return Info{PID: p.Pid(), PPID: p.PPid(), Executable: p.Executable()}, nil
}

// Start launches path detached from the proxy. The child is reaped in the
// background so it never lingers as a zombie. ctx gates the launch only;
// a started agent outlives it.
func (o *OS) Start(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("starting %s: %w", path, err)
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("executable not found at %s: %w", path, err)
	}

	cmd := exec.Command(path)
	cmd.SysProcAttr = detachedAttr()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", path, err)
	}

	o.logger.Info("process started", "path", path, "pid", cmd.Process.Pid)

	go func() {
		if err := cmd.Wait(); err != nil {
			o.logger.Debug("process exited", "path", path, "error", err)
		}
	}()
	return nil
}

// TerminateAll signals every process matching name. Failures to signal an
// individual process are collected but do not stop the others.
func (o *OS) TerminateAll(name string) (int, error) {
	procs, err := o.List(name)
	if err != nil {
		return 0, err
	}

	var errs []error
	signalled := 0
	for _, p := range procs {
		if p.PID == os.Getpid() {
			continue
		}
		proc, err := os.FindProcess(p.PID)
		if err != nil {
			errs = append(errs, fmt.Errorf("pid %d: %w", p.PID, err))
			continue
		}
		if err := terminate(proc); err != nil {
			errs = append(errs, fmt.Errorf("pid %d: %w", p.PID, err))
			continue
		}
		signalled++
		o.logger.Debug("process signalled", "name", name, "pid", p.PID)
	}
	return signalled, errors.Join(errs...)
}

// Ancestors walks the parent chain of pid, nearest first, stopping at PID 1
// or after maxDepth steps.
func (o *OS) Ancestors(pid, maxDepth int) []Info {
	var chain []Info
	for i := 0; i < maxDepth && pid > 1; i++ {
		info, err := o.Find(pid)
		if err != nil {
			break
		}
		chain = append(chain, info)
		if info.PPID == pid {
			break
		}
		pid = info.PPID
	}
	return chain
}
