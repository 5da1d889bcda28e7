// ABOUTME: Interactive terminal picker with a countdown default
// ABOUTME: Accepts comma-separated candidate numbers; empty input or timeout picks the first

package picker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/2389/agentmux/internal/protocol"
)

// DefaultTimeout applies when a request carries no timeout.
const DefaultTimeout = 10 * time.Second

// Terminal prompts on a terminal. Input lines are read by a single
// goroutine so a timed-out prompt does not strand a reader.
type Terminal struct {
	out       io.Writer
	countdown bool

	startOnce sync.Once
	in        io.Reader
	lines     chan string

	// active is set while a prompt is showing; lines typed outside a
	// prompt are dropped.
	active  atomic.Bool
	dropped atomic.Int64
}

// NewTerminal creates a picker reading from in and writing prompts to out.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: in, out: out, lines: make(chan string)}
}

// NewStdioTerminal returns a picker on stdin/stderr, or false when stdin is
// not a terminal.
func NewStdioTerminal() (*Terminal, bool) {
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return nil, false
	}
	t := NewTerminal(os.Stdin, os.Stderr)
	t.countdown = isatty.IsTerminal(os.Stderr.Fd())
	return t, true
}

func (t *Terminal) readLines() {
	scanner := bufio.NewScanner(t.in)
	for scanner.Scan() {
		if !t.active.Load() {
			t.dropped.Add(1)
			continue
		}
		t.lines <- scanner.Text()
	}
	close(t.lines)
}

// discardStale drops a line the reader is still holding from an earlier
// prompt.
func (t *Terminal) discardStale() {
	for {
		select {
		case _, ok := <-t.lines:
			if !ok {
				return
			}
			t.dropped.Add(1)
		default:
			return
		}
	}
}

// Pick shows the candidates and waits for a selection.
func (t *Terminal) Pick(ctx context.Context, req Request) ([]protocol.Identity, error) {
	if len(req.Candidates) <= 1 {
		return req.Candidates, nil
	}
	t.discardStale()
	t.active.Store(true)
	defer t.active.Store(false)
	t.startOnce.Do(func() { go t.readLines() })

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	t.prompt(req, timeout)

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(time.Second)
	defer tick.Stop()
	remaining := int(timeout / time.Second)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			fmt.Fprintln(t.out)
			color.New(color.FgYellow).Fprintln(t.out, "  no selection, using key 1")
			return firstOf(req.Candidates), nil
		case <-tick.C:
			remaining--
			if t.countdown && remaining > 0 {
				fmt.Fprintf(t.out, "\r  Keys to offer [1] (%ds): ", remaining)
			}
		case line, ok := <-t.lines:
			if !ok {
				return firstOf(req.Candidates), nil
			}
			chosen := ParseSelection(line, req.Candidates)
			color.New(color.FgGreen).Fprintf(t.out, "  offering %d key(s)\n", len(chosen))
			return chosen, nil
		}
	}
}

func (t *Terminal) prompt(req Request, timeout time.Duration) {
	bold := color.New(color.FgCyan, color.Bold)
	target := req.Host
	if req.Repository != "" {
		target += ":" + req.Repository
	}

	fmt.Fprintln(t.out)
	bold.Fprintf(t.out, "Select SSH key for %s\n", target)
	for i, id := range req.Candidates {
		fmt.Fprintf(t.out, "  %d) %s %s %s\n", i+1, id.KeyType(), id.Fingerprint(), id.Comment)
	}
	fmt.Fprintf(t.out, "  Keys to offer [1] (%ds): ", int(timeout/time.Second))
}

// ParseSelection turns input like "2" or "1, 3" into the chosen candidates.
// Empty or entirely invalid input selects the first candidate; duplicates
// and out-of-range numbers are ignored.
func ParseSelection(input string, candidates []protocol.Identity) []protocol.Identity {
	seen := make(map[int]bool)
	var chosen []protocol.Identity
	for _, field := range strings.Split(input, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil || n < 1 || n > len(candidates) || seen[n] {
			continue
		}
		seen[n] = true
		chosen = append(chosen, candidates[n-1])
	}
	if len(chosen) == 0 {
		return firstOf(candidates)
	}
	return chosen
}
