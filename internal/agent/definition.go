// ABOUTME: Backend agent definitions and their priority ordering
// ABOUTME: Priority is the failover order: lower values are tried first

package agent

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownAgent indicates the named agent is not configured.
var ErrUnknownAgent = errors.New("unknown agent")

// ErrDuplicateAgent indicates two definitions share a name.
var ErrDuplicateAgent = errors.New("duplicate agent name")

// Definition describes a configured backend agent.
type Definition struct {
	Name           string
	ProcessName    string
	ExecutablePath string
	Priority       int
}

// SortByPriority returns a copy of defs ordered by ascending priority.
// Agents sharing a priority keep their configured order.
func SortByPriority(defs []Definition) []Definition {
	sorted := make([]Definition, len(defs))
	copy(sorted, defs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})
	return sorted
}

// validateDefinitions checks names are present and unique.
func validateDefinitions(defs []Definition) error {
	seen := make(map[string]bool, len(defs))
	for i, d := range defs {
		if d.Name == "" {
			return fmt.Errorf("agent %d: name is required", i)
		}
		if d.ProcessName == "" {
			return fmt.Errorf("agent %q: process name is required", d.Name)
		}
		if seen[d.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateAgent, d.Name)
		}
		seen[d.Name] = true
	}
	return nil
}
