// ABOUTME: Synchronized fingerprint-to-agent map and the merged identity set
// ABOUTME: Comment mappings are stored under "comment:"+comment keys

package router

import (
	"sync"

	"github.com/2389/agentmux/internal/protocol"
)

// CommentKey returns the mapping key for a key comment.
func CommentKey(comment string) string {
	return "comment:" + comment
}

// FingerprintMap maps fingerprints (or comment keys) to agent names.
// It is safe for concurrent use.
type FingerprintMap struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewFingerprintMap creates an empty map.
func NewFingerprintMap() *FingerprintMap {
	return &FingerprintMap{m: make(map[string]string)}
}

// Set maps key to agent.
func (f *FingerprintMap) Set(key, agent string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.m[key] = agent
}

// SetIfAbsent maps key to agent unless key is already mapped.
func (f *FingerprintMap) SetIfAbsent(key, agent string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.m[key]; ok {
		return false
	}
	f.m[key] = agent
	return true
}

// Get returns the agent for an exact key.
func (f *FingerprintMap) Get(key string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	agent, ok := f.m[key]
	return agent, ok
}

// Lookup resolves a key by fingerprint first, then by comment.
func (f *FingerprintMap) Lookup(fingerprint, comment string) (string, bool) {
	if agent, ok := f.Get(fingerprint); ok {
		return agent, true
	}
	if comment == "" {
		return "", false
	}
	return f.Get(CommentKey(comment))
}

// Len returns the number of mapped keys.
func (f *FingerprintMap) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.m)
}

// Snapshot returns a copy of the map.
func (f *FingerprintMap) Snapshot() map[string]string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]string, len(f.m))
	for k, v := range f.m {
		out[k] = v
	}
	return out
}

// identitySet is an insertion-ordered set of identities keyed by fingerprint.
// It is only touched under the engine lock.
type identitySet struct {
	ids   []protocol.Identity
	index map[string]int
}

func newIdentitySet() *identitySet {
	return &identitySet{index: make(map[string]int)}
}

// add appends id unless its fingerprint is already present.
func (s *identitySet) add(id protocol.Identity) bool {
	fp := id.Fingerprint()
	if _, ok := s.index[fp]; ok {
		return false
	}
	s.index[fp] = len(s.ids)
	s.ids = append(s.ids, id)
	return true
}

func (s *identitySet) len() int {
	return len(s.ids)
}

func (s *identitySet) list() []protocol.Identity {
	out := make([]protocol.Identity, len(s.ids))
	copy(out, s.ids)
	return out
}

func (s *identitySet) comment(fingerprint string) string {
	if i, ok := s.index[fingerprint]; ok {
		return s.ids[i].Comment
	}
	return ""
}
