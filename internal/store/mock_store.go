// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite and to inject write failures

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu       sync.RWMutex
	mappings map[string]*KeyMapping // keyed by fingerprint
	upserts  int
	writeErr error
	closed   bool
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		mappings: make(map[string]*KeyMapping),
	}
}

// SetWriteError makes subsequent writes fail with err (nil to clear).
func (m *MockStore) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// Upserts returns how many UpsertMapping calls were made, failed or not.
func (m *MockStore) Upserts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.upserts
}

// ListMappings returns all mappings ordered by fingerprint.
func (m *MockStore) ListMappings(ctx context.Context) ([]*KeyMapping, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*KeyMapping, 0, len(m.mappings))
	for _, km := range m.mappings {
		c := *km
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Fingerprint < out[j].Fingerprint })
	return out, nil
}

// GetMapping retrieves a mapping by fingerprint.
func (m *MockStore) GetMapping(ctx context.Context, fingerprint string) (*KeyMapping, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	km, ok := m.mappings[fingerprint]
	if !ok {
		return nil, ErrNotFound
	}
	c := *km
	return &c, nil
}

// UpsertMapping inserts or updates a mapping.
func (m *MockStore) UpsertMapping(ctx context.Context, km *KeyMapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.upserts++
	if m.writeErr != nil {
		return m.writeErr
	}
	if km.Fingerprint == "" || km.Agent == "" {
		return fmt.Errorf("mapping requires fingerprint and agent")
	}

	now := time.Now().UTC()
	existing, ok := m.mappings[km.Fingerprint]
	if !ok {
		c := *km
		c.SignCount = 1
		c.CreatedAt, c.UpdatedAt = now, now
		m.mappings[km.Fingerprint] = &c
		return nil
	}

	existing.Agent = km.Agent
	if km.Comment != "" {
		existing.Comment = km.Comment
	}
	existing.SignCount++
	existing.UpdatedAt = now
	return nil
}

// DeleteMapping removes a mapping by fingerprint.
func (m *MockStore) DeleteMapping(ctx context.Context, fingerprint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.writeErr != nil {
		return m.writeErr
	}
	if _, ok := m.mappings[fingerprint]; !ok {
		return ErrNotFound
	}
	delete(m.mappings, fingerprint)
	return nil
}

// Close marks the store closed.
func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
