// ABOUTME: Store interface and data types for agentmux persistence
// ABOUTME: Defines KeyMapping and the Store interface for mapping operations

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// KeyMapping records the agent that holds a key
type KeyMapping struct {
	Fingerprint string
	Comment     string
	Agent       string
	SignCount   int64 // successful signs routed through this mapping
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Store defines the persistence operations used by agentmux
type Store interface {
	// ListMappings returns every mapping ordered by fingerprint
	ListMappings(ctx context.Context) ([]*KeyMapping, error)

	// GetMapping returns the mapping for fingerprint or ErrNotFound
	GetMapping(ctx context.Context, fingerprint string) (*KeyMapping, error)

	// UpsertMapping creates the mapping or moves it to a new agent,
	// incrementing its sign count
	UpsertMapping(ctx context.Context, m *KeyMapping) error

	// DeleteMapping removes the mapping for fingerprint or returns ErrNotFound
	DeleteMapping(ctx context.Context, fingerprint string) error

	// Close releases the underlying resources
	Close() error
}
