// ABOUTME: Thread-safe TTL cache of (fingerprint, agent) pairs that recently failed to sign.
// ABOUTME: Used by the router to skip agents known to be unable to serve a key.

package failcache

import (
	"sync"
	"time"
)

// DefaultTTL is how long a failure is remembered unless configured otherwise.
const DefaultTTL = 60 * time.Second

// cleanupInterval is how often the background sweeper removes expired entries.
const cleanupInterval = time.Minute

// entryKey identifies a failed (fingerprint, agent) pair.
type entryKey struct {
	fingerprint string
	agent       string
}

// Cache remembers recent sign failures per (fingerprint, agent) pair.
// Each pair carries a single expiry that is refreshed, not extended, on
// repeated failures.
type Cache struct {
	mu      sync.Mutex
	entries map[entryKey]time.Time // pair -> expiry
	ttl     time.Duration
	now     func() time.Time
	done    chan struct{}
	closed  bool
}

// New creates a failure cache with the given TTL. A non-positive TTL falls
// back to DefaultTTL. A background goroutine periodically removes expired
// entries until Close is called.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		entries: make(map[entryKey]time.Time),
		ttl:     ttl,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// TTL returns the configured failure lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// IsCached reports whether the pair failed within the TTL.
// An expired entry is evicted as a side effect.
func (c *Cache) IsCached(fingerprint, agent string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := entryKey{fingerprint, agent}
	expiry, ok := c.entries[key]
	if !ok {
		return false
	}
	if !c.now().Before(expiry) {
		delete(c.entries, key)
		return false
	}
	return true
}

// CacheFailure records that agent failed to sign for fingerprint.
func (c *Cache) CacheFailure(fingerprint, agent string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entryKey{fingerprint, agent}] = c.now().Add(c.ttl)
}

// ClearFailure forgets a single pair.
func (c *Cache) ClearFailure(fingerprint, agent string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, entryKey{fingerprint, agent})
}

// Clear forgets every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[entryKey]time.Time)
}

// Count returns the number of stored entries, including expired entries
// that have not been evicted yet.
func (c *Cache) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// cleanup runs in a background goroutine, periodically removing expired entries.
func (c *Cache) cleanup() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.runCleanup()
		case <-c.done:
			return
		}
	}
}

// runCleanup removes all expired entries from the cache.
func (c *Cache) runCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, expiry := range c.entries {
		if !now.Before(expiry) {
			delete(c.entries, key)
		}
	}
}

// Close stops the background cleanup goroutine. It is safe to call multiple times.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
