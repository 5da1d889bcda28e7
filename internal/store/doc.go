// Package store persists key-to-agent mappings learned by the router.
//
// # Data Model
//
// A KeyMapping records which backend agent last signed successfully with a
// key. It is keyed by the key's 16-hex-character fingerprint; the comment is
// kept so comment-based lookups survive restarts.
//
// # Implementations
//
//   - SQLiteStore: on-disk store using modernc.org/sqlite (pure Go, no cgo)
//   - MockStore: in-memory store for tests, with optional injected failures
//
// Writes are best-effort from the router's point of view: a failed upsert is
// logged and the in-memory mapping stays authoritative until restart.
package store
