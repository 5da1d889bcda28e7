// Package router decides which backend agent serves each request.
//
// # Dispatch
//
// Engine.Handle serializes every request behind one mutex, because serving
// a request may switch which agent process owns the backend endpoint and two
// switches must never interleave. Requests are dispatched by type:
//
//   - REQUEST_IDENTITIES: scan every agent in priority order once, merge
//     their keys (first seen wins) and answer from the merged set until a
//     key-changing request invalidates it
//   - SIGN_REQUEST: try the mapped agent, else the current one, else the
//     default; then fail over through the remaining agents by priority,
//     skipping pairs in the failure cache
//   - anything else: forwarded to the current backend unmodified
//
// # Side Effects of a Successful Sign
//
// The key is mapped to the agent that signed, the mapping is written to the
// store (errors are logged only), the failure entry for the pair is cleared
// and the remaining agents are started in the background without the lock.
//
// # Caller Context
//
// When a CallerResolver is configured, identities answers are narrowed for
// callers whose ssh command line matches a host pattern, or offered to a
// Picker when key selection is enabled and the choice is ambiguous.
package router
