// Package protocol implements the subset of the SSH agent wire protocol that
// agentmux needs to route requests between callers and backend agents.
//
// # Framing
//
// Every message on the wire is:
//
//	uint32 BE length | uint8 type | payload[length-1]
//
// The length excludes itself and must be in [1, MaxMessageLength].
// ReadMessage accumulates short reads for both the header and the body.
// A stream that ends before any header byte arrives yields io.EOF; a stream
// that ends part way through a frame yields ErrMalformed.
//
// # Sub-structures
//
// Identities answer:
//
//	uint32 BE count | (uint32 BE len | blob | uint32 BE len | utf8 comment){count}
//
// Sign request:
//
//	uint32 BE len | key blob | uint32 BE len | data | uint32 BE flags (optional)
//
// Sign response:
//
//	uint32 BE len | signature
//
// Key material is treated as an opaque blob. Identities carry a derived
// fingerprint: the first 8 bytes of SHA-256(blob) in lowercase hex. The
// 64-bit truncation is a label for routing, not a cryptographic identifier;
// it is kept short so persisted mappings stay compatible.
package protocol
