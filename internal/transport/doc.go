// Package transport carries agent-protocol messages over the local endpoint.
//
// The Server listens on the proxy endpoint (a Unix socket, or a named pipe on
// Windows), reads one message at a time from each connection, hands it to a
// Handler and writes the reply. A connection ends on end-of-stream, on a
// malformed frame, or when the Handler returns an error. At most
// MaxConnections callers are served at once; further accepts wait for a slot.
//
// The Client dials the backend endpoint fresh for every request with a connect
// timeout. A refused or timed-out dial is reported as ErrBackendUnavailable so
// routing can fall back to another agent.
package transport
