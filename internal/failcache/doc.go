// Package failcache provides a time-bounded record of (key fingerprint,
// agent) pairs that recently failed to produce a signature, so the router
// does not keep switching to agents that cannot serve a key.
package failcache
