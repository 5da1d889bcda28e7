// Package proxy wires the agentmux components together and runs them.
//
// A Proxy owns the agent lifecycle controller, the backend client, the
// failure cache, the mapping store and the routing engine, and serves the
// engine on the proxy endpoint. On startup it seeds the fingerprint map
// from configuration and the store, then guesses which agent currently
// holds the backend endpoint. While running it watches the config file and
// applies routing option changes without a restart.
package proxy
