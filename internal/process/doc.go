// Package process wraps operating-system process control for agentmux.
//
// Backend agents are third-party desktop applications (password managers,
// hardware-key helpers, the stock ssh-agent) that agentmux cannot talk to
// except through the shared agent endpoint. The only levers are:
//
//   - List: find processes by executable name (via github.com/mitchellh/go-ps)
//   - Start: launch an executable detached from agentmux
//   - TerminateAll: signal every process with a given name
//
// Names are compared case-insensitively with any ".exe" suffix removed.
package process
