// Package agent controls the lifecycle of backend SSH agents.
//
// # Overview
//
// Several agents (a password manager, a hardware-key helper, the stock
// ssh-agent) all want to own the same backend endpoint, and whichever process
// started last usually wins it. agentmux routes requests between them by
// making exactly one of them the owner at a time.
//
// # Controller
//
// The Controller holds the configured agents in priority order and a belief
// about which one currently owns the endpoint:
//
//	ctrl, err := agent.NewController(defs, process.NewOS(logger), agent.DefaultTiming(), logger)
//
// Key operations:
//
//   - SwitchTo(ctx, name, startOthers, force): terminate every configured
//     agent, wait for them to exit, settle, then start the target
//   - EnsureRunning(ctx, name): start name only if it is not running
//   - StartOthers(ctx, except): start every other agent that is not running
//   - DetectCurrent(ctx, backend, mappings): guess the owner at startup by
//     majority vote over the keys it advertises
//
// # Process Failures
//
// Agents are third-party programs. Failing to list, start, or terminate one
// is logged as a warning and the switch proceeds; the caller finds out when
// the next request to the endpoint fails. Only context cancellation aborts
// a switch.
//
// # Thread Safety
//
// Process changes are serialized by an internal mutex, so a background
// StartOthers never interleaves with another switch's terminate and start.
// Current is safe to read at any time.
package agent
