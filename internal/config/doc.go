// Package config handles configuration loading for agentmux.
//
// # Overview
//
// Configuration is loaded from a YAML file (or TOML, when the file name ends
// in .toml) with environment variable expansion. Keys missing from the file
// keep the values from Default.
//
// # Configuration File
//
// Locations, highest priority first:
//
//  1. --config flag
//  2. AGENTMUX_CONFIG environment variable
//  3. $XDG_CONFIG_HOME/agentmux/config.yaml
//  4. ~/.config/agentmux/config.yaml
//
// # Example
//
//	proxy:
//	  endpoint: "~/.agentmux/agent.sock"
//	  backend_endpoint: "~/.ssh/agent.sock"
//	  connect_timeout: "2s"
//
//	agents:
//	  - name: "1password"
//	    process_name: "1password"
//	    executable_path: "/usr/bin/1password"
//	    priority: 1
//	  - name: "ssh-agent"
//	    process_name: "ssh-agent"
//	    executable_path: "/usr/bin/ssh-agent"
//	    priority: 2
//
//	default_agent: "1password"
//
//	host_patterns:
//	  - pattern: "github.com:acme/*"
//	    fingerprint: "3f9a0c21b7e4d815"
//	    description: "work key"
//
// # Environment Variable Expansion
//
// Values can reference environment variables with ${VAR_NAME}. Unset
// variables expand to the empty string. Paths starting with "~/" are
// expanded to the home directory.
//
// # Duration Parsing
//
// Durations use Go's time.ParseDuration syntax ("500ms", "2s", "1m").
package config
