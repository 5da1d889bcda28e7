// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, defaults, durations and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validYAML = `
proxy:
  endpoint: "/tmp/agentmux-test/agent.sock"
  backend_endpoint: "/tmp/agentmux-test/backend.sock"
  max_connections: 4
  connect_timeout: "3s"

agents:
  - name: "primary"
    process_name: "1password"
    executable_path: "/opt/1password/1password"
    priority: 1
  - name: "fallback"
    process_name: "ssh-agent"
    executable_path: "/usr/bin/ssh-agent"
    priority: 2

default_agent: "primary"

failures:
  ttl_seconds: 30

key_mappings:
  - fingerprint: "0123456789abcdef"
    agent: "fallback"
  - comment: "deploy@ci"
    agent: "primary"

host_patterns:
  - pattern: "github.com:acme/*"
    fingerprint: "fedcba9876543210"
    description: "work"

key_selection:
  enabled: true
  timeout: "5s"

lifecycle:
  settle_delay: "250ms"
  startup_delay: "2s"
  terminate_poll_interval: "100ms"
  terminate_poll_attempts: 20

database:
  path: "/tmp/agentmux-test/mappings.db"

logging:
  level: "debug"
  format: "json"
  file: "/tmp/agentmux-test/agentmux.log"
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.yaml", validYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Proxy.MaxConnections != 4 {
		t.Errorf("Proxy.MaxConnections = %d, want 4", cfg.Proxy.MaxConnections)
	}
	if cfg.Proxy.ConnectTimeout != 3*time.Second {
		t.Errorf("Proxy.ConnectTimeout = %v, want 3s", cfg.Proxy.ConnectTimeout)
	}
	if len(cfg.Agents) != 2 || cfg.Agents[1].ProcessName != "ssh-agent" {
		t.Errorf("Agents = %+v", cfg.Agents)
	}
	if cfg.DefaultAgent != "primary" {
		t.Errorf("DefaultAgent = %q, want primary", cfg.DefaultAgent)
	}
	if cfg.FailureTTL() != 30*time.Second {
		t.Errorf("FailureTTL() = %v, want 30s", cfg.FailureTTL())
	}
	if len(cfg.KeyMappings) != 2 || cfg.KeyMappings[1].Comment != "deploy@ci" {
		t.Errorf("KeyMappings = %+v", cfg.KeyMappings)
	}
	if len(cfg.HostPatterns) != 1 || cfg.HostPatterns[0].Description != "work" {
		t.Errorf("HostPatterns = %+v", cfg.HostPatterns)
	}
	if !cfg.KeySelection.Enabled || cfg.KeySelection.Timeout != 5*time.Second {
		t.Errorf("KeySelection = %+v", cfg.KeySelection)
	}
	if cfg.Lifecycle.SettleDelay != 250*time.Millisecond {
		t.Errorf("Lifecycle.SettleDelay = %v, want 250ms", cfg.Lifecycle.SettleDelay)
	}
	if cfg.Lifecycle.StartupDelay != 2*time.Second {
		t.Errorf("Lifecycle.StartupDelay = %v, want 2s", cfg.Lifecycle.StartupDelay)
	}
	if cfg.Lifecycle.TerminatePollInterval != 100*time.Millisecond || cfg.Lifecycle.TerminatePollAttempts != 20 {
		t.Errorf("Lifecycle poll = %v x %d", cfg.Lifecycle.TerminatePollInterval, cfg.Lifecycle.TerminatePollAttempts)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.File == "" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoad_Defaults(t *testing.T) {
	minimal := `
agents:
  - name: "only"
    process_name: "ssh-agent"
`
	cfg, err := Load(writeConfig(t, "config.yaml", minimal))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	def := Default()
	if cfg.Proxy.Endpoint != def.Proxy.Endpoint {
		t.Errorf("Proxy.Endpoint = %q, want default %q", cfg.Proxy.Endpoint, def.Proxy.Endpoint)
	}
	if cfg.Proxy.MaxConnections != 16 {
		t.Errorf("Proxy.MaxConnections = %d, want 16", cfg.Proxy.MaxConnections)
	}
	if cfg.Proxy.ConnectTimeout != 2*time.Second {
		t.Errorf("Proxy.ConnectTimeout = %v, want 2s", cfg.Proxy.ConnectTimeout)
	}
	if cfg.FailureTTL() != time.Minute {
		t.Errorf("FailureTTL() = %v, want 1m", cfg.FailureTTL())
	}
	if cfg.KeySelection.Enabled || cfg.KeySelection.Timeout != 10*time.Second {
		t.Errorf("KeySelection = %+v", cfg.KeySelection)
	}
	if cfg.Lifecycle.TerminatePollAttempts != 10 {
		t.Errorf("Lifecycle.TerminatePollAttempts = %d, want 10", cfg.Lifecycle.TerminatePollAttempts)
	}
	if cfg.Database.Path == "" {
		t.Error("Database.Path should have a default")
	}
}

func TestLoad_TOML(t *testing.T) {
	content := `
default_agent = "primary"

[proxy]
endpoint = "/tmp/agentmux-toml/agent.sock"
backend_endpoint = "/tmp/agentmux-toml/backend.sock"
connect_timeout = "1s"

[[agents]]
name = "primary"
process_name = "1password"
priority = 1

[[host_patterns]]
pattern = "gitlab.com"
fingerprint = "0011223344556677"
`
	cfg, err := Load(writeConfig(t, "config.toml", content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Proxy.ConnectTimeout != time.Second {
		t.Errorf("Proxy.ConnectTimeout = %v, want 1s", cfg.Proxy.ConnectTimeout)
	}
	if len(cfg.Agents) != 1 || cfg.Agents[0].Name != "primary" {
		t.Errorf("Agents = %+v", cfg.Agents)
	}
	if len(cfg.HostPatterns) != 1 || cfg.HostPatterns[0].Pattern != "gitlab.com" {
		t.Errorf("HostPatterns = %+v", cfg.HostPatterns)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("AGENTMUX_TEST_AGENT_PATH", "/opt/custom/agent")
	content := `
agents:
  - name: "custom"
    process_name: "agent"
    executable_path: "${AGENTMUX_TEST_AGENT_PATH}"
`
	cfg, err := Load(writeConfig(t, "config.yaml", content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Agents[0].ExecutablePath != "/opt/custom/agent" {
		t.Errorf("ExecutablePath = %q, want /opt/custom/agent", cfg.Agents[0].ExecutablePath)
	}
}

func TestLoad_HomeExpansion(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	content := `
proxy:
  endpoint: "~/.agentmux/agent.sock"
agents:
  - name: "a"
    process_name: "a"
`
	cfg, err := Load(writeConfig(t, "config.yaml", content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := filepath.Join(home, ".agentmux", "agent.sock")
	if cfg.Proxy.Endpoint != want {
		t.Errorf("Proxy.Endpoint = %q, want %q", cfg.Proxy.Endpoint, want)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "no agents",
			content: `default_agent: ""`,
			wantErr: "at least one agent",
		},
		{
			name: "bad duration",
			content: `
agents: [{name: a, process_name: a}]
lifecycle:
  settle_delay: "soon"`,
			wantErr: "lifecycle.settle_delay",
		},
		{
			name:    "duplicate agent",
			content: `agents: [{name: a, process_name: a}, {name: a, process_name: b}]`,
			wantErr: "duplicated",
		},
		{
			name:    "missing process name",
			content: `agents: [{name: a}]`,
			wantErr: "process_name is required",
		},
		{
			name: "unknown default agent",
			content: `
agents: [{name: a, process_name: a}]
default_agent: b`,
			wantErr: "default_agent",
		},
		{
			name: "mapping with both keys",
			content: `
agents: [{name: a, process_name: a}]
key_mappings: [{fingerprint: "0123456789abcdef", comment: "x", agent: a}]`,
			wantErr: "exactly one of fingerprint or comment",
		},
		{
			name: "mapping to unknown agent",
			content: `
agents: [{name: a, process_name: a}]
key_mappings: [{comment: "x", agent: b}]`,
			wantErr: "not a configured agent",
		},
		{
			name: "pattern with bad fingerprint",
			content: `
agents: [{name: a, process_name: a}]
host_patterns: [{pattern: "github.com", fingerprint: "SHA256:abc"}]`,
			wantErr: "host_patterns[0].fingerprint",
		},
		{
			name: "same endpoints",
			content: `
proxy: {endpoint: /tmp/x.sock, backend_endpoint: /tmp/x.sock}
agents: [{name: a, process_name: a}]`,
			wantErr: "must differ",
		},
		{
			name: "bad log level",
			content: `
agents: [{name: a, process_name: a}]
logging: {level: loud}`,
			wantErr: "logging.level",
		},
		{
			name:    "invalid yaml",
			content: "agents: [",
			wantErr: "parsing config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "config.yaml", tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "reading config file") {
		t.Errorf("error = %v, want reading config file error", err)
	}
}

func TestResolvePath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	t.Setenv(EnvConfigPath, "")

	if got := ResolvePath("/flag.yaml"); got != "/flag.yaml" {
		t.Errorf("ResolvePath(flag) = %q", got)
	}
	if got := ResolvePath(""); got != filepath.Join("/xdg", "agentmux", "config.yaml") {
		t.Errorf("ResolvePath(default) = %q", got)
	}

	t.Setenv(EnvConfigPath, "/env.yaml")
	if got := ResolvePath(""); got != "/env.yaml" {
		t.Errorf("ResolvePath(env) = %q", got)
	}
}
