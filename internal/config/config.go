// ABOUTME: Configuration loading and parsing for agentmux
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config represents the complete agentmux configuration
type Config struct {
	Proxy        ProxyConfig         `yaml:"proxy" toml:"proxy"`
	Agents       []AgentConfig       `yaml:"agents" toml:"agents"`
	DefaultAgent string              `yaml:"default_agent" toml:"default_agent"`
	Failures     FailuresConfig      `yaml:"failures" toml:"failures"`
	KeyMappings  []KeyMappingConfig  `yaml:"key_mappings" toml:"key_mappings"`
	HostPatterns []HostPatternConfig `yaml:"host_patterns" toml:"host_patterns"`
	KeySelection KeySelectionConfig  `yaml:"key_selection" toml:"key_selection"`
	Lifecycle    LifecycleConfig     `yaml:"lifecycle" toml:"lifecycle"`
	Database     DatabaseConfig      `yaml:"database" toml:"database"`
	Logging      LoggingConfig       `yaml:"logging" toml:"logging"`
}

// ProxyConfig holds the endpoint configuration
type ProxyConfig struct {
	Endpoint        string `yaml:"endpoint" toml:"endpoint"`                 // where callers connect
	BackendEndpoint string `yaml:"backend_endpoint" toml:"backend_endpoint"` // owned by whichever agent runs
	MaxConnections  int    `yaml:"max_connections" toml:"max_connections"`

	ConnectTimeout    time.Duration `yaml:"-" toml:"-"`
	ConnectTimeoutRaw string        `yaml:"connect_timeout" toml:"connect_timeout"`
}

// AgentConfig describes one backend agent
type AgentConfig struct {
	Name           string `yaml:"name" toml:"name"`
	ProcessName    string `yaml:"process_name" toml:"process_name"`
	ExecutablePath string `yaml:"executable_path" toml:"executable_path"`
	Priority       int    `yaml:"priority" toml:"priority"`
}

// FailuresConfig holds failure cache configuration
type FailuresConfig struct {
	TTLSeconds int `yaml:"ttl_seconds" toml:"ttl_seconds"`
}

// KeyMappingConfig seeds a key-to-agent mapping by fingerprint or comment
type KeyMappingConfig struct {
	Fingerprint string `yaml:"fingerprint,omitempty" toml:"fingerprint"`
	Comment     string `yaml:"comment,omitempty" toml:"comment"`
	Agent       string `yaml:"agent" toml:"agent"`
}

// HostPatternConfig pins a key to a host or repository pattern
type HostPatternConfig struct {
	Pattern     string `yaml:"pattern" toml:"pattern"`
	Fingerprint string `yaml:"fingerprint" toml:"fingerprint"`
	Description string `yaml:"description,omitempty" toml:"description"`
}

// KeySelectionConfig controls the interactive key picker
type KeySelectionConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`

	Timeout    time.Duration `yaml:"-" toml:"-"`
	TimeoutRaw string        `yaml:"timeout" toml:"timeout"`
}

// LifecycleConfig holds agent switching timing
type LifecycleConfig struct {
	SettleDelay           time.Duration `yaml:"-" toml:"-"`
	StartupDelay          time.Duration `yaml:"-" toml:"-"`
	TerminatePollInterval time.Duration `yaml:"-" toml:"-"`
	TerminatePollAttempts int           `yaml:"terminate_poll_attempts" toml:"terminate_poll_attempts"`

	// Raw string values for unmarshaling
	SettleDelayRaw           string `yaml:"settle_delay" toml:"settle_delay"`
	StartupDelayRaw          string `yaml:"startup_delay" toml:"startup_delay"`
	TerminatePollIntervalRaw string `yaml:"terminate_poll_interval" toml:"terminate_poll_interval"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
	File   string `yaml:"file" toml:"file"` // optional log-line stream file
}

// Default returns a configuration with platform defaults and no agents.
func Default() *Config {
	return &Config{
		Proxy: ProxyConfig{
			Endpoint:        defaultProxyEndpoint(),
			BackendEndpoint: defaultBackendEndpoint(),
			MaxConnections:  16,
			ConnectTimeout:  2 * time.Second,
		},
		Failures: FailuresConfig{TTLSeconds: 60},
		KeySelection: KeySelectionConfig{
			Timeout: 10 * time.Second,
		},
		Lifecycle: LifecycleConfig{
			SettleDelay:           500 * time.Millisecond,
			StartupDelay:          time.Second,
			TerminatePollInterval: 500 * time.Millisecond,
			TerminatePollAttempts: 10,
		},
		Database: DatabaseConfig{Path: defaultDatabasePath()},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
// Keys missing from the file keep their Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.Proxy.Endpoint = expandHome(cfg.Proxy.Endpoint)
	cfg.Proxy.BackendEndpoint = expandHome(cfg.Proxy.BackendEndpoint)
	cfg.Database.Path = expandHome(cfg.Database.Path)
	cfg.Logging.File = expandHome(cfg.Logging.File)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// expandHome replaces a leading "~/" with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

var fingerprintRe = regexp.MustCompile(`^[0-9a-f]{16}$`)

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Proxy.Endpoint == "" {
		return fmt.Errorf("proxy.endpoint is required")
	}
	if c.Proxy.BackendEndpoint == "" {
		return fmt.Errorf("proxy.backend_endpoint is required")
	}
	if c.Proxy.Endpoint == c.Proxy.BackendEndpoint {
		return fmt.Errorf("proxy.endpoint and proxy.backend_endpoint must differ")
	}
	if c.Proxy.MaxConnections <= 0 {
		return fmt.Errorf("proxy.max_connections must be positive")
	}

	if len(c.Agents) == 0 {
		return fmt.Errorf("at least one agent is required")
	}
	names := make(map[string]bool, len(c.Agents))
	for i, a := range c.Agents {
		if a.Name == "" {
			return fmt.Errorf("agents[%d].name is required", i)
		}
		if names[a.Name] {
			return fmt.Errorf("agents[%d].name %q is duplicated", i, a.Name)
		}
		names[a.Name] = true
		if a.ProcessName == "" {
			return fmt.Errorf("agents[%d].process_name is required", i)
		}
	}

	if c.DefaultAgent != "" && !names[c.DefaultAgent] {
		return fmt.Errorf("default_agent %q is not a configured agent", c.DefaultAgent)
	}
	if c.Failures.TTLSeconds < 0 {
		return fmt.Errorf("failures.ttl_seconds must not be negative")
	}

	for i, m := range c.KeyMappings {
		if (m.Fingerprint == "") == (m.Comment == "") {
			return fmt.Errorf("key_mappings[%d] needs exactly one of fingerprint or comment", i)
		}
		if m.Fingerprint != "" && !fingerprintRe.MatchString(m.Fingerprint) {
			return fmt.Errorf("key_mappings[%d].fingerprint must be 16 lowercase hex characters", i)
		}
		if !names[m.Agent] {
			return fmt.Errorf("key_mappings[%d].agent %q is not a configured agent", i, m.Agent)
		}
	}

	for i, p := range c.HostPatterns {
		if p.Pattern == "" {
			return fmt.Errorf("host_patterns[%d].pattern is required", i)
		}
		if !fingerprintRe.MatchString(p.Fingerprint) {
			return fmt.Errorf("host_patterns[%d].fingerprint must be 16 lowercase hex characters", i)
		}
	}

	if c.Lifecycle.TerminatePollAttempts < 0 {
		return fmt.Errorf("lifecycle.terminate_poll_attempts must not be negative")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of text, json", c.Logging.Format)
	}

	return nil
}

// FailureTTL returns the failure cache TTL.
func (c *Config) FailureTTL() time.Duration {
	return time.Duration(c.Failures.TTLSeconds) * time.Second
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"proxy.connect_timeout", cfg.Proxy.ConnectTimeoutRaw, &cfg.Proxy.ConnectTimeout},
		{"key_selection.timeout", cfg.KeySelection.TimeoutRaw, &cfg.KeySelection.Timeout},
		{"lifecycle.settle_delay", cfg.Lifecycle.SettleDelayRaw, &cfg.Lifecycle.SettleDelay},
		{"lifecycle.startup_delay", cfg.Lifecycle.StartupDelayRaw, &cfg.Lifecycle.StartupDelay},
		{"lifecycle.terminate_poll_interval", cfg.Lifecycle.TerminatePollIntervalRaw, &cfg.Lifecycle.TerminatePollInterval},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative", f.name)
		}
		*f.dst = d
	}
	return nil
}
