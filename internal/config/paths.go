// ABOUTME: Default file locations for configuration, database and endpoints
// ABOUTME: Follows XDG base directories, falling back to ~/.config and ~/.local/share

package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// EnvConfigPath names the environment variable that overrides the config path.
const EnvConfigPath = "AGENTMUX_CONFIG"

// DefaultPath returns the config path used when neither --config nor
// AGENTMUX_CONFIG is given.
func DefaultPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// ResolvePath applies the config path priority: explicit flag, then
// AGENTMUX_CONFIG, then the default location.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env
	}
	return DefaultPath()
}

func configDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "agentmux")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "agentmux"
	}
	return filepath.Join(home, ".config", "agentmux")
}

func dataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "agentmux")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "agentmux"
	}
	return filepath.Join(home, ".local", "share", "agentmux")
}

func defaultDatabasePath() string {
	return filepath.Join(dataDir(), "mappings.db")
}

func defaultProxyEndpoint() string {
	if runtime.GOOS == "windows" {
		return `\\.\pipe\agentmux`
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "agentmux", "agent.sock")
	}
	return filepath.Join(dataDir(), "agent.sock")
}

func defaultBackendEndpoint() string {
	if runtime.GOOS == "windows" {
		return `\\.\pipe\openssh-ssh-agent`
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ssh", "agent.sock")
}
