// ABOUTME: Tests for CLI helpers: generated config, log levels and the color handler
// ABOUTME: The proxy itself is exercised by the internal/proxy tests

package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/agentmux/internal/config"
)

func TestRenderConfig_LoadsBack(t *testing.T) {
	dir := t.TempDir()
	out := renderConfig(initAnswers{
		endpoint: filepath.Join(dir, "agent.sock"),
		backend:  filepath.Join(dir, "backend.sock"),
		agents: []initAgent{
			{name: "1password", process: "1password", path: "/opt/1Password/1password"},
			{name: "ssh-agent", process: "ssh-agent"},
		},
		defaultAgent: "1password",
		dbPath:       filepath.Join(dir, "m.db"),
		logLevel:     "debug",
		logFormat:    "text",
	})

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(out), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Agents, 2)
	assert.Equal(t, 2, cfg.Agents[1].Priority)
	assert.Empty(t, cfg.Agents[1].ExecutablePath)
	assert.Equal(t, "1password", cfg.DefaultAgent)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
}

func TestColorHandler(t *testing.T) {
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	var buf bytes.Buffer
	logger := slog.New(newColorHandler(&buf, slog.LevelInfo))

	logger.Debug("hidden")
	logger.With("component", "router").WithGroup("sign").Warn("failover", "agent", "b")

	line := buf.String()
	assert.Equal(t, 1, strings.Count(line, "\n"))
	assert.Contains(t, line, "WRN failover component=router sign.agent=b")
}
