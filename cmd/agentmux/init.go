// ABOUTME: Interactive config writer for the init subcommand
// ABOUTME: Prompts for endpoints, agents and logging, then writes a YAML config

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/2389/agentmux/internal/config"
)

type initAgent struct {
	name, process, path string
}

type initAnswers struct {
	endpoint, backend string
	agents            []initAgent
	defaultAgent      string
	dbPath            string
	logLevel          string
	logFormat         string
}

func runInit(args []string) error {
	fs, configFlag := newFlagSet("init")
	if err := fs.Parse(args); err != nil {
		return err
	}

	reader := bufio.NewReader(os.Stdin)

	fmt.Println("agentmux configuration setup")
	fmt.Println("============================")
	fmt.Println()

	def := config.Default()

	outputFile := prompt(reader, "Config file path", config.ResolvePath(*configFlag))
	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if !isYes(overwrite) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	var a initAnswers

	fmt.Println("\n--- Endpoints ---")
	a.endpoint = prompt(reader, "Proxy endpoint (point SSH_AUTH_SOCK here)", def.Proxy.Endpoint)
	a.backend = prompt(reader, "Backend endpoint (where agents listen)", def.Proxy.BackendEndpoint)

	fmt.Println("\n--- Agents (empty name to finish) ---")
	for i := 1; ; i++ {
		name := prompt(reader, fmt.Sprintf("Agent %d name", i), "")
		if name == "" {
			break
		}
		process := prompt(reader, "  Process name", name)
		path := prompt(reader, "  Executable path", "")
		a.agents = append(a.agents, initAgent{name: name, process: process, path: path})
	}
	if len(a.agents) == 0 {
		return fmt.Errorf("at least one agent is required")
	}
	a.defaultAgent = prompt(reader, "Default agent", a.agents[0].name)

	fmt.Println("\n--- Storage and Logging ---")
	a.dbPath = prompt(reader, "SQLite database path", def.Database.Path)
	a.logLevel = prompt(reader, "Log level (debug/info/warn/error)", "info")
	a.logFormat = prompt(reader, "Log format (text/json)", "text")

	if err := os.MkdirAll(filepath.Dir(outputFile), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(outputFile, []byte(renderConfig(a)), 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	if _, err := config.Load(outputFile); err != nil {
		return fmt.Errorf("written config does not validate: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nTo start the proxy:")
	fmt.Println("  agentmux serve")
	fmt.Printf("  export SSH_AUTH_SOCK=%s\n", a.endpoint)
	return nil
}

func renderConfig(a initAnswers) string {
	var cfg strings.Builder
	cfg.WriteString("# agentmux configuration\n")
	cfg.WriteString("# Generated by agentmux init\n\n")

	cfg.WriteString("proxy:\n")
	cfg.WriteString(fmt.Sprintf("  endpoint: %s\n", strconv.Quote(a.endpoint)))
	cfg.WriteString(fmt.Sprintf("  backend_endpoint: %s\n", strconv.Quote(a.backend)))
	cfg.WriteString("\n")

	cfg.WriteString("agents:\n")
	for i, ag := range a.agents {
		cfg.WriteString(fmt.Sprintf("  - name: %s\n", strconv.Quote(ag.name)))
		cfg.WriteString(fmt.Sprintf("    process_name: %s\n", strconv.Quote(ag.process)))
		if ag.path != "" {
			cfg.WriteString(fmt.Sprintf("    executable_path: %s\n", strconv.Quote(ag.path)))
		}
		cfg.WriteString(fmt.Sprintf("    priority: %d\n", i+1))
	}
	cfg.WriteString("\n")

	cfg.WriteString(fmt.Sprintf("default_agent: %s\n\n", strconv.Quote(a.defaultAgent)))

	cfg.WriteString("failures:\n")
	cfg.WriteString("  ttl_seconds: 60\n\n")

	cfg.WriteString("key_selection:\n")
	cfg.WriteString("  enabled: false\n")
	cfg.WriteString("  timeout: \"10s\"\n\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: %s\n\n", strconv.Quote(a.dbPath)))

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: %s\n", strconv.Quote(a.logLevel)))
	cfg.WriteString(fmt.Sprintf("  format: %s\n", strconv.Quote(a.logFormat)))
	return cfg.String()
}

func isYes(s string) bool {
	s = strings.ToLower(s)
	return s == "yes" || s == "y"
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil && (err != io.EOF || input == "") {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
