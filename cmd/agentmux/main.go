// ABOUTME: Entry point for the agentmux ssh-agent routing proxy
// ABOUTME: Dispatches the serve, init, check, mappings and version subcommands

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	flag "github.com/spf13/pflag"

	"github.com/2389/agentmux/internal/config"
	"github.com/2389/agentmux/internal/logstream"
	"github.com/2389/agentmux/internal/proxy"
)

// version is set by goreleaser at build time.
var version = "dev"

const banner = `
                         _
  __ _  __ _  ___ _ __ | |_ _ __ ___  _   ___  __
 / _' |/ _' |/ _ \ '_ \| __| '_ ' _ \| | | \ \/ /
| (_| | (_| |  __/ | | | |_| | | | | | |_| |>  <
 \__,_|\__, |\___|_| |_|\__|_| |_| |_|\__,_/_/\_\
       |___/
`

func usage() {
	fmt.Println("Usage: agentmux <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                  Run the proxy")
	fmt.Println("  init                   Create a new config file interactively")
	fmt.Println("  check [--probe]        Validate the config and list agents")
	fmt.Println("  mappings [--delete FP] List or delete persisted key mappings")
	fmt.Println("  version                Print the version")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  -c, --config PATH      Config file (default $AGENTMUX_CONFIG or ~/.config/agentmux/config.yaml)")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	args := os.Args[2:]
	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx, args)
	case "init":
		err = runInit(args)
	case "check":
		err = runCheck(ctx, args)
	case "mappings":
		err = runMappings(ctx, args)
	case "version", "--version", "-v":
		fmt.Printf("agentmux %s\n", version)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newFlagSet returns a flag set carrying the shared --config flag.
func newFlagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	configPath := fs.StringP("config", "c", "", "path to the config file")
	return fs, configPath
}

func runServe(ctx context.Context, args []string) error {
	fs, configFlag := newFlagSet("serve")
	quiet := fs.BoolP("quiet", "q", false, "do not print the banner")
	if err := fs.Parse(args); err != nil {
		return err
	}
	configPath := config.ResolvePath(*configFlag)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	stream := logstream.NewBroadcaster()
	defer stream.Close()
	logger := setupLogger(cfg.Logging, stream)

	if cfg.Logging.File != "" {
		stop, err := pipeLogFile(ctx, stream, cfg.Logging.File)
		if err != nil {
			return err
		}
		defer stop()
	}

	if !*quiet {
		printStartup(cfg, configPath)
	}

	logger.Info("starting agentmux",
		"version", version,
		"config", configPath,
		"endpoint", cfg.Proxy.Endpoint,
		"backend", cfg.Proxy.BackendEndpoint,
	)

	p, err := proxy.New(cfg, configPath, logger)
	if err != nil {
		return fmt.Errorf("creating proxy: %w", err)
	}
	return p.Run(ctx)
}

func printStartup(cfg *config.Config, configPath string) {
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)

	cyan.Print(banner)
	gray.Printf("    version: %s\n\n", version)

	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Endpoint: %s\n", cfg.Proxy.Endpoint)
	green.Print("    ▶ ")
	fmt.Printf("Backend:  %s\n", cfg.Proxy.BackendEndpoint)
	green.Print("    ▶ ")
	fmt.Printf("Agents:   %d", len(cfg.Agents))
	if cfg.DefaultAgent != "" {
		gray.Printf(" (default %s)", cfg.DefaultAgent)
	}
	fmt.Println()
	fmt.Println()
}
