// ABOUTME: Offline subcommands: config validation, backend probing and mapping maintenance
// ABOUTME: These read the config and database directly and never start the proxy

package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/agentmux/internal/agent"
	"github.com/2389/agentmux/internal/config"
	"github.com/2389/agentmux/internal/store"
	"github.com/2389/agentmux/internal/transport"
)

func runCheck(ctx context.Context, args []string) error {
	fs, configFlag := newFlagSet("check")
	probe := fs.Bool("probe", false, "ask the backend endpoint for its identities")
	if err := fs.Parse(args); err != nil {
		return err
	}
	configPath := config.ResolvePath(*configFlag)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)

	green.Printf("  ✓ Config valid: %s\n\n", configPath)

	defs := make([]agent.Definition, 0, len(cfg.Agents))
	for _, a := range cfg.Agents {
		defs = append(defs, agent.Definition{Name: a.Name, ProcessName: a.ProcessName, ExecutablePath: a.ExecutablePath, Priority: a.Priority})
	}
	defs = agent.SortByPriority(defs)

	cyan.Println("  Agents (priority order)")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  PRIORITY\tNAME\tPROCESS\tEXECUTABLE")
	for _, d := range defs {
		marker := ""
		if d.Name == cfg.DefaultAgent {
			marker = " (default)"
		}
		fmt.Fprintf(w, "  %d\t%s%s\t%s\t%s\n", d.Priority, d.Name, marker, d.ProcessName, d.ExecutablePath)
	}
	w.Flush()

	if len(cfg.HostPatterns) > 0 {
		fmt.Println()
		cyan.Println("  Host patterns")
		for _, hp := range cfg.HostPatterns {
			fmt.Printf("  %-32s %s", hp.Pattern, hp.Fingerprint)
			if hp.Description != "" {
				gray.Printf("  %s", hp.Description)
			}
			fmt.Println()
		}
	}

	if !*probe {
		return nil
	}

	fmt.Println()
	client := transport.NewClient(cfg.Proxy.BackendEndpoint, cfg.Proxy.ConnectTimeout)
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	ids, err := client.RequestIdentities(probeCtx)
	if err != nil {
		return fmt.Errorf("probing backend %s: %w", cfg.Proxy.BackendEndpoint, err)
	}
	green.Printf("  ✓ Backend %s offers %d identities\n", cfg.Proxy.BackendEndpoint, len(ids))
	for _, id := range ids {
		fmt.Printf("    %s\n", id.String())
	}
	return nil
}

func runMappings(ctx context.Context, args []string) error {
	fs, configFlag := newFlagSet("mappings")
	remove := fs.String("delete", "", "delete the mapping for this fingerprint")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(config.ResolvePath(*configFlag))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path, nil)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	if *remove != "" {
		if err := s.DeleteMapping(ctx, *remove); err != nil {
			return fmt.Errorf("deleting mapping: %w", err)
		}
		color.New(color.FgGreen).Printf("  ✓ Deleted mapping %s\n", *remove)
		return nil
	}

	mappings, err := s.ListMappings(ctx)
	if err != nil {
		return fmt.Errorf("listing mappings: %w", err)
	}
	if len(mappings) == 0 {
		fmt.Println("No persisted mappings.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FINGERPRINT\tAGENT\tSIGNS\tLAST USED\tCOMMENT")
	for _, m := range mappings {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			m.Fingerprint, m.Agent, m.SignCount, m.UpdatedAt.Local().Format("2006-01-02 15:04"), m.Comment)
	}
	return w.Flush()
}
