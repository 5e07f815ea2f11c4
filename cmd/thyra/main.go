// Copyright 2026 © The Thyra Authors
// SPDX-License-Identifier: Apache-2.0

// Command thyra runs a gated agent workflow from the command line: tools come
// from one or more MCP servers, the workflow shape from a YAML state machine
// definition, and everything else from the config file and THYRA_ env vars.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/thyra-ai/thyra/pkg/audit"
	"github.com/thyra-ai/thyra/pkg/blackboard"
	"github.com/thyra-ai/thyra/pkg/config"
	"github.com/thyra-ai/thyra/pkg/core"
	"github.com/thyra-ai/thyra/pkg/llm"
	thyramcp "github.com/thyra-ai/thyra/pkg/mcp"
	"github.com/thyra-ai/thyra/pkg/statemachine"
	"github.com/thyra-ai/thyra/pkg/telemetry"
)

const version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "run":
		runMachine(ctx, os.Args[2:])
	case "version":
		fmt.Println("thyra " + version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fatal(fmt.Errorf("unknown command %q", os.Args[1]))
	}
}

func runMachine(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.yaml")
	machinePath := fs.String("machine", "", "path to the state machine definition (YAML or JSON)")
	model := fs.String("model", "", "override the configured model")
	var servers stringList
	fs.Var(&servers, "mcp", "MCP server command, e.g. 'npx server-filesystem /tmp' (repeatable)")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}
	if *machinePath == "" {
		fatal(fmt.Errorf("--machine is required"))
	}
	input := strings.Join(fs.Args(), " ")
	if input == "" {
		fatal(fmt.Errorf("a task description is required after the flags"))
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}
	telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	shutdown, err := telemetry.InitWithConfig("thyra", version, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.Insecure,
	})
	if err != nil {
		fatal(err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	tools, closers, err := collectTools(ctx, servers)
	if err != nil {
		fatal(err)
	}
	defer func() {
		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				slog.Warn("mcp client close failed", slog.String("error", err.Error()))
			}
		}
	}()

	machine, err := statemachine.LoadFile(*machinePath, tools)
	if err != nil {
		fatal(err)
	}

	store, err := openAuditStore(cfg)
	if err != nil {
		fatal(err)
	}

	chosenModel := cfg.LLM.Model
	if *model != "" {
		chosenModel = *model
	}
	provider := llm.NewOllama(cfg.LLM.BaseURL)

	machine = machine.
		WithLLM(provider, chosenModel).
		WithMaxIterations(cfg.Loop.MaxIterations).
		WithTemperature(cfg.Loop.Temperature).
		WithBlackboard(blackboard.NewInMemory()).
		WithAuditStore(store)

	res := machine.Call(ctx, input)
	if res.IsError() {
		fatal(res.Err)
	}
	fmt.Println(res.Payload())
}

// collectTools starts each MCP server and merges the adapted tool sets.
// Later servers win on name collisions.
func collectTools(ctx context.Context, servers stringList) (map[string]core.Tool, []func() error, error) {
	tools := make(map[string]core.Tool)
	var closers []func() error
	for _, spec := range servers {
		parts := strings.Fields(spec)
		if len(parts) == 0 {
			continue
		}
		client, err := thyramcp.NewStdioClient(parts[0], parts[1:])
		if err != nil {
			return nil, closers, fmt.Errorf("start mcp server %q: %w", spec, err)
		}
		closers = append(closers, client.Close)
		adapted, err := thyramcp.Tools(ctx, client)
		if err != nil {
			return nil, closers, fmt.Errorf("list tools from %q: %w", spec, err)
		}
		for _, tool := range adapted {
			tools[tool.Definition().Name] = tool
		}
	}
	return tools, closers, nil
}

func openAuditStore(cfg *config.Config) (audit.Store, error) {
	switch cfg.Audit.Driver {
	case "", "memory":
		return audit.NewMemoryStore(), nil
	case "sqlite":
		store, err := audit.OpenSQLite(cfg.Audit.DSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown audit driver %q", cfg.Audit.Driver)
	}
}

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `thyra %s

Usage:
  thyra run --machine workflow.yaml [--config config.yaml] [--mcp "cmd args"]... <task>
  thyra version

Example:
  thyra run --machine order.yaml --mcp "npx @modelcontextprotocol/server-filesystem /data" "ship order 42"
`, version)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
