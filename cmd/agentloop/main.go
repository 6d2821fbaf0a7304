// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package main implements the agentloop CLI.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

type globalFlags struct {
	ConfigPath string
	Sets       []string
	Watch      bool
	JSON       bool
	Help       bool
}

type streams struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := run(ctx, os.Args[1:], streams{in: os.Stdin, out: os.Stdout, err: os.Stderr})
	stop()
	os.Exit(code)
}

func run(ctx context.Context, argv []string, std streams) int {
	global, args, err := parseGlobalFlags(argv)
	if err != nil {
		printError(std.err, NewInvalidArgumentError("flags", err.Error()), false)
		return 2
	}
	if global.Help {
		printUsage(std.out)
		return 0
	}

	cmd := "chat"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "help":
		printUsage(std.out)
		return 0
	case "version":
		fmt.Fprintln(std.out, version)
		return 0
	case "chat", "ask", "tools", "serve-mcp", "audit", "health":
	default:
		printError(std.err, NewInvalidArgumentError("command", fmt.Sprintf("unknown command %q", cmd)), global.JSON)
		return 2
	}

	app, err := newApp(ctx, global, std.err)
	if err != nil {
		printError(std.err, err, global.JSON)
		return 1
	}
	defer func() {
		if err := app.Close(); err != nil {
			fmt.Fprintf(std.err, "shutdown: %v\n", err)
		}
	}()

	switch cmd {
	case "chat":
		err = runChat(ctx, app, std)
	case "ask":
		err = runAsk(ctx, app, args, std, global.JSON)
	case "tools":
		err = runTools(app, args, std.out)
	case "serve-mcp":
		err = runServeMCP(ctx, app, args)
	case "audit":
		err = runAudit(ctx, app, args, std.out)
	case "health":
		err = runHealth(ctx, app, args, std.out)
	}
	if err != nil {
		printError(std.err, err, global.JSON)
		return 1
	}
	return 0
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	var flags globalFlags

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return flags, args[i+1:], nil
		}
		if !strings.HasPrefix(arg, "-") {
			return flags, args[i:], nil
		}
		switch {
		case arg == "-h" || arg == "--help":
			flags.Help = true
			return flags, nil, nil
		case arg == "--json":
			flags.JSON = true
		case arg == "--watch":
			flags.Watch = true
		case arg == "--config":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --config")
			}
			flags.ConfigPath = args[i+1]
			i++
		case strings.HasPrefix(arg, "--config="):
			flags.ConfigPath = strings.TrimPrefix(arg, "--config=")
		case arg == "--set":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --set")
			}
			flags.Sets = append(flags.Sets, args[i+1])
			i++
		case strings.HasPrefix(arg, "--set="):
			flags.Sets = append(flags.Sets, strings.TrimPrefix(arg, "--set="))
		default:
			return flags, nil, fmt.Errorf("unknown global flag %q", arg)
		}
	}
	return flags, nil, nil
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `agentloop: a conversational agent that answers directly or invokes capabilities

Usage:
  agentloop [global flags] [command] [args]

Global flags:
  --config <path>      YAML configuration file
  --set key=value      Override a config key (repeatable)
  --watch              Reload the log level when the config file changes
  --json               JSON output for ask and errors

Commands:
  chat                 Interactive conversation (default)
  ask <text>           Run a single turn and print the result
  tools [-o text|json|yaml]
                       List registered capabilities
  serve-mcp [--http <addr>]
                       Expose capabilities as MCP tools over stdio or HTTP
  audit list [--limit N] [--outcome <o>] [--session <id>] [-o text|json]
                       Show audited turns
  health [-o text|json]
                       Check the audit store, cache and MCP servers
  version
`)
}
