// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/jllopis/agentloop/pkg/mcp"
)

type toolInfo struct {
	Name        string             `json:"name" yaml:"name"`
	Description string             `json:"description" yaml:"description"`
	Schema      *jsonschema.Schema `json:"schema,omitempty" yaml:"-"`
}

func runTools(a *app, args []string, out io.Writer) error {
	cmd := flag.NewFlagSet("tools", flag.ContinueOnError)
	cmd.SetOutput(io.Discard)
	format := cmd.String("o", "text", "Output format: text|json|yaml")
	if err := cmd.Parse(args); err != nil {
		return NewInvalidArgumentError("tools", err.Error())
	}

	var tools []toolInfo
	for _, entry := range a.registry.List() {
		schema, err := a.registry.Schema(entry.Name)
		if err != nil {
			return err
		}
		tools = append(tools, toolInfo{Name: entry.Name, Description: entry.Description, Schema: schema})
	}
	return writeTools(out, tools, *format)
}

func writeTools(out io.Writer, tools []toolInfo, format string) error {
	switch format {
	case "text":
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tDESCRIPTION")
		for _, t := range tools {
			fmt.Fprintf(tw, "%s\t%s\n", t.Name, t.Description)
		}
		return tw.Flush()
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(tools)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(tools); err != nil {
			return err
		}
		return enc.Close()
	default:
		return NewInvalidArgumentError("-o", fmt.Sprintf("unknown format %q", format))
	}
}

func runServeMCP(ctx context.Context, a *app, args []string) error {
	cmd := flag.NewFlagSet("serve-mcp", flag.ContinueOnError)
	cmd.SetOutput(io.Discard)
	addr := cmd.String("http", "", "Serve streamable HTTP on this address instead of stdio")
	if err := cmd.Parse(args); err != nil {
		return NewInvalidArgumentError("serve-mcp", err.Error())
	}

	srv, err := mcp.NewServer(a.cfg.Agent.ID, version, a.registry, a.logger)
	if err != nil {
		return err
	}
	a.logger.InfoContext(ctx, "mcp.serve.start",
		slog.String("transport", transportName(*addr)),
		slog.Int("tools", len(srv.Tools())),
	)
	if *addr != "" {
		return srv.ServeHTTP(ctx, *addr)
	}
	return srv.ServeStdio()
}

func transportName(addr string) string {
	if addr != "" {
		return "http " + addr
	}
	return "stdio"
}
