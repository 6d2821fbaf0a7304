// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/jllopis/agentloop/pkg/audit"
	"github.com/jllopis/agentloop/pkg/core"
	"github.com/jllopis/agentloop/pkg/errors"
)

type checkerFunc func(ctx context.Context) core.HealthResult

func (f checkerFunc) Check(ctx context.Context) core.HealthResult { return f(ctx) }

// healthRegistry registers a checker for every runtime component that talks
// to something outside the process.
func (a *app) healthRegistry() *core.HealthRegistry {
	reg := core.NewHealthRegistry(5 * time.Second)

	reg.Register("capabilities", checkerFunc(func(context.Context) core.HealthResult {
		if a.registry.Len() == 0 {
			return core.HealthResult{Status: core.HealthDegraded, Message: "no capabilities registered"}
		}
		return core.HealthResult{Status: core.HealthHealthy, Message: fmt.Sprintf("%d registered", a.registry.Len())}
	}))

	if a.cfg.Audit.Driver != "none" {
		reg.Register("audit", core.HealthCheckFunc(func(ctx context.Context) error {
			_, err := a.audit.List(ctx, audit.Filter{Limit: 1})
			return err
		}))
	}

	if a.cache != nil {
		reg.Register("cache", core.HealthCheckFunc(func(ctx context.Context) error {
			_, _, err := a.cache.Get(ctx, "health")
			return err
		}))
	}

	if a.mcp != nil {
		for _, name := range a.mcp.Names() {
			client, _ := a.mcp.Client(name)
			reg.Register("mcp/"+name, core.HealthCheckFunc(func(ctx context.Context) error {
				_, err := client.ListTools(ctx)
				return err
			}))
		}
	}
	return reg
}

type healthReport struct {
	Status     core.HealthStatus   `json:"status"`
	Components []core.HealthResult `json:"components"`
}

func runHealth(ctx context.Context, a *app, args []string, out io.Writer) error {
	cmd := flag.NewFlagSet("health", flag.ContinueOnError)
	cmd.SetOutput(io.Discard)
	format := cmd.String("o", "text", "Output format: text|json")
	if err := cmd.Parse(args); err != nil {
		return NewInvalidArgumentError("health", err.Error())
	}

	results, overall := a.healthRegistry().CheckAll(ctx)
	switch *format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(healthReport{Status: overall, Components: results}); err != nil {
			return err
		}
	case "text":
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "COMPONENT\tSTATUS\tLATENCY\tMESSAGE")
		for _, r := range results {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Component, r.Status, r.Latency.Round(time.Microsecond), orDash(r.Message))
		}
		fmt.Fprintf(tw, "overall\t%s\t\t\n", overall)
		if err := tw.Flush(); err != nil {
			return err
		}
	default:
		return NewInvalidArgumentError("-o", fmt.Sprintf("unknown format %q", *format))
	}

	if overall == core.HealthUnhealthy {
		return NewCLIError(errors.New(errors.CodeInternal, "one or more components are unhealthy", nil),
			"see the component messages above")
	}
	return nil
}
