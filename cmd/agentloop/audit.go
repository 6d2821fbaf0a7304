// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jllopis/agentloop/pkg/audit"
)

func runAudit(ctx context.Context, a *app, args []string, out io.Writer) error {
	if len(args) == 0 || args[0] != "list" {
		return NewInvalidArgumentError("audit", "expected 'audit list'")
	}
	if a.cfg.Audit.Driver == "none" {
		return NewInvalidArgumentError("audit.driver", "auditing is disabled; set audit.driver to memory or sqlite")
	}

	cmd := flag.NewFlagSet("audit list", flag.ContinueOnError)
	cmd.SetOutput(io.Discard)
	limit := cmd.Int("limit", 20, "Maximum number of records")
	outcome := cmd.String("outcome", "", "Only records with this outcome")
	session := cmd.String("session", "", "Only records of this session")
	format := cmd.String("o", "text", "Output format: text|json")
	if err := cmd.Parse(args[1:]); err != nil {
		return NewInvalidArgumentError("audit list", err.Error())
	}

	records, err := a.audit.List(ctx, audit.Filter{
		AgentID:   a.cfg.Agent.ID,
		SessionID: *session,
		Outcome:   audit.Outcome(*outcome),
		Limit:     *limit,
	})
	if err != nil {
		return err
	}

	switch *format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetEscapeHTML(false)
		for _, rec := range records {
			if err := enc.Encode(rec); err != nil {
				return err
			}
		}
		return nil
	case "text":
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "STARTED\tSESSION\tOUTCOME\tACTION\tDURATION\tINPUT")
		for _, rec := range records {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				rec.StartedAt.UTC().Format(time.RFC3339),
				orDash(rec.SessionID),
				rec.Outcome,
				orDash(rec.Action),
				rec.Duration().Round(time.Millisecond),
				truncateCell(rec.Input, 60),
			)
		}
		return tw.Flush()
	default:
		return NewInvalidArgumentError("-o", fmt.Sprintf("unknown format %q", *format))
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncateCell(value string, limit int) string {
	value = strings.Join(strings.Fields(value), " ")
	runes := []rune(value)
	if limit <= 0 || len(runes) <= limit {
		return value
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}
