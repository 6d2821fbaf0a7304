// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package capabilities contains the reference capabilities an agent can be
// started with: a clock, a calculator, text statistics, web search and web
// fetch.
package capabilities

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jllopis/agentloop/pkg/core"
	"github.com/jllopis/agentloop/pkg/errors"
)

// Identifiers accepted by Build.
const (
	IDClock      = "clock"
	IDCalculator = "calculator"
	IDTextStats  = "textstats"
	IDWebSearch  = "websearch"
	IDWebFetch   = "webfetch"
)

// Config selects and tunes the capabilities returned by Build.
type Config struct {
	// Enabled lists capability identifiers in registration order.
	Enabled []string
	// CalculatorExtended admits every evaluator function in the calculator.
	CalculatorExtended bool
	SearchEndpoint     string
	SearchResults      int
	FetchMaxBytes      int
	// HTTPClient is shared by the web capabilities when set.
	HTTPClient *http.Client
}

// Defaults returns the clock and calculator capabilities.
func Defaults() []core.Capability {
	return []core.Capability{NewClock(), NewCalculator()}
}

// Known returns every identifier Build understands.
func Known() []string {
	return []string{IDClock, IDCalculator, IDTextStats, IDWebSearch, IDWebFetch}
}

// Build constructs the capabilities named in cfg.Enabled. An empty list
// yields Defaults.
func Build(cfg Config) ([]core.Capability, error) {
	if len(cfg.Enabled) == 0 {
		return Defaults(), nil
	}

	out := make([]core.Capability, 0, len(cfg.Enabled))
	for _, id := range cfg.Enabled {
		switch strings.ToLower(strings.TrimSpace(id)) {
		case IDClock:
			out = append(out, NewClock())
		case IDCalculator:
			out = append(out, NewCalculator(WithExtendedFunctions(cfg.CalculatorExtended)))
		case IDTextStats:
			out = append(out, NewTextStats())
		case IDWebSearch:
			out = append(out, NewWebSearch(
				WithSearchEndpoint(cfg.SearchEndpoint),
				WithMaxResults(cfg.SearchResults),
				WithSearchHTTPClient(cfg.HTTPClient),
			))
		case IDWebFetch:
			out = append(out, NewWebFetch(
				WithFetchMaxBytes(cfg.FetchMaxBytes),
				WithFetchHTTPClient(cfg.HTTPClient),
			))
		default:
			return nil, errors.New(errors.CodeConfigError, fmt.Sprintf("unknown capability %q", id), nil).
				WithContext("known", Known())
		}
	}
	return out, nil
}

var (
	_ core.Capability = (*Clock)(nil)
	_ core.Capability = (*Calculator)(nil)
	_ core.Capability = (*TextStats)(nil)
	_ core.Capability = (*WebSearch)(nil)
	_ core.Capability = (*WebFetch)(nil)
)
