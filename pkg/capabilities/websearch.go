// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package capabilities

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jllopis/agentloop/pkg/errors"
	"github.com/jllopis/agentloop/pkg/resilience"
)

const (
	// WebSearchName is the registered name of the web search capability.
	WebSearchName = "Web Search"

	// DefaultSearchEndpoint is the DuckDuckGo Instant Answer API.
	DefaultSearchEndpoint = "https://api.duckduckgo.com/"

	defaultNumResults = 5
	httpTimeout       = 30 * time.Second
)

// WebSearch queries the DuckDuckGo Instant Answer API.
type WebSearch struct {
	endpoint   string
	maxResults int
	client     *http.Client
	retry      resilience.RetryConfig
	breaker    *resilience.CircuitBreaker
}

// WebSearchOption configures a WebSearch.
type WebSearchOption func(*WebSearch)

// WithSearchEndpoint overrides DefaultSearchEndpoint.
func WithSearchEndpoint(endpoint string) WebSearchOption {
	return func(w *WebSearch) {
		if endpoint != "" {
			w.endpoint = endpoint
		}
	}
}

// WithMaxResults caps the number of formatted results.
func WithMaxResults(n int) WebSearchOption {
	return func(w *WebSearch) {
		if n > 0 {
			w.maxResults = n
		}
	}
}

// WithSearchHTTPClient replaces the HTTP client.
func WithSearchHTTPClient(c *http.Client) WebSearchOption {
	return func(w *WebSearch) {
		if c != nil {
			w.client = c
		}
	}
}

// WithSearchRetry replaces the retry policy used for transient failures.
func WithSearchRetry(rc resilience.RetryConfig) WebSearchOption {
	return func(w *WebSearch) { w.retry = rc }
}

// NewWebSearch creates the web search capability.
func NewWebSearch(opts ...WebSearchOption) *WebSearch {
	w := &WebSearch{
		endpoint:   DefaultSearchEndpoint,
		maxResults: defaultNumResults,
		client:     &http.Client{Timeout: httpTimeout},
		retry:      resilience.DefaultRetryConfig(),
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			Cooldown:         time.Minute,
			Name:             "web_search",
		}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *WebSearch) Name() string { return WebSearchName }

func (w *WebSearch) Description() string {
	return "Searches the web with DuckDuckGo and returns the top results. Args: the search query."
}

// Invoke searches for the words in args.
func (w *WebSearch) Invoke(ctx context.Context, args []string) (string, error) {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return "", errors.New(errors.CodeInvalidInput, "web search: query is required", nil)
	}

	var result ddgResponse
	err := w.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		result, err = resilience.Retry(ctx, w.retry, func(ctx context.Context) (ddgResponse, error) {
			return w.fetch(ctx, query)
		})
		return err
	})
	if err != nil {
		return "", err
	}
	return w.format(query, result), nil
}

func (w *WebSearch) fetch(ctx context.Context, query string) (ddgResponse, error) {
	var out ddgResponse

	u, err := url.Parse(w.endpoint)
	if err != nil {
		return out, errors.New(errors.CodeConfigError, "web search: invalid endpoint", err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("no_html", "1")
	q.Set("skip_disambig", "1")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return out, errors.New(errors.CodeInvalidInput, "web search: build request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		return out, errors.New(errors.CodeToolFailure, "web search: request failed", err).WithRecoverable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return out, errors.New(errors.CodeToolFailure,
			fmt.Sprintf("web search: API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil).
			WithContext("status", resp.StatusCode).
			WithRecoverable(transientStatus(resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, errors.New(errors.CodeToolFailure, "web search: parse response", err)
	}
	return out, nil
}

func (w *WebSearch) format(query string, r ddgResponse) string {
	var b strings.Builder
	if r.Answer != "" {
		fmt.Fprintf(&b, "Answer: %s\n\n", r.Answer)
	}
	if r.AbstractText != "" {
		fmt.Fprintf(&b, "%s\n   %s\n   %s\n\n", r.Heading, r.AbstractURL, r.AbstractText)
	}
	if r.Definition != "" {
		fmt.Fprintf(&b, "Definition: %s\n   %s\n\n", r.Definition, r.DefinitionURL)
	}

	n := 0
	for _, t := range flattenTopics(r.RelatedTopics) {
		if n >= w.maxResults {
			break
		}
		n++
		fmt.Fprintf(&b, "%d. %s\n   %s\n\n", n, t.Text, t.FirstURL)
	}

	if b.Len() == 0 {
		return fmt.Sprintf("No results found for '%s'.", query)
	}
	return strings.TrimRight(b.String(), "\n")
}

func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

type ddgTopic struct {
	Text     string     `json:"Text"`
	FirstURL string     `json:"FirstURL"`
	Name     string     `json:"Name"`
	Topics   []ddgTopic `json:"Topics"`
}

type ddgResponse struct {
	Heading       string     `json:"Heading"`
	Answer        string     `json:"Answer"`
	AbstractText  string     `json:"AbstractText"`
	AbstractURL   string     `json:"AbstractURL"`
	Definition    string     `json:"Definition"`
	DefinitionURL string     `json:"DefinitionURL"`
	RelatedTopics []ddgTopic `json:"RelatedTopics"`
}

// flattenTopics expands grouped topics into a single ordered list.
func flattenTopics(topics []ddgTopic) []ddgTopic {
	var out []ddgTopic
	for _, t := range topics {
		if len(t.Topics) > 0 {
			out = append(out, flattenTopics(t.Topics)...)
			continue
		}
		if t.Text != "" {
			out = append(out, t)
		}
	}
	return out
}
