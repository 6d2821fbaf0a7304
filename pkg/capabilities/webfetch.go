// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package capabilities

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	readability "codeberg.org/readeck/go-readability/v2"
	"github.com/jllopis/agentloop/pkg/errors"
)

const (
	// WebFetchName is the registered name of the web fetch capability.
	WebFetchName = "Web Fetch"

	// DefaultFetchMaxBytes caps the text returned by WebFetch.
	DefaultFetchMaxBytes = 50 * 1024

	maxBodyBytes = 5 << 20
	userAgent    = "agentloop/1.0"
)

// WebFetch downloads a page and extracts its readable text.
type WebFetch struct {
	maxBytes int
	client   *http.Client
}

// WebFetchOption configures a WebFetch.
type WebFetchOption func(*WebFetch)

// WithFetchMaxBytes caps the size of the returned text.
func WithFetchMaxBytes(n int) WebFetchOption {
	return func(w *WebFetch) {
		if n > 0 {
			w.maxBytes = n
		}
	}
}

// WithFetchHTTPClient replaces the HTTP client.
func WithFetchHTTPClient(c *http.Client) WebFetchOption {
	return func(w *WebFetch) {
		if c != nil {
			w.client = c
		}
	}
}

// NewWebFetch creates the web fetch capability.
func NewWebFetch(opts ...WebFetchOption) *WebFetch {
	w := &WebFetch{
		maxBytes: DefaultFetchMaxBytes,
		client:   &http.Client{Timeout: httpTimeout},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *WebFetch) Name() string { return WebFetchName }

func (w *WebFetch) Description() string {
	return "Fetches a web page and extracts its readable text. Args: the http or https URL."
}

// Invoke fetches args[0].
func (w *WebFetch) Invoke(ctx context.Context, args []string) (string, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return "", errors.New(errors.CodeInvalidInput, "web fetch: url is required", nil)
	}
	rawURL := strings.TrimSpace(args[0])

	parsedURL, err := url.Parse(rawURL)
	if err != nil || (parsedURL.Scheme != "http" && parsedURL.Scheme != "https") || parsedURL.Host == "" {
		return "", errors.New(errors.CodeInvalidInput, "web fetch: invalid URL", err).WithContext("url", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", errors.New(errors.CodeInvalidInput, "web fetch: build request", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		return "", errors.New(errors.CodeToolFailure, "web fetch: request failed", err).WithRecoverable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.New(errors.CodeToolFailure, fmt.Sprintf("web fetch: HTTP %d", resp.StatusCode), nil).
			WithContext("url", rawURL).
			WithRecoverable(transientStatus(resp.StatusCode))
	}

	body := io.LimitReader(resp.Body, maxBodyBytes)
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		data, err := io.ReadAll(io.LimitReader(body, int64(w.maxBytes)))
		if err != nil {
			return "", errors.New(errors.CodeToolFailure, "web fetch: read body", err)
		}
		return string(data), nil
	}

	article, err := readability.FromReader(body, parsedURL)
	if err != nil {
		return "", errors.New(errors.CodeToolFailure, "web fetch: parse", err)
	}

	var textBuf bytes.Buffer
	if err := article.RenderText(&textBuf); err != nil {
		return "", errors.New(errors.CodeToolFailure, "web fetch: render", err)
	}

	text := strings.TrimSpace(textBuf.String())
	words := len(strings.Fields(text))
	if len(text) > w.maxBytes {
		text = truncateUTF8(text, w.maxBytes) + "\n... [truncated]"
	}

	return fmt.Sprintf("Title: %s\nURL: %s\nWords: %d\n\n%s", article.Title(), rawURL, words, text), nil
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
