// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package capabilities

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jllopis/agentloop/pkg/errors"
	"github.com/jllopis/agentloop/pkg/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ddgBody = `{
	"Heading": "Go (programming language)",
	"AbstractText": "Go is a statically typed, compiled programming language.",
	"AbstractURL": "https://en.wikipedia.org/wiki/Go_(programming_language)",
	"Answer": "",
	"RelatedTopics": [
		{"Text": "Gopher - mascot", "FirstURL": "https://duckduckgo.com/Gopher"},
		{"Name": "See also", "Topics": [
			{"Text": "Rob Pike", "FirstURL": "https://duckduckgo.com/Rob_Pike"},
			{"Text": "Ken Thompson", "FirstURL": "https://duckduckgo.com/Ken_Thompson"}
		]}
	]
}`

func fastSearchRetry() resilience.RetryConfig {
	return resilience.DefaultRetryConfig().WithInitialDelay(time.Millisecond).WithMaxDelay(2 * time.Millisecond)
}

func TestWebSearch(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("q")
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(ddgBody))
	}))
	defer srv.Close()

	ws := NewWebSearch(WithSearchEndpoint(srv.URL), WithMaxResults(2), WithSearchRetry(fastSearchRetry()))
	out, err := ws.Invoke(context.Background(), []string{"golang", "language"})
	require.NoError(t, err)

	assert.Equal(t, "golang language", query)
	assert.Contains(t, out, "Go (programming language)")
	assert.Contains(t, out, "1. Gopher - mascot")
	assert.Contains(t, out, "2. Rob Pike")
	assert.NotContains(t, out, "Ken Thompson")
}

func TestWebSearchNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"RelatedTopics": []}`))
	}))
	defer srv.Close()

	out, err := NewWebSearch(WithSearchEndpoint(srv.URL)).Invoke(context.Background(), []string{"zzzz"})
	require.NoError(t, err)
	assert.Equal(t, "No results found for 'zzzz'.", out)
}

func TestWebSearchRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(ddgBody))
	}))
	defer srv.Close()

	ws := NewWebSearch(WithSearchEndpoint(srv.URL), WithSearchRetry(fastSearchRetry()))
	out, err := ws.Invoke(context.Background(), []string{"go"})
	require.NoError(t, err)
	assert.Contains(t, out, "Gopher")
	assert.Equal(t, int32(3), calls.Load())
}

func TestWebSearchDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	ws := NewWebSearch(WithSearchEndpoint(srv.URL), WithSearchRetry(fastSearchRetry()))
	_, err := ws.Invoke(context.Background(), []string{"go"})
	require.Error(t, err)
	assert.Equal(t, errors.CodeToolFailure, errors.CodeOf(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestWebSearchRequiresQuery(t *testing.T) {
	_, err := NewWebSearch().Invoke(context.Background(), []string{"  "})
	assert.Equal(t, errors.CodeInvalidInput, errors.CodeOf(err))
}

const articleHTML = `<!DOCTYPE html>
<html><head><title>Test Article</title></head>
<body>
<nav><a href="/">Home</a> <a href="/about">About</a></nav>
<article>
<h1>Test Article</h1>
<p>The bounded conversation memory keeps only the most recent entries so that prompts stay small and predictable across many turns of a long running session.</p>
<p>Every reply from the reasoning backend is recorded before it is decoded, which keeps the audit trail intact even when the reply turns out to be malformed.</p>
<p>Capabilities are looked up by name without regard to case, and an unknown name produces a polite fallback message instead of failing the whole turn.</p>
</article>
<footer>Copyright footer</footer>
</body></html>`

func TestWebFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/article":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(articleHTML))
		case "/plain":
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte(strings.Repeat("a", 100)))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	wf := NewWebFetch(WithFetchMaxBytes(64))
	ctx := context.Background()

	out, err := wf.Invoke(ctx, []string{srv.URL + "/article"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Title: Test Article\nURL: "+srv.URL+"/article\n"))
	assert.Contains(t, out, "[truncated]")

	out, err = wf.Invoke(ctx, []string{srv.URL + "/plain"})
	require.NoError(t, err)
	assert.Len(t, out, 64)

	_, err = wf.Invoke(ctx, []string{srv.URL + "/missing"})
	assert.Equal(t, errors.CodeToolFailure, errors.CodeOf(err))
}

func TestWebFetchRejectsBadURLs(t *testing.T) {
	wf := NewWebFetch()
	for _, u := range []string{"", "file:///etc/passwd", "not a url", "http://"} {
		_, err := wf.Invoke(context.Background(), []string{u})
		assert.Equal(t, errors.CodeInvalidInput, errors.CodeOf(err), u)
	}
}

func TestTruncateUTF8(t *testing.T) {
	assert.Equal(t, "ab", truncateUTF8("abé", 3))
	assert.Equal(t, "abé", truncateUTF8("abé", 4))
}
