package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	aerrors "github.com/jllopis/agentloop/pkg/errors"
)

func TestMockProvider(t *testing.T) {
	mock := &MockProvider{Response: "Hello world"}
	resp, err := mock.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "Hi"}},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != "Hello world" {
		t.Errorf("Expected 'Hello world', got '%s'", resp.Content)
	}
}

func TestChatCompleter(t *testing.T) {
	mock := &MockProvider{Response: "  {\"action\": \"respond_to_user\", \"args\": \"hi\"}\n"}
	c := NewChatCompleter(mock, WithModel("test-model"))

	reply, err := c.Complete(context.Background(), "the prompt")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if reply != `{"action": "respond_to_user", "args": "hi"}` {
		t.Errorf("expected trimmed reply, got %q", reply)
	}

	reqs := mock.Requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	req := reqs[0]
	if req.Model != "test-model" {
		t.Errorf("expected model test-model, got %q", req.Model)
	}
	if !req.JSONMode {
		t.Error("expected JSON mode to be enabled by default")
	}
	if len(req.Messages) != 2 {
		t.Fatalf("expected system and user messages, got %d", len(req.Messages))
	}
	if req.Messages[0].Role != RoleSystem || req.Messages[0].Content != DefaultSystemPrompt {
		t.Errorf("unexpected system message: %+v", req.Messages[0])
	}
	if req.Messages[1].Role != RoleUser || req.Messages[1].Content != "the prompt" {
		t.Errorf("unexpected user message: %+v", req.Messages[1])
	}
}

func TestChatCompleterPropagatesError(t *testing.T) {
	want := errors.New("connection refused")
	c := NewChatCompleter(&MockProvider{Err: want})
	if _, err := c.Complete(context.Background(), "x"); !errors.Is(err, want) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestChatCompleterOptions(t *testing.T) {
	mock := &MockProvider{Response: "ok"}
	c := NewChatCompleter(mock, WithSystemPrompt("Answer in JSON."), WithJSONMode(false), WithTemperature(0.2))
	if _, err := c.Complete(context.Background(), "p"); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	req := mock.Requests()[0]
	if req.Messages[0].Content != "Answer in JSON." || req.JSONMode || req.Temperature != 0.2 {
		t.Errorf("unexpected request %+v", req)
	}
}

func TestScriptedMockProvider(t *testing.T) {
	s := NewScriptedMockProvider("one", "two")
	c := NewChatCompleter(s)
	ctx := context.Background()

	for _, want := range []string{"one", "two"} {
		got, err := c.Complete(ctx, "prompt-"+want)
		if err != nil {
			t.Fatalf("Complete failed: %v", err)
		}
		if got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	}
	if _, err := c.Complete(ctx, "again"); err == nil {
		t.Error("expected error once the script is exhausted")
	}
	if s.CallCount != 3 {
		t.Errorf("expected 3 calls, got %d", s.CallCount)
	}
	if s.LastPrompt() != "again" {
		t.Errorf("expected last prompt 'again', got %q", s.LastPrompt())
	}

	s.AddResponse("three")
	if got, err := c.Complete(ctx, "more"); err != nil || got != "three" {
		t.Errorf("after AddResponse got %q, %v", got, err)
	}
}

func TestOllamaProvider(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message":           map[string]string{"role": "assistant", "content": `{"action":"respond_to_user","args":"hi"}`},
			"done":              true,
			"eval_count":        5,
			"prompt_eval_count": 7,
		})
	}))
	defer srv.Close()

	p := NewOllama(srv.URL)
	resp, err := p.Chat(context.Background(), ChatRequest{
		Model:    "llama3.2",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
		JSONMode: true,
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != `{"action":"respond_to_user","args":"hi"}` {
		t.Errorf("unexpected content %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 12 {
		t.Errorf("expected 12 total tokens, got %d", resp.Usage.TotalTokens)
	}
	if got.Format != "json" {
		t.Errorf("expected format json, got %q", got.Format)
	}
	if got.Stream {
		t.Error("expected non-streaming request")
	}
}

func TestOllamaProviderStatusError(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		recoverable bool
	}{
		{"not found", http.StatusNotFound, false},
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusBadGateway, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "model not found", tt.status)
			}))
			defer srv.Close()

			_, err := NewOllama(srv.URL+"/").Chat(context.Background(), ChatRequest{Model: "missing"})
			if err == nil {
				t.Fatal("expected error for non-2xx status")
			}
			ae := aerrors.AsAgentError(err)
			if ae.Code != aerrors.CodeBackendError || ae.Recoverable != tt.recoverable {
				t.Errorf("code = %s recoverable = %v", ae.Code, ae.Recoverable)
			}
			if ae.Context["status"] != tt.status {
				t.Errorf("status context = %v", ae.Context["status"])
			}
		})
	}
}

func TestOllamaProviderBodyError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "model is loading"})
	}))
	defer srv.Close()

	client := &http.Client{Timeout: time.Second}
	_, err := NewOllama(srv.URL, WithOllamaHTTPClient(client)).Chat(context.Background(), ChatRequest{Model: "m"})
	if err == nil || aerrors.CodeOf(err) != aerrors.CodeBackendError {
		t.Fatalf("err = %v", err)
	}
}

func TestCachedCompleter(t *testing.T) {
	var calls atomic.Int32
	next := CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		calls.Add(1)
		return "reply:" + prompt, nil
	})
	cache := NewMemoryCache(8, 0)
	c := NewCachedCompleter(next, cache, "mock/test")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := c.Complete(ctx, "same")
		if err != nil {
			t.Fatalf("Complete failed: %v", err)
		}
		if got != "reply:same" {
			t.Errorf("unexpected reply %q", got)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("expected backend to be called once, got %d", calls.Load())
	}
	if _, err := c.Complete(ctx, "other"); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if calls.Load() != 2 || cache.Len() != 2 {
		t.Errorf("expected 2 calls and 2 entries, got %d and %d", calls.Load(), cache.Len())
	}
}

func TestCachedCompleterDoesNotCacheErrors(t *testing.T) {
	var calls atomic.Int32
	next := CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		calls.Add(1)
		return "", errors.New("backend down")
	})
	c := NewCachedCompleter(next, NewMemoryCache(8, time.Minute), "ns")
	for i := 0; i < 2; i++ {
		if _, err := c.Complete(context.Background(), "p"); err == nil {
			t.Fatal("expected error")
		}
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 backend calls, got %d", calls.Load())
	}
}

func TestCacheKeyNamespaces(t *testing.T) {
	if CacheKey("a", "p") == CacheKey("b", "p") {
		t.Error("expected namespaces to produce different keys")
	}
	if CacheKey("a", "p") != CacheKey("a", "p") {
		t.Error("expected stable keys")
	}
}

func TestNewRedisCacheRequiresAddress(t *testing.T) {
	if _, err := NewRedisCache(context.Background(), RedisCacheConfig{}); err == nil {
		t.Fatal("expected error for empty address")
	}
}
