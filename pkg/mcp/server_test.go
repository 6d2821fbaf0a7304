package mcp

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jllopis/agentloop/pkg/capabilities"
	"github.com/jllopis/agentloop/pkg/capability"
	"github.com/jllopis/agentloop/pkg/core"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
)

func newTestRegistry(t *testing.T, caps ...core.Capability) *capability.Registry {
	t.Helper()
	reg, err := capability.NewRegistry(caps...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

func TestServer_InProcessRoundTrip(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reg := newTestRegistry(t,
		capabilities.NewClock(capabilities.WithNow(func() time.Time { return fixed })),
		capabilities.NewCalculator(),
	)
	srv, err := NewServer("agentloop", "test", reg, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	tools := srv.Tools()
	if tools["time_tool"] != capabilities.ClockName || tools["calculator_tool"] != capabilities.CalculatorName {
		t.Fatalf("Tools() = %v", tools)
	}

	ctx := context.Background()
	client, err := NewInProcessClient(ctx, srv)
	if err != nil {
		t.Fatalf("NewInProcessClient: %v", err)
	}
	defer client.Close()

	listed, err := client.ListTools(ctx)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	names := make(map[string]bool)
	for _, tool := range listed {
		names[tool.Name] = true
	}
	if !names["calculator_tool"] || !names["time_tool"] {
		t.Fatalf("listed tools = %v", names)
	}

	caps, err := client.Capabilities(ctx)
	if err != nil {
		t.Fatalf("Capabilities: %v", err)
	}
	var calc core.Capability
	for _, c := range caps {
		if c.Name() == "calculator_tool" {
			calc = c
		}
	}
	if calc == nil {
		t.Fatal("calculator_tool not adapted")
	}

	out, err := calc.Invoke(ctx, []string{"2 + 2"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !strings.Contains(out, "is 4") {
		t.Fatalf("output = %q", out)
	}

	// The calculator reports bad input as text, so it is not an IsError result.
	out, err = calc.Invoke(ctx, []string{"2 +"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !strings.Contains(out, "Sorry, I couldn't evaluate") {
		t.Fatalf("output = %q", out)
	}
}

func TestServer_CapabilityErrorIsToolError(t *testing.T) {
	failing := core.NewCapabilityFunc("Broken Tool", "always fails", func(context.Context, []string) (string, error) {
		return "", errors.New("out of order")
	})
	srv, err := NewServer("agentloop", "test", newTestRegistry(t, failing), nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	ctx := context.Background()
	client, err := NewInProcessClient(ctx, srv, WithRetry(0, 0))
	if err != nil {
		t.Fatalf("NewInProcessClient: %v", err)
	}
	defer client.Close()

	result, err := client.CallTool(ctx, "broken_tool", map[string]any{"args": []string{}})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected IsError result, got %+v", result)
	}
	if text := extractTextContent(result.Content); !strings.Contains(text, "out of order") {
		t.Fatalf("error text = %q", text)
	}
}

func TestServer_DuplicateToolName(t *testing.T) {
	noop := func(context.Context, []string) (string, error) { return "", nil }
	reg := newTestRegistry(t,
		core.NewCapabilityFunc("Foo Bar", "", noop),
		core.NewCapabilityFunc("foo_bar", "", noop),
	)
	if _, err := NewServer("agentloop", "test", reg, nil); err == nil {
		t.Fatal("expected error for colliding tool names")
	}
}

func TestToolName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Time Tool", "time_tool"},
		{"Calculator Tool", "calculator_tool"},
		{"  web-fetch ", "web-fetch"},
		{"Text: stats!", "text_stats"},
		{"Ünïcode name", "n_code_name"},
		{"???", ""},
	}
	for _, tt := range tests {
		if got := ToolName(tt.in); got != tt.want {
			t.Errorf("ToolName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestToolArgs(t *testing.T) {
	req := func(args map[string]any) mcpgo.CallToolRequest {
		r := mcpgo.CallToolRequest{}
		r.Params.Arguments = args
		return r
	}
	tests := []struct {
		name    string
		args    map[string]any
		want    []string
		wantErr bool
	}{
		{"missing", nil, []string{}, false},
		{"string", map[string]any{"args": "x"}, []string{"x"}, false},
		{"strings", map[string]any{"args": []string{"a", "b"}}, []string{"a", "b"}, false},
		{"any slice", map[string]any{"args": []any{"a", "b"}}, []string{"a", "b"}, false},
		{"bad item", map[string]any{"args": []any{"a", 1}}, nil, true},
		{"bad type", map[string]any{"args": 3}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := toolArgs(req(tt.args))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") || (!tt.wantErr && got == nil) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}
