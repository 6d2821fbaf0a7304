package mcp

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

func newPingServer(calls *atomic.Int32) *mcpserver.MCPServer {
	server := mcpserver.NewMCPServer("test-http", "1.0.0", mcpserver.WithToolCapabilities(false))
	server.AddTool(mcpgo.NewTool("ping"), func(ctx context.Context, _ mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		if calls != nil {
			calls.Add(1)
		}
		return mcpgo.NewToolResultText("ok"), nil
	})
	return server
}

func TestClient_StreamableHTTP_ListTools(t *testing.T) {
	httpServer := mcpserver.NewTestStreamableHTTPServer(newPingServer(nil))
	defer httpServer.Close()

	client, err := NewStreamableHTTPClient(context.Background(), httpServer.URL)
	if err != nil {
		t.Fatalf("NewStreamableHTTPClient error: %v", err)
	}
	defer client.Close()

	tools, err := client.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools error: %v", err)
	}
	if len(tools) == 0 || tools[0].Name != "ping" {
		t.Fatalf("Expected tool 'ping', got %+v", tools)
	}
}

func TestClient_StreamableHTTP_CapabilitiesInvoke(t *testing.T) {
	var calls atomic.Int32
	httpServer := mcpserver.NewTestStreamableHTTPServer(newPingServer(&calls))
	defer httpServer.Close()

	ctx := context.Background()
	client, err := NewStreamableHTTPClient(ctx, httpServer.URL, WithTimeout(5*time.Second), WithRetry(0, 0))
	if err != nil {
		t.Fatalf("NewStreamableHTTPClient error: %v", err)
	}
	defer client.Close()

	caps, err := client.Capabilities(ctx)
	if err != nil {
		t.Fatalf("Capabilities error: %v", err)
	}
	if len(caps) != 1 || caps[0].Name() != "ping" {
		t.Fatalf("unexpected capabilities %+v", caps)
	}
	out, err := caps[0].Invoke(ctx, nil)
	if err != nil {
		t.Fatalf("Invoke error: %v", err)
	}
	if out != "ok" {
		t.Fatalf("output = %q", out)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestNewStreamableHTTPClient_Unreachable(t *testing.T) {
	httpServer := mcpserver.NewTestStreamableHTTPServer(newPingServer(nil))
	url := httpServer.URL
	httpServer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := NewStreamableHTTPClient(ctx, url); err == nil {
		t.Fatal("expected error connecting to a closed server")
	}
}
