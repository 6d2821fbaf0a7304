package mcp

import (
	"context"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

func TestConnect_URLServers(t *testing.T) {
	alpha := mcpserver.NewMCPServer("alpha", "1.0.0")
	alpha.AddTool(mcpgo.NewTool("alpha_ping"), func(context.Context, mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		return mcpgo.NewToolResultText("a"), nil
	})
	beta := mcpserver.NewMCPServer("beta", "1.0.0")
	beta.AddTool(mcpgo.NewTool("beta_ping"), func(context.Context, mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		return mcpgo.NewToolResultText("b"), nil
	})
	alphaHTTP := mcpserver.NewTestStreamableHTTPServer(alpha)
	defer alphaHTTP.Close()
	betaHTTP := mcpserver.NewTestStreamableHTTPServer(beta)
	defer betaHTTP.Close()

	ctx := context.Background()
	set, err := Connect(ctx, []ServerSpec{
		{Name: "beta", URL: betaHTTP.URL},
		{Name: "alpha", URL: alphaHTTP.URL},
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer set.Close()

	if names := set.Names(); len(names) != 2 || names[0] != "alpha" || names[1] != "beta" {
		t.Fatalf("Names() = %v", names)
	}
	if _, ok := set.Client("beta"); !ok {
		t.Fatal("Client(beta) missing")
	}

	caps, err := set.Capabilities(ctx)
	if err != nil {
		t.Fatalf("Capabilities: %v", err)
	}
	if len(caps) != 2 || caps[0].Name() != "alpha_ping" || caps[1].Name() != "beta_ping" {
		t.Fatalf("unexpected capabilities %v", caps)
	}
}

func TestConnect_InvalidSpecClosesOpened(t *testing.T) {
	srv := mcpserver.NewMCPServer("alpha", "1.0.0")
	httpServer := mcpserver.NewTestStreamableHTTPServer(srv)
	defer httpServer.Close()

	_, err := Connect(context.Background(), []ServerSpec{
		{Name: "alpha", URL: httpServer.URL},
		{Name: "broken"},
	})
	if err == nil {
		t.Fatal("expected error for spec without command or url")
	}
}
