package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/jllopis/agentloop/pkg/capability"
	"github.com/jllopis/agentloop/pkg/core"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server exposes the capabilities of a registry as MCP tools. Each tool
// takes {"args": [string, ...]} and returns the capability output as text.
type Server struct {
	mcpServer *server.MCPServer
	logger    *slog.Logger
	names     map[string]string
}

// NewServer creates an MCP server publishing every capability in reg.
func NewServer(name, version string, reg *capability.Registry, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		mcpServer: server.NewMCPServer(name, version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
		logger: logger,
		names:  make(map[string]string),
	}
	for _, entry := range reg.List() {
		c, err := reg.Find(entry.Name)
		if err != nil {
			return nil, err
		}
		if err := s.RegisterCapability(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// RegisterCapability publishes c under ToolName(c.Name()).
func (s *Server) RegisterCapability(c core.Capability) error {
	toolName := ToolName(c.Name())
	if toolName == "" {
		return fmt.Errorf("mcp: capability %q has no usable tool name", c.Name())
	}
	if prev, ok := s.names[toolName]; ok {
		return fmt.Errorf("mcp: capabilities %q and %q map to the same tool %q", prev, c.Name(), toolName)
	}
	schema, err := capability.RawArgumentSchema(c)
	if err != nil {
		return err
	}
	s.names[toolName] = c.Name()

	tool := mcp.NewToolWithRawSchema(toolName, c.Description(), schema)
	s.mcpServer.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := toolArgs(req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		out, err := c.Invoke(ctx, args)
		if err != nil {
			s.logger.WarnContext(ctx, "mcp.tool.error",
				slog.String("tool", toolName),
				slog.String("error", err.Error()),
			)
			return mcp.NewToolResultErrorFromErr("capability failed", err), nil
		}
		s.logger.DebugContext(ctx, "mcp.tool.invoked", slog.String("tool", toolName))
		return mcp.NewToolResultText(out), nil
	})
	return nil
}

// Tools maps published tool names to capability names.
func (s *Server) Tools() map[string]string {
	out := make(map[string]string, len(s.names))
	for k, v := range s.names {
		out[k] = v
	}
	return out
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// ServeStdio serves MCP over stdin and stdout until stdin closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP serves MCP over streamable HTTP on addr until ctx is done.
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	httpServer := server.NewStreamableHTTPServer(s.mcpServer)
	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.Start(addr) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// ToolName turns a capability name such as "Time Tool" into an MCP tool
// name such as "time_tool".
func ToolName(name string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) || r == '-':
			b.WriteRune(unicode.ToLower(r))
			underscore = false
		case !underscore && b.Len() > 0:
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimRight(b.String(), "_")
}

// toolArgs reads the "args" argument, accepting a string array, a single
// string or nothing.
func toolArgs(req mcp.CallToolRequest) ([]string, error) {
	raw, ok := req.GetArguments()[argsProperty]
	if !ok || raw == nil {
		return []string{}, nil
	}
	switch v := raw.(type) {
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("args[%d] must be a string, got %T", i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("args must be an array of strings, got %T", raw)
	}
}
