// Package mcp bridges agentloop capabilities and the Model Context Protocol:
// a Server exposes a capability registry as MCP tools, and a Client turns the
// tools of a remote MCP server into capabilities.
package mcp

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/jllopis/agentloop/pkg/core"
	"github.com/jllopis/agentloop/pkg/resilience"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultRetries  = 2
	defaultBackoff  = 200 * time.Millisecond
	defaultCacheTTL = 30 * time.Second

	clientName    = "agentloop-client"
	clientVersion = "0.1.0"
)

// ClientOption customizes the MCP client wrapper behavior.
type ClientOption func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithRetry configures retry count and initial backoff.
func WithRetry(retries int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		if retries >= 0 {
			c.maxRetries = retries
		}
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

// WithToolCacheTTL sets the tool discovery cache TTL. Use 0 to disable caching.
func WithToolCacheTTL(ttl time.Duration) ClientOption {
	return func(c *Client) {
		if ttl >= 0 {
			c.cacheTTL = ttl
		}
	}
}

// Client wraps an mcp-go client with timeouts, retries and a tool list cache.
type Client struct {
	mcpClient  client.MCPClient
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	cacheTTL   time.Duration

	mu          sync.Mutex
	toolsCache  []mcp.Tool
	cacheExpiry time.Time
}

// NewClient wraps an already initialized MCP client.
func NewClient(c client.MCPClient, opts ...ClientOption) *Client {
	cl := &Client{
		mcpClient:  c,
		timeout:    defaultTimeout,
		maxRetries: defaultRetries,
		backoff:    defaultBackoff,
		cacheTTL:   defaultCacheTTL,
	}
	for _, opt := range opts {
		opt(cl)
	}
	return cl
}

// NewStdioClient launches command as an MCP server over stdio and
// initializes the session.
func NewStdioClient(ctx context.Context, command string, env, args []string, opts ...ClientOption) (*Client, error) {
	// The stdio transport is already running when NewStdioMCPClient returns.
	stdioClient, err := client.NewStdioMCPClient(command, env, args...)
	if err != nil {
		return nil, err
	}
	return initialize(ctx, stdioClient, false, opts...)
}

// NewStreamableHTTPClient connects to an MCP server over streamable HTTP.
func NewStreamableHTTPClient(ctx context.Context, url string, opts ...ClientOption) (*Client, error) {
	httpClient, err := client.NewStreamableHttpClient(url)
	if err != nil {
		return nil, err
	}
	return initialize(ctx, httpClient, true, opts...)
}

// NewInProcessClient connects directly to srv without a transport.
func NewInProcessClient(ctx context.Context, srv *Server, opts ...ClientOption) (*Client, error) {
	inProcess, err := client.NewInProcessClient(srv.MCPServer())
	if err != nil {
		return nil, err
	}
	return initialize(ctx, inProcess, true, opts...)
}

func initialize(ctx context.Context, c *client.Client, startTransport bool, opts ...ClientOption) (*Client, error) {
	if startTransport {
		if err := c.Start(ctx); err != nil {
			_ = c.Close()
			return nil, err
		}
	}

	initCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    clientName,
		Version: clientVersion,
	}
	if _, err := c.Initialize(initCtx, initRequest); err != nil {
		_ = c.Close()
		return nil, err
	}
	return NewClient(c, opts...), nil
}

// ListTools retrieves the list of tools available on the server.
func (c *Client) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	if cached := c.cachedTools(); cached != nil {
		return cached, nil
	}
	resp, err := retry(ctx, c, func(ctx context.Context) (*mcp.ListToolsResult, error) {
		return c.mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
	})
	if err != nil {
		return nil, err
	}
	c.storeTools(resp.Tools)
	return resp.Tools, nil
}

// CallTool executes a tool on the server.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return retry(ctx, c, func(ctx context.Context) (*mcp.CallToolResult, error) {
		return c.mcpClient.CallTool(ctx, req)
	})
}

// Capabilities adapts every remote tool into a capability.
func (c *Client) Capabilities(ctx context.Context) ([]core.Capability, error) {
	tools, err := c.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	caps := make([]core.Capability, 0, len(tools))
	for _, tool := range tools {
		adapter, err := NewToolAdapter(tool, c)
		if err != nil {
			return nil, err
		}
		caps = append(caps, adapter)
	}
	return caps, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.mcpClient.Close()
}

func (c *Client) cachedTools() []mcp.Tool {
	if c.cacheTTL == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.toolsCache) == 0 || time.Now().After(c.cacheExpiry) {
		return nil
	}
	return append([]mcp.Tool(nil), c.toolsCache...)
}

func (c *Client) storeTools(tools []mcp.Tool) {
	if c.cacheTTL == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.toolsCache = append([]mcp.Tool(nil), tools...)
	c.cacheExpiry = time.Now().Add(c.cacheTTL)
}

// retry runs fn under the per-request timeout, retrying failures other than
// cancellation with exponential backoff.
func retry[T any](ctx context.Context, c *Client, fn func(ctx context.Context) (T, error)) (T, error) {
	rc := resilience.DefaultRetryConfig().
		WithMaxAttempts(c.maxRetries + 1).
		WithInitialDelay(c.backoff).
		WithIsRecoverable(func(err error) bool {
			return !stderrors.Is(err, context.Canceled) && !stderrors.Is(err, context.DeadlineExceeded)
		})
	rc.Jitter = 0
	return resilience.Retry(ctx, rc, func(ctx context.Context) (T, error) {
		return resilience.Timeout(ctx, c.timeout, fn)
	})
}
