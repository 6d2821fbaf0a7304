package mcp

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jllopis/agentloop/pkg/core"
)

// ServerSpec describes a remote MCP server. Command launches it over stdio;
// URL connects over streamable HTTP instead.
type ServerSpec struct {
	Name    string
	Command string
	Args    []string
	Env     []string
	URL     string
}

// Set owns the clients of several MCP servers.
type Set struct {
	names   []string
	clients map[string]*Client
}

// Connect opens a client per spec, in name order. On failure the clients
// already opened are closed.
func Connect(ctx context.Context, specs []ServerSpec, opts ...ClientOption) (*Set, error) {
	sorted := append([]ServerSpec(nil), specs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	set := &Set{clients: make(map[string]*Client, len(sorted))}
	for _, spec := range sorted {
		c, err := dial(ctx, spec, opts...)
		if err != nil {
			_ = set.Close()
			return nil, fmt.Errorf("mcp server %s: %w", spec.Name, err)
		}
		set.names = append(set.names, spec.Name)
		set.clients[spec.Name] = c
	}
	return set, nil
}

func dial(ctx context.Context, spec ServerSpec, opts ...ClientOption) (*Client, error) {
	switch {
	case spec.URL != "":
		return NewStreamableHTTPClient(ctx, spec.URL, opts...)
	case spec.Command != "":
		return NewStdioClient(ctx, spec.Command, spec.Env, spec.Args, opts...)
	default:
		return nil, errors.New("command or url is required")
	}
}

// Names returns the connected server names in order.
func (s *Set) Names() []string { return append([]string(nil), s.names...) }

// Client returns the client for the named server.
func (s *Set) Client(name string) (*Client, bool) {
	c, ok := s.clients[name]
	return c, ok
}

// Capabilities adapts the tools of every server, in server order.
func (s *Set) Capabilities(ctx context.Context) ([]core.Capability, error) {
	var caps []core.Capability
	for _, name := range s.names {
		serverCaps, err := s.clients[name].Capabilities(ctx)
		if err != nil {
			return nil, fmt.Errorf("mcp server %s: %w", name, err)
		}
		caps = append(caps, serverCaps...)
	}
	return caps, nil
}

// Close closes every client.
func (s *Set) Close() error {
	var errs []error
	for _, name := range s.names {
		if err := s.clients[name].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
