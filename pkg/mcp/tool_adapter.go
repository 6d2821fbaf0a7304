package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jllopis/agentloop/pkg/core"
	"github.com/mark3labs/mcp-go/mcp"
)

// ToolCaller abstracts MCP tool execution for adapters.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error)
}

// ToolAdapter exposes a remote MCP tool as a capability.
type ToolAdapter struct {
	tool   mcp.Tool
	caller ToolCaller
	params []string
}

// NewToolAdapter builds a capability backed by an MCP tool definition and caller.
func NewToolAdapter(tool mcp.Tool, caller ToolCaller) (*ToolAdapter, error) {
	if strings.TrimSpace(tool.Name) == "" {
		return nil, errors.New("mcp tool name is required")
	}
	if caller == nil {
		return nil, errors.New("tool caller is required")
	}
	if len(tool.RawInputSchema) > 0 && len(tool.InputSchema.Properties) == 0 {
		if err := json.Unmarshal(tool.RawInputSchema, &tool.InputSchema); err != nil {
			return nil, fmt.Errorf("mcp tool %s: invalid input schema: %w", tool.Name, err)
		}
	}
	return &ToolAdapter{
		tool:   tool,
		caller: caller,
		params: parameterOrder(tool.InputSchema),
	}, nil
}

// Name returns the MCP tool name.
func (t *ToolAdapter) Name() string { return t.tool.Name }

// Description returns the MCP tool description, listing its parameters so
// the backend knows how to order positional arguments.
func (t *ToolAdapter) Description() string {
	desc := strings.TrimSpace(t.tool.Description)
	if len(t.params) == 0 || (len(t.params) == 1 && t.params[0] == argsProperty) {
		return desc
	}
	suffix := "(args: " + strings.Join(t.params, ", ") + ")"
	if desc == "" {
		return suffix
	}
	return desc + " " + suffix
}

// Invoke maps positional args onto the tool's input schema and calls it.
func (t *ToolAdapter) Invoke(ctx context.Context, args []string) (string, error) {
	input, err := t.arguments(args)
	if err != nil {
		return "", err
	}
	if err := validateRequiredArgs(t.tool, input); err != nil {
		return "", err
	}

	result, err := t.caller.CallTool(ctx, t.tool.Name, input)
	if err != nil {
		return "", err
	}
	return toolResultToOutput(result)
}

// arguments builds the MCP argument object. A tool declaring an "args"
// array receives the slice as is; a single JSON object argument is passed
// through; otherwise args fill required then optional properties in order,
// converted to the declared JSON type.
func (t *ToolAdapter) arguments(args []string) (map[string]any, error) {
	if prop, ok := t.tool.InputSchema.Properties[argsProperty]; ok && schemaType(prop) == "array" {
		return map[string]any{argsProperty: append([]string{}, args...)}, nil
	}

	if len(args) == 1 {
		trimmed := strings.TrimSpace(args[0])
		if strings.HasPrefix(trimmed, "{") {
			var decoded map[string]any
			if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
				return decoded, nil
			}
		}
	}

	out := make(map[string]any, len(args))
	if len(t.params) == 0 {
		if len(args) > 0 {
			out["input"] = strings.Join(args, " ")
		}
		return out, nil
	}
	if len(args) > len(t.params) {
		return nil, fmt.Errorf("mcp tool %s: got %d arguments, accepts %d", t.tool.Name, len(args), len(t.params))
	}
	for i, arg := range args {
		name := t.params[i]
		value, err := convertArg(t.tool.InputSchema.Properties[name], arg)
		if err != nil {
			return nil, fmt.Errorf("mcp tool %s: argument %q: %w", t.tool.Name, name, err)
		}
		out[name] = value
	}
	return out, nil
}

const argsProperty = "args"

// parameterOrder lists required properties in declared order followed by
// the optional ones sorted by name.
func parameterOrder(schema mcp.ToolInputSchema) []string {
	seen := make(map[string]bool, len(schema.Properties))
	order := make([]string, 0, len(schema.Properties))
	for _, name := range schema.Required {
		if !seen[name] {
			seen[name] = true
			order = append(order, name)
		}
	}
	var optional []string
	for name := range schema.Properties {
		if !seen[name] {
			optional = append(optional, name)
		}
	}
	sort.Strings(optional)
	return append(order, optional...)
}

func schemaType(prop any) string {
	m, ok := prop.(map[string]any)
	if !ok {
		return ""
	}
	typ, _ := m["type"].(string)
	return typ
}

func convertArg(prop any, arg string) (any, error) {
	switch schemaType(prop) {
	case "integer":
		return strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	case "number":
		return strconv.ParseFloat(strings.TrimSpace(arg), 64)
	case "boolean":
		return strconv.ParseBool(strings.TrimSpace(arg))
	case "array", "object":
		var v any
		if err := json.Unmarshal([]byte(arg), &v); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		return v, nil
	default:
		return arg, nil
	}
}

func validateRequiredArgs(tool mcp.Tool, args map[string]any) error {
	schema := tool.InputSchema
	if schema.Type != "" && schema.Type != "object" {
		return nil
	}
	for _, key := range schema.Required {
		if _, ok := args[key]; !ok {
			return fmt.Errorf("mcp tool args: missing required field %q", key)
		}
	}
	return nil
}

func toolResultToOutput(result *mcp.CallToolResult) (string, error) {
	if result == nil {
		return "", errors.New("mcp tool result is nil")
	}

	text := extractTextContent(result.Content)
	if result.IsError {
		return "", fmt.Errorf("mcp tool returned error: %s", text)
	}
	if text != "" {
		return text, nil
	}
	if result.StructuredContent != nil {
		data, err := json.Marshal(result.StructuredContent)
		if err != nil {
			return "", fmt.Errorf("mcp tool result: %w", err)
		}
		return string(data), nil
	}
	return "", nil
}

func extractTextContent(items []mcp.Content) string {
	var parts []string
	for _, item := range items {
		switch content := item.(type) {
		case mcp.TextContent:
			parts = append(parts, content.Text)
		case *mcp.TextContent:
			parts = append(parts, content.Text)
		}
	}
	return strings.Join(parts, "\n")
}

var _ core.Capability = (*ToolAdapter)(nil)
