package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jllopis/newsdesk/pkg/core"
	"github.com/jllopis/newsdesk/pkg/errors"
)

// ToolCaller abstracts MCP tool execution for adapters.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error)
}

// ToolAdapter exposes an MCP tool as a capability tool. Name is the
// capability it serves, which may differ from the server's tool name.
type ToolAdapter struct {
	name   string
	tool   mcp.Tool
	caller ToolCaller
}

// NewToolAdapter builds a core.Tool backed by an MCP tool definition and
// caller. An empty name uses the MCP tool name.
func NewToolAdapter(name string, tool mcp.Tool, caller ToolCaller) (*ToolAdapter, error) {
	if tool.Name == "" {
		return nil, errors.InvalidInput("mcp tool name is required")
	}
	if caller == nil {
		return nil, errors.InvalidInput("mcp tool caller is required")
	}
	if name == "" {
		name = tool.Name
	}
	return &ToolAdapter{name: name, tool: tool, caller: caller}, nil
}

func (t *ToolAdapter) Name() string { return t.name }

func (t *ToolAdapter) Description() string { return t.tool.Description }

// InputSchema returns the MCP tool's input schema as a JSON Schema map.
func (t *ToolAdapter) InputSchema() map[string]any {
	var raw []byte
	if t.tool.RawInputSchema != nil {
		raw = t.tool.RawInputSchema
	} else {
		encoded, err := json.Marshal(t.tool.InputSchema)
		if err != nil {
			return nil
		}
		raw = encoded
	}
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil
	}
	if _, ok := schema["type"]; !ok {
		schema["type"] = "object"
	}
	return schema
}

// Call invokes the MCP tool with normalized arguments.
func (t *ToolAdapter) Call(ctx context.Context, input any) (any, error) {
	args, err := normalizeToolArgs(input)
	if err != nil {
		return nil, t.failure("invalid arguments", err)
	}

	// A bare string fills the only required field.
	if raw, ok := input.(string); ok && len(t.tool.InputSchema.Required) == 1 {
		key := t.tool.InputSchema.Required[0]
		if _, present := args[key]; !present && strings.TrimSpace(raw) != "" {
			args = map[string]any{key: strings.TrimSpace(raw)}
		}
	}

	if err := validateRequiredArgs(t.tool, args); err != nil {
		return nil, t.failure("invalid arguments", err)
	}

	result, err := t.caller.CallTool(ctx, t.tool.Name, args)
	if err != nil {
		return nil, t.failure("call failed", err).WithRecoverable(true)
	}
	out, err := toolResultToOutput(result)
	if err != nil {
		return nil, t.failure("tool reported an error", err)
	}
	return out, nil
}

func (t *ToolAdapter) failure(msg string, cause error) *errors.Error {
	return errors.New(errors.CodeToolFailure, fmt.Sprintf("mcp tool %q: %s", t.tool.Name, msg), cause).
		WithContext("tool", t.tool.Name).
		WithContext("capability", t.name).
		WithAttribute("newsdesk.tool.name", t.tool.Name)
}

func normalizeToolArgs(input any) (map[string]any, error) {
	switch value := input.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return value, nil
	case json.RawMessage:
		return decodeArgs(value)
	case []byte:
		return decodeArgs(value)
	case string:
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			return map[string]any{}, nil
		}
		if strings.HasPrefix(trimmed, "{") {
			if decoded, err := decodeArgs([]byte(trimmed)); err == nil {
				return decoded, nil
			}
		}
		return map[string]any{"input": value}, nil
	default:
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("unsupported argument type %T", input)
		}
		return decodeArgs(encoded)
	}
}

func decodeArgs(data []byte) (map[string]any, error) {
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if decoded == nil {
		decoded = map[string]any{}
	}
	return decoded, nil
}

func validateRequiredArgs(tool mcp.Tool, args map[string]any) error {
	schema := tool.InputSchema
	if schema.Type != "" && schema.Type != "object" {
		return nil
	}
	for _, key := range schema.Required {
		if _, ok := args[key]; !ok {
			return fmt.Errorf("missing required field %q", key)
		}
	}
	return nil
}

func toolResultToOutput(result *mcp.CallToolResult) (any, error) {
	if result == nil {
		return nil, fmt.Errorf("empty result")
	}
	if result.IsError {
		return nil, fmt.Errorf("%s", extractTextContent(result.Content))
	}
	if text := extractTextContent(result.Content); text != "" {
		return text, nil
	}
	if result.StructuredContent != nil {
		return result.StructuredContent, nil
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

var _ core.SchemaTool = (*ToolAdapter)(nil)
