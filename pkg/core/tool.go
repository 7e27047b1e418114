package core

import "context"

// Tool is a concrete capability implementation, local or MCP backed.
type Tool interface {
	Name() string
	Description() string
	Call(ctx context.Context, input any) (any, error)
}

// SchemaTool is a Tool that describes its arguments with a JSON Schema.
type SchemaTool interface {
	Tool
	InputSchema() map[string]any
}
