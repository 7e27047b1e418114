package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jllopis/newsdesk/pkg/core"
)

// Server publishes capability tools over MCP.
type Server struct {
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server.
func NewServer(name, version string) *Server {
	return &Server{
		mcpServer: server.NewMCPServer(name, version, server.WithToolCapabilities(false)),
	}
}

// AddTool publishes tool. Tool failures are returned as MCP error results
// so the calling model can read them.
func (s *Server) AddTool(tool core.Tool) error {
	def, err := toolSpec(tool)
	if err != nil {
		return err
	}
	s.mcpServer.AddTool(def, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		out, err := tool.Call(ctx, req.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		switch v := out.(type) {
		case string:
			return mcp.NewToolResultText(v), nil
		default:
			encoded, err := json.Marshal(v)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
			}
			return mcp.NewToolResultText(string(encoded)), nil
		}
	})
	return nil
}

func toolSpec(tool core.Tool) (mcp.Tool, error) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"input": map[string]any{"type": "string"},
		},
	}
	if st, ok := tool.(core.SchemaTool); ok && st.InputSchema() != nil {
		schema = st.InputSchema()
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return mcp.Tool{}, fmt.Errorf("tool %q schema: %w", tool.Name(), err)
	}
	return mcp.NewToolWithRawSchema(tool.Name(), tool.Description(), raw), nil
}

// MCPServer exposes the underlying server, for tests and custom transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves on stdin/stdout until the input closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
