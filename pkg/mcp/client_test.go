package mcp

import (
	"context"
	"strings"
	"testing"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/jllopis/newsdesk/pkg/core"
)

type upperTool struct{}

func (upperTool) Name() string        { return "upper" }
func (upperTool) Description() string { return "Upper-cases text" }
func (upperTool) InputSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"text": map[string]any{"type": "string"}},
		"required":   []string{"text"},
	}
}
func (upperTool) Call(_ context.Context, input any) (any, error) {
	args, _ := input.(map[string]any)
	s, _ := args["text"].(string)
	return strings.ToUpper(s), nil
}

type mapRegistrar map[string]core.Tool

func (m mapRegistrar) Register(capability string, tool core.Tool) error {
	m[capability] = tool
	return nil
}

func newTestServer(t *testing.T) string {
	t.Helper()
	srv := NewServer("newsdesk-test", "1.0.0")
	if err := srv.AddTool(upperTool{}); err != nil {
		t.Fatalf("AddTool: %v", err)
	}
	httpServer := mcpserver.NewTestStreamableHTTPServer(srv.MCPServer())
	t.Cleanup(httpServer.Close)
	return httpServer.URL
}

func TestClientStreamableHTTP(t *testing.T) {
	url := newTestServer(t)

	client, err := NewClientWithStreamableHTTP(context.Background(), url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	tools, err := client.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(tools) != 1 || tools[0].Name != "upper" {
		t.Fatalf("expected tool upper, got %+v", tools)
	}
	if _, err := client.Tool(context.Background(), "missing"); err == nil {
		t.Fatalf("expected error for missing tool")
	}

	res, err := client.CallTool(context.Background(), "upper", map[string]any{"text": "hi"})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.IsError || extractTextContent(res.Content) != "HI" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestBindRegistersCapability(t *testing.T) {
	url := newTestServer(t)
	reg := mapRegistrar{}

	b, err := Bind(context.Background(), reg, map[string]ServerConfig{
		"shout": {URL: url, Tool: "upper"},
	})
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	defer b.Close()

	tool, ok := reg["shout"]
	if !ok || tool.Name() != "shout" {
		t.Fatalf("expected shout capability, got %v", reg)
	}
	out, err := tool.Call(context.Background(), "quiet")
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if out != "QUIET" {
		t.Fatalf("unexpected output %v", out)
	}
}

func TestBindRejectsBadConfig(t *testing.T) {
	tests := map[string]ServerConfig{
		"empty": {},
		"both":  {Command: "x", URL: "http://localhost"},
	}
	for name, cfg := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Bind(context.Background(), mapRegistrar{}, map[string]ServerConfig{"c": cfg}); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestBindMissingTool(t *testing.T) {
	url := newTestServer(t)
	_, err := Bind(context.Background(), mapRegistrar{}, map[string]ServerConfig{"search": {URL: url}})
	if err == nil || !strings.Contains(err.Error(), `no tool "search"`) {
		t.Fatalf("expected missing tool error, got %v", err)
	}
}
