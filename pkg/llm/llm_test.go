package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jllopis/newsdesk/pkg/errors"
	"github.com/jllopis/newsdesk/pkg/resilience"
)

func TestMockProvider(t *testing.T) {
	mock := &MockProvider{Response: "Hello world"}
	resp, err := mock.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "Hi"}},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != "Hello world" {
		t.Errorf("Expected 'Hello world', got '%s'", resp.Content)
	}
}

func TestScriptedMockProvider(t *testing.T) {
	mock := NewScriptedMockProvider("first")
	mock.AddToolCall("c1", "search", `{"query":"go"}`)
	mock.AddResponse("last")

	ctx := context.Background()
	r1, _ := mock.Chat(ctx, ChatRequest{})
	r2, _ := mock.Chat(ctx, ChatRequest{})
	r3, _ := mock.Chat(ctx, ChatRequest{})
	if r1.Content != "first" || len(r2.ToolCalls) != 1 || r3.Content != "last" {
		t.Fatalf("unexpected script order: %+v %+v %+v", r1, r2, r3)
	}
	if _, err := mock.Chat(ctx, ChatRequest{}); err == nil {
		t.Fatalf("expected exhausted script error")
	}
	if mock.Calls() != 4 {
		t.Fatalf("expected 4 calls, got %d", mock.Calls())
	}
}

func TestEchoProvider(t *testing.T) {
	var p EchoProvider
	resp, err := p.Chat(context.Background(), ChatRequest{Messages: []Message{
		{Role: RoleSystem, Content: "You report news."},
		{Role: RoleUser, Content: "Find headlines\nmore detail"},
	}})
	if err != nil || resp.Content != "[echo] Find headlines" {
		t.Fatalf("unexpected echo %+v, %v", resp, err)
	}
	resp, _ = p.Chat(context.Background(), ChatRequest{Messages: []Message{
		{Role: RoleSystem, Content: CoordinatorMarker + " Pick wisely."},
		{Role: RoleUser, Content: "Steps:\n- a\n" + ReadyStepsLabel + " research, compile"},
	}})
	if resp.Content != `{"action":"invoke","step":"research"}` {
		t.Fatalf("unexpected coordinator echo %q", resp.Content)
	}
	resp, _ = p.Chat(context.Background(), ChatRequest{Messages: []Message{
		{Role: RoleSystem, Content: CoordinatorMarker},
		{Role: RoleUser, Content: ReadyStepsLabel + " none"},
	}})
	if resp.Content != `{"action":"finish"}` {
		t.Fatalf("unexpected coordinator echo %q", resp.Content)
	}
}

func TestOllamaChat(t *testing.T) {
	var got ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"message": {"role":"assistant","content":"","tool_calls":[{"function":{"name":"search","arguments":{"query":"go"}}}]},
			"done": true, "prompt_eval_count": 7, "eval_count": 3
		}`))
	}))
	defer srv.Close()

	p := NewOllama(srv.URL+"/", "llama3.1")
	resp, err := p.Chat(context.Background(), ChatRequest{
		Messages:    []Message{{Role: RoleUser, Content: "news"}},
		Temperature: 0.2,
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if got.Model != "llama3.1" || got.Stream || got.Options["temperature"] != 0.2 {
		t.Fatalf("unexpected request %+v", got)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Function.Arguments != `{"query":"go"}` {
		t.Fatalf("unexpected tool calls %+v", resp.ToolCalls)
	}
	if resp.Usage.TotalTokens != 10 {
		t.Fatalf("unexpected usage %+v", resp.Usage)
	}
}

func TestOllamaStatusErrors(t *testing.T) {
	tests := []struct {
		status      int
		recoverable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
		{http.StatusNotFound, false},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "nope", tt.status)
		}))
		_, err := NewOllama(srv.URL, "m").Chat(context.Background(), ChatRequest{})
		srv.Close()
		if errors.CodeOf(err) != errors.CodeLLMError {
			t.Fatalf("status %d: expected LLM error, got %v", tt.status, err)
		}
		if resilience.IsRecoverable(err) != tt.recoverable {
			t.Fatalf("status %d: recoverable=%v", tt.status, !tt.recoverable)
		}
	}
}
