package llm

import (
	"context"
	"errors"
	"sync"
)

// ScriptedMockProvider returns a pre-defined sequence of responses. It is
// used to drive multi-turn exchanges such as tool-calling loops in tests.
type ScriptedMockProvider struct {
	mu        sync.Mutex
	responses []ChatResponse
	Err       error
	Requests  []ChatRequest
}

// NewScriptedMockProvider creates a provider that answers with contents in order.
func NewScriptedMockProvider(contents ...string) *ScriptedMockProvider {
	s := &ScriptedMockProvider{}
	for _, c := range contents {
		s.responses = append(s.responses, ChatResponse{Content: c})
	}
	return s
}

// Chat pops the next scripted response or returns the configured error.
func (s *ScriptedMockProvider) Chat(_ context.Context, req ChatRequest) (*ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Requests = append(s.Requests, req)
	if s.Err != nil {
		return nil, s.Err
	}
	if len(s.responses) == 0 {
		return nil, errors.New("scripted mock: no more responses available")
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	resp.Usage = Usage{PromptTokens: 10, CompletionTokens: 10, TotalTokens: 20}
	return &resp, nil
}

// AddResponse appends a text response to the queue.
func (s *ScriptedMockProvider) AddResponse(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, ChatResponse{Content: content})
}

// AddToolCall appends a response asking for one tool call.
func (s *ScriptedMockProvider) AddToolCall(id, name, arguments string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, ChatResponse{ToolCalls: []ToolCall{{
		ID:       id,
		Type:     ToolTypeFunction,
		Function: FunctionCall{Name: name, Arguments: arguments},
	}}})
}

// Calls returns how many times Chat has been called.
func (s *ScriptedMockProvider) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Requests)
}
