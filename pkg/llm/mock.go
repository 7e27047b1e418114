package llm

import (
	"context"
	"fmt"
	"strings"
)

// MockProvider is a testing implementation of Provider.
type MockProvider struct {
	Response string
	Err      error
	ChatFunc func(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

func (m *MockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return &ChatResponse{
		Content: m.Response,
		Usage:   Usage{PromptTokens: 10, CompletionTokens: 10, TotalTokens: 20},
	}, nil
}

// EchoProvider answers with the first line of the last user message. The CLI
// uses it for offline runs. For coordinator prompts it invokes the first
// step listed as ready, and finishes when none is left.
type EchoProvider struct{}

func (EchoProvider) Chat(_ context.Context, req ChatRequest) (*ChatResponse, error) {
	var system, user string
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			system = m.Content
		case RoleUser:
			user = m.Content
		}
	}
	if user == "" {
		return nil, fmt.Errorf("echo: no user message")
	}
	if IsCoordinatorPrompt(system) {
		return &ChatResponse{Content: echoDecision(user)}, nil
	}
	return &ChatResponse{Content: "[echo] " + firstLine(user)}, nil
}

// CoordinatorMarker tags the system prompt of coordinator calls.
const CoordinatorMarker = "You coordinate a crew."

// ReadyStepsLabel prefixes the line of a coordinator prompt that lists the
// steps whose inputs are available and that have not run yet.
const ReadyStepsLabel = "Ready steps:"

// IsCoordinatorPrompt reports whether a system prompt belongs to a coordinator.
func IsCoordinatorPrompt(system string) bool {
	return strings.HasPrefix(system, CoordinatorMarker)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func echoDecision(prompt string) string {
	for _, line := range strings.Split(prompt, "\n") {
		rest, ok := strings.CutPrefix(strings.TrimSpace(line), ReadyStepsLabel)
		if !ok {
			continue
		}
		first, _, _ := strings.Cut(strings.TrimSpace(rest), ",")
		if first = strings.TrimSpace(first); first != "" && first != "none" {
			return fmt.Sprintf(`{"action":"invoke","step":%q}`, first)
		}
	}
	return `{"action":"finish"}`
}
