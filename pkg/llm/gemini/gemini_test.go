// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package gemini

import (
	"testing"

	"google.golang.org/genai"

	"github.com/jllopis/newsdesk/pkg/errors"
	"github.com/jllopis/newsdesk/pkg/llm"
	"github.com/jllopis/newsdesk/pkg/resilience"
)

func TestWithModel(t *testing.T) {
	p := &Provider{model: DefaultModel}
	WithModel("gemini-1.5-pro")(p)
	if p.model != "gemini-1.5-pro" {
		t.Errorf("expected model gemini-1.5-pro, got %s", p.model)
	}
	WithModel("")(p)
	if p.model != "gemini-1.5-pro" {
		t.Errorf("empty model must not override, got %s", p.model)
	}
}

func TestConvertMessages(t *testing.T) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: "You are a reporter"},
		{Role: llm.RoleUser, Content: "Find news"},
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{
			ID: "search", Type: llm.ToolTypeFunction,
			Function: llm.FunctionCall{Name: "search", Arguments: `{"query":"go"}`},
		}}},
		{Role: llm.RoleTool, ToolCallID: "search", Content: "plain text result"},
	}
	contents, system := convertMessages(messages)
	if system != "You are a reporter" {
		t.Errorf("unexpected system instruction %q", system)
	}
	if len(contents) != 3 {
		t.Fatalf("expected 3 contents, got %d", len(contents))
	}
	call := contents[1].Parts[0].FunctionCall
	if contents[1].Role != "model" || call == nil || call.Args["query"] != "go" {
		t.Fatalf("unexpected function call content %+v", contents[1])
	}
	resp := contents[2].Parts[0].FunctionResponse
	if resp == nil || resp.Name != "search" || resp.Response["result"] != "plain text result" {
		t.Fatalf("unexpected function response %+v", contents[2])
	}
}

func TestConvertTools(t *testing.T) {
	tools := []llm.Tool{{
		Type: llm.ToolTypeFunction,
		Function: llm.FunctionDef{
			Name:        "search",
			Description: "Search the web",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"query": map[string]any{"type": "string"}},
			},
		},
	}}
	result := convertTools(tools)
	if len(result) != 1 || result[0].Name != "search" {
		t.Fatalf("unexpected declarations %+v", result)
	}
}

func TestConvertResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "Top story"},
				{FunctionCall: &genai.FunctionCall{Name: "fetch", Args: map[string]any{"url": "https://example.com"}}},
			}},
		}},
	}
	out := convertResponse(resp)
	if out.Content != "Top story" || len(out.ToolCalls) != 1 || out.ToolCalls[0].Function.Name != "fetch" {
		t.Fatalf("unexpected response %+v", out)
	}
	if convertResponse(nil).Content != "" {
		t.Fatalf("nil response should convert to empty")
	}
}

func TestClassify(t *testing.T) {
	err := classify(genai.APIError{Code: 429, Message: "quota"})
	if errors.CodeOf(err) != errors.CodeLLMError || !resilience.IsRecoverable(err) {
		t.Fatalf("expected recoverable LLM error, got %v", err)
	}
	err = classify(genai.APIError{Code: 400, Message: "bad request"})
	if resilience.IsRecoverable(err) {
		t.Fatalf("400 must not be recoverable")
	}
}
