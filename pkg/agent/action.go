// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/newsdesk/pkg/core"
	"github.com/jllopis/newsdesk/pkg/llm"
	"github.com/jllopis/newsdesk/pkg/pipeline"
	"github.com/jllopis/newsdesk/pkg/telemetry"
)

// DefaultMaxIterations bounds the tool-calling loop of one step.
const DefaultMaxIterations = 8

// Action runs one role against a language model. The system message is the
// rendered role instruction, the user message is the goal plus the expected
// output, and the role's tools are offered to the model. Tool failures are
// reported back to the model rather than failing the step.
type Action struct {
	role          core.Role
	provider      llm.Provider
	model         string
	temperature   float64
	tools         map[string]core.Tool
	toolDefs      []llm.Tool
	maxIterations int
	emitter       core.EventEmitter
	logger        *slog.Logger
	tracer        trace.Tracer
}

// Perform implements pipeline.Action.
func (a *Action) Perform(ctx context.Context, req pipeline.ActionRequest) (string, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: req.Instruction},
		{Role: llm.RoleUser, Content: userPrompt(req)},
	}
	for i := 0; i < a.maxIterations; i++ {
		resp, err := a.chat(ctx, req, messages, i+1)
		if err != nil {
			return "", err
		}
		if len(resp.ToolCalls) == 0 {
			return resp.Content, nil
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    a.callTool(ctx, req, call),
				ToolCallID: call.ID,
			})
		}
	}
	return "", NewIterationLimitError(a.role.ID(), a.maxIterations)
}

func (a *Action) chat(ctx context.Context, req pipeline.ActionRequest, messages []llm.Message, iteration int) (*llm.ChatResponse, error) {
	ctx, span := a.tracer.Start(ctx, "Agent.LLM.Chat")
	defer span.End()

	start := time.Now()
	resp, err := a.provider.Chat(ctx, llm.ChatRequest{
		Model:       a.model,
		Messages:    messages,
		Tools:       a.toolDefs,
		Temperature: a.temperature,
	})
	if err != nil {
		ke := WrapLLMError(err, a.model)
		span.RecordError(ke)
		span.SetStatus(codes.Error, ke.Error())
		a.logger.ErrorContext(ctx, "agent.llm.error",
			slog.String("run_id", req.RunID),
			slog.String("step_id", req.StepID),
			slog.String("role_id", a.role.ID()),
			slog.Int("iteration", iteration),
			slog.String("error", err.Error()),
		)
		return nil, ke
	}
	span.SetAttributes(telemetry.LLMAttributes(a.model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens, len(resp.ToolCalls))...)
	a.logger.DebugContext(ctx, "agent.llm.response",
		slog.String("run_id", req.RunID),
		slog.String("step_id", req.StepID),
		slog.Int("iteration", iteration),
		slog.Int("tool_calls", len(resp.ToolCalls)),
		slog.Float64("duration_ms", time.Since(start).Seconds()*1000),
	)
	return resp, nil
}

// callTool runs one requested tool and returns the text sent back to the model.
func (a *Action) callTool(ctx context.Context, req pipeline.ActionRequest, call llm.ToolCall) string {
	name := call.Function.Name
	tool, ok := a.tools[name]
	if !ok {
		return fmt.Sprintf("error: tool %q is not available to this role", name)
	}

	var args any = call.Function.Arguments
	if parsed := parseToolArguments(call.Function.Arguments); parsed != nil {
		args = parsed
	}

	start := time.Now()
	ctx, span := a.tracer.Start(ctx, "Agent.Tool.Call")
	res, err := tool.Call(ctx, args)
	durationMs := time.Since(start).Seconds() * 1000
	span.SetAttributes(telemetry.ToolCallAttributes(name, durationMs, err == nil)...)
	span.End()

	a.emitter.Emit(ctx, core.NewEvent(core.EventToolCalled, req.RunID, a.role.ID(), req.StepID, map[string]any{
		"tool":    name,
		"success": err == nil,
	}))
	if err != nil {
		ke := WrapToolError(err, name, call.ID)
		a.logger.WarnContext(ctx, "agent.tool.error",
			slog.String("run_id", req.RunID),
			slog.String("step_id", req.StepID),
			slog.String("tool", name),
			slog.String("error", err.Error()),
		)
		return "error: " + ke.Error()
	}
	a.logger.InfoContext(ctx, "agent.tool.complete",
		slog.String("run_id", req.RunID),
		slog.String("step_id", req.StepID),
		slog.String("tool", name),
		slog.Float64("duration_ms", durationMs),
	)
	return toolResultText(res)
}

func userPrompt(req pipeline.ActionRequest) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(req.Goal))
	if expected := strings.TrimSpace(req.ExpectedOutput); expected != "" {
		b.WriteString("\n\nThis is the expected criteria for your final answer: ")
		b.WriteString(expected)
	}
	return b.String()
}

func parseToolArguments(raw string) map[string]any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

func toolResultText(res any) string {
	switch v := res.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	}
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Sprint(res)
	}
	return string(data)
}

func toolDefinitions(tools []core.Tool) []llm.Tool {
	defs := make([]llm.Tool, 0, len(tools))
	for _, t := range tools {
		var params map[string]any
		if st, ok := t.(core.SchemaTool); ok {
			params = st.InputSchema()
		}
		if params == nil {
			params = map[string]any{
				"type": "object",
				"properties": map[string]any{
					"input": map[string]any{"type": "string"},
				},
			}
		}
		defs = append(defs, llm.Tool{
			Type: llm.ToolTypeFunction,
			Function: llm.FunctionDef{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  params,
			},
		})
	}
	return defs
}
