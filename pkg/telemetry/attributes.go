// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry provides OpenTelemetry integration, structured logging and
// pipeline metrics for newsdesk.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Semantic conventions for newsdesk pipeline telemetry.
const (
	// Run attributes
	AttrRunID     = "newsdesk.run.id"
	AttrRunMode   = "newsdesk.run.mode"
	AttrRunStatus = "newsdesk.run.status"
	AttrRunSteps  = "newsdesk.run.steps"

	// Step attributes
	AttrStepID     = "newsdesk.step.id"
	AttrStepOutput = "newsdesk.step.output_key"
	AttrStepRound  = "newsdesk.step.round"

	// Role attributes
	AttrRoleID           = "newsdesk.role.id"
	AttrRoleCapabilities = "newsdesk.role.capabilities"

	// Coordinator attributes
	AttrCoordinatorRound     = "newsdesk.coordinator.round"
	AttrCoordinatorMaxRounds = "newsdesk.coordinator.max_rounds"
	AttrCoordinatorAction    = "newsdesk.coordinator.action"

	// Tool attributes
	AttrToolName       = "newsdesk.tool.name"
	AttrToolDurationMs = "newsdesk.tool.duration_ms"
	AttrToolSuccess    = "newsdesk.tool.success"

	// LLM attributes (gen_ai conventions)
	AttrLLMModel        = "gen_ai.request.model"
	AttrLLMTokensInput  = "gen_ai.usage.input_tokens"
	AttrLLMTokensOutput = "gen_ai.usage.output_tokens"
	AttrLLMTokensTotal  = "gen_ai.usage.total_tokens"
	AttrLLMToolCalls    = "gen_ai.tool_calls"

	// Error attributes
	AttrErrorCode = "newsdesk.error.code"
)

// RunAttributes returns common attributes for run spans.
func RunAttributes(runID, mode string, steps int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrRunID, runID),
		attribute.String(AttrRunMode, mode),
		attribute.Int(AttrRunSteps, steps),
	}
}

// StepAttributes returns attributes for a step span.
func StepAttributes(stepID, roleID, outputKey string, round int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrStepID, stepID),
		attribute.String(AttrRoleID, roleID),
		attribute.String(AttrStepOutput, outputKey),
	}
	if round > 0 {
		attrs = append(attrs, attribute.Int(AttrStepRound, round))
	}
	return attrs
}

// CoordinatorAttributes returns attributes for a coordinator decision span.
func CoordinatorAttributes(roleID string, round, maxRounds int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrRoleID, roleID),
		attribute.Int(AttrCoordinatorRound, round),
		attribute.Int(AttrCoordinatorMaxRounds, maxRounds),
	}
}

// ToolCallAttributes returns attributes for a tool call span.
func ToolCallAttributes(name string, durationMs float64, success bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrToolName, name),
		attribute.Float64(AttrToolDurationMs, durationMs),
		attribute.Bool(AttrToolSuccess, success),
	}
}

// LLMAttributes returns attributes describing one chat call.
func LLMAttributes(model string, promptTokens, completionTokens, toolCalls int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int(AttrLLMTokensInput, promptTokens),
		attribute.Int(AttrLLMTokensOutput, completionTokens),
		attribute.Int(AttrLLMTokensTotal, promptTokens+completionTokens),
	}
	if model != "" {
		attrs = append(attrs, attribute.String(AttrLLMModel, model))
	}
	if toolCalls > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMToolCalls, toolCalls))
	}
	return attrs
}
