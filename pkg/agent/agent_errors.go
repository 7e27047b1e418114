// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent binds crew roles to language models: an Action runs one step
// through a bounded tool-calling loop, and a Coordinator turns model replies
// into pipeline decisions.
package agent

import (
	stderrors "errors"

	"github.com/jllopis/newsdesk/pkg/errors"
)

// WrapLLMError wraps an LLM error with the model name. Recoverability of a
// typed provider error is kept.
func WrapLLMError(err error, model string) *errors.Error {
	if err == nil {
		return nil
	}
	recoverable := true
	var typed *errors.Error
	if stderrors.As(err, &typed) {
		recoverable = typed.Recoverable
	}
	return errors.New(errors.CodeLLMError, "LLM call failed", err).
		WithContext("model", model).
		WithAttribute("gen_ai.request.model", model).
		WithRecoverable(recoverable)
}

// WrapToolError wraps a tool execution error with appropriate context.
func WrapToolError(err error, toolName, toolCallID string) *errors.Error {
	if err == nil {
		return nil
	}
	return errors.New(errors.CodeToolFailure, "tool execution failed", err).
		WithContext("tool_name", toolName).
		WithContext("tool_call_id", toolCallID).
		WithAttribute("newsdesk.tool.name", toolName).
		WithRecoverable(true)
}

// NewIterationLimitError reports a tool loop that never produced a final answer.
func NewIterationLimitError(roleID string, maxIterations int) *errors.Error {
	return errors.New(errors.CodeTimeout, "operation exceeded max iterations", nil).
		WithContext("role_id", roleID).
		WithContext("max_iterations", maxIterations).
		WithRecoverable(false)
}

// NewDecisionError reports a coordinator reply that is not a usable decision.
func NewDecisionError(msg, reply string) *errors.Error {
	if len(reply) > 200 {
		reply = reply[:200] + "..."
	}
	return errors.New(errors.CodeInvalidInput, msg, nil).
		WithContext("reply", reply).
		WithRecoverable(false)
}
