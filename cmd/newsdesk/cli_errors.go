// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package main implements the newsdesk CLI.
package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/jllopis/newsdesk/pkg/errors"
)

// Process exit codes.
const (
	exitOK              = 0
	exitFailure         = 1
	exitConfiguration   = 2
	exitRoleExecution   = 3
	exitCoordinatorLoop = 4
	// exitInterrupted follows the shell convention for SIGINT.
	exitInterrupted = 130
)

// CLIError wraps a typed error with a hint for the user.
type CLIError struct {
	Cause *errors.Error
	Hint  string
}

// NewCLIError creates a new CLI error.
func NewCLIError(e *errors.Error, hint string) *CLIError {
	return &CLIError{Cause: e, Hint: hint}
}

// Error returns the formatted error message with hints.
func (e *CLIError) Error() string {
	if e.Cause == nil {
		return "unknown error"
	}
	msg := e.Cause.Error()
	if e.Hint != "" {
		msg += "\n  Hint: " + e.Hint
	}
	return msg
}

func (e *CLIError) Unwrap() error { return e.Cause }

// PrintError prints the error as text or as a JSON object.
func (e *CLIError) PrintError(w io.Writer, asJSON bool) {
	if asJSON {
		payload := map[string]any{
			"code":    e.Cause.Code,
			"message": e.Cause.Message,
		}
		if e.Cause.Err != nil {
			payload["cause"] = e.Cause.Err.Error()
		}
		if e.Hint != "" {
			payload["hint"] = e.Hint
		}
		data, _ := json.Marshal(map[string]any{"error": payload})
		fmt.Fprintf(w, "%s\n", data)
		return
	}

	fmt.Fprintf(w, "Error [%s]: %s\n", e.Cause.Code, e.Cause.Message)
	if e.Cause.Err != nil {
		fmt.Fprintf(w, "  Cause: %v\n", e.Cause.Err)
	}
	if e.Hint != "" {
		fmt.Fprintf(w, "  Hint: %s\n", e.Hint)
	}
}

// NewInvalidArgumentError creates an invalid argument error with CLI hints.
func NewInvalidArgumentError(arg, reason string) *CLIError {
	e := errors.New(errors.CodeInvalidInput, fmt.Sprintf("invalid argument: %s", reason), nil).
		WithContext("argument", arg).
		WithContext("reason", reason)
	return NewCLIError(e, "run 'newsdesk help' for usage information")
}

// NewConfigError creates a configuration error with CLI hints.
func NewConfigError(err error) *CLIError {
	e := errors.New(errors.CodeInvalidInput, "configuration error", err)
	return NewCLIError(e, "check the --config file, NEWSDESK_ variables and --set overrides")
}

// asCLIError attaches a hint to err based on its code.
func asCLIError(err error) *CLIError {
	var ce *CLIError
	if stderrors.As(err, &ce) {
		return ce
	}
	e := errors.As(err)
	if interrupted(err) {
		return NewCLIError(e, hintFor(errors.CodeContextLost))
	}
	return NewCLIError(e, hintFor(e.Code))
}

// interrupted reports whether err comes from a cancelled context, even when
// a step wrapped it as a role failure.
func interrupted(err error) bool {
	return stderrors.Is(err, context.Canceled) || stderrors.Is(err, errors.ErrContextLost)
}

func hintFor(code errors.ErrorCode) string {
	switch code {
	case errors.CodeMissingInput:
		return "provide the key with --input key=value or produce it in an earlier step"
	case errors.CodeUnknownRole, errors.CodeUnknownStep:
		return "run 'newsdesk roles' to list the crew's roles and steps"
	case errors.CodeDuplicateRole, errors.CodeDuplicateStep:
		return "identifiers must be unique in roles.yaml and steps.yaml"
	case errors.CodeRoleExecution:
		return "check the LLM provider settings and that the model is reachable"
	case errors.CodeCoordinatorLoop:
		return "raise pipeline.max_rounds or make the coordinator instruction more decisive"
	case errors.CodeLLMError:
		return "check llm.provider, llm.model and the API key"
	case errors.CodeContextLost:
		return "the run was interrupted before it finished"
	}
	return ""
}

// exitCode maps an error to the process exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case interrupted(err):
		return exitInterrupted
	case errors.IsConfiguration(err):
		return exitConfiguration
	}
	switch errors.CodeOf(err) {
	case errors.CodeRoleExecution:
		return exitRoleExecution
	case errors.CodeCoordinatorLoop:
		return exitCoordinatorLoop
	}
	return exitFailure
}

// fail prints err and returns its exit code.
func (c *cli) fail(err error) int {
	asCLIError(err).PrintError(c.stderr, c.flags.JSON)
	return exitCode(err)
}
