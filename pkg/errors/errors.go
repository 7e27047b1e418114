// SPDX-License-Identifier: Apache-2.0
// Package errors provides typed pipeline errors with rich context for newsdesk.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// ErrorCode classifies newsdesk errors for monitoring and exit codes.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeInvalidInput indicates a malformed declaration or argument.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeDuplicateRole indicates a role id was registered twice.
	CodeDuplicateRole ErrorCode = "DUPLICATE_ROLE"

	// CodeUnknownRole indicates a role id is not registered.
	CodeUnknownRole ErrorCode = "UNKNOWN_ROLE"

	// CodeDuplicateStep indicates a step id was registered twice.
	CodeDuplicateStep ErrorCode = "DUPLICATE_STEP"

	// CodeUnknownStep indicates a step id is not registered.
	CodeUnknownStep ErrorCode = "UNKNOWN_STEP"

	// CodeMissingInput indicates a step reads a key nobody provides.
	CodeMissingInput ErrorCode = "MISSING_INPUT"

	// CodeRegistrySealed indicates registration after startup.
	CodeRegistrySealed ErrorCode = "REGISTRY_SEALED"

	// CodeRoleExecution indicates a role action failed or returned unusable output.
	CodeRoleExecution ErrorCode = "ROLE_EXECUTION"

	// CodeCoordinatorLoop indicates the coordinator exhausted its round budget.
	CodeCoordinatorLoop ErrorCode = "COORDINATOR_LOOP"

	// CodeToolFailure indicates a capability tool failed.
	CodeToolFailure ErrorCode = "TOOL_FAILURE"

	// CodeContextLost indicates the caller context was cancelled.
	CodeContextLost ErrorCode = "CONTEXT_LOST"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeLLMError indicates an LLM provider error.
	CodeLLMError ErrorCode = "LLM_ERROR"
)

// Sentinels for errors.Is matching by code.
var (
	ErrDuplicateRole   = &Error{Code: CodeDuplicateRole}
	ErrUnknownRole     = &Error{Code: CodeUnknownRole}
	ErrDuplicateStep   = &Error{Code: CodeDuplicateStep}
	ErrUnknownStep     = &Error{Code: CodeUnknownStep}
	ErrMissingInput    = &Error{Code: CodeMissingInput}
	ErrRegistrySealed  = &Error{Code: CodeRegistrySealed}
	ErrRoleExecution   = &Error{Code: CodeRoleExecution}
	ErrCoordinatorLoop = &Error{Code: CodeCoordinatorLoop}
	ErrTimeout         = &Error{Code: CodeTimeout}
	ErrContextLost     = &Error{Code: CodeContextLost}
)

// Error is a typed error with rich context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type Error struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Attributes  map[string]string
	Recoverable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *Error) MarshalJSON() ([]byte, error) {
	cause := ""
	if e.Err != nil {
		cause = e.Err.Error()
	}
	return json.Marshal(&struct {
		Code        string                 `json:"code"`
		Message     string                 `json:"message"`
		Err         string                 `json:"error,omitempty"`
		Context     map[string]interface{} `json:"context,omitempty"`
		Recoverable bool                   `json:"recoverable"`
	}{
		Code:        string(e.Code),
		Message:     e.Message,
		Err:         cause,
		Context:     e.Context,
		Recoverable: e.Recoverable,
	})
}

// New creates a new Error with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *Error {
	return &Error{
		Code:       code,
		Message:    msg,
		Err:        cause,
		Context:    make(map[string]interface{}),
		Attributes: make(map[string]string),
	}
}

// WithContext adds a key-value pair to the error context.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithAttribute adds a string attribute for OTEL traces.
func (e *Error) WithAttribute(key, value string) *Error {
	if e.Attributes == nil {
		e.Attributes = make(map[string]string)
	}
	e.Attributes[key] = value
	return e
}

// WithRecoverable sets whether the error can be recovered from.
func (e *Error) WithRecoverable(recoverable bool) *Error {
	e.Recoverable = recoverable
	return e
}

// RecoverableString returns "true" or "false" for metric attributes.
func (e *Error) RecoverableString() string {
	if e.Recoverable {
		return "true"
	}
	return "false"
}

// As returns err as *Error, wrapping unknown errors as internal.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}
	return New(CodeInternal, "wrapped error", err)
}

// CodeOf returns the code of the outermost *Error in the chain, or CodeInternal.
func CodeOf(err error) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsConfiguration reports whether err is detected before execution begins.
func IsConfiguration(err error) bool {
	switch CodeOf(err) {
	case CodeDuplicateRole, CodeUnknownRole, CodeDuplicateStep, CodeUnknownStep,
		CodeMissingInput, CodeRegistrySealed, CodeInvalidInput:
		return true
	}
	return false
}
