// SPDX-License-Identifier: Apache-2.0
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	cause := errors.New("network timeout")
	e := New(CodeTimeout, "step timed out", cause)

	if e.Code != CodeTimeout {
		t.Errorf("expected CodeTimeout, got %v", e.Code)
	}
	if e.Message != "step timed out" {
		t.Errorf("unexpected message %q", e.Message)
	}
	if !errors.Is(e, cause) {
		t.Errorf("expected errors.Is to work with wrapped error")
	}
}

func TestWithContextAndAttribute(t *testing.T) {
	e := New(CodeToolFailure, "tool failed", nil).
		WithContext("tool", "search").
		WithAttribute("tool_name", "search")

	if e.Context["tool"] != "search" {
		t.Errorf("expected context tool to be 'search'")
	}
	if e.Attributes["tool_name"] != "search" {
		t.Errorf("expected attribute tool_name")
	}
	if e.Recoverable {
		t.Errorf("expected recoverable to be false by default")
	}
	if e.WithRecoverable(true).RecoverableString() != "true" {
		t.Errorf("expected recoverable string true")
	}
}

func TestErrorString(t *testing.T) {
	e := New(CodeLLMError, "chat failed", errors.New("boom"))
	if got := e.Error(); got != "[LLM_ERROR] chat failed: boom" {
		t.Errorf("unexpected error string %q", got)
	}
	e = New(CodeInternal, "oops", nil)
	if got := e.Error(); got != "[INTERNAL_ERROR] oops" {
		t.Errorf("unexpected error string %q", got)
	}
}

func TestSentinelsMatchByCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"duplicate role", DuplicateRole("writer"), ErrDuplicateRole},
		{"unknown role", UnknownRole("writer"), ErrUnknownRole},
		{"duplicate step", DuplicateStep("draft"), ErrDuplicateStep},
		{"unknown step", UnknownStep("draft"), ErrUnknownStep},
		{"missing input", MissingInput("draft", "topic"), ErrMissingInput},
		{"sealed", RegistrySealed("role", "writer"), ErrRegistrySealed},
		{"role execution", RoleExecution("draft", "writer", errors.New("x")), ErrRoleExecution},
		{"coordinator loop", CoordinatorLoop("manager", 3), ErrCoordinatorLoop},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			if !errors.Is(wrapped, tt.sentinel) {
				t.Fatalf("expected %v to match sentinel", tt.err)
			}
			if errors.Is(wrapped, ErrTimeout) {
				t.Fatalf("did not expect timeout match for %v", tt.err)
			}
		})
	}
}

func TestRoleExecutionWrapsCause(t *testing.T) {
	cause := New(CodeTimeout, "operation exceeded timeout", nil)
	err := RoleExecution("research", "reporter", cause)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected timeout cause to be reachable")
	}
	if CodeOf(err) != CodeRoleExecution {
		t.Fatalf("expected outer code ROLE_EXECUTION, got %s", CodeOf(err))
	}
	if !strings.Contains(err.Error(), `step "research"`) || !strings.Contains(err.Error(), `role "reporter"`) {
		t.Fatalf("expected step and role in message, got %q", err.Error())
	}
}

func TestMissingInputNamesStepAndKey(t *testing.T) {
	err := MissingInput("compile", "research")
	if err.Context["step_id"] != "compile" || err.Context["key"] != "research" {
		t.Fatalf("unexpected context: %+v", err.Context)
	}
}

func TestIsConfiguration(t *testing.T) {
	if !IsConfiguration(MissingInput("a", "b")) {
		t.Errorf("missing input should be a configuration error")
	}
	if !IsConfiguration(DuplicateRole("a")) {
		t.Errorf("duplicate role should be a configuration error")
	}
	if IsConfiguration(RoleExecution("a", "b", nil)) {
		t.Errorf("role execution is not a configuration error")
	}
	if IsConfiguration(errors.New("plain")) {
		t.Errorf("plain error is not a configuration error")
	}
}

func TestAs(t *testing.T) {
	if As(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
	plain := errors.New("plain")
	wrapped := As(plain)
	if wrapped.Code != CodeInternal || !errors.Is(wrapped, plain) {
		t.Fatalf("expected internal wrap, got %+v", wrapped)
	}
	typed := UnknownRole("x")
	if As(fmt.Errorf("ctx: %w", typed)) != typed {
		t.Fatalf("expected As to find typed error in chain")
	}
}

func TestMarshalJSON(t *testing.T) {
	e := New(CodeToolFailure, "tool failed", errors.New("boom")).WithContext("tool", "fetch")
	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out["code"] != "TOOL_FAILURE" || out["error"] != "boom" {
		t.Fatalf("unexpected json: %s", data)
	}
}
