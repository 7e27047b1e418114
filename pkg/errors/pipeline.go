// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package errors

import "fmt"

// DuplicateRole reports a role id registered twice.
func DuplicateRole(roleID string) *Error {
	return New(CodeDuplicateRole, fmt.Sprintf("role %q already registered", roleID), nil).
		WithContext("role_id", roleID).
		WithAttribute("newsdesk.role.id", roleID)
}

// UnknownRole reports a role id that is not registered.
func UnknownRole(roleID string) *Error {
	return New(CodeUnknownRole, fmt.Sprintf("role %q not registered", roleID), nil).
		WithContext("role_id", roleID).
		WithAttribute("newsdesk.role.id", roleID)
}

// DuplicateStep reports a step id registered twice.
func DuplicateStep(stepID string) *Error {
	return New(CodeDuplicateStep, fmt.Sprintf("step %q already registered", stepID), nil).
		WithContext("step_id", stepID).
		WithAttribute("newsdesk.step.id", stepID)
}

// UnknownStep reports a step id that is not registered.
func UnknownStep(stepID string) *Error {
	return New(CodeUnknownStep, fmt.Sprintf("step %q not registered", stepID), nil).
		WithContext("step_id", stepID).
		WithAttribute("newsdesk.step.id", stepID)
}

// MissingInput reports a key a step reads that is absent from shared state.
func MissingInput(stepID, key string) *Error {
	return New(CodeMissingInput, fmt.Sprintf("step %q reads %q but no earlier step or initial input provides it", stepID, key), nil).
		WithContext("step_id", stepID).
		WithContext("key", key).
		WithAttribute("newsdesk.step.id", stepID)
}

// RegistrySealed reports a registration attempted after startup.
func RegistrySealed(kind, id string) *Error {
	return New(CodeRegistrySealed, fmt.Sprintf("cannot register %s %q: registry is sealed", kind, id), nil).
		WithContext(kind+"_id", id)
}

// InvalidInput reports a malformed declaration or argument.
func InvalidInput(msg string) *Error {
	return New(CodeInvalidInput, msg, nil)
}

// RoleExecution reports a failed or unusable role action for a step.
func RoleExecution(stepID, roleID string, cause error) *Error {
	msg := fmt.Sprintf("role %q failed", roleID)
	if stepID != "" {
		msg = fmt.Sprintf("step %q: role %q failed", stepID, roleID)
	}
	return New(CodeRoleExecution, msg, cause).
		WithContext("step_id", stepID).
		WithContext("role_id", roleID).
		WithAttribute("newsdesk.step.id", stepID).
		WithAttribute("newsdesk.role.id", roleID)
}

// CoordinatorLoop reports a coordinator that did not finish within its budget.
func CoordinatorLoop(roleID string, rounds int) *Error {
	return New(CodeCoordinatorLoop, fmt.Sprintf("coordinator %q did not finish within %d rounds", roleID, rounds), nil).
		WithContext("role_id", roleID).
		WithContext("max_rounds", rounds).
		WithAttribute("newsdesk.role.id", roleID)
}
