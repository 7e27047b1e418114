// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package pipeline executes role-bound steps over a shared state, either in
// declared order or under a coordinator role that picks the next step each
// round.
package pipeline

import (
	"context"
	"time"

	"github.com/jllopis/newsdesk/pkg/core"
)

// Mode selects how a run orders its steps.
type Mode string

const (
	ModeSequential   Mode = "sequential"
	ModeHierarchical Mode = "hierarchical"
)

// RoleResolver looks up roles by id. *registry.Registry implements it.
type RoleResolver interface {
	Resolve(id string) (core.Role, error)
}

// ActionRequest is what a role action receives for one step invocation.
// Instruction, Goal and ExpectedOutput are already rendered.
type ActionRequest struct {
	RunID          string
	StepID         string
	Role           core.Role
	Instruction    string
	Goal           string
	ExpectedOutput string
	Inputs         map[string]string
	Round          int
	Attempt        int
}

// Action performs the work of one role for one step and returns its text output.
type Action interface {
	Perform(ctx context.Context, req ActionRequest) (string, error)
}

// ActionFunc adapts a function to Action.
type ActionFunc func(ctx context.Context, req ActionRequest) (string, error)

// Perform implements Action.
func (f ActionFunc) Perform(ctx context.Context, req ActionRequest) (string, error) {
	return f(ctx, req)
}

// ActionProvider binds roles to actions.
type ActionProvider interface {
	Action(role core.Role) (Action, error)
}

// RoleChecker is implemented by action providers that can tell, before a
// run starts, whether a role is servable (for example that every capability
// it declares has a tool behind it).
type RoleChecker interface {
	CheckRole(role core.Role) error
}

// ActionProviderFunc adapts a function to ActionProvider.
type ActionProviderFunc func(role core.Role) (Action, error)

// Action implements ActionProvider.
func (f ActionProviderFunc) Action(role core.Role) (Action, error) { return f(role) }

// StaticActions returns a provider that serves the same action for every role.
func StaticActions(action Action) ActionProvider {
	return ActionProviderFunc(func(core.Role) (Action, error) { return action, nil })
}

// Decision is a coordinator's choice for one round: invoke Step, or Finish
// with Artifact. A finish with a blank artifact uses the most recent step output.
type Decision struct {
	Step     string
	Finish   bool
	Artifact string
	Reason   string
}

// StepView describes a step to the coordinator.
type StepView struct {
	ID        string
	Role      string
	Goal      string
	Output    string
	Ready     bool
	Completed bool
}

// CoordinatorView is what the coordinator sees at the start of a round.
type CoordinatorView struct {
	RunID       string
	Role        core.Role
	Instruction string
	Steps       []StepView
	State       map[string]string
	Round       int
	MaxRounds   int
	LastOutput  string
}

// Coordinator decides the next step of a hierarchical run.
type Coordinator interface {
	Decide(ctx context.Context, view CoordinatorView) (Decision, error)
}

// CoordinatorFunc adapts a function to Coordinator.
type CoordinatorFunc func(ctx context.Context, view CoordinatorView) (Decision, error)

// Decide implements Coordinator.
func (f CoordinatorFunc) Decide(ctx context.Context, view CoordinatorView) (Decision, error) {
	return f(ctx, view)
}

// CoordinatorProvider binds a coordinator role to its decision maker.
type CoordinatorProvider interface {
	Coordinator(role core.Role) (Coordinator, error)
}

// CoordinatorProviderFunc adapts a function to CoordinatorProvider.
type CoordinatorProviderFunc func(role core.Role) (Coordinator, error)

// Coordinator implements CoordinatorProvider.
func (f CoordinatorProviderFunc) Coordinator(role core.Role) (Coordinator, error) { return f(role) }

// StepRecord is one step invocation within a run.
type StepRecord struct {
	StepID     string
	RoleID     string
	Round      int
	Status     core.StepStatus
	Output     string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Run is the outcome of one pipeline execution. On failure Artifact is empty
// and State keeps whatever the completed steps wrote.
type Run struct {
	ID         string
	Mode       Mode
	Status     core.RunStatus
	State      *core.SharedState
	Steps      []StepRecord
	Artifact   string
	Rounds     int
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Completed returns the ids of steps that completed at least once, in first
// completion order.
func (r *Run) Completed() []string {
	seen := make(map[string]bool)
	var out []string
	for _, rec := range r.Steps {
		if rec.Status != core.StepCompleted || seen[rec.StepID] {
			continue
		}
		seen[rec.StepID] = true
		out = append(out, rec.StepID)
	}
	return out
}
