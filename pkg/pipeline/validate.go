// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"fmt"
	"strings"

	"github.com/jllopis/newsdesk/pkg/core"
	"github.com/jllopis/newsdesk/pkg/errors"
	"github.com/jllopis/newsdesk/pkg/template"
)

// boundStep is a step with its resolved role and the keys it needs.
type boundStep struct {
	step     core.Step
	role     core.Role
	required []string
}

// Validate checks a step list against the initial state without executing
// anything: steps are well formed, their roles resolve, each output key has a
// single writer that is not an initial input, every role can be served by
// the action provider, and every key a step reads (declared inputs plus placeholders
// in its goal, expected output and role instruction) is seeded or written by
// an earlier step.
func (r *Runner) Validate(steps []core.Step, initial map[string]string) error {
	_, err := r.bind(steps, initial)
	return err
}

// ValidateHierarchical runs Validate and also checks the coordinator role.
func (r *Runner) ValidateHierarchical(steps []core.Step, initial map[string]string, coordinatorRole string) error {
	if _, err := r.bind(steps, initial); err != nil {
		return err
	}
	_, err := r.bindCoordinator(coordinatorRole, initial)
	return err
}

func (r *Runner) bind(steps []core.Step, initial map[string]string) ([]boundStep, error) {
	if len(steps) == 0 {
		return nil, errors.InvalidInput("pipeline has no steps")
	}

	bound := make([]boundStep, 0, len(steps))
	ids := make(map[string]bool, len(steps))
	writers := make(map[string]string, len(steps)+len(initial))
	for k := range initial {
		writers[k] = ""
	}
	checker, _ := r.actions.(RoleChecker)
	for i, s := range steps {
		s = s.Clone()
		s.ID = strings.TrimSpace(s.ID)
		switch {
		case s.ID == "":
			return nil, errors.InvalidInput(fmt.Sprintf("step %d has no id", i+1))
		case ids[s.ID]:
			return nil, errors.DuplicateStep(s.ID)
		case strings.TrimSpace(s.Role) == "":
			return nil, errors.InvalidInput(fmt.Sprintf("step %q has no role", s.ID))
		case strings.TrimSpace(s.Output) == "":
			return nil, errors.InvalidInput(fmt.Sprintf("step %q has no output key", s.ID))
		}
		if other, ok := writers[s.Output]; ok {
			msg := fmt.Sprintf("steps %q and %q both write %q", other, s.ID, s.Output)
			if other == "" {
				msg = fmt.Sprintf("step %q writes %q, which is an initial input", s.ID, s.Output)
			}
			return nil, errors.InvalidInput(msg).
				WithContext("step_id", s.ID).
				WithContext("key", s.Output)
		}
		role, err := r.roles.Resolve(s.Role)
		if err != nil {
			return nil, err
		}
		if checker != nil {
			if err := checker.CheckRole(role); err != nil {
				return nil, errors.New(errors.CodeInvalidInput, fmt.Sprintf("step %q: role %q cannot be served", s.ID, role.ID()), err).
					WithContext("step_id", s.ID).
					WithContext("role_id", role.ID())
			}
		}
		ids[s.ID] = true
		writers[s.Output] = s.ID
		bound = append(bound, boundStep{
			step:     s,
			role:     role,
			required: template.RequiredKeys(s.Inputs, s.Goal, s.ExpectedOutput, role.Instruction()),
		})
	}

	available := make(map[string]bool, len(initial)+len(bound))
	for k := range initial {
		available[k] = true
	}
	for _, b := range bound {
		for _, key := range b.required {
			if !available[key] {
				return nil, errors.MissingInput(b.step.ID, key)
			}
		}
		available[b.step.Output] = true
	}
	return bound, nil
}

func (r *Runner) bindCoordinator(roleID string, initial map[string]string) (core.Role, error) {
	if strings.TrimSpace(roleID) == "" {
		return core.Role{}, errors.InvalidInput("coordinator role is required")
	}
	if r.coordinators == nil {
		return core.Role{}, errors.InvalidInput("no coordinator provider configured")
	}
	role, err := r.roles.Resolve(roleID)
	if err != nil {
		return core.Role{}, err
	}
	for _, key := range template.Placeholders(role.Instruction()) {
		if _, ok := initial[key]; !ok {
			return core.Role{}, errors.MissingInput(roleID, key)
		}
	}
	return role, nil
}
