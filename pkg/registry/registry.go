// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry holds the named role and step definitions of a crew.
//
// A Registry is populated once at startup and sealed; after Seal it is read
// only and safe for concurrent lookups.
package registry

import (
	"slices"
	"strings"
	"sync"

	"github.com/jllopis/newsdesk/pkg/core"
	"github.com/jllopis/newsdesk/pkg/errors"
)

// Registry stores roles and steps by identifier.
type Registry struct {
	mu        sync.RWMutex
	roles     map[string]core.Role
	roleOrder []string
	steps     map[string]core.Step
	stepOrder []string
	sealed    bool
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		roles: make(map[string]core.Role),
		steps: make(map[string]core.Step),
	}
}

// Register adds a role. It fails with DUPLICATE_ROLE if the id exists.
func (r *Registry) Register(role core.Role) error {
	if role.ID() == "" {
		return errors.InvalidInput("role id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return errors.RegistrySealed("role", role.ID())
	}
	if _, exists := r.roles[role.ID()]; exists {
		return errors.DuplicateRole(role.ID())
	}
	r.roles[role.ID()] = role
	r.roleOrder = append(r.roleOrder, role.ID())
	return nil
}

// Resolve returns the role with id. It fails with UNKNOWN_ROLE if absent.
func (r *Registry) Resolve(id string) (core.Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	role, ok := r.roles[id]
	if !ok {
		return core.Role{}, errors.UnknownRole(id)
	}
	return role, nil
}

// Roles returns every role in registration order.
func (r *Registry) Roles() []core.Role {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.Role, 0, len(r.roleOrder))
	for _, id := range r.roleOrder {
		out = append(out, r.roles[id])
	}
	return out
}

// RegisterStep adds a step definition. Its owning role must already exist.
func (r *Registry) RegisterStep(step core.Step) error {
	step.ID = strings.TrimSpace(step.ID)
	if step.ID == "" {
		return errors.InvalidInput("step id is required")
	}
	if strings.TrimSpace(step.Output) == "" {
		return errors.InvalidInput("step " + step.ID + " must declare an output key")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return errors.RegistrySealed("step", step.ID)
	}
	if _, exists := r.steps[step.ID]; exists {
		return errors.DuplicateStep(step.ID)
	}
	if _, ok := r.roles[step.Role]; !ok {
		return errors.UnknownRole(step.Role).WithContext("step_id", step.ID)
	}
	r.steps[step.ID] = step.Clone()
	r.stepOrder = append(r.stepOrder, step.ID)
	return nil
}

// Step returns the step with id. It fails with UNKNOWN_STEP if absent.
func (r *Registry) Step(id string) (core.Step, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	step, ok := r.steps[id]
	if !ok {
		return core.Step{}, errors.UnknownStep(id)
	}
	return step.Clone(), nil
}

// Steps returns the named steps in the given order. With no ids it returns
// every step in registration order.
func (r *Registry) Steps(ids ...string) ([]core.Step, error) {
	if len(ids) == 0 {
		r.mu.RLock()
		ids = slices.Clone(r.stepOrder)
		r.mu.RUnlock()
	}
	out := make([]core.Step, 0, len(ids))
	for _, id := range ids {
		step, err := r.Step(id)
		if err != nil {
			return nil, err
		}
		out = append(out, step)
	}
	return out, nil
}

// Seal makes the registry read-only.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether Seal was called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}
