// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jllopis/newsdesk/pkg/core"
	"github.com/jllopis/newsdesk/pkg/errors"
)

const (
	// RolesFile is the default roles declaration file name.
	RolesFile = "roles.yaml"
	// StepsFile is the default steps declaration file name.
	StepsFile = "steps.yaml"
)

type roleDecl struct {
	Name         string   `yaml:"name"`
	Instruction  string   `yaml:"instruction"`
	Capabilities []string `yaml:"capabilities"`
}

// ParseRoles decodes a roles document. Document order is preserved.
func ParseRoles(data []byte) ([]core.Role, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse roles: %w", err)
	}
	var roles []core.Role
	err := walkMapping(&doc, func(id string, value *yaml.Node) error {
		var decl roleDecl
		if err := value.Decode(&decl); err != nil {
			return fmt.Errorf("parse role %q: %w", id, err)
		}
		if strings.TrimSpace(decl.Instruction) == "" {
			return errors.InvalidInput(fmt.Sprintf("role %q has no instruction", id))
		}
		roles = append(roles, core.NewRole(id, strings.TrimSpace(decl.Name), strings.TrimSpace(decl.Instruction), decl.Capabilities...))
		return nil
	})
	return roles, err
}

// ParseSteps decodes a steps document. Document order is preserved.
func ParseSteps(data []byte) ([]core.Step, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse steps: %w", err)
	}
	var steps []core.Step
	err := walkMapping(&doc, func(id string, value *yaml.Node) error {
		var step core.Step
		if err := value.Decode(&step); err != nil {
			return fmt.Errorf("parse step %q: %w", id, err)
		}
		step.ID = id
		step.Goal = strings.TrimSpace(step.Goal)
		step.ExpectedOutput = strings.TrimSpace(step.ExpectedOutput)
		steps = append(steps, step)
		return nil
	})
	return steps, err
}

// walkMapping visits the top-level mapping of a YAML document in order.
func walkMapping(doc *yaml.Node, visit func(id string, value *yaml.Node) error) error {
	if doc.Kind == 0 {
		return nil
	}
	root := doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return errors.InvalidInput("declarations must be a mapping from identifier to attributes")
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		id := strings.TrimSpace(root.Content[i].Value)
		if id == "" {
			return errors.InvalidInput("empty identifier in declarations")
		}
		if err := visit(id, root.Content[i+1]); err != nil {
			return err
		}
	}
	return nil
}

// Load registers the roles and steps documents into r.
func (r *Registry) Load(rolesData, stepsData []byte) error {
	roles, err := ParseRoles(rolesData)
	if err != nil {
		return err
	}
	for _, role := range roles {
		if err := r.Register(role); err != nil {
			return err
		}
	}
	steps, err := ParseSteps(stepsData)
	if err != nil {
		return err
	}
	for _, step := range steps {
		if err := r.RegisterStep(step); err != nil {
			return err
		}
	}
	return nil
}

// LoadFS registers roles.yaml and steps.yaml found in dir of fsys.
func (r *Registry) LoadFS(fsys fs.FS, dir string) error {
	rolesData, err := fs.ReadFile(fsys, path.Join(dir, RolesFile))
	if err != nil {
		return fmt.Errorf("read roles: %w", err)
	}
	stepsData, err := fs.ReadFile(fsys, path.Join(dir, StepsFile))
	if err != nil {
		return fmt.Errorf("read steps: %w", err)
	}
	return r.Load(rolesData, stepsData)
}

// LoadFiles registers the two declaration files from disk.
func (r *Registry) LoadFiles(rolesPath, stepsPath string) error {
	rolesData, err := os.ReadFile(rolesPath)
	if err != nil {
		return err
	}
	stepsData, err := os.ReadFile(stepsPath)
	if err != nil {
		return err
	}
	return r.Load(rolesData, stepsData)
}
