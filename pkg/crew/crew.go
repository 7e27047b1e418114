// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package crew bundles the roles, steps and run settings of a crew. Crews
// are directories holding roles.yaml, steps.yaml and crew.yaml; the news
// and greeting crews are built in.
package crew

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jllopis/newsdesk/pkg/core"
	"github.com/jllopis/newsdesk/pkg/errors"
	"github.com/jllopis/newsdesk/pkg/pipeline"
	"github.com/jllopis/newsdesk/pkg/registry"
)

// DefinitionFile is the crew settings file name.
const DefinitionFile = "crew.yaml"

//go:embed builtin
var builtinFS embed.FS

// Input is one initial input the crew asks for.
type Input struct {
	Key     string `yaml:"key" json:"key"`
	Prompt  string `yaml:"prompt" json:"prompt,omitempty"`
	Default string `yaml:"default" json:"default,omitempty"`
}

// Output names the saved artifact file: <prefix>_<value of name_input>.txt.
type Output struct {
	Prefix    string `yaml:"prefix" json:"prefix"`
	NameInput string `yaml:"name_input" json:"name_input,omitempty"`
}

// Definition is the content of crew.yaml.
type Definition struct {
	Name        string        `yaml:"name" json:"name"`
	Description string        `yaml:"description" json:"description,omitempty"`
	Process     pipeline.Mode `yaml:"process" json:"process"`
	Coordinator string        `yaml:"coordinator" json:"coordinator,omitempty"`
	Steps       []string      `yaml:"steps" json:"steps"`
	Inputs      []Input       `yaml:"inputs" json:"inputs,omitempty"`
	Output      Output        `yaml:"output" json:"output"`
}

// Crew is a loaded crew with a sealed registry.
type Crew struct {
	Definition
	Registry *registry.Registry
}

// Builtins lists the embedded crews.
func Builtins() []string {
	entries, err := fs.ReadDir(builtinFS, "builtin")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names
}

// Builtin loads an embedded crew by name.
func Builtin(name string) (*Crew, error) {
	if !slices.Contains(Builtins(), name) {
		return nil, errors.InvalidInput(fmt.Sprintf("unknown crew %q (builtin crews: %s)", name, strings.Join(Builtins(), ", "))).
			WithContext("crew", name)
	}
	return LoadFS(builtinFS, path.Join("builtin", name))
}

// LoadDir loads a crew from a directory on disk.
func LoadDir(dir string) (*Crew, error) {
	return LoadFS(os.DirFS(dir), ".")
}

// LoadFS loads the crew in dir of fsys and seals its registry.
func LoadFS(fsys fs.FS, dir string) (*Crew, error) {
	data, err := fs.ReadFile(fsys, path.Join(dir, DefinitionFile))
	if err != nil {
		return nil, fmt.Errorf("read crew: %w", err)
	}
	def, err := ParseDefinition(data)
	if err != nil {
		return nil, err
	}
	reg := registry.New()
	if err := reg.LoadFS(fsys, dir); err != nil {
		return nil, err
	}
	reg.Seal()

	c := &Crew{Definition: def, Registry: reg}
	if err := c.check(); err != nil {
		return nil, err
	}
	return c, nil
}

// ParseDefinition decodes crew.yaml. A missing process means sequential.
func ParseDefinition(data []byte) (Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return Definition{}, fmt.Errorf("parse crew: %w", err)
	}
	def.Name = strings.TrimSpace(def.Name)
	if def.Name == "" {
		return Definition{}, errors.InvalidInput("crew name is required")
	}
	if def.Process == "" {
		def.Process = pipeline.ModeSequential
	}
	switch def.Process {
	case pipeline.ModeSequential:
		if def.Coordinator != "" {
			return Definition{}, errors.InvalidInput(fmt.Sprintf("crew %q: coordinator is only used by the hierarchical process", def.Name))
		}
	case pipeline.ModeHierarchical:
		if def.Coordinator == "" {
			return Definition{}, errors.InvalidInput(fmt.Sprintf("crew %q: hierarchical process needs a coordinator", def.Name))
		}
	default:
		return Definition{}, errors.InvalidInput(fmt.Sprintf("crew %q: unknown process %q", def.Name, def.Process))
	}
	if len(def.Steps) == 0 {
		return Definition{}, errors.InvalidInput(fmt.Sprintf("crew %q has no steps", def.Name))
	}
	if def.Output.Prefix == "" {
		def.Output.Prefix = def.Name
	}
	seen := make(map[string]bool, len(def.Inputs))
	for _, in := range def.Inputs {
		if in.Key == "" || seen[in.Key] {
			return Definition{}, errors.InvalidInput(fmt.Sprintf("crew %q: input keys must be unique and non-empty", def.Name))
		}
		seen[in.Key] = true
	}
	if def.Output.NameInput != "" && !seen[def.Output.NameInput] {
		return Definition{}, errors.InvalidInput(fmt.Sprintf("crew %q: output name_input %q is not a declared input", def.Name, def.Output.NameInput))
	}
	return def, nil
}

// check resolves the crew's step list and coordinator against the registry.
func (c *Crew) check() error {
	if _, err := c.StepList(); err != nil {
		return err
	}
	if c.Process == pipeline.ModeHierarchical {
		if _, err := c.Registry.Resolve(c.Coordinator); err != nil {
			return err
		}
	}
	return nil
}

// StepList returns the crew's steps in declared order.
func (c *Crew) StepList() ([]core.Step, error) {
	return c.Registry.Steps(c.Steps...)
}

// Initial builds the initial inputs. Every declared input is present:
// values left empty take the crew default. Undeclared keys are kept.
func (c *Crew) Initial(provided map[string]string) map[string]string {
	out := make(map[string]string, len(c.Inputs)+len(provided))
	for k, v := range provided {
		out[k] = v
	}
	for _, in := range c.Inputs {
		v := strings.TrimSpace(out[in.Key])
		if v == "" {
			v = in.Default
		}
		out[in.Key] = v
	}
	return out
}

// Validate checks the crew's steps against initial without running them.
func (c *Crew) Validate(runner *pipeline.Runner, initial map[string]string) error {
	steps, err := c.StepList()
	if err != nil {
		return err
	}
	if c.Process == pipeline.ModeHierarchical {
		return runner.ValidateHierarchical(steps, initial, c.Coordinator)
	}
	return runner.Validate(steps, initial)
}

// Run executes the crew with runner in the crew's process mode.
func (c *Crew) Run(ctx context.Context, runner *pipeline.Runner, initial map[string]string) (*pipeline.Run, error) {
	steps, err := c.StepList()
	if err != nil {
		return &pipeline.Run{Mode: c.Process, Status: core.RunFailed, State: core.NewSharedState(initial), Err: err}, err
	}
	if c.Process == pipeline.ModeHierarchical {
		return runner.RunHierarchical(ctx, steps, initial, c.Coordinator)
	}
	return runner.RunSequential(ctx, steps, initial)
}

// OutputName returns the value the artifact file is named after.
func (c *Crew) OutputName(initial map[string]string) string {
	if c.Output.NameInput == "" {
		return ""
	}
	return initial[c.Output.NameInput]
}
