// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"sort"
	"strings"

	"github.com/jllopis/newsdesk/pkg/template"
)

type validateResult struct {
	Crew        string         `json:"crew"`
	Process     string         `json:"process"`
	Coordinator string         `json:"coordinator,omitempty"`
	Valid       bool           `json:"valid"`
	Inputs      []string       `json:"inputs"`
	Steps       []validateStep `json:"steps"`
}

type validateStep struct {
	ID       string   `json:"id"`
	Role     string   `json:"role"`
	Requires []string `json:"requires"`
	Output   string   `json:"output"`
}

// runValidate checks a crew's declarations and data flow without calling
// any role.
func (c *cli) runValidate(ctx context.Context, args []string) error {
	cmd := flag.NewFlagSet("validate", flag.ContinueOnError)
	cmd.SetOutput(c.stderr)
	var crewSel crewFlags
	crewSel.register(cmd)
	var inputs multiFlag
	cmd.Var(&inputs, "input", "Initial input key=value (repeatable)")
	if err := cmd.Parse(args); err != nil {
		return NewInvalidArgumentError("validate", err.Error())
	}

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	cr, err := loadCrew(cfg, crewSel)
	if err != nil {
		return err
	}
	provided, err := parseInputs(inputs)
	if err != nil {
		return err
	}
	initial := cr.Initial(provided)

	a, err := c.newApp(ctx, cfg, cr, true)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	if err := cr.Validate(a.runner, initial); err != nil {
		return err
	}
	if err := checkCapabilities(cfg, cr); err != nil {
		return err
	}

	steps, err := cr.StepList()
	if err != nil {
		return err
	}
	result := validateResult{
		Crew:        cr.Name,
		Process:     string(cr.Process),
		Coordinator: cr.Coordinator,
		Valid:       true,
	}
	for k := range initial {
		result.Inputs = append(result.Inputs, k)
	}
	sort.Strings(result.Inputs)
	for _, s := range steps {
		role, err := cr.Registry.Resolve(s.Role)
		if err != nil {
			return err
		}
		result.Steps = append(result.Steps, validateStep{
			ID:       s.ID,
			Role:     s.Role,
			Requires: template.RequiredKeys(s.Inputs, s.Goal, s.ExpectedOutput, role.Instruction()),
			Output:   s.Output,
		})
	}

	if c.flags.JSON {
		return c.printJSON(result)
	}
	fmt.Fprintf(c.stdout, "Crew %q is valid (%s", cr.Name, cr.Process)
	if cr.Coordinator != "" {
		fmt.Fprintf(c.stdout, ", coordinator %s", cr.Coordinator)
	}
	fmt.Fprintf(c.stdout, ")\nInputs: %s\n\n", strings.Join(result.Inputs, ", "))
	tw := c.newTabWriter()
	fmt.Fprintln(tw, "STEP\tROLE\tREQUIRES\tWRITES")
	for _, s := range result.Steps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ID, s.Role, strings.Join(s.Requires, ","), s.Output)
	}
	return tw.Flush()
}
