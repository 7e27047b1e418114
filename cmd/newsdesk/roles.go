// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/jllopis/newsdesk/pkg/crew"
)

type roleInfo struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
	Coordinator  bool     `json:"coordinator,omitempty"`
}

type stepInfo struct {
	ID     string   `json:"id"`
	Role   string   `json:"role"`
	Inputs []string `json:"inputs,omitempty"`
	Output string   `json:"output"`
}

type rolesResult struct {
	Crew     string     `json:"crew"`
	Builtins []string   `json:"builtins"`
	Roles    []roleInfo `json:"roles"`
	Steps    []stepInfo `json:"steps"`
}

func (c *cli) runRoles(_ context.Context, args []string) error {
	cmd := flag.NewFlagSet("roles", flag.ContinueOnError)
	cmd.SetOutput(c.stderr)
	var crewSel crewFlags
	crewSel.register(cmd)
	if err := cmd.Parse(args); err != nil {
		return NewInvalidArgumentError("roles", err.Error())
	}

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	cr, err := loadCrew(cfg, crewSel)
	if err != nil {
		return err
	}

	result := rolesResult{Crew: cr.Name, Builtins: crew.Builtins()}
	for _, r := range cr.Registry.Roles() {
		result.Roles = append(result.Roles, roleInfo{
			ID:           r.ID(),
			Name:         r.Name(),
			Capabilities: r.Capabilities(),
			Coordinator:  r.ID() == cr.Coordinator,
		})
	}
	steps, err := cr.StepList()
	if err != nil {
		return err
	}
	for _, s := range steps {
		result.Steps = append(result.Steps, stepInfo{ID: s.ID, Role: s.Role, Inputs: s.Inputs, Output: s.Output})
	}

	if c.flags.JSON {
		return c.printJSON(result)
	}
	tw := c.newTabWriter()
	fmt.Fprintf(tw, "Crew %s\n\n", cr.Name)
	fmt.Fprintln(tw, "ROLE\tNAME\tCAPABILITIES")
	for _, r := range result.Roles {
		id := r.ID
		if r.Coordinator {
			id += " (coordinator)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", id, r.Name, strings.Join(r.Capabilities, ","))
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "STEP\tROLE\tREADS\tWRITES")
	for _, s := range result.Steps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ID, s.Role, strings.Join(s.Inputs, ","), s.Output)
	}
	return tw.Flush()
}
