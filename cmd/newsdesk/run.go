// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/jllopis/newsdesk/pkg/crew"
	"github.com/jllopis/newsdesk/pkg/pipeline"
	"github.com/jllopis/newsdesk/pkg/report"
)

type runResult struct {
	RunID     string            `json:"run_id"`
	Crew      string            `json:"crew"`
	Mode      string            `json:"mode"`
	Status    string            `json:"status"`
	Rounds    int               `json:"rounds,omitempty"`
	Inputs    map[string]string `json:"inputs"`
	Completed []string          `json:"completed"`
	Artifact  string            `json:"artifact"`
	SavedTo   string            `json:"saved_to,omitempty"`
	Duration  string            `json:"duration"`
}

func (c *cli) runRun(ctx context.Context, args []string) error {
	cmd := flag.NewFlagSet("run", flag.ContinueOnError)
	cmd.SetOutput(c.stderr)
	var crewSel crewFlags
	crewSel.register(cmd)
	var inputs multiFlag
	cmd.Var(&inputs, "input", "Initial input key=value (repeatable)")
	noSave := cmd.Bool("no-save", false, "Do not save the artifact to a file")
	outputDir := cmd.String("output-dir", "", "Directory for the saved artifact (default from config)")
	offline := cmd.Bool("offline", false, "Use the echo provider and no tools")
	if err := cmd.Parse(args); err != nil {
		return NewInvalidArgumentError("run", err.Error())
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
	if c.interactive && !c.flags.JSON {
		if provided, err = c.promptInputs(cr, provided); err != nil {
			return err
		}
	}
	initial := cr.Initial(provided)
	if !*offline {
		if err := checkCapabilities(cfg, cr); err != nil {
			return err
		}
	}

	a, err := c.newApp(ctx, cfg, cr, *offline)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			a.logger.Warn("newsdesk.close.failed", "error", err)
		}
	}()

	if !c.flags.JSON {
		fmt.Fprintf(c.stdout, "Crew: %s (%s)\n", cr.Name, cr.Process)
		for _, in := range cr.Inputs {
			fmt.Fprintf(c.stdout, "  %s: %s\n", in.Key, initial[in.Key])
		}
		fmt.Fprintln(c.stdout)
	}

	started := time.Now()
	run, err := cr.Run(ctx, a.runner, initial)
	if err != nil {
		if run != nil && run.ID != "" {
			a.logger.Info("newsdesk.run.failed", "run_id", run.ID, "completed", strings.Join(run.Completed(), ","))
		}
		return err
	}

	result := runResult{
		RunID:     run.ID,
		Crew:      cr.Name,
		Mode:      string(run.Mode),
		Status:    string(run.Status),
		Rounds:    run.Rounds,
		Inputs:    initial,
		Completed: run.Completed(),
		Artifact:  run.Artifact,
		Duration:  time.Since(started).Round(time.Millisecond).String(),
	}
	if cfg.Output.Save && !*noSave {
		dir := *outputDir
		if dir == "" {
			dir = cfg.Output.Dir
		}
		path, err := report.Save(dir, cr.Output.Prefix, cr.OutputName(initial), run.Artifact)
		if err != nil {
			return err
		}
		result.SavedTo = path
	}

	if c.flags.JSON {
		return c.printJSON(result)
	}
	c.printRun(cr, run, result)
	return nil
}

func (c *cli) printRun(cr *crew.Crew, run *pipeline.Run, result runResult) {
	rule := strings.Repeat("=", 70)
	fmt.Fprintln(c.stdout, rule)
	fmt.Fprintf(c.stdout, "%s\n", strings.ToUpper(cr.Name)+" RESULT")
	fmt.Fprintln(c.stdout, rule)
	fmt.Fprintln(c.stdout, run.Artifact)
	fmt.Fprintln(c.stdout)
	fmt.Fprintf(c.stdout, "Run %s completed in %s", run.ID, result.Duration)
	if run.Mode == pipeline.ModeHierarchical {
		fmt.Fprintf(c.stdout, " (%d rounds)", run.Rounds)
	}
	fmt.Fprintln(c.stdout)
	if result.SavedTo != "" {
		fmt.Fprintf(c.stdout, "Saved to: %s\n", result.SavedTo)
	}
}

// promptInputs asks for every declared input not given on the command
// line. An empty answer keeps the crew default.
func (c *cli) promptInputs(cr *crew.Crew, provided map[string]string) (map[string]string, error) {
	reader := bufio.NewReader(c.stdin)
	for _, in := range cr.Inputs {
		if _, ok := provided[in.Key]; ok {
			continue
		}
		prompt := in.Prompt
		if prompt == "" {
			prompt = in.Key
		}
		if in.Default != "" {
			prompt += fmt.Sprintf(" [%s]", in.Default)
		}
		fmt.Fprintf(c.stdout, "%s: ", prompt)
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("read %s: %w", in.Key, err)
		}
		provided[in.Key] = strings.TrimSpace(line)
		if err == io.EOF {
			break
		}
	}
	return provided, nil
}

func isInteractive() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())
}
