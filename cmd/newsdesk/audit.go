// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/jllopis/newsdesk/pkg/errors"
	"github.com/jllopis/newsdesk/pkg/pipeline"
)

// runAudit lists the recorded events of a run from the SQLite audit store.
func (c *cli) runAudit(ctx context.Context, args []string) error {
	cmd := flag.NewFlagSet("audit", flag.ContinueOnError)
	cmd.SetOutput(c.stderr)
	runID := cmd.String("run", "", "Run id")
	stepID := cmd.String("step", "", "Only events of this step")
	kind := cmd.String("kind", "", "Only events of this kind (step, decision)")
	limit := cmd.Int("limit", 0, "Maximum events to list")
	if err := cmd.Parse(args); err != nil {
		return NewInvalidArgumentError("audit", err.Error())
	}
	if *runID == "" {
		return NewInvalidArgumentError("--run", "a run id is required")
	}

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if cfg.Audit.Path == "" {
		return NewCLIError(
			errors.New(errors.CodeInvalidInput, "no audit store configured", nil),
			"set audit.path to a SQLite file so runs are recorded",
		)
	}
	store, err := pipeline.OpenSQLiteAuditStore(cfg.Audit.Path)
	if err != nil {
		return NewConfigError(err)
	}
	defer store.Close()

	events, err := store.List(ctx, pipeline.AuditFilter{RunID: *runID, StepID: *stepID, Kind: *kind, Limit: *limit})
	if err != nil {
		return err
	}

	if c.flags.JSON {
		return c.printJSON(events)
	}
	if len(events) == 0 {
		fmt.Fprintf(c.stdout, "No audit events for run %s\n", *runID)
		return nil
	}
	tw := c.newTabWriter()
	fmt.Fprintln(tw, "TIME\tKIND\tROUND\tSTEP\tROLE\tSTATUS\tDETAIL")
	for _, ev := range events {
		detail := ev.Error
		if detail == "" {
			detail = ev.Output
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			formatTime(ev.StartedAt), ev.Kind, ev.Round, cell(ev.StepID), cell(ev.RoleID), ev.Status, truncateCell(detail, 60))
	}
	return tw.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func cell(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncateCell(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len([]rune(s)) <= limit {
		return cell(s)
	}
	return string([]rune(s)[:limit-3]) + "..."
}
