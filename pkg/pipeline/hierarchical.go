// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/newsdesk/pkg/core"
	"github.com/jllopis/newsdesk/pkg/errors"
	"github.com/jllopis/newsdesk/pkg/resilience"
	"github.com/jllopis/newsdesk/pkg/telemetry"
	"github.com/jllopis/newsdesk/pkg/template"
)

// RunHierarchical lets the coordinator role choose, round by round, which
// step runs next or when to finish. Each round is one coordinator decision;
// a run that has not finished after MaxRounds decisions fails with a
// COORDINATOR_LOOP error. A completed step may be chosen again: it rewrites
// its own output key and appends a new StepRecord.
// The returned Run is never nil.
func (r *Runner) RunHierarchical(ctx context.Context, steps []core.Step, initial map[string]string, coordinatorRole string) (*Run, error) {
	ctx, run := r.begin(ctx, ModeHierarchical, initial)
	ctx, span := r.tracer.Start(ctx, "Pipeline.Run",
		trace.WithAttributes(telemetry.RunAttributes(run.ID, string(run.Mode), len(steps))...),
	)
	defer span.End()

	bound, err := r.bind(steps, initial)
	if err != nil {
		return r.fail(ctx, span, run, err)
	}
	role, err := r.bindCoordinator(coordinatorRole, initial)
	if err != nil {
		return r.fail(ctx, span, run, err)
	}
	coordinator, err := r.coordinators.Coordinator(role)
	if err != nil {
		return r.fail(ctx, span, run, errors.RoleExecution("", role.ID(), err))
	}
	if coordinator == nil {
		return r.fail(ctx, span, run, errors.RoleExecution("", role.ID(), fmt.Errorf("no coordinator bound to role")))
	}
	if err := r.transition(run, core.RunExecuting); err != nil {
		return r.fail(ctx, span, run, err)
	}
	r.start(ctx, run, len(bound))

	byID := make(map[string]boundStep, len(bound))
	for _, b := range bound {
		byID[b.step.ID] = b
	}

	var last string
	for round := 1; round <= r.maxRounds; round++ {
		run.Rounds = round
		decision, err := r.decide(ctx, run, coordinator, role, bound, round, last)
		if err != nil {
			return r.fail(ctx, span, run, err)
		}
		if decision.Finish {
			artifact := decision.Artifact
			if isBlank(artifact) {
				artifact = last
			}
			if isBlank(artifact) {
				return r.fail(ctx, span, run, errors.RoleExecution("", role.ID(), fmt.Errorf("finished without an artifact and no step has produced output")))
			}
			return r.complete(ctx, span, run, artifact)
		}

		b, ok := byID[decision.Step]
		if !ok {
			return r.fail(ctx, span, run, errors.RoleExecution("", role.ID(), errors.UnknownStep(decision.Step)))
		}
		output, err := r.execute(ctx, run, b, round)
		if err != nil {
			return r.fail(ctx, span, run, err)
		}
		last = output
	}
	return r.fail(ctx, span, run, errors.CoordinatorLoop(role.ID(), r.maxRounds))
}

// decide asks the coordinator for one decision and records it.
func (r *Runner) decide(ctx context.Context, run *Run, coordinator Coordinator, role core.Role, bound []boundStep, round int, last string) (Decision, error) {
	ctx, span := r.tracer.Start(ctx, "Pipeline.Coordinator",
		trace.WithAttributes(telemetry.CoordinatorAttributes(role.ID(), round, r.maxRounds)...),
	)
	defer span.End()

	instruction, err := template.Render(role.ID(), role.Instruction(), run.State)
	if err != nil {
		return Decision{}, err
	}
	view := CoordinatorView{
		RunID:       run.ID,
		Role:        role,
		Instruction: instruction,
		Steps:       stepViews(bound, run.State),
		State:       run.State.Snapshot(),
		Round:       round,
		MaxRounds:   r.maxRounds,
		LastOutput:  last,
	}

	started := time.Now().UTC()
	decision, err := resilience.WithTimeout(ctx, resilience.TimeoutConfig{Duration: r.stepTimeout}, func(ctx context.Context) (Decision, error) {
		return coordinator.Decide(ctx, view)
	})
	if err != nil {
		err = errors.RoleExecution("", role.ID(), err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.record(ctx, run, AuditEvent{Kind: AuditKindDecision, RoleID: role.ID(), Round: round, Status: "failed", Error: err.Error(), StartedAt: started, FinishedAt: time.Now().UTC()})
		return Decision{}, err
	}

	action := "invoke"
	if decision.Finish {
		action = "finish"
	}
	span.SetAttributes(attribute.String(telemetry.AttrCoordinatorAction, action))
	r.metrics.RecordDecision(ctx, role.ID(), action)
	r.logger.InfoContext(ctx, "pipeline.coordinator.decision",
		slog.String("run_id", run.ID),
		slog.String("role_id", role.ID()),
		slog.Int("round", round),
		slog.String("action", action),
		slog.String("step_id", decision.Step),
		slog.String("reason", decision.Reason),
	)
	r.emitter.Emit(ctx, core.NewEvent(core.EventCoordinatorDecision, run.ID, role.ID(), decision.Step, map[string]any{
		"round":  round,
		"action": action,
	}))
	r.record(ctx, run, AuditEvent{Kind: AuditKindDecision, StepID: decision.Step, RoleID: role.ID(), Round: round, Status: action, Output: decision.Reason, StartedAt: started, FinishedAt: time.Now().UTC()})
	return decision, nil
}

func stepViews(bound []boundStep, state *core.SharedState) []StepView {
	views := make([]StepView, 0, len(bound))
	for _, b := range bound {
		ready := true
		for _, key := range b.required {
			if !state.Has(key) {
				ready = false
				break
			}
		}
		views = append(views, StepView{
			ID:        b.step.ID,
			Role:      b.role.ID(),
			Goal:      b.step.Goal,
			Output:    b.step.Output,
			Ready:     ready,
			Completed: state.Has(b.step.Output),
		})
	}
	return views
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }
