// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/newsdesk/pkg/core"
	"github.com/jllopis/newsdesk/pkg/errors"
	"github.com/jllopis/newsdesk/pkg/resilience"
	"github.com/jllopis/newsdesk/pkg/telemetry"
	"github.com/jllopis/newsdesk/pkg/template"
)

// DefaultMaxRounds is the coordinator round budget when none is configured.
const DefaultMaxRounds = 10

// ErrEmptyOutput is the cause reported when an action returns blank text.
var ErrEmptyOutput = stderrors.New("action returned empty output")

// Runner executes pipelines. It holds no per-run state and may serve
// several runs at once; each run owns its shared state.
type Runner struct {
	roles        RoleResolver
	actions      ActionProvider
	coordinators CoordinatorProvider
	maxRounds    int
	stepTimeout  time.Duration
	retry        resilience.RetryConfig
	audit        AuditStore
	emitter      core.EventEmitter
	logger       *slog.Logger
	metrics      *telemetry.PipelineMetrics
	tracer       trace.Tracer
}

// Option configures a Runner.
type Option func(*Runner) error

// New creates a runner bound to a role resolver and an action provider.
func New(roles RoleResolver, actions ActionProvider, opts ...Option) (*Runner, error) {
	r := &Runner{
		roles:     roles,
		actions:   actions,
		maxRounds: DefaultMaxRounds,
		retry:     resilience.DefaultRetryConfig(),
		emitter:   core.NoopEventEmitter{},
		logger:    slog.Default(),
		tracer:    otel.Tracer("newsdesk/pipeline"),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	if r.roles == nil {
		return nil, errors.InvalidInput("role resolver is required")
	}
	if r.actions == nil {
		return nil, errors.InvalidInput("action provider is required")
	}
	return r, nil
}

// WithCoordinators sets the provider used by RunHierarchical.
func WithCoordinators(p CoordinatorProvider) Option {
	return func(r *Runner) error {
		r.coordinators = p
		return nil
	}
}

// WithMaxRounds sets the coordinator round budget. It must be positive.
func WithMaxRounds(n int) Option {
	return func(r *Runner) error {
		if n <= 0 {
			return errors.InvalidInput(fmt.Sprintf("max rounds must be positive, got %d", n))
		}
		r.maxRounds = n
		return nil
	}
}

// WithStepTimeout bounds each action and coordinator call. Zero disables it.
func WithStepTimeout(d time.Duration) Option {
	return func(r *Runner) error {
		if d < 0 {
			return errors.InvalidInput("step timeout must not be negative")
		}
		r.stepTimeout = d
		return nil
	}
}

// WithRetry retries recoverable action failures. The default is one attempt.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(r *Runner) error {
		r.retry = cfg
		return nil
	}
}

// WithAuditStore records step and decision events.
func WithAuditStore(store AuditStore) Option {
	return func(r *Runner) error {
		r.audit = store
		return nil
	}
}

// WithEmitter sends run events to emitter.
func WithEmitter(emitter core.EventEmitter) Option {
	return func(r *Runner) error {
		if emitter != nil {
			r.emitter = emitter
		}
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) error {
		if logger != nil {
			r.logger = logger
		}
		return nil
	}
}

// WithMetrics records run and step metrics.
func WithMetrics(m *telemetry.PipelineMetrics) Option {
	return func(r *Runner) error {
		r.metrics = m
		return nil
	}
}

// MaxRounds returns the configured coordinator round budget.
func (r *Runner) MaxRounds() int { return r.maxRounds }

// begin creates a run and moves it to Validating.
func (r *Runner) begin(ctx context.Context, mode Mode, initial map[string]string) (context.Context, *Run) {
	ctx, runID := core.EnsureRunID(ctx)
	run := &Run{
		ID:        runID,
		Mode:      mode,
		Status:    core.RunPending,
		State:     core.NewSharedState(initial),
		StartedAt: time.Now().UTC(),
	}
	_ = r.transition(run, core.RunValidating)
	return ctx, run
}

func (r *Runner) transition(run *Run, to core.RunStatus) error {
	next, err := run.Status.Next(to)
	if err != nil {
		return errors.New(errors.CodeInternal, "illegal run state change", err).
			WithContext("run_id", run.ID)
	}
	run.Status = next
	return nil
}

func (r *Runner) start(ctx context.Context, run *Run, steps int) {
	r.logger.InfoContext(ctx, "pipeline.run.start",
		slog.String("run_id", run.ID),
		slog.String("mode", string(run.Mode)),
		slog.Int("steps", steps),
	)
	r.emitter.Emit(ctx, core.NewEvent(core.EventRunStarted, run.ID, "", "", map[string]any{
		"mode":  string(run.Mode),
		"steps": steps,
	}))
}

func (r *Runner) complete(ctx context.Context, span trace.Span, run *Run, artifact string) (*Run, error) {
	if err := r.transition(run, core.RunCompleted); err != nil {
		return r.fail(ctx, span, run, err)
	}
	run.Artifact = artifact
	run.FinishedAt = time.Now().UTC()
	span.SetStatus(codes.Ok, "completed")
	r.metrics.RecordRun(ctx, string(run.Mode), string(run.Status))
	r.logger.InfoContext(ctx, "pipeline.run.complete",
		slog.String("run_id", run.ID),
		slog.Int("invocations", len(run.Steps)),
		slog.Int("rounds", run.Rounds),
		slog.Int("artifact_len", len(artifact)),
	)
	r.emitter.Emit(ctx, core.NewEvent(core.EventRunCompleted, run.ID, "", "", map[string]any{
		"invocations": len(run.Steps),
		"rounds":      run.Rounds,
	}))
	return run, nil
}

func (r *Runner) fail(ctx context.Context, span trace.Span, run *Run, err error) (*Run, error) {
	if !run.Status.IsTerminal() {
		run.Status = core.RunFailed
	}
	run.Artifact = ""
	run.Err = err
	run.FinishedAt = time.Now().UTC()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	r.metrics.RecordRun(ctx, string(run.Mode), string(run.Status))
	r.metrics.RecordError(ctx, err, "pipeline")
	r.logger.ErrorContext(ctx, "pipeline.run.failed",
		slog.String("run_id", run.ID),
		slog.String("code", string(errors.CodeOf(err))),
		slog.String("error", err.Error()),
	)
	r.emitter.Emit(ctx, core.NewEvent(core.EventRunFailed, run.ID, "", "", map[string]any{
		"code":  string(errors.CodeOf(err)),
		"error": err.Error(),
	}))
	return run, err
}

// execute runs one step invocation against the run's state. The step's
// required keys are checked again here because a coordinator may choose a
// step before its inputs exist.
func (r *Runner) execute(ctx context.Context, run *Run, b boundStep, round int) (string, error) {
	if err := r.transition(run, core.RunExecuting); err != nil {
		return "", err
	}
	for _, key := range b.required {
		if !run.State.Has(key) {
			return "", errors.MissingInput(b.step.ID, key)
		}
	}

	ctx, span := r.tracer.Start(ctx, "Pipeline.Step",
		trace.WithAttributes(telemetry.StepAttributes(b.step.ID, b.role.ID(), b.step.Output, round)...),
	)
	defer span.End()

	rec := StepRecord{
		StepID:    b.step.ID,
		RoleID:    b.role.ID(),
		Round:     round,
		Status:    core.StepRunning,
		StartedAt: time.Now().UTC(),
	}
	r.logger.InfoContext(ctx, "pipeline.step.start",
		slog.String("run_id", run.ID),
		slog.String("step_id", b.step.ID),
		slog.String("role_id", b.role.ID()),
		slog.Int("round", round),
	)
	r.emitter.Emit(ctx, core.NewEvent(core.EventStepStarted, run.ID, b.role.ID(), b.step.ID, map[string]any{"round": round}))
	r.record(ctx, run, AuditEvent{Kind: AuditKindStep, StepID: b.step.ID, RoleID: b.role.ID(), Round: round, Status: string(core.StepRunning), StartedAt: rec.StartedAt})

	output, err := r.perform(ctx, run, b, round)
	rec.FinishedAt = time.Now().UTC()
	durationMs := float64(rec.FinishedAt.Sub(rec.StartedAt).Microseconds()) / 1000
	if err != nil {
		rec.Status = core.StepFailed
		rec.Error = err.Error()
		run.Steps = append(run.Steps, rec)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.metrics.RecordStep(ctx, b.step.ID, b.role.ID(), string(core.StepFailed), durationMs)
		r.logger.WarnContext(ctx, "pipeline.step.failed",
			slog.String("run_id", run.ID),
			slog.String("step_id", b.step.ID),
			slog.String("role_id", b.role.ID()),
			slog.String("error", err.Error()),
		)
		r.emitter.Emit(ctx, core.NewEvent(core.EventStepFailed, run.ID, b.role.ID(), b.step.ID, map[string]any{"error": err.Error()}))
		r.record(ctx, run, AuditEvent{Kind: AuditKindStep, StepID: b.step.ID, RoleID: b.role.ID(), Round: round, Status: string(core.StepFailed), Error: err.Error(), StartedAt: rec.StartedAt, FinishedAt: rec.FinishedAt})
		return "", err
	}

	run.State.Set(b.step.Output, output)
	rec.Status = core.StepCompleted
	rec.Output = output
	run.Steps = append(run.Steps, rec)
	span.SetStatus(codes.Ok, "completed")
	r.metrics.RecordStep(ctx, b.step.ID, b.role.ID(), string(core.StepCompleted), durationMs)
	r.logger.InfoContext(ctx, "pipeline.step.complete",
		slog.String("run_id", run.ID),
		slog.String("step_id", b.step.ID),
		slog.String("output_key", b.step.Output),
		slog.Int("output_len", len(output)),
		slog.Float64("duration_ms", durationMs),
	)
	r.emitter.Emit(ctx, core.NewEvent(core.EventStepCompleted, run.ID, b.role.ID(), b.step.ID, map[string]any{"output_key": b.step.Output}))
	r.record(ctx, run, AuditEvent{Kind: AuditKindStep, StepID: b.step.ID, RoleID: b.role.ID(), Round: round, Status: string(core.StepCompleted), Output: output, StartedAt: rec.StartedAt, FinishedAt: rec.FinishedAt})
	return output, nil
}

// perform renders the request and invokes the role's action under the step
// timeout and retry policy. Every failure is a RoleExecution error.
func (r *Runner) perform(ctx context.Context, run *Run, b boundStep, round int) (string, error) {
	instruction, err := template.Render(b.step.ID, b.role.Instruction(), run.State)
	if err != nil {
		return "", err
	}
	goal, err := template.Render(b.step.ID, b.step.Goal, run.State)
	if err != nil {
		return "", err
	}
	expected, err := template.Render(b.step.ID, b.step.ExpectedOutput, run.State)
	if err != nil {
		return "", err
	}

	action, err := r.actions.Action(b.role)
	if err != nil {
		return "", errors.RoleExecution(b.step.ID, b.role.ID(), err)
	}
	if action == nil {
		return "", errors.RoleExecution(b.step.ID, b.role.ID(), fmt.Errorf("no action bound to role"))
	}

	inputs := make(map[string]string, len(b.required))
	for _, key := range b.required {
		inputs[key], _ = run.State.Get(key)
	}

	output, err := resilience.Retry(ctx, r.retry, func(attempt int) (string, error) {
		req := ActionRequest{
			RunID:          run.ID,
			StepID:         b.step.ID,
			Role:           b.role,
			Instruction:    instruction,
			Goal:           goal,
			ExpectedOutput: expected,
			Inputs:         inputs,
			Round:          round,
			Attempt:        attempt,
		}
		out, err := resilience.WithTimeout(ctx, resilience.TimeoutConfig{Duration: r.stepTimeout}, func(ctx context.Context) (string, error) {
			return action.Perform(ctx, req)
		})
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(out) == "" {
			return "", ErrEmptyOutput
		}
		return out, nil
	})
	if err != nil {
		return "", errors.RoleExecution(b.step.ID, b.role.ID(), err)
	}
	return output, nil
}

func (r *Runner) record(ctx context.Context, run *Run, event AuditEvent) {
	if r.audit == nil {
		return
	}
	event.RunID = run.ID
	if err := r.audit.Record(ctx, event); err != nil {
		r.logger.WarnContext(ctx, "pipeline.audit.record_failed",
			slog.String("run_id", run.ID),
			slog.String("error", err.Error()),
		)
	}
}
