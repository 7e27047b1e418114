// SPDX-License-Identifier: Apache-2.0
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jllopis/newsdesk/pkg/errors"
)

// PipelineMetrics tracks runs, steps and errors. A nil *PipelineMetrics is a
// valid no-op recorder.
type PipelineMetrics struct {
	runCounter     metric.Int64Counter
	stepCounter    metric.Int64Counter
	stepLatencyMs  metric.Float64Histogram
	errorCounter   metric.Int64Counter
	coordinatorCnt metric.Int64Counter
}

// NewPipelineMetrics creates pipeline instruments on the global meter provider.
func NewPipelineMetrics() (*PipelineMetrics, error) {
	meter := otel.Meter("newsdesk/pipeline")

	runCounter, err := meter.Int64Counter(
		"newsdesk.runs.total",
		metric.WithDescription("Pipeline runs by mode and final status"),
	)
	if err != nil {
		return nil, err
	}
	stepCounter, err := meter.Int64Counter(
		"newsdesk.steps.total",
		metric.WithDescription("Step invocations by step, role and status"),
	)
	if err != nil {
		return nil, err
	}
	stepLatencyMs, err := meter.Float64Histogram(
		"newsdesk.step.duration_ms",
		metric.WithDescription("Step latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	errorCounter, err := meter.Int64Counter(
		"newsdesk.errors.total",
		metric.WithDescription("Errors by code and component"),
	)
	if err != nil {
		return nil, err
	}
	coordinatorCnt, err := meter.Int64Counter(
		"newsdesk.coordinator.decisions",
		metric.WithDescription("Coordinator decisions by action"),
	)
	if err != nil {
		return nil, err
	}
	return &PipelineMetrics{
		runCounter:     runCounter,
		stepCounter:    stepCounter,
		stepLatencyMs:  stepLatencyMs,
		errorCounter:   errorCounter,
		coordinatorCnt: coordinatorCnt,
	}, nil
}

// RecordRun counts a finished run.
func (m *PipelineMetrics) RecordRun(ctx context.Context, mode, status string) {
	if m == nil {
		return
	}
	m.runCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrRunMode, mode),
		attribute.String(AttrRunStatus, status),
	))
}

// RecordStep counts a finished step invocation and its latency.
func (m *PipelineMetrics) RecordStep(ctx context.Context, stepID, roleID, status string, durationMs float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrStepID, stepID),
		attribute.String(AttrRoleID, roleID),
		attribute.String("status", status),
	)
	m.stepCounter.Add(ctx, 1, attrs)
	m.stepLatencyMs.Record(ctx, durationMs, attrs)
}

// RecordDecision counts a coordinator decision.
func (m *PipelineMetrics) RecordDecision(ctx context.Context, roleID, action string) {
	if m == nil {
		return
	}
	m.coordinatorCnt.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrRoleID, roleID),
		attribute.String(AttrCoordinatorAction, action),
	))
}

// RecordError counts an error with its code and the component that saw it.
func (m *PipelineMetrics) RecordError(ctx context.Context, err error, component string) {
	if m == nil || err == nil {
		return
	}
	e := errors.As(err)
	m.errorCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrErrorCode, string(errors.CodeOf(err))),
		attribute.String("component", component),
		attribute.String("recoverable", e.RecoverableString()),
	))
}
