// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/newsdesk/pkg/core"
	"github.com/jllopis/newsdesk/pkg/telemetry"
)

// RunSequential validates steps against initial and executes them in
// declared order. The artifact is the last step's output. The first failure
// aborts the run: later steps never execute and their outputs stay absent.
// The returned Run is never nil.
func (r *Runner) RunSequential(ctx context.Context, steps []core.Step, initial map[string]string) (*Run, error) {
	ctx, run := r.begin(ctx, ModeSequential, initial)
	ctx, span := r.tracer.Start(ctx, "Pipeline.Run",
		trace.WithAttributes(telemetry.RunAttributes(run.ID, string(run.Mode), len(steps))...),
	)
	defer span.End()

	bound, err := r.bind(steps, initial)
	if err != nil {
		return r.fail(ctx, span, run, err)
	}
	if err := r.transition(run, core.RunExecuting); err != nil {
		return r.fail(ctx, span, run, err)
	}
	r.start(ctx, run, len(bound))

	var last string
	for _, b := range bound {
		output, err := r.execute(ctx, run, b, 0)
		if err != nil {
			return r.fail(ctx, span, run, err)
		}
		last = output
	}
	return r.complete(ctx, span, run, last)
}
