// SPDX-License-Identifier: Apache-2.0
package resilience

import (
	"context"
	"time"

	"github.com/jllopis/newsdesk/pkg/errors"
)

// TimeoutConfig bounds a blocking operation.
type TimeoutConfig struct {
	// Duration is the maximum time allowed. Zero disables the bound.
	Duration time.Duration
}

// WithTimeout runs fn under a derived context that expires after
// cfg.Duration. On expiry it returns a recoverable CodeTimeout error without
// waiting for fn, which observes the cancellation through its context.
// Cancellation of the parent context is reported as CodeContextLost.
func WithTimeout[T any](ctx context.Context, cfg TimeoutConfig, fn func(context.Context) (T, error)) (T, error) {
	if cfg.Duration <= 0 {
		return fn(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		value, err := fn(ctx)
		done <- result{value, err}
	}()

	var zero T
	select {
	case res := <-done:
		return res.value, res.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return zero, errors.New(errors.CodeTimeout, "operation exceeded timeout", ctx.Err()).
				WithContext("timeout", cfg.Duration.String()).
				WithRecoverable(true)
		}
		return zero, errors.New(errors.CodeContextLost, "operation canceled", ctx.Err())
	}
}
