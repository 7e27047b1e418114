// SPDX-License-Identifier: Apache-2.0
package resilience

import (
	"context"

	"github.com/jllopis/newsdesk/pkg/errors"
)

// FallbackFunc produces a value after the primary operation failed.
type FallbackFunc[T any] func(ctx context.Context, primaryErr error) (T, error)

// WithFallback runs primary, and on error hands the error to fallback.
// When fallback fails too, both failures are kept in the returned error.
func WithFallback[T any](ctx context.Context, primary func(context.Context) (T, error), fallback FallbackFunc[T]) (T, error) {
	value, err := primary(ctx)
	if err == nil || fallback == nil {
		return value, err
	}
	value, fbErr := fallback(ctx, err)
	if fbErr != nil {
		return value, errors.New(errors.CodeToolFailure, "primary and fallback failed", fbErr).
			WithContext("primary_error", err.Error())
	}
	return value, nil
}

// Chain tries each fallback in order until one succeeds.
func Chain[T any](fallbacks ...FallbackFunc[T]) FallbackFunc[T] {
	return func(ctx context.Context, primaryErr error) (T, error) {
		var zero T
		lastErr := primaryErr
		for _, fb := range fallbacks {
			value, err := fb(ctx, lastErr)
			if err == nil {
				return value, nil
			}
			lastErr = err
		}
		return zero, lastErr
	}
}

// Static returns a fallback that always yields value.
func Static[T any](value T) FallbackFunc[T] {
	return func(context.Context, error) (T, error) { return value, nil }
}
