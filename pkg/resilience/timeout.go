// SPDX-License-Identifier: Apache-2.0
package resilience

import (
	"context"
	"time"

	"github.com/jllopis/agentloop/pkg/errors"
)

// Timeout runs fn under a deadline of d. fn receives the derived context and
// should honor it; if it does not return in time, Timeout returns a TIMEOUT
// AgentError without waiting for it. A d <= 0 calls fn directly.
func Timeout[T any](ctx context.Context, d time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if d <= 0 {
		return fn(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, d)
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
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return zero, errors.New(errors.CodeTimeout, "operation exceeded timeout", ctx.Err()).
				WithContext("timeout", d.String()).
				WithRecoverable(true)
		}
		return zero, ctx.Err()
	case res := <-done:
		return res.value, res.err
	}
}

// WithTimeout is Timeout for functions that only return an error.
func WithTimeout(ctx context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	_, err := Timeout(ctx, d, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
