package util

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TSGCFO/langchain-agent/core"
)

// CallWithContext runs fn and returns its result, or core.ErrTimeout once ctx's
// deadline passes, even if fn ignores ctx. Cancellation without a deadline
// returns ctx.Err(). A panic in fn is converted to an error.
func CallWithContext[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				done <- result{val: zero, err: fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := fn(ctx)
		done <- result{val: v, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) && !errors.Is(r.err, core.ErrTimeout) {
			return r.val, fmt.Errorf("%w: %w", core.ErrTimeout, r.err)
		}
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, ContextError(ctx)
	}
}

// ContextError maps a finished context to the error kind callers branch on.
func ContextError(ctx context.Context) error {
	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", core.ErrTimeout, err)
	}
	return err
}

// WithOptionalTimeout derives a context bounded by d, or returns ctx unchanged
// with a no-op cancel when d is not positive.
func WithOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
