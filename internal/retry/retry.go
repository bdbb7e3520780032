package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/checkpointhq/checkpoint/internal/clock"
)

// Do executes op up to MaxRetries+1 times under the policy. Each attempt runs
// with a hard per-attempt timeout; after a failing attempt, if attempts
// remain and the error is judged retryable, Do sleeps for the computed
// backoff and tries again, otherwise it returns the last error immediately.
// name is the human-readable operation name used in logs and user messages.
func Do[T any](ctx context.Context, name string, p Policy, op func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := p.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := runAttempt(ctx, name, p.AttemptTimeout, op)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if attempt == attempts || !p.retryable(err) {
			break
		}

		if p.Metrics != nil {
			p.Metrics.RetryAttempts.WithLabelValues(name).Inc()
		}

		delay := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		} else {
			slog.Warn("retrying operation",
				"operation", name,
				"attempt", attempt,
				"next_delay", delay,
				"error", err,
			)
		}

		if sleepErr := clock.Sleep(ctx, p.clock(), delay); sleepErr != nil {
			return zero, sleepErr
		}
	}

	if p.Metrics != nil {
		p.Metrics.RetryExhausted.WithLabelValues(name).Inc()
	}
	return zero, lastErr
}

// DoWithFallback composes Do with Classify: on terminal failure it returns
// the fallback value and the classified SafeError instead of a raw error, so
// callers that can degrade gracefully never need their own error handling.
func DoWithFallback[T any](ctx context.Context, name string, p Policy, op func(context.Context) (T, error), fallback T) (T, *SafeError) {
	v, err := Do(ctx, name, p, op)
	if err != nil {
		safe := Classify(err, name)
		slog.Error("operation failed, using fallback",
			"operation", name,
			"error_type", string(safe.Type),
			"error", err,
		)
		return fallback, safe
	}
	return v, nil
}

// runAttempt runs one attempt under timeout. When the attempt outlives the
// timeout the wrapper stops waiting on it; the goroutine is left to finish
// against its cancelled context and its result is discarded.
func runAttempt[T any](ctx context.Context, name string, timeout time.Duration, op func(context.Context) (T, error)) (T, error) {
	var zero T

	if timeout <= 0 {
		return op(ctx)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("%s panicked: %v", name, r)}
			}
		}()
		v, err := op(attemptCtx)
		ch <- result{v: v, err: err}
	}()

	select {
	case res := <-ch:
		return res.v, res.err
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, fmt.Errorf("%s timed out after %s", name, timeout)
	}
}
