// Package retry implements the Retry Engine (spec §4.8): wraps a
// fallible operation with a policy, classifying failures by duck-typed
// error code rather than Go type, and backing off exponentially or
// linearly between attempts.
package retry

import (
	"context"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/flowlayer/engine/pkg/ferrors"
	"github.com/flowlayer/engine/pkg/flowtypes"
)

// Do runs op, retrying per policy on classified-retryable failures. A
// nil policy means "one attempt, no retry" (spec is silent on the
// no-policy case; this is the conservative default). On success it
// returns the result; on a retryable failure that exhausts maxAttempts
// it returns an ExecutionError{MAX_RETRIES_EXCEEDED}; on a
// non-retryable failure it returns that failure unchanged.
func Do[T any](ctx context.Context, policy *flowtypes.RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	maxAttempts := 1
	if policy != nil && policy.MaxAttempts > 0 {
		maxAttempts = policy.MaxAttempts
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if policy == nil || !isRetryable(err, policy.RetryableErrors) {
			return zero, err
		}
		if attempt == maxAttempts {
			return zero, ferrors.NewExecutionError(ferrors.CodeMaxRetries, "max retry attempts exceeded", err)
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delayFor(policy, attempt)):
		}
	}
	return zero, ctx.Err()
}

// WithTimeout races a single attempt of op against timeout (spec §4.10
// step 3c: "wrap the inner attempt in a race against the resolved step
// timeout"), using an errgroup so the attempt's own goroutine is joined
// rather than leaked when the deadline wins the race. On timeout it
// returns ferrors.NewTimeoutError carrying the resolved timeout and the
// actual elapsed time, annotated with stepName/expression for the
// caller to attach (spec §7).
func WithTimeout[T any](ctx context.Context, timeout time.Duration, stepName, expression string, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	start := time.Now()
	deadlineCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	g, gctx := errgroup.WithContext(deadlineCtx)
	var result T
	g.Go(func() error {
		var err error
		result, err = op(gctx)
		return err
	})

	err := g.Wait()
	if err == nil {
		return result, nil
	}
	if deadlineCtx.Err() == context.DeadlineExceeded {
		elapsed := time.Since(start)
		return zero, ferrors.NewTimeoutError(timeout.Milliseconds(), elapsed.Milliseconds(), stepName, expression)
	}
	return zero, err
}

// isRetryable reports whether err carries one of the policy's
// retryable codes, duck-typed via ferrors.HasCode regardless of err's
// concrete type (spec §4.8: "classified retryable iff the error
// carries a `code` equal to one of retryableErrors").
func isRetryable(err error, codes []string) bool {
	for _, c := range codes {
		if ferrors.HasCode(err, ferrors.Code(c)) {
			return true
		}
	}
	return false
}

// delayFor computes the backoff delay before retrying attempt n (the
// attempt number that just failed), per spec §4.8's two curves:
// exponential min(initial × multiplier^(n-1), maxDelay), linear
// min(initial + (n-1) × step, maxDelay) with step = initial × 0.04. A
// policy with no Backoff falls back to a flat RetryDelayMS.
func delayFor(policy *flowtypes.RetryPolicy, attempt int) time.Duration {
	b := policy.Backoff
	if b == nil {
		return time.Duration(policy.RetryDelayMS) * time.Millisecond
	}

	var ms float64
	switch b.Strategy {
	case flowtypes.BackoffLinear:
		step := float64(b.InitialMS) * 0.04
		ms = float64(b.InitialMS) + float64(attempt-1)*step
	default: // exponential
		ms = float64(b.InitialMS) * math.Pow(b.Multiplier, float64(attempt-1))
	}
	if b.MaxDelayMS > 0 && ms > float64(b.MaxDelayMS) {
		ms = float64(b.MaxDelayMS)
	}
	return time.Duration(ms) * time.Millisecond
}
