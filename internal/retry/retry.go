// Package retry runs operations under a bounded retry policy. The same policy
// type is used around single portal calls and around whole sessions.
package retry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/jonathan/jobwatch/internal/failure"
)

// RecoveryFunc runs between a failed attempt and the next one. attempt is the
// 1-based number of the attempt that just failed.
type RecoveryFunc func(ctx context.Context, attempt int, err error) error

// SleepFunc suspends for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy describes how an operation is retried.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	Recovery    RecoveryFunc // nil means wait only
	Sleep       SleepFunc    // nil means Sleep
	Logger      *zap.SugaredLogger
}

// Sleep waits for d, returning early with ctx.Err() if ctx is cancelled.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do runs fn until it succeeds, fails with a FatalConfig failure, or exhausts
// p.MaxAttempts. Recoverable, Exhausted (from an inner scope) and unclassified
// failures are retried. Exhaustion returns a failure.Exhausted error whose
// message lists every attempt's failure in order.
func Do[T any](ctx context.Context, p Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	history := make([]string, 0, maxAttempts)
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Infow("Operation succeeded after retry", "op", op, "attempt", attempt)
			}
			return result, nil
		}

		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return zero, err
		}

		kind := failure.KindOf(err)
		if kind == failure.FatalConfig {
			logger.Errorw("Fatal configuration error, not retrying", "op", op, "error", err)
			return zero, err
		}

		lastErr = err
		history = append(history, fmt.Sprintf("Attempt %d failed during %s: %s - %v", attempt, op, kind, err))

		if attempt == maxAttempts {
			break
		}

		logger.Warnw("Attempt failed, retrying",
			"op", op,
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"kind", kind.String(),
			"error", err)

		if p.Recovery != nil {
			if rerr := p.Recovery(ctx, attempt, err); rerr != nil {
				if failure.IsFatal(rerr) {
					return zero, rerr
				}
				logger.Warnw("Recovery action failed", "op", op, "attempt", attempt, "error", rerr)
			}
		}

		if err := sleep(ctx, p.Delay); err != nil {
			return zero, err
		}
	}

	message := fmt.Sprintf("failed %d times:\n%s", maxAttempts, strings.Join(history, "\n"))
	logger.Errorw("Retries exhausted", "op", op, "attempts", maxAttempts)
	exhausted := failure.NewExhausted(op, lastErr, message)
	exhausted.Attempts = history
	return zero, exhausted
}
