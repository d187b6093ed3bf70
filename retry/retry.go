// Package retry implements the bounded backoff-and-jitter retry loop
// described in spec §4.1: it runs an attempt-taking operation, classifies
// failures as transient or fatal, and sleeps between attempts with
// exponential backoff plus optional jitter.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/pkg/errors"

	"github.com/KredoKodo/KopioRapido-sub000/internal/clock"
	"github.com/KredoKodo/KopioRapido-sub000/internal/klog"
	"github.com/KredoKodo/KopioRapido-sub000/internal/xerr"
	"github.com/KredoKodo/KopioRapido-sub000/model"
)

var log = klog.Module("kopiorapido/retry")

// overridable in tests, mirroring the teacher's package-var-for-test-override idiom.
var (
	jitterFraction = 0.25
)

// Attempt is a single attempt-taking operation, given its 1-based attempt
// number and a cancellation context.
type Attempt[T any] func(ctx context.Context, attemptNumber int) (T, error)

// Hook is invoked before each retry sleep with the attempt that just failed,
// its error, and the delay about to be slept — callers use it to drive
// progress reporting with IsRetrying=true.
type Hook func(attempt int, err error, delay time.Duration)

// Executor runs an Attempt under a RetryConfiguration.
type Executor struct {
	cfg  model.RetryConfiguration
	hook Hook
}

// New builds an Executor for cfg. hook may be nil.
func New(cfg model.RetryConfiguration, hook Hook) *Executor {
	return &Executor{cfg: cfg, hook: hook}
}

// Error wraps the last cause after all attempts are exhausted.
type Error struct {
	Attempts int
	Cause    error
}

func (e *Error) Error() string {
	return errors.Wrapf(e.Cause, "failed after %d attempts", e.Attempts).Error()
}

func (e *Error) Unwrap() error { return e.Cause }

// Do runs attempt, retrying transient failures up to cfg.MaxAttempts times
// (cfg.MaxAttempts+1 total attempts), sleeping between attempts per spec
// §4.1. Cancellation errors are never retried.
func Do[T any](ctx context.Context, e *Executor, attempt Attempt[T]) (T, error) {
	var zero T

	var lastErr error

	for n := 1; n <= e.cfg.MaxAttempts+1; n++ {
		result, err := attempt(ctx, n)
		if err == nil {
			return result, nil
		}

		lastErr = err

		kind := xerr.Classify(err)
		if kind == xerr.KindCancelled {
			return zero, err
		}

		if kind != xerr.KindTransientIO {
			return zero, err
		}

		if n == e.cfg.MaxAttempts+1 {
			break
		}

		delay := e.delayFor(n)

		if e.hook != nil {
			e.hook(n, err, delay)
		}

		log.Debug().Int("attempt", n).Dur("delay", delay).Err(err).Msg("retrying transient error")

		if !clock.SleepInterruptibly(ctx, delay) {
			return zero, ctx.Err()
		}
	}

	return zero, &Error{Attempts: e.cfg.MaxAttempts + 1, Cause: lastErr}
}

// delayFor computes min(maxDelay, initialDelay * multiplier^(n-1)), with
// optional uniform jitter in [-25%, +25%].
func (e *Executor) delayFor(n int) time.Duration {
	base := float64(e.cfg.InitialDelayMs) * math.Pow(e.cfg.BackoffMultiplier, float64(n-1))

	maxMs := float64(e.cfg.MaxDelayMs)
	if base > maxMs {
		base = maxMs
	}

	if e.cfg.UseJitter {
		jitter := 1 + (rand.Float64()*2-1)*jitterFraction //nolint:gosec
		base *= jitter

		if base < 0 {
			base = 0
		}

		if base > maxMs {
			base = maxMs
		}
	}

	return time.Duration(base) * time.Millisecond
}
