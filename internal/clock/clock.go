// Package clock provides an injectable, interruptible notion of "now" and
// "sleep" so components that reason about elapsed time (retry backoff, ETA,
// performance sampling) can be driven deterministically in tests.
package clock

import (
	"context"
	"sync/atomic"
	"time"
)

// nowFunc is swappable for tests via Freeze/Unfreeze.
var nowFunc atomic.Value // func() time.Time

func init() {
	nowFunc.Store(time.Now)
}

// Now returns the current time, or a frozen value if Freeze was called.
func Now() time.Time {
	return nowFunc.Load().(func() time.Time)()
}

// Freeze pins Now() to t until Unfreeze is called. Intended for tests only.
func Freeze(t time.Time) {
	nowFunc.Store(func() time.Time { return t })
}

// Unfreeze restores Now() to the real wall clock.
func Unfreeze() {
	nowFunc.Store(time.Now)
}

// SleepInterruptibly sleeps for d or until ctx is done, whichever comes
// first. Returns true if the sleep ran to completion, false if ctx ended it
// early.
func SleepInterruptibly(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
