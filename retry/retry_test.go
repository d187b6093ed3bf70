package retry_test

import (
	"context"
	"io/fs"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/KredoKodo/KopioRapido-sub000/model"
	"github.com/KredoKodo/KopioRapido-sub000/retry"
)

var errTransient = errors.New("network timeout talking to share")

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	cfg := model.DefaultRetryConfiguration()
	cfg.InitialDelayMs = 1
	cfg.MaxDelayMs = 2
	cfg.UseJitter = false

	var hookCalls int

	exec := retry.New(cfg, func(attempt int, err error, delay time.Duration) {
		hookCalls++
	})

	calls := 0
	result, err := retry.Do(context.Background(), exec, func(ctx context.Context, n int) (int, error) {
		calls++
		if calls < 3 {
			return 0, errTransient
		}

		return 42, nil
	})

	require.NoError(t, err)
	require.Equal(t, 42, result)
	require.Equal(t, 3, calls)
	require.Equal(t, 2, hookCalls)
}

func TestDo_GivesUpAfterMaxAttempts(t *testing.T) {
	cfg := model.DefaultRetryConfiguration()
	cfg.MaxAttempts = 2
	cfg.InitialDelayMs = 1
	cfg.MaxDelayMs = 2
	cfg.UseJitter = false

	exec := retry.New(cfg, nil)

	calls := 0
	_, err := retry.Do(context.Background(), exec, func(ctx context.Context, n int) (int, error) {
		calls++
		return 0, errTransient
	})

	require.Error(t, err)
	require.Equal(t, cfg.MaxAttempts+1, calls)

	var re *retry.Error
	require.ErrorAs(t, err, &re)
	require.Equal(t, cfg.MaxAttempts+1, re.Attempts)
}

func TestDo_DoesNotRetryFatalErrors(t *testing.T) {
	cfg := model.DefaultRetryConfiguration()
	exec := retry.New(cfg, nil)

	calls := 0
	_, err := retry.Do(context.Background(), exec, func(ctx context.Context, n int) (int, error) {
		calls++
		return 0, fs.ErrNotExist
	})

	require.ErrorIs(t, err, fs.ErrNotExist)
	require.Equal(t, 1, calls)
}

func TestDo_NeverRetriesCancellation(t *testing.T) {
	cfg := model.DefaultRetryConfiguration()
	exec := retry.New(cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := retry.Do(ctx, exec, func(ctx context.Context, n int) (int, error) {
		calls++
		return 0, context.Canceled
	})

	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}
