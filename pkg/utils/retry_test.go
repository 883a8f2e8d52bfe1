package utils_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/modryx/warden/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTemporary = errors.New("temporary error")

func fastRetryOptions() utils.RetryOptions {
	return utils.RetryOptions{
		MaxElapsedTime:  time.Second,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		MaxRetries:      3,
	}
}

func TestWithRetry(t *testing.T) {
	t.Parallel()

	t.Run("succeeds first try", func(t *testing.T) {
		t.Parallel()

		calls := 0
		result, err := utils.WithRetry(context.Background(), func() (int, error) {
			calls++
			return 42, nil
		}, fastRetryOptions())

		require.NoError(t, err)
		assert.Equal(t, 42, result)
		assert.Equal(t, 1, calls)
	})

	t.Run("succeeds after retries", func(t *testing.T) {
		t.Parallel()

		calls := 0
		result, err := utils.WithRetry(context.Background(), func() (string, error) {
			calls++
			if calls < 3 {
				return "", errTemporary
			}
			return "ok", nil
		}, fastRetryOptions())

		require.NoError(t, err)
		assert.Equal(t, "ok", result)
		assert.Equal(t, 3, calls)
	})

	t.Run("fails all retries", func(t *testing.T) {
		t.Parallel()

		calls := 0
		_, err := utils.WithRetry(context.Background(), func() (int, error) {
			calls++
			return 0, errTemporary
		}, fastRetryOptions())

		require.ErrorIs(t, err, errTemporary)
		assert.Equal(t, 4, calls) // Initial + 3 retries
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		calls := 0
		_, err := utils.WithRetry(ctx, func() (int, error) {
			calls++
			return 0, errTemporary
		}, fastRetryOptions())

		require.Error(t, err)
		assert.LessOrEqual(t, calls, 1)
	})
}
