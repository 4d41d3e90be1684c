package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func fastPolicy(attempts uint) Policy {
	return Policy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Multiplier:      2,
	}
}

func TestDo(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		got, err := Do(ctx, fastPolicy(5), "test", func(ctx context.Context) (int, error) {
			calls++
			if calls < 3 {
				return 0, errFlaky
			}
			return 42, nil
		})
		require.NoError(t, err)
		require.Equal(t, 42, got)
		require.Equal(t, 3, calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		_, err := Do(ctx, fastPolicy(4), "test", func(ctx context.Context) (int, error) {
			calls++
			return 0, errFlaky
		})
		require.ErrorIs(t, err, errFlaky)
		require.Equal(t, 4, calls, "Should stop at max attempts")
	})

	t.Run("does not retry permanent errors", func(t *testing.T) {
		policy := fastPolicy(5)
		fatal := errors.New("bad request")
		policy.Retryable = func(err error) bool { return !errors.Is(err, fatal) }

		calls := 0
		_, err := Do(ctx, policy, "test", func(ctx context.Context) (string, error) {
			calls++
			return "", fatal
		})
		require.ErrorIs(t, err, fatal)
		require.Equal(t, 1, calls)
	})

	t.Run("zero attempts runs once", func(t *testing.T) {
		calls := 0
		_, err := Do(ctx, fastPolicy(0), "test", func(ctx context.Context) (int, error) {
			calls++
			return 0, errFlaky
		})
		require.Error(t, err)
		require.Equal(t, 1, calls)
	})

	t.Run("default policy", func(t *testing.T) {
		p := DefaultPolicy()
		require.Equal(t, uint(10), p.MaxAttempts)
		require.Equal(t, 60*time.Second, p.MaxInterval)
	})
}
