// internal/poll/poll_test.go
package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUntil(t *testing.T) {
	t.Run("immediate success skips waiting", func(t *testing.T) {
		calls := 0
		err := Until(context.Background(), time.Second, 10*time.Millisecond, nil,
			func(context.Context) (bool, error) {
				calls++
				return true, nil
			})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("succeeds after several probes", func(t *testing.T) {
		calls := 0
		err := Until(context.Background(), time.Second, 5*time.Millisecond, nil,
			func(context.Context) (bool, error) {
				calls++
				return calls >= 3, nil
			})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("times out with ErrTimeout", func(t *testing.T) {
		err := Until(context.Background(), 30*time.Millisecond, 5*time.Millisecond, nil,
			func(context.Context) (bool, error) { return false, nil })
		assert.ErrorIs(t, err, ErrTimeout)
	})

	t.Run("propagates probe error", func(t *testing.T) {
		boom := errors.New("boom")
		err := Until(context.Background(), time.Second, 5*time.Millisecond, nil,
			func(context.Context) (bool, error) { return false, boom })
		assert.ErrorIs(t, err, boom)
	})

	t.Run("cancellation wins over interval", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := Until(ctx, time.Second, time.Hour, nil,
			func(context.Context) (bool, error) { return false, nil })
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("wake signal short-circuits the interval", func(t *testing.T) {
		wake := make(chan struct{}, 1)
		calls := 0
		start := time.Now()
		go func() {
			time.Sleep(10 * time.Millisecond)
			wake <- struct{}{}
		}()
		err := Until(context.Background(), 5*time.Second, time.Hour, wake,
			func(context.Context) (bool, error) {
				calls++
				return calls >= 2, nil
			})
		require.NoError(t, err)
		assert.Less(t, time.Since(start), time.Second, "wake should beat the hour-long interval")
	})
}

func TestSleep(t *testing.T) {
	t.Run("returns after the duration", func(t *testing.T) {
		start := time.Now()
		require.NoError(t, Sleep(context.Background(), 15*time.Millisecond))
		assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
	})

	t.Run("returns early on cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(5 * time.Millisecond)
			cancel()
		}()
		start := time.Now()
		err := Sleep(ctx, time.Hour)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("zero duration is a no-op", func(t *testing.T) {
		require.NoError(t, Sleep(context.Background(), 0))
	})
}
