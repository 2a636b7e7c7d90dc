package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/tracklane/ticket-tracker/pkg/util/errorutil"
)

func TestKeyedLocker(t *testing.T) {
	ctx := context.Background()

	t.Run("serializes the same key", func(t *testing.T) {
		locker := NewKeyedLocker(time.Second)
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			active  int
			maxSeen int
		)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock, err := locker.Lock(ctx, "ticket:1")
				if !assert.NoError(t, err) {
					return
				}
				defer unlock()

				mu.Lock()
				active++
				if active > maxSeen {
					maxSeen = active
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				active--
				mu.Unlock()
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, maxSeen)
		assert.Zero(t, locker.Len())
	})

	t.Run("different keys do not block", func(t *testing.T) {
		locker := NewKeyedLocker(50 * time.Millisecond)
		unlockA, err := locker.Lock(ctx, "ticket:1")
		require.NoError(t, err)
		defer unlockA()

		unlockB, err := locker.Lock(ctx, "ticket:2")
		require.NoError(t, err)
		unlockB()
	})

	t.Run("timeout is a conflict", func(t *testing.T) {
		locker := NewKeyedLocker(20 * time.Millisecond)
		unlock, err := locker.Lock(ctx, "comment:7")
		require.NoError(t, err)

		_, err = locker.Lock(ctx, "comment:7")
		assert.True(t, apperrors.Is(err, apperrors.CodeConflict))

		unlock()
		unlock()
		assert.Zero(t, locker.Len())
	})

	t.Run("cancelled context stops waiting", func(t *testing.T) {
		locker := NewKeyedLocker(0)
		unlock, err := locker.Lock(ctx, "ticket:3")
		require.NoError(t, err)
		defer unlock()

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err = locker.Lock(cancelled, "ticket:3")
		assert.ErrorIs(t, err, context.Canceled)
	})
}
