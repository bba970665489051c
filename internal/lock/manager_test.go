package lock_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/metinatakli/seat-reservation-system/internal/coordination"
	"github.com/metinatakli/seat-reservation-system/internal/lock"
	"github.com/metinatakli/seat-reservation-system/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestManager_AcquireAndRelease(t *testing.T) {
	ctx := context.Background()
	manager := lock.NewManager(coordination.NewMemoryStore(), time.Second, discardLogger())

	lease, ok := manager.Acquire(ctx, 1, 1)
	require.True(t, ok)

	_, ok = manager.Acquire(ctx, 1, 1)
	assert.False(t, ok, "second acquire must fail fast while the lock is held")

	other, ok := manager.Acquire(ctx, 1, 2)
	assert.True(t, ok, "locks are scoped to one seat")
	manager.Release(ctx, other)

	manager.Release(ctx, lease)

	lease, ok = manager.Acquire(ctx, 1, 1)
	assert.True(t, ok)
	manager.Release(ctx, lease)
}

func TestManager_AcquireWait(t *testing.T) {
	ctx := context.Background()

	t.Run("should take the lock once the holder releases it", func(t *testing.T) {
		manager := lock.NewManager(coordination.NewMemoryStore(), time.Second, discardLogger())

		held, ok := manager.Acquire(ctx, 1, 1)
		require.True(t, ok)

		go func() {
			time.Sleep(50 * time.Millisecond)
			manager.Release(ctx, held)
		}()

		lease, ok := manager.AcquireWait(ctx, 1, 1, 0)
		require.True(t, ok)
		manager.Release(ctx, lease)
	})

	t.Run("should give up after max wait", func(t *testing.T) {
		manager := lock.NewManager(coordination.NewMemoryStore(), time.Minute, discardLogger())

		held, ok := manager.Acquire(ctx, 1, 1)
		require.True(t, ok)
		defer manager.Release(ctx, held)

		start := time.Now()
		_, ok = manager.AcquireWait(ctx, 1, 1, 100*time.Millisecond)

		assert.False(t, ok)
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("should stop when the context ends", func(t *testing.T) {
		manager := lock.NewManager(coordination.NewMemoryStore(), time.Minute, discardLogger())

		held, ok := manager.Acquire(ctx, 1, 1)
		require.True(t, ok)
		defer manager.Release(ctx, held)

		cancelled, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
		defer cancel()

		_, ok = manager.AcquireWait(cancelled, 1, 1, 0)
		assert.False(t, ok)
	})
}

func TestManager_ReleaseZeroLease(t *testing.T) {
	backend := new(mocks.MockLockBackend)
	manager := lock.NewManager(backend, time.Second, discardLogger())

	manager.Release(context.Background(), lock.Lease{})

	backend.AssertNotCalled(t, "Unlock", mock.Anything, mock.Anything, mock.Anything)
}

func TestManager_FallsBackToLocalMutex(t *testing.T) {
	ctx := context.Background()
	backend := new(mocks.MockLockBackend)
	backend.On("TryLock", mock.Anything, coordination.LockKey(3, 4), mock.Anything, 10*time.Second).
		Return(false, errors.New("connection refused"))

	manager := lock.NewManager(backend, 0, discardLogger())

	lease, ok := manager.Acquire(ctx, 3, 4)
	require.True(t, ok)

	_, ok = manager.Acquire(ctx, 3, 4)
	assert.False(t, ok, "local mutex must exclude a second holder")

	manager.Release(ctx, lease)

	lease, ok = manager.Acquire(ctx, 3, 4)
	assert.True(t, ok)
	manager.Release(ctx, lease)

	backend.AssertNotCalled(t, "Unlock", mock.Anything, mock.Anything, mock.Anything)
}

func TestManager_ReleaseErrorIsSwallowed(t *testing.T) {
	ctx := context.Background()
	backend := new(mocks.MockLockBackend)
	backend.On("TryLock", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	backend.On("Unlock", mock.Anything, coordination.LockKey(1, 1), mock.Anything).Return(errors.New("timeout"))

	manager := lock.NewManager(backend, time.Second, discardLogger())

	lease, ok := manager.Acquire(ctx, 1, 1)
	require.True(t, ok)

	assert.NotPanics(t, func() { manager.Release(ctx, lease) })
	backend.AssertExpectations(t)
}

func TestManager_ConcurrentAcquireHasSingleWinner(t *testing.T) {
	for name, backend := range map[string]lock.Backend{
		"shared backend": coordination.NewMemoryStore(),
		"local fallback": unreachableBackend{},
	} {
		t.Run(name, func(t *testing.T) {
			manager := lock.NewManager(backend, time.Minute, discardLogger())

			var (
				wg      sync.WaitGroup
				winners atomic.Int32
				start   = make(chan struct{})
			)

			for i := 0; i < 64; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start

					if _, ok := manager.Acquire(context.Background(), 9, 9); ok {
						winners.Add(1)
					}
				}()
			}

			close(start)
			wg.Wait()

			assert.Equal(t, int32(1), winners.Load())
		})
	}
}

type unreachableBackend struct{}

func (unreachableBackend) TryLock(context.Context, string, string, time.Duration) (bool, error) {
	return false, errors.New("connection refused")
}

func (unreachableBackend) Unlock(context.Context, string, string) error {
	return errors.New("connection refused")
}
