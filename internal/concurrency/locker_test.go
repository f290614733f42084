package concurrency

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SscSPs/transfer_engine/internal/apperrors"
)

func TestOrder(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, Order("c", "a", "b", "a", ""))
	assert.Empty(t, Order())
	assert.Equal(t, Order("B", "A"), Order("A", "B"))
}

func TestLocalLocker_ExclusiveAndReleased(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "acc-1", "acc-2")
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(waitCtx, "acc-2")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrLockTimeout)

	release()
	release() // idempotent

	release2, err := l.Acquire(ctx, "acc-2")
	require.NoError(t, err)
	release2()
	assert.Equal(t, 0, l.size())
}

func TestLocalLocker_CancelledCallerIsNotTimeout(t *testing.T) {
	l := NewLocalLocker()
	release, err := l.Acquire(context.Background(), "acc-1")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Acquire(ctx, "acc-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, apperrors.ErrLockTimeout))
}

func TestLocalLocker_OppositeOrderDoesNotDeadlock(t *testing.T) {
	l := NewLocalLocker()
	var inside atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			keys := []string{"A", "B"}
			if i%2 == 1 {
				keys = []string{"B", "A"}
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			release, err := l.Acquire(ctx, keys...)
			if !assert.NoError(t, err) {
				return
			}
			assert.Equal(t, int32(1), inside.Add(1))
			inside.Add(-1)
			release()
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, l.size())
}

func TestLocalLocker_FailedAcquireReleasesHeldKeys(t *testing.T) {
	l := NewLocalLocker()
	blocker, err := l.Acquire(context.Background(), "b")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "a", "b")
	require.ErrorIs(t, err, apperrors.ErrLockTimeout)

	// "a" must be free again.
	release, err := l.Acquire(context.Background(), "a")
	require.NoError(t, err)
	release()
	blocker()
}

func TestNoopLocker(t *testing.T) {
	release, err := NoopLocker{}.Acquire(context.Background(), "x")
	require.NoError(t, err)
	release()
}

func newTestRedisLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredislib.NewClient(&goredislib.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	opts := RedisLockOptions{Expiry: 5 * time.Second, Tries: 4, RetryDelay: 5 * time.Millisecond}
	return NewRedisLocker(client, opts, nil), mr
}

func TestRedisLocker_AcquireRelease(t *testing.T) {
	l, mr := newTestRedisLocker(t)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "acc-2", "acc-1")
	require.NoError(t, err)
	assert.True(t, mr.Exists(redisKeyPrefix+"acc-1"))
	assert.True(t, mr.Exists(redisKeyPrefix+"acc-2"))

	_, err = l.Acquire(ctx, "acc-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrLockTimeout)

	release()
	assert.False(t, mr.Exists(redisKeyPrefix+"acc-1"))
	assert.False(t, mr.Exists(redisKeyPrefix+"acc-2"))

	release, err = l.Acquire(ctx, "acc-1")
	require.NoError(t, err)
	release()
}

func TestRedisLocker_PartialFailureReleasesHeldKeys(t *testing.T) {
	l, mr := newTestRedisLocker(t)
	ctx := context.Background()

	blocker, err := l.Acquire(ctx, "b")
	require.NoError(t, err)
	defer blocker()

	_, err = l.Acquire(ctx, "a", "b")
	require.ErrorIs(t, err, apperrors.ErrLockTimeout)
	assert.False(t, mr.Exists(redisKeyPrefix+"a"))
}

func TestRedisLocker_UnreachableBackend(t *testing.T) {
	l, mr := newTestRedisLocker(t)
	mr.Close()

	_, err := l.Acquire(context.Background(), "a")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrLockTimeout)
}
