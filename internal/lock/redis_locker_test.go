package lock

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/portfolio-service/internal/testsupport"
)

func TestRedisLockerExcludesOtherInstances(t *testing.T) {
	client := testsupport.Redis(t)
	// Separate lockers have separate local mutexes, so only the Redis lease guards the key.
	a := NewRedisLocker(client, "", nil)
	b := NewRedisLocker(client, "", nil)
	ctx := context.Background()

	release, err := a.Acquire(ctx, "entity:1", time.Minute)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_, err = b.Acquire(waitCtx, "entity:1", time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired)

	other, err := b.Acquire(ctx, "entity:2", time.Minute)
	require.NoError(t, err)
	other()

	release()
	release()
	assert.Zero(t, client.Exists(ctx, "portfolio:lock:entity:1").Val())

	again, err := b.Acquire(ctx, "entity:1", time.Minute)
	require.NoError(t, err)
	again()
}

func TestRedisLockerReleaseKeepsForeignLease(t *testing.T) {
	client := testsupport.Redis(t)
	a := NewRedisLocker(client, "test:", nil)
	b := NewRedisLocker(client, "test:", nil)
	ctx := context.Background()

	stale, err := a.Acquire(ctx, "entity:1", 50*time.Millisecond)
	require.NoError(t, err)

	// a's lease expires and b takes the key before a releases.
	fresh, err := b.Acquire(ctx, "entity:1", time.Minute)
	require.NoError(t, err)
	defer fresh()

	stale()
	assert.EqualValues(t, 1, client.Exists(ctx, "test:entity:1").Val())
}

func TestRedisLockerDegradesToLocalLock(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	locker := NewRedisLocker(client, "", nil)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "entity:1", time.Second)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(waitCtx, "entity:1", time.Second)
	assert.ErrorIs(t, err, ErrNotAcquired, "local lock still serializes the process")

	release()
	again, err := locker.Acquire(ctx, "entity:1", time.Second)
	require.NoError(t, err)
	again()
}
