//go:build integration

package lock

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/redis"
)

func setupRedisLock(t *testing.T) (*RedisLock, func()) {
	ctx := context.Background()

	redisContainer, err := redis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)

	connStr, err := redisContainer.ConnectionString(ctx)
	require.NoError(t, err)

	opts, err := goredis.ParseURL(connStr)
	require.NoError(t, err)
	client := goredis.NewClient(opts)

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}
	return NewRedisLock(client, nil), cleanup
}

func TestRedisLock_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	l, cleanup := setupRedisLock(t)
	defer cleanup()
	ctx := context.Background()

	t.Run("acquire and mutual exclusion", func(t *testing.T) {
		ok, err := l.TryAcquire(ctx, "wf-1", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = l.TryAcquire(ctx, "wf-1", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok, "second acquire must fail while held")

		held, err := l.IsHeld(ctx, "wf-1")
		require.NoError(t, err)
		assert.True(t, held)

		require.NoError(t, l.Release(ctx, "wf-1"))

		ok, err = l.TryAcquire(ctx, "wf-1", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "released lock is free again")
		require.NoError(t, l.Release(ctx, "wf-1"))
	})

	t.Run("release unheld", func(t *testing.T) {
		err := l.Release(ctx, "never-held")
		assert.ErrorIs(t, err, ErrNotHeld)
	})

	t.Run("ttl expiry", func(t *testing.T) {
		ok, err := l.TryAcquire(ctx, "wf-ttl", 200*time.Millisecond)
		require.NoError(t, err)
		require.True(t, ok)

		ttl, err := l.TTLRemaining(ctx, "wf-ttl")
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))

		time.Sleep(300 * time.Millisecond)

		held, err := l.IsHeld(ctx, "wf-ttl")
		require.NoError(t, err)
		assert.False(t, held, "lock expired by TTL")
	})

	t.Run("extend", func(t *testing.T) {
		ok, err := l.TryAcquire(ctx, "wf-ext", 500*time.Millisecond)
		require.NoError(t, err)
		require.True(t, ok)

		extended, err := l.Extend(ctx, "wf-ext", time.Minute)
		require.NoError(t, err)
		assert.True(t, extended)

		ttl, err := l.TTLRemaining(ctx, "wf-ext")
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Second)
		require.NoError(t, l.Release(ctx, "wf-ext"))

		extended, err = l.Extend(ctx, "wf-ext", time.Minute)
		require.NoError(t, err)
		assert.False(t, extended, "cannot extend a released lock")
	})

	t.Run("acquire with backoff", func(t *testing.T) {
		ok, err := l.TryAcquire(ctx, "wf-wait", 150*time.Millisecond)
		require.NoError(t, err)
		require.True(t, ok)

		got, err := Acquire(ctx, l, "wf-wait", time.Minute, time.Second)
		require.NoError(t, err)
		assert.True(t, got, "acquire succeeds after the holder's TTL expires")
		require.NoError(t, l.Release(ctx, "wf-wait"))
	})
}
