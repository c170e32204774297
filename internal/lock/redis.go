package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces workflow locks in the shared Redis keyspace.
const keyPrefix = "workflow:lock:"

// RedisLock implements Lock on Redis using SET NX PX. The TTL guards
// against crashed holders; the optimistic version check on the repository
// guards against the rare expiry race.
type RedisLock struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisLock creates a Redis-backed lock.
func NewRedisLock(client *redis.Client, logger *slog.Logger) *RedisLock {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLock{
		client: client,
		logger: logger.With("component", "distributed_lock"),
	}
}

func lockKey(key string) string {
	return keyPrefix + key
}

// TryAcquire takes the lock iff it is free.
func (l *RedisLock) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, lockKey(key), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquiring lock %s: %w", key, err)
	}
	if ok {
		l.logger.Debug("lock acquired", "key", key, "ttl", ttl)
	}
	return ok, nil
}

// Release frees the lock.
func (l *RedisLock) Release(ctx context.Context, key string) error {
	n, err := l.client.Del(ctx, lockKey(key)).Result()
	if err != nil {
		return fmt.Errorf("releasing lock %s: %w", key, err)
	}
	if n == 0 {
		return fmt.Errorf("lock %s: %w", key, ErrNotHeld)
	}
	l.logger.Debug("lock released", "key", key)
	return nil
}

// Extend pushes the expiry of a held lock forward. It returns false when
// the lock already expired.
func (l *RedisLock) Extend(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.client.Expire(ctx, lockKey(key), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("extending lock %s: %w", key, err)
	}
	return ok, nil
}

// IsHeld reports whether the lock currently exists.
func (l *RedisLock) IsHeld(ctx context.Context, key string) (bool, error) {
	n, err := l.client.Exists(ctx, lockKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("checking lock %s: %w", key, err)
	}
	return n > 0, nil
}

// TTLRemaining returns the time until the lock expires, zero when the lock
// does not exist.
func (l *RedisLock) TTLRemaining(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := l.client.TTL(ctx, lockKey(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("querying lock %s ttl: %w", key, err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}
