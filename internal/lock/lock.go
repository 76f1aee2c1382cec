// Package lock provides short-lived distributed locks around per-document work.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultTTL bounds how long a crashed holder can block others
const DefaultTTL = 30 * time.Second

// ErrNotObtained is returned when the key stays held by someone else for the whole wait
var ErrNotObtained = errors.New("lock not obtained")

// Locker obtains a named lock. The returned release func is safe to call once.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// RedisLocker is backed by redislock
type RedisLocker struct {
	client *redislock.Client
	wait   time.Duration
	logger *zap.Logger
}

// NewRedisLocker wraps a connected go-redis client. Obtain retries for up to wait before giving up.
func NewRedisLocker(rdb redis.UniversalClient, wait time.Duration, logger *zap.Logger) *RedisLocker {
	return &RedisLocker{
		client: redislock.New(rdb),
		wait:   wait,
		logger: logger,
	}
}

func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	backoff := 100 * time.Millisecond
	retries := int(l.wait / backoff)
	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(backoff), retries),
	}

	lk, err := l.client.Obtain(ctx, key, ttl, opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrNotObtained
	}
	if err != nil {
		return nil, err
	}

	return func() {
		// background context: release must still run when the request ctx is done
		if err := lk.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.Warn("Failed to release lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

// Noop always succeeds; used when Redis is not configured
type Noop struct{}

func (Noop) Obtain(context.Context, string, time.Duration) (func(), error) {
	return func() {}, nil
}
