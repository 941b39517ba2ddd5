package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the key only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker leases keys with SET NX PX so separate service instances serialize on the
// same entity. A local KeyedMutex is always taken first so a single process does not
// hammer Redis with contending goroutines, and it is the only guard when Redis is down.
type RedisLocker struct {
	client    redis.UniversalClient
	local     *KeyedMutex
	keyPrefix string
	retry     time.Duration
	logger    *zap.Logger
}

// NewRedisLocker builds a distributed locker. keyPrefix defaults to "portfolio:lock:".
func NewRedisLocker(client redis.UniversalClient, keyPrefix string, logger *zap.Logger) *RedisLocker {
	if keyPrefix == "" {
		keyPrefix = "portfolio:lock:"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLocker{
		client:    client,
		local:     NewKeyedMutex(),
		keyPrefix: keyPrefix,
		retry:     25 * time.Millisecond,
		logger:    logger,
	}
}

// Acquire takes the local lock, then the Redis lease. Redis transport errors degrade to the
// local lock alone; contention on the lease is retried until ctx ends.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	releaseLocal, err := l.local.Acquire(ctx, key, ttl)
	if err != nil {
		return nil, err
	}

	redisKey := l.keyPrefix + key
	token := uuid.NewString()
	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				releaseLocal()
				return nil, errors.Join(ErrNotAcquired, ctx.Err())
			}
			l.logger.Warn("redis lock unavailable; using process-local lock",
				zap.String("key", key), zap.Error(err))
			return releaseLocal, nil
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			releaseLocal()
			return nil, fmt.Errorf("%w: %s held elsewhere: %w", ErrNotAcquired, key, ctx.Err())
		case <-time.After(l.retry):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
				l.logger.Warn("redis lock release failed", zap.String("key", key), zap.Error(err))
			}
			releaseLocal()
		})
	}, nil
}
