package lock

import (
	"context"
	"sync"
	"time"

	"sjsage522/hotelpricesync/logger"
	"sjsage522/hotelpricesync/pkg/errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX so that every process
// sharing the Redis instance sees the same locks
type RedisLocker struct {
	client *redis.Client
	prefix string
	log    *logger.Logger
}

var _ Locker = (*RedisLocker)(nil)

// NewRedisLocker creates a locker storing keys under prefix
func NewRedisLocker(client *redis.Client, prefix string) *RedisLocker {
	return &RedisLocker{
		client: client,
		prefix: prefix,
		log:    logger.ForWorker().WithField("lock", "redis"),
	}
}

func (r *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	fullKey := r.prefix + ":lock:" + key
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, errors.NewCache("redis-lock", "failed to acquire lock", err)
	}
	if !ok {
		return nil, ErrLocked
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, r.client, []string{fullKey}, token).Err(); err != nil {
				r.log.Warn().Err(err).Str("key", fullKey).Msg("Failed to release lock")
			}
		})
	}, nil
}
