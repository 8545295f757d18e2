package tokenstore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const redisOpTimeout = 2 * time.Second

// RedisBackend stores keys in Redis. Intended for deployments where several
// long-lived client processes share one token cache; cross-process visibility
// is eventual, matching the cross-tab semantics of browser storage.
type RedisBackend struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisBackend wraps an existing Redis client. prefix namespaces the keys;
// ttl bounds how long an orphaned record survives (0 means no expiry).
func NewRedisBackend(rdb *redis.Client, prefix string, ttl time.Duration) (*RedisBackend, error) {
	if rdb == nil {
		return nil, errors.New("[NewRedisBackend] redis client is required")
	}
	return &RedisBackend{rdb: rdb, prefix: prefix, ttl: ttl}, nil
}

func (b *RedisBackend) key(key string) string {
	if b.prefix == "" {
		return key
	}
	return b.prefix + ":" + key
}

func (b *RedisBackend) Read(key string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	value, err := b.rdb.Get(ctx, b.key(key)).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, "[RedisBackend.Read] get")
	}
	return value, nil
}

func (b *RedisBackend) Write(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := b.rdb.Set(ctx, b.key(key), value, b.ttl).Err(); err != nil {
		return errors.Wrap(err, "[RedisBackend.Write] set")
	}
	return nil
}

func (b *RedisBackend) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := b.rdb.Del(ctx, b.key(key)).Err(); err != nil {
		return errors.Wrap(err, "[RedisBackend.Delete] del")
	}
	return nil
}
