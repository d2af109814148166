package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "agentgate:sess:"

// NewRedisClient connects from a URL such as redis://:pass@host:6379/0 and
// fails fast when the server does not answer.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// RedisBackend stores the slots of one browser session under
// {prefix}{sid}:{key}. Writes set the TTL of the written key; reading the
// access token slides the TTL of every slot of the session, so an active
// browser keeps its token, type, scope and link on one clock.
type RedisBackend struct {
	rdb       redis.Cmdable
	namespace string
	ttl       time.Duration
}

func (b *RedisBackend) key(k string) string { return b.namespace + k }

func (b *RedisBackend) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := b.rdb.Get(ctx, b.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if key == KeyAccessToken {
		b.touch(ctx)
	}
	return v, true, nil
}

// touch is best effort: a failed refresh only shortens the session.
func (b *RedisBackend) touch(ctx context.Context) {
	if b.ttl <= 0 {
		return
	}
	for _, k := range allKeys {
		if err := b.rdb.Expire(ctx, b.key(k), b.ttl).Err(); err != nil {
			return
		}
	}
}

func (b *RedisBackend) Set(ctx context.Context, key, value string) error {
	if err := b.rdb.Set(ctx, b.key(key), value, b.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (b *RedisBackend) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = b.key(k)
	}
	if err := b.rdb.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// RedisProvider hands out RedisBackends scoped by browser session id.
type RedisProvider struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewRedisProvider(rdb redis.Cmdable, prefix string, ttl time.Duration) *RedisProvider {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisProvider{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (p *RedisProvider) Backend(sid string) Backend {
	return &RedisBackend{rdb: p.rdb, namespace: p.prefix + sid + ":", ttl: p.ttl}
}

// Ping lets the provider act as a health dependency.
func (p *RedisProvider) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}
