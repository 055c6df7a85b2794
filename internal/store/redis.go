package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/avelins/traintrack/internal/telemetry/tracing"

	"github.com/go-redis/redis/v8"
)

var _ Store = (*RedisStore)(nil)

// RedisStore persists documents in redis. All keys share keyPrefix so
// that the service can coexist with other users of the same instance.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (rs *RedisStore) Get(ctx context.Context, key string) (_ []byte, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.redis.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	cmd := rs.client.Get(ctx, rs.keyPrefix+key)
	if err := cmd.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	return []byte(cmd.Val()), nil
}

func (rs *RedisStore) Set(ctx context.Context, key string, value []byte) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.redis.set")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if err := rs.client.Set(ctx, rs.keyPrefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (rs *RedisStore) Delete(ctx context.Context, key string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.redis.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if err := rs.client.Del(ctx, rs.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

func (rs *RedisStore) Keys(ctx context.Context, prefix string) (_ []string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.redis.keys")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	cmd := rs.client.Keys(ctx, rs.keyPrefix+prefix+"*")
	if err := cmd.Err(); err != nil {
		return nil, fmt.Errorf("redis keys %s: %w", prefix, err)
	}

	keys := cmd.Val()
	for i := range keys {
		keys[i] = keys[i][len(rs.keyPrefix):]
	}
	return keys, nil
}
