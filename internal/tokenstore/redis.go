package tokenstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisFieldAccessToken = "access_token"
	redisFieldUserID      = "user_id"
)

// RedisScope stores the record as a redis hash, optionally expiring it after ttl.
// Suited to shared operator hosts where several shells use one durable login.
type RedisScope struct {
	rdb redis.UniversalClient
	key string
	ttl time.Duration
}

// Compile-time check to ensure RedisScope implements Scope
var _ Scope = (*RedisScope)(nil)

// NewRedisScope creates a RedisScope writing to key. A zero ttl keeps the record until deleted.
func NewRedisScope(rdb redis.UniversalClient, key string, ttl time.Duration) (*RedisScope, error) {
	if rdb == nil {
		return nil, fmt.Errorf("missing redis client")
	}
	if key == "" {
		return nil, fmt.Errorf("redis key cannot be empty")
	}
	if ttl < 0 {
		return nil, fmt.Errorf("redis ttl cannot be negative")
	}

	return &RedisScope{rdb: rdb, key: key, ttl: ttl}, nil
}

func (r *RedisScope) Load(ctx context.Context) (Record, error) {
	fields, err := r.rdb.HGetAll(ctx, r.key).Result()
	if err != nil {
		return Record{}, fmt.Errorf("reading %s: %w", r.key, err)
	}

	rec := Record{
		AccessToken: fields[redisFieldAccessToken],
		UserID:      fields[redisFieldUserID],
	}
	if rec.Empty() {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// Store replaces the hash in a single transaction so readers never see a half-written record.
func (r *RedisScope) Store(ctx context.Context, rec Record) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key)
		pipe.HSet(ctx, r.key, redisFieldAccessToken, rec.AccessToken, redisFieldUserID, rec.UserID)
		if r.ttl > 0 {
			pipe.Expire(ctx, r.key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing %s: %w", r.key, err)
	}
	return nil
}

func (r *RedisScope) Delete(ctx context.Context) error {
	if err := r.rdb.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("deleting %s: %w", r.key, err)
	}
	return nil
}
