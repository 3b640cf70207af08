package api

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	dedupeKeyPrefix  = "join:idem:"
	revokedKeyPrefix = "join:revoked:"
)

// RedisDeduper stores seen idempotency keys in Redis so all instances
// can avoid creating the same document twice.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper using the provided Redis client and TTL.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (r *RedisDeduper) key(scope, key string) string {
	return dedupeKeyPrefix + scope + ":" + key
}

// Add records the key if it does not already exist. It returns true when the
// key was newly added.
func (r *RedisDeduper) Add(ctx context.Context, scope, key string) (bool, error) {
	return r.client.SetNX(ctx, r.key(scope, key), 1, r.ttl).Result()
}

// Remove deletes a previously recorded key so the caller may retry.
func (r *RedisDeduper) Remove(ctx context.Context, scope, key string) error {
	return r.client.Del(ctx, r.key(scope, key)).Err()
}

// RedisRevoker keeps logged-out token IDs in Redis until the token expires.
type RedisRevoker struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisRevoker(client *redis.Client) *RedisRevoker {
	return &RedisRevoker{client: client, now: time.Now}
}

func (r *RedisRevoker) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := until.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, revokedKeyPrefix+tokenID, 1, ttl).Err()
}

func (r *RedisRevoker) Revoked(ctx context.Context, tokenID string) (bool, error) {
	err := r.client.Get(ctx, revokedKeyPrefix+tokenID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
