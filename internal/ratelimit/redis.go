package ratelimit

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"
)

const keyPrefix = "registrar:ratelimit:"

// RedisKey is the Redis key holding the counter for key. Client addresses are
// hashed so they are never stored in Redis.
func RedisKey(key string) string {
	sum := blake2b.Sum256([]byte(key))
	return keyPrefix + hex.EncodeToString(sum[:16])
}

// RedisLimiter is a fixed-window limiter shared across instances.
type RedisLimiter struct {
	client redis.Cmdable
}

// NewRedisLimiter creates a limiter over client.
func NewRedisLimiter(client redis.Cmdable) *RedisLimiter {
	return &RedisLimiter{client: client}
}

// Allow increments the window counter for key, setting its expiry on first hit.
func (r *RedisLimiter) Allow(ctx context.Context, key string, p Policy) (*Result, error) {
	k := RedisKey(key)

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.ExpireNX(ctx, k, p.Window)
	ttl := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("rate limit %s: %w", key, err)
	}

	count := int(incr.Val())
	remaining := ttl.Val()
	if remaining <= 0 {
		remaining = p.Window
	}
	res := &Result{
		Allowed: count <= p.Limit,
		Limit:   p.Limit,
		ResetAt: time.Now().Add(remaining),
	}
	if res.Allowed {
		res.Remaining = p.Limit - count
	}
	return res, nil
}
