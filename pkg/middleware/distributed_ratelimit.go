package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/backoffice/pkg/config"
)

// DefaultRateLimitPrefix namespaces rate limit keys in Redis
const DefaultRateLimitPrefix = "ratelimit:auth"

// DistributedRateLimiter is a fixed-window limiter shared across instances
// through Redis. Burst widens the window ceiling.
type DistributedRateLimiter struct {
	redis  redis.UniversalClient
	cfg    config.RateLimitConfig
	prefix string
}

// NewDistributedRateLimiter creates a new Redis-backed rate limiter
func NewDistributedRateLimiter(client redis.UniversalClient, cfg config.RateLimitConfig, prefix string) *DistributedRateLimiter {
	if prefix == "" {
		prefix = DefaultRateLimitPrefix
	}
	return &DistributedRateLimiter{redis: client, cfg: cfg, prefix: prefix}
}

func (rl *DistributedRateLimiter) key(key string) string {
	return fmt.Sprintf("%s:%s", rl.prefix, key)
}

// Allow counts the request against key's current window
func (rl *DistributedRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := rl.key(key)

	count, err := rl.redis.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("incrementing rate limit counter: %w", err)
	}
	// The first hit opens the window
	if count == 1 {
		if err := rl.redis.Expire(ctx, redisKey, rl.cfg.Window).Err(); err != nil {
			return false, fmt.Errorf("setting rate limit window: %w", err)
		}
	}

	return count <= int64(rl.cfg.RequestsPerWindow+rl.cfg.Burst), nil
}

// TTL returns the time until key's window resets
func (rl *DistributedRateLimiter) TTL(ctx context.Context, key string) (time.Duration, error) {
	return rl.redis.TTL(ctx, rl.key(key)).Result()
}

// Reset clears the window for key
func (rl *DistributedRateLimiter) Reset(ctx context.Context, key string) error {
	return rl.redis.Del(ctx, rl.key(key)).Err()
}
