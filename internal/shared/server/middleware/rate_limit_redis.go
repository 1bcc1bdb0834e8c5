package middleware

import (
	"context"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"mealplan-backend/internal/shared/telemetry"
	"mealplan-backend/internal/shared/util"
)

const redisKeyPrefix = "ratelimit:"

// RedisLimiter shares rate limits across API replicas with a fixed window
// counter per key. The window holds Burst requests and lasts Burst/Rate
// seconds, which matches the token bucket's sustained rate. Keys are hashed
// so user IDs never land in Redis. Redis failures fail open.
type RedisLimiter struct {
	client redis.Cmdable
}

func NewRedisLimiter(client redis.Cmdable) *RedisLimiter {
	return &RedisLimiter{client: client}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, rule RateLimitRule) (bool, time.Duration) {
	if l == nil || l.client == nil || rule.Rate <= 0 || rule.Burst <= 0 {
		return true, 0
	}
	window := time.Duration(math.Ceil(float64(rule.Burst)/rule.Rate*1000)) * time.Millisecond
	redisKey := redisKeyPrefix + util.HashKey(key)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.PTTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		telemetry.Warn("ratelimit.redis_error", map[string]any{"error": err.Error()})
		return true, 0
	}

	remaining := ttl.Val()
	if remaining < 0 {
		if err := l.client.PExpire(ctx, redisKey, window).Err(); err != nil {
			telemetry.Warn("ratelimit.redis_error", map[string]any{"error": err.Error()})
		}
		remaining = window
	}
	if incr.Val() <= int64(rule.Burst) {
		return true, 0
	}
	return false, remaining
}
