package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Counter RedisLimiter 依赖的 Redis 命令子集，*redis.Client 满足该接口
type Counter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	PExpire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	PTTL(ctx context.Context, key string) *redis.DurationCmd
}

// RedisLimiter 基于 Redis INCR + PEXPIRE 的分布式固定窗口限流器
//
// Redis 不可用时放行请求（fail-open）并记录警告。
// INCR 与 PEXPIRE 不是原子的，后续命中发现键没有过期时间时会补设窗口。
type RedisLimiter struct {
	client Counter
	prefix string
	logger *zap.Logger
}

// NewRedisLimiter 创建 Redis 限流器
func NewRedisLimiter(client Counter, logger *zap.Logger) *RedisLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLimiter{
		client: client,
		prefix: "ratelimit:",
		logger: logger,
	}
}

// IsRateLimited 实现 Limiter
func (l *RedisLimiter) IsRateLimited(ctx context.Context, clientID string, rule Rule) bool {
	key := l.prefix + bucketKey(rule.Bucket, clientID)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		l.logger.Warn("rate limit counter unavailable, allowing request",
			zap.String("bucket", rule.Bucket),
			zap.Error(err))
		return false
	}

	if count == 1 {
		l.expire(ctx, key, rule.Window)
	} else if ttl, err := l.client.PTTL(ctx, key).Result(); err != nil {
		l.logger.Warn("failed to read rate limit window ttl",
			zap.String("key", key),
			zap.Error(err))
	} else if ttl == -1 {
		l.logger.Warn("rate limit key has no expiry, restoring window", zap.String("key", key))
		l.expire(ctx, key, rule.Window)
	}

	return count > int64(rule.Limit)
}

func (l *RedisLimiter) expire(ctx context.Context, key string, window time.Duration) {
	if err := l.client.PExpire(ctx, key, window).Err(); err != nil {
		l.logger.Warn("failed to set rate limit window expiry",
			zap.String("key", key),
			zap.Error(err))
	}
}
