package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"zephortech/backend/internal/ratelimit"
)

// BlockRecorder 记录限流拒绝次数
type BlockRecorder interface {
	RecordRateLimitBlock(bucket string)
}

// RateLimiter 基于 ratelimit.Limiter 的 gin 限流中间件
type RateLimiter struct {
	limiter ratelimit.Limiter
	metrics BlockRecorder
	logger  *zap.Logger
}

// NewRateLimiter 创建限流中间件，metrics 可以为 nil
func NewRateLimiter(limiter ratelimit.Limiter, metrics BlockRecorder, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{
		limiter: limiter,
		metrics: metrics,
		logger:  logger,
	}
}

// Limit 按规则限流，超限时返回 429
func (r *RateLimiter) Limit(rule ratelimit.Rule) gin.HandlerFunc {
	return r.LimitWith(rule, func(c *gin.Context) {
		c.Header("Retry-After", strconv.Itoa(int(rule.Window.Seconds())))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": "Too many requests. Please try again later.",
		})
	})
}

// LimitWith 按规则限流，超限时交给 onLimited 处理（例如重定向到错误页）
func (r *RateLimiter) LimitWith(rule ratelimit.Rule, onLimited gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := ClientID(c)
		c.Header("X-RateLimit-Limit", strconv.Itoa(rule.Limit))

		if !r.limiter.IsRateLimited(c.Request.Context(), clientID, rule) {
			c.Next()
			return
		}

		if r.metrics != nil {
			r.metrics.RecordRateLimitBlock(rule.Bucket)
		}
		r.logger.Warn("Rate limit exceeded",
			zap.String("bucket", rule.Bucket),
			zap.String("client", clientID))

		onLimited(c)
		c.Abort()
	}
}
