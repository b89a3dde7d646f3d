package ratelimit

import (
	"context"
	"time"
)

// Rule 单个限流桶的规则
type Rule struct {
	Bucket string        // 桶名称，例如 "newsletter"、"contact"
	Limit  int           // 窗口内允许的最大请求数
	Window time.Duration // 固定窗口长度
}

// Limiter 按 (桶, 客户端标识) 计数的限流器
//
// 客户端标识由调用方从请求元数据中推导，限流器本身不关心其来源。
type Limiter interface {
	// IsRateLimited 记录一次请求并返回该请求是否应被拒绝
	IsRateLimited(ctx context.Context, clientID string, rule Rule) bool
}

func bucketKey(bucket, clientID string) string {
	return bucket + ":" + clientID
}
