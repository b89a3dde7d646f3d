package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count int
	start time.Time
	ttl   time.Duration
}

// MemoryLimiter 进程内固定窗口限流器
//
// 状态只在进程生命周期内有效，重启后清空。
type MemoryLimiter struct {
	mu      sync.Mutex
	entries map[string]*window
	now     func() time.Time
}

// MemoryOption MemoryLimiter 可选配置
type MemoryOption func(*MemoryLimiter)

// WithClock 注入时钟，便于测试窗口滚动
func WithClock(now func() time.Time) MemoryOption {
	return func(l *MemoryLimiter) {
		l.now = now
	}
}

// NewMemoryLimiter 创建进程内限流器
func NewMemoryLimiter(opts ...MemoryOption) *MemoryLimiter {
	l := &MemoryLimiter{
		entries: make(map[string]*window),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// IsRateLimited 首次请求或窗口过期时重置计数并放行；
// 否则计数加一，超过上限即限流，且不重置窗口
func (l *MemoryLimiter) IsRateLimited(_ context.Context, clientID string, rule Rule) bool {
	now := l.now()
	key := bucketKey(rule.Bucket, clientID)

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok || now.After(entry.start.Add(rule.Window)) {
		l.entries[key] = &window{count: 1, start: now, ttl: rule.Window}
		return false
	}

	entry.count++
	return entry.count > rule.Limit
}

// Sweep 清理已过期的窗口，返回清理数量
func (l *MemoryLimiter) Sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, entry := range l.entries {
		if now.After(entry.start.Add(entry.ttl)) {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

// Len 当前跟踪的键数量
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
