package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter() (*MemoryLimiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return NewMemoryLimiter(WithClock(clock.Now)), clock
}

func TestMemoryLimiter(t *testing.T) {
	ctx := context.Background()
	rule := Rule{Bucket: "newsletter", Limit: 3, Window: time.Minute}

	t.Run("窗口内调用limit次不限流", func(t *testing.T) {
		l, _ := newTestLimiter()
		for i := 0; i < rule.Limit; i++ {
			assert.False(t, l.IsRateLimited(ctx, "1.2.3.4", rule), "call %d", i+1)
		}
		assert.True(t, l.IsRateLimited(ctx, "1.2.3.4", rule))
	})

	t.Run("限流后不重置窗口", func(t *testing.T) {
		l, clock := newTestLimiter()
		for i := 0; i < rule.Limit+1; i++ {
			l.IsRateLimited(ctx, "c", rule)
		}
		clock.Advance(30 * time.Second)
		assert.True(t, l.IsRateLimited(ctx, "c", rule))
		clock.Advance(30 * time.Second)
		assert.True(t, l.IsRateLimited(ctx, "c", rule), "window boundary is still inside the window")
	})

	t.Run("窗口过期后重置", func(t *testing.T) {
		l, clock := newTestLimiter()
		for i := 0; i < rule.Limit+1; i++ {
			l.IsRateLimited(ctx, "c", rule)
		}
		clock.Advance(rule.Window + time.Millisecond)
		assert.False(t, l.IsRateLimited(ctx, "c", rule))
		assert.False(t, l.IsRateLimited(ctx, "c", rule))
	})

	t.Run("不同桶和客户端互相隔离", func(t *testing.T) {
		l, _ := newTestLimiter()
		one := Rule{Bucket: "contact", Limit: 1, Window: time.Minute}
		assert.False(t, l.IsRateLimited(ctx, "a", one))
		assert.True(t, l.IsRateLimited(ctx, "a", one))
		assert.False(t, l.IsRateLimited(ctx, "b", one))
		assert.False(t, l.IsRateLimited(ctx, "a", Rule{Bucket: "newsletter", Limit: 1, Window: time.Minute}))
	})

	t.Run("并发计数不丢失", func(t *testing.T) {
		l, _ := newTestLimiter()
		big := Rule{Bucket: "b", Limit: 100, Window: time.Minute}
		var wg sync.WaitGroup
		var mu sync.Mutex
		limited := 0
		for i := 0; i < 150; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if l.IsRateLimited(ctx, "same", big) {
					mu.Lock()
					limited++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 50, limited)
	})

	t.Run("清理过期窗口", func(t *testing.T) {
		l, clock := newTestLimiter()
		l.IsRateLimited(ctx, "a", rule)
		l.IsRateLimited(ctx, "b", Rule{Bucket: "long", Limit: 1, Window: time.Hour})
		clock.Advance(2 * time.Minute)

		assert.Equal(t, 1, l.Sweep())
		assert.Equal(t, 1, l.Len())
	})
}
