package content

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"zephortech/backend/internal/cache"
	"zephortech/backend/internal/domain"
)

const (
	keyServices    = "content:services"
	keyCaseStudies = "content:case-studies"
	keyBlogPosts   = "content:blog-posts"
)

// RemoteCache 二级缓存（Redis）所需的最小接口
type RemoteCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// CachedSource 读穿透缓存包装器
//
// 查询顺序：L1 本地缓存 → L2 Redis（可选）→ 底层内容源。
// 只缓存列表，期刊按 ID 直接读取底层内容源。
type CachedSource struct {
	next   Source
	local  *cache.LocalCache
	remote RemoteCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedSource 创建带缓存的内容源，remote 可以为 nil
func NewCachedSource(next Source, local *cache.LocalCache, remote RemoteCache, ttl time.Duration, logger *zap.Logger) *CachedSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedSource{
		next:   next,
		local:  local,
		remote: remote,
		ttl:    ttl,
		logger: logger,
	}
}

// ListServices 实现 Source
func (c *CachedSource) ListServices(ctx context.Context) ([]domain.ServiceItem, error) {
	return cachedList(ctx, c, keyServices, c.next.ListServices)
}

// ListCaseStudies 实现 Source
func (c *CachedSource) ListCaseStudies(ctx context.Context) ([]domain.CaseStudy, error) {
	return cachedList(ctx, c, keyCaseStudies, c.next.ListCaseStudies)
}

// ListBlogPosts 实现 Source
func (c *CachedSource) ListBlogPosts(ctx context.Context) ([]domain.BlogPost, error) {
	return cachedList(ctx, c, keyBlogPosts, c.next.ListBlogPosts)
}

// GetNewsletter 实现 IssueSource（不缓存）
func (c *CachedSource) GetNewsletter(ctx context.Context, id string) (*domain.Newsletter, error) {
	return c.next.GetNewsletter(ctx, id)
}

// Invalidate 清除所有列表缓存
func (c *CachedSource) Invalidate(ctx context.Context) {
	keys := []string{keyServices, keyCaseStudies, keyBlogPosts}
	for _, key := range keys {
		c.local.Delete(key)
	}
	if c.remote != nil {
		if err := c.remote.Del(ctx, keys...); err != nil {
			c.logger.Warn("failed to invalidate remote content cache", zap.Error(err))
		}
	}
}

func cachedList[T any](ctx context.Context, c *CachedSource, key string, load func(context.Context) ([]T, error)) ([]T, error) {
	if v, ok := c.local.Get(key); ok {
		return v.([]T), nil
	}

	if c.remote != nil {
		raw, ok, err := c.remote.Get(ctx, key)
		switch {
		case err != nil:
			c.logger.Warn("remote content cache read failed", zap.String("key", key), zap.Error(err))
		case ok:
			var items []T
			if err := json.Unmarshal([]byte(raw), &items); err == nil {
				c.local.Set(key, items, c.ttl)
				return items, nil
			}
			c.logger.Warn("discarding corrupt remote cache entry", zap.String("key", key))
		}
	}

	items, err := load(ctx)
	if err != nil {
		return nil, err
	}

	c.local.Set(key, items, c.ttl)
	if c.remote != nil {
		if data, err := json.Marshal(items); err == nil {
			if err := c.remote.Set(ctx, key, data, c.ttl); err != nil {
				c.logger.Warn("remote content cache write failed", zap.String("key", key), zap.Error(err))
			}
		}
	}
	return items, nil
}
