package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zephortech/backend/internal/domain"
)

func sampleSource() *fakeSource {
	return &fakeSource{
		services: []domain.ServiceItem{
			{
				ID:               "svc-1",
				Slug:             "cloud-engineering",
				Title:            "Cloud Engineering",
				ShortDescription: "Scalable infrastructure for fintech and retail",
				Features:         []domain.Feature{{Title: "Kubernetes"}, {Title: "Observability"}},
				Category:         "Engineering",
			},
		},
		cases: []domain.CaseStudy{
			{
				ID:       "case-1",
				Slug:     "fintech-platform-modernization",
				Title:    "FinTech Platform Modernization",
				Summary:  "Rebuilt a core banking platform",
				Industry: "Financial services",
				Client:   "Northwind Bank",
			},
		},
		posts: []domain.BlogPost{
			{
				ID:      "blog-1",
				Slug:    "lessons-from-regulated-industries",
				Title:   "Lessons from regulated industries",
				Excerpt: "What we learned shipping fintech software",
				Tags:    []string{"compliance", "delivery"},
				Author:  "Mara Chen",
			},
			{
				ID:      "blog-2",
				Slug:    "design-systems",
				Title:   "Design systems at scale",
				Excerpt: "Tokens, components and governance",
				Tags:    []string{"design"},
			},
		},
	}
}

func TestSearchService(t *testing.T) {
	ctx := context.Background()

	t.Run("前缀匹配排在包含匹配之前", func(t *testing.T) {
		svc := NewSearchService(sampleSource(), nil)

		results, err := svc.Search(ctx, "fintech")
		require.NoError(t, err)
		require.Len(t, results, 3)

		assert.Equal(t, "case-1", results[0].ID)
		assert.Equal(t, domain.ResultCaseStudy, results[0].Type)
		assert.Equal(t, "/case-studies/fintech-platform-modernization", results[0].URL)
		assert.Equal(t, "Financial services", results[0].Tag)
		assert.Equal(t, "Northwind Bank", results[0].Meta)

		ids := []string{results[1].ID, results[2].ID}
		assert.ElementsMatch(t, []string{"svc-1", "blog-1"}, ids)
	})

	t.Run("结果字段映射", func(t *testing.T) {
		svc := NewSearchService(sampleSource(), nil)

		results, err := svc.Search(ctx, "regulated")
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, domain.SearchResult{
			ID:      "blog-1",
			Type:    domain.ResultBlog,
			Title:   "Lessons from regulated industries",
			Excerpt: "What we learned shipping fintech software",
			URL:     "/blog/lessons-from-regulated-industries",
			Tag:     "compliance",
			Meta:    "Mara Chen",
		}, results[0])
	})

	t.Run("匹配特性与标签", func(t *testing.T) {
		svc := NewSearchService(sampleSource(), nil)

		results, err := svc.Search(ctx, "kubernetes")
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "/services/cloud-engineering", results[0].URL)

		results, err = svc.Search(ctx, "DESIGN")
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "blog-2", results[0].ID)
	})

	t.Run("短查询不访问内容源", func(t *testing.T) {
		src := sampleSource()
		svc := NewSearchService(src, nil)

		for _, q := range []string{"", " ", "f", " é "} {
			results, err := svc.Search(ctx, q)
			require.NoError(t, err)
			assert.NotNil(t, results)
			assert.Empty(t, results)
		}
		assert.Equal(t, int64(0), src.calls.Load())
	})

	t.Run("无匹配返回空列表", func(t *testing.T) {
		svc := NewSearchService(sampleSource(), nil)

		results, err := svc.Search(ctx, "blockchain")
		require.NoError(t, err)
		assert.NotNil(t, results)
		assert.Empty(t, results)
	})

	t.Run("结果最多二十条", func(t *testing.T) {
		src := &fakeSource{}
		for i := 0; i < 30; i++ {
			src.posts = append(src.posts, domain.BlogPost{
				ID:    fmt.Sprintf("p%d", i),
				Slug:  fmt.Sprintf("post-%d", i),
				Title: "Platform notes",
			})
		}
		svc := NewSearchService(src, nil)

		results, err := svc.Search(ctx, "platform")
		require.NoError(t, err)
		assert.Len(t, results, DefaultMaxResults)
		assert.Equal(t, "p0", results[0].ID)
	})

	t.Run("自定义权重", func(t *testing.T) {
		svc := NewSearchService(sampleSource(), nil, WithWeights(1, 5), WithMaxResults(1))

		results, err := svc.Search(ctx, "fintech")
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.NotEqual(t, "case-1", results[0].ID)
	})

	t.Run("内容源失败时整体失败", func(t *testing.T) {
		src := sampleSource()
		src.err = errors.New("cms unavailable")
		svc := NewSearchService(src, nil)

		_, err := svc.Search(ctx, "fintech")
		assert.ErrorContains(t, err, "cms unavailable")
	})

	t.Run("请求取消", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		svc := NewSearchService(sampleSource(), nil)

		_, err := svc.Search(cancelled, "fintech")
		assert.ErrorIs(t, err, context.Canceled)
	})
}
