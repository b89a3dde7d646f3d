package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"zephortech/backend/internal/content"
	"zephortech/backend/internal/domain"
)

// 搜索默认参数
const (
	MinQueryLength        = 2
	DefaultMaxResults     = 20
	DefaultPrefixWeight   = 3
	DefaultContainsWeight = 1
)

// SearchOption 搜索服务可选项
type SearchOption func(*SearchService)

// WithWeights 设置前缀匹配与包含匹配的字段得分
func WithWeights(prefix, contains int) SearchOption {
	return func(s *SearchService) {
		s.prefixWeight = prefix
		s.containsWeight = contains
	}
}

// WithMaxResults 设置返回结果上限
func WithMaxResults(n int) SearchOption {
	return func(s *SearchService) {
		if n > 0 {
			s.maxResults = n
		}
	}
}

// WithSearchRecorder 注入指标记录器
func WithSearchRecorder(r Recorder) SearchOption {
	return func(s *SearchService) {
		s.metrics = r
	}
}

// SearchService 跨服务、案例、博客三类内容的聚合搜索
type SearchService struct {
	src            content.Source
	logger         *zap.Logger
	metrics        Recorder
	prefixWeight   int
	containsWeight int
	maxResults     int
}

// NewSearchService 创建搜索服务
func NewSearchService(src content.Source, logger *zap.Logger, opts ...SearchOption) *SearchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &SearchService{
		src:            src,
		logger:         logger,
		metrics:        nopRecorder{},
		prefixWeight:   DefaultPrefixWeight,
		containsWeight: DefaultContainsWeight,
		maxResults:     DefaultMaxResults,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type scoredResult struct {
	domain.SearchResult
	score int
}

// Search 搜索内容
//
// 查询去除首尾空白后少于两个字符时直接返回空结果，不访问内容源。
// 三个集合并发拉取，任一失败则整个请求失败。
func (s *SearchService) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if utf8.RuneCountInString(q) < MinQueryLength {
		return []domain.SearchResult{}, nil
	}

	var (
		services []domain.ServiceItem
		cases    []domain.CaseStudy
		posts    []domain.BlogPost
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		services, err = s.src.ListServices(gctx)
		return err
	})
	g.Go(func() (err error) {
		cases, err = s.src.ListCaseStudies(gctx)
		return err
	})
	g.Go(func() (err error) {
		posts, err = s.src.ListBlogPosts(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.logger.Error("Failed to fetch search content", zap.Error(err))
		return nil, fmt.Errorf("fetch content: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var scored []scoredResult
	for _, item := range services {
		features := make([]string, 0, len(item.Features))
		for _, f := range item.Features {
			features = append(features, f.Title)
		}
		score := s.score(q, item.Title, item.ShortDescription, item.Description, strings.Join(features, " "))
		if score == 0 {
			continue
		}
		scored = append(scored, scoredResult{
			SearchResult: domain.SearchResult{
				ID:      firstNonEmpty(item.ID, item.Slug),
				Type:    domain.ResultService,
				Title:   item.Title,
				Excerpt: firstNonEmpty(item.ShortDescription, item.Description),
				URL:     "/services/" + item.Slug,
				Tag:     item.Category,
			},
			score: score,
		})
	}
	for _, item := range cases {
		score := s.score(q, item.Title, item.Summary, item.Excerpt, item.Challenge, item.Strategy)
		if score == 0 {
			continue
		}
		scored = append(scored, scoredResult{
			SearchResult: domain.SearchResult{
				ID:      firstNonEmpty(item.ID, item.Slug),
				Type:    domain.ResultCaseStudy,
				Title:   item.Title,
				Excerpt: firstNonEmpty(item.Excerpt, item.Summary),
				URL:     "/case-studies/" + item.Slug,
				Tag:     item.Industry,
				Meta:    item.Client,
			},
			score: score,
		})
	}
	for _, item := range posts {
		score := s.score(q, item.Title, item.Excerpt, strings.Join(item.Tags, " "))
		if score == 0 {
			continue
		}
		var tag string
		if len(item.Tags) > 0 {
			tag = item.Tags[0]
		}
		scored = append(scored, scoredResult{
			SearchResult: domain.SearchResult{
				ID:      firstNonEmpty(item.ID, item.Slug),
				Type:    domain.ResultBlog,
				Title:   item.Title,
				Excerpt: item.Excerpt,
				URL:     "/blog/" + item.Slug,
				Tag:     tag,
				Meta:    item.Author,
			},
			score: score,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	if len(scored) > s.maxResults {
		scored = scored[:s.maxResults]
	}

	results := make([]domain.SearchResult, len(scored))
	for i, r := range scored {
		results[i] = r.SearchResult
	}
	s.metrics.RecordSearch(len(results))
	return results, nil
}

// score 对各字段累加得分：前缀匹配记 prefixWeight，其余包含匹配记 containsWeight
func (s *SearchService) score(q string, fields ...string) int {
	total := 0
	for _, field := range fields {
		value := strings.ToLower(field)
		switch {
		case strings.HasPrefix(value, q):
			total += s.prefixWeight
		case strings.Contains(value, q):
			total += s.containsWeight
		}
	}
	return total
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
