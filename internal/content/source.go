// Package content 提供站点内容（服务、案例、博客、期刊）的只读访问
package content

import (
	"context"

	"zephortech/backend/internal/domain"
)

// Source 内容源
type Source interface {
	ListServices(ctx context.Context) ([]domain.ServiceItem, error)
	ListCaseStudies(ctx context.Context) ([]domain.CaseStudy, error)
	ListBlogPosts(ctx context.Context) ([]domain.BlogPost, error)
	IssueSource
}

// IssueSource 按 ID 读取新闻通讯期刊，找不到时返回 domain.ErrNewsletterNotFound
type IssueSource interface {
	GetNewsletter(ctx context.Context, id string) (*domain.Newsletter, error)
}
