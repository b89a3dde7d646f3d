package storage

import (
	"context"
	"errors"

	"zephortech/backend/internal/domain"
)

var (
	// ErrSubscriberNotFound 订阅者不存在
	ErrSubscriberNotFound = errors.New("subscriber not found")
	// ErrStaleSubscriber 条件写入时记录已不满足前置状态（并发确认或退订）
	ErrStaleSubscriber = errors.New("subscriber changed concurrently")
	// ErrNewsletterNotFound 期刊不存在
	ErrNewsletterNotFound = domain.ErrNewsletterNotFound
)

// SubscriberRepository 定义订阅者数据存取操作。
//
// 所有写入都是按邮箱或 ID 的单行操作，不需要跨行事务。
// 状态迁移只在前置条件仍成立时生效，否则返回 ErrStaleSubscriber。
type SubscriberRepository interface {
	GetByEmail(ctx context.Context, email string) (*domain.Subscriber, error)
	GetByConfirmationToken(ctx context.Context, token string) (*domain.Subscriber, error)
	GetByUnsubscribeToken(ctx context.Context, token string) (*domain.Subscriber, error)
	// Upsert 按邮箱插入或原地更新，新记录由存储分配 ID
	Upsert(ctx context.Context, subscriber *domain.Subscriber) error
	// ConfirmPending 仅当记录仍为 pending 且确认令牌一致时写入确认状态
	ConfirmPending(ctx context.Context, subscriber *domain.Subscriber, confirmationToken string) error
	// MarkUnsubscribed 仅当退订令牌一致且尚未退订时写入退订状态
	MarkUnsubscribed(ctx context.Context, subscriber *domain.Subscriber, unsubscribeToken string) error
	// AssignUnsubscribeToken 为缺少退订令牌的已确认订阅者补写令牌
	AssignUnsubscribeToken(ctx context.Context, id, token string) error
	// ListActiveConfirmed 返回 status = confirmed 且 unsubscribed_at 为空的订阅者
	ListActiveConfirmed(ctx context.Context) ([]*domain.Subscriber, error)
	CountByStatus(ctx context.Context) (domain.SubscriberStats, error)
}

// NewsletterRepository 定义期刊数据存取操作。
type NewsletterRepository interface {
	GetNewsletter(ctx context.Context, id string) (*domain.Newsletter, error)
	SaveNewsletter(ctx context.Context, newsletter *domain.Newsletter) error
	MarkNewsletterSent(ctx context.Context, id string) error
}

// Store 聚合所有仓储接口。
type Store interface {
	SubscriberRepository
	NewsletterRepository
	Health() error
	Close() error
}
