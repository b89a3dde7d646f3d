package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"zephortech/backend/internal/domain"
	"zephortech/backend/internal/storage"
)

// Store 使用内存保存订阅者与期刊数据，主要用于开发验证。
type Store struct {
	mu          sync.RWMutex
	subscribers map[string]*domain.Subscriber // id -> subscriber
	byEmail     map[string]string             // email -> id
	newsletters map[string]*domain.Newsletter // id -> newsletter
	now         func() time.Time
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		subscribers: make(map[string]*domain.Subscriber),
		byEmail:     make(map[string]string),
		newsletters: make(map[string]*domain.Newsletter),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

var _ storage.Store = (*Store)(nil)

// GetByEmail 根据邮箱获取订阅者
func (s *Store) GetByEmail(_ context.Context, email string) (*domain.Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, storage.ErrSubscriberNotFound
	}
	return s.subscribers[id].Clone(), nil
}

// GetByConfirmationToken 根据确认令牌获取待确认的订阅者
func (s *Store) GetByConfirmationToken(_ context.Context, token string) (*domain.Subscriber, error) {
	return s.find(func(sub *domain.Subscriber) bool {
		return sub.Status == domain.StatusPending &&
			sub.ConfirmationToken != nil && *sub.ConfirmationToken == token
	})
}

// GetByUnsubscribeToken 根据退订令牌获取订阅者
func (s *Store) GetByUnsubscribeToken(_ context.Context, token string) (*domain.Subscriber, error) {
	return s.find(func(sub *domain.Subscriber) bool {
		return sub.UnsubscribeToken != nil && *sub.UnsubscribeToken == token
	})
}

func (s *Store) find(match func(*domain.Subscriber) bool) (*domain.Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subscribers {
		if match(sub) {
			return sub.Clone(), nil
		}
	}
	return nil, storage.ErrSubscriberNotFound
}

// Upsert 按邮箱插入或更新订阅者，并回写 ID 与时间戳
func (s *Store) Upsert(_ context.Context, subscriber *domain.Subscriber) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if id, ok := s.byEmail[subscriber.Email]; ok {
		existing := s.subscribers[id]
		subscriber.ID = existing.ID
		subscriber.CreatedAt = existing.CreatedAt
	} else {
		subscriber.ID = uuid.NewString()
		subscriber.CreatedAt = now
	}
	subscriber.UpdatedAt = now

	s.subscribers[subscriber.ID] = subscriber.Clone()
	s.byEmail[subscriber.Email] = subscriber.ID
	return nil
}

// ConfirmPending 在同一把写锁内校验前置状态并写入确认字段
func (s *Store) ConfirmPending(_ context.Context, subscriber *domain.Subscriber, confirmationToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.subscribers[subscriber.ID]
	if !ok {
		return storage.ErrSubscriberNotFound
	}
	if existing.Status != domain.StatusPending ||
		existing.ConfirmationToken == nil || *existing.ConfirmationToken != confirmationToken {
		return storage.ErrStaleSubscriber
	}

	subscriber.Status = domain.StatusConfirmed
	subscriber.ConfirmationToken = nil
	subscriber.UpdatedAt = s.now()

	existing.Status = subscriber.Status
	existing.ConfirmationToken = nil
	existing.UnsubscribeToken = cloneString(subscriber.UnsubscribeToken)
	existing.ConfirmedAt = cloneTime(subscriber.ConfirmedAt)
	existing.UpdatedAt = subscriber.UpdatedAt
	return nil
}

// MarkUnsubscribed 在同一把写锁内校验退订令牌并写入退订字段
func (s *Store) MarkUnsubscribed(_ context.Context, subscriber *domain.Subscriber, unsubscribeToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.subscribers[subscriber.ID]
	if !ok {
		return storage.ErrSubscriberNotFound
	}
	if existing.Status == domain.StatusUnsubscribed ||
		existing.UnsubscribeToken == nil || *existing.UnsubscribeToken != unsubscribeToken {
		return storage.ErrStaleSubscriber
	}

	subscriber.Status = domain.StatusUnsubscribed
	subscriber.ConfirmationToken = nil
	subscriber.UnsubscribeToken = nil
	subscriber.UpdatedAt = s.now()

	existing.Status = subscriber.Status
	existing.ConfirmationToken = nil
	existing.UnsubscribeToken = nil
	existing.UnsubscribedAt = cloneTime(subscriber.UnsubscribedAt)
	existing.UpdatedAt = subscriber.UpdatedAt
	return nil
}

// AssignUnsubscribeToken 仅为仍处于确认状态且没有退订令牌的记录补写
func (s *Store) AssignUnsubscribeToken(_ context.Context, id, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.subscribers[id]
	if !ok {
		return storage.ErrSubscriberNotFound
	}
	if existing.Status != domain.StatusConfirmed || existing.UnsubscribeToken != nil {
		return storage.ErrStaleSubscriber
	}
	existing.UnsubscribeToken = domain.StringPtr(token)
	existing.UpdatedAt = s.now()
	return nil
}

// ListActiveConfirmed 返回可接收群发的订阅者，按创建时间排序
func (s *Store) ListActiveConfirmed(_ context.Context) ([]*domain.Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Subscriber, 0)
	for _, sub := range s.subscribers {
		if sub.IsActive() {
			result = append(result, sub.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].Email < result[j].Email
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// CountByStatus 统计各状态订阅者数量
func (s *Store) CountByStatus(_ context.Context) (domain.SubscriberStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats domain.SubscriberStats
	for _, sub := range s.subscribers {
		switch sub.Status {
		case domain.StatusPending:
			stats.Pending++
		case domain.StatusConfirmed:
			stats.Confirmed++
		case domain.StatusUnsubscribed:
			stats.Unsubscribed++
		}
		stats.Total++
	}
	return stats, nil
}

// GetNewsletter 根据 ID 获取期刊
func (s *Store) GetNewsletter(_ context.Context, id string) (*domain.Newsletter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.newsletters[id]
	if !ok {
		return nil, storage.ErrNewsletterNotFound
	}
	cp := *n
	return &cp, nil
}

// SaveNewsletter 保存期刊，ID 为空时自动分配
func (s *Store) SaveNewsletter(_ context.Context, newsletter *domain.Newsletter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if newsletter.ID == "" {
		newsletter.ID = uuid.NewString()
	}
	if newsletter.CreatedAt.IsZero() {
		newsletter.CreatedAt = s.now()
	}
	cp := *newsletter
	s.newsletters[newsletter.ID] = &cp
	return nil
}

// MarkNewsletterSent 记录期刊发送时间
func (s *Store) MarkNewsletterSent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.newsletters[id]
	if !ok {
		return storage.ErrNewsletterNotFound
	}
	n.SentAt = domain.TimePtr(s.now())
	return nil
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	return domain.StringPtr(*v)
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	return domain.TimePtr(*v)
}

// Health 内存存储始终可用
func (s *Store) Health() error {
	return nil
}

// Close 内存存储无需释放资源
func (s *Store) Close() error {
	return nil
}
