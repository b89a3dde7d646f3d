package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"zephortech/backend/internal/domain"
	"zephortech/backend/internal/storage"
)

// Options 连接池与迁移选项
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// Store 基于 GORM 的关系型存储实现（PostgreSQL / MySQL）
type Store struct {
	db *gorm.DB
}

var _ storage.Store = (*Store)(nil)

// Open 根据数据库类型创建存储实例
func Open(dbType, dsn string, opts Options) (*Store, error) {
	switch dbType {
	case "postgres":
		return NewStoreWithDialector(postgres.Open(dsn), opts)
	case "mysql":
		return NewStoreWithDialector(mysql.Open(dsn), opts)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}
}

// NewStoreWithDialector 使用指定的GORM dialector创建存储实例
func NewStoreWithDialector(dialector gorm.Dialector, opts Options) (*Store, error) {
	config := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(dialector, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	store := &Store{db: db}

	if opts.AutoMigrate {
		if err := db.AutoMigrate(&subscriberModel{}, &issueModel{}); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	return store, nil
}

// ========== Subscriber Repository ==========

// GetByEmail 根据邮箱获取订阅者
func (s *Store) GetByEmail(ctx context.Context, email string) (*domain.Subscriber, error) {
	return s.first(ctx, "email = ?", email)
}

// GetByConfirmationToken 根据确认令牌获取待确认的订阅者
func (s *Store) GetByConfirmationToken(ctx context.Context, token string) (*domain.Subscriber, error) {
	return s.first(ctx, "confirmation_token = ? AND status = ?", token, string(domain.StatusPending))
}

// GetByUnsubscribeToken 根据退订令牌获取订阅者
func (s *Store) GetByUnsubscribeToken(ctx context.Context, token string) (*domain.Subscriber, error) {
	return s.first(ctx, "unsubscribe_token = ?", token)
}

func (s *Store) first(ctx context.Context, query string, args ...interface{}) (*domain.Subscriber, error) {
	var m subscriberModel
	err := s.db.WithContext(ctx).Where(query, args...).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrSubscriberNotFound
		}
		return nil, err
	}
	return m.toDomain(), nil
}

// Upsert 按邮箱插入或原地更新
//
// 冲突时保留原 ID 与 created_at，之后重新读取以回写存储分配的 ID。
func (s *Store) Upsert(ctx context.Context, subscriber *domain.Subscriber) error {
	m := fromSubscriber(subscriber)
	if m.ID == "" {
		m.ID = uuid.NewString()
	}

	db := s.db.WithContext(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status", "confirmation_token", "unsubscribe_token",
			"confirmed_at", "unsubscribed_at", "source", "updated_at",
		}),
	}).Create(m).Error
	if err != nil {
		return err
	}

	var stored subscriberModel
	if err := db.Where("email = ?", m.Email).First(&stored).Error; err != nil {
		return err
	}
	*subscriber = *stored.toDomain()
	return nil
}

// ConfirmPending 条件更新：WHERE 子句携带前置状态，0 行即视为并发冲突
func (s *Store) ConfirmPending(ctx context.Context, subscriber *domain.Subscriber, confirmationToken string) error {
	now := time.Now().UTC()
	err := s.transition(ctx, map[string]interface{}{
		"status":             string(domain.StatusConfirmed),
		"confirmation_token": nil,
		"unsubscribe_token":  subscriber.UnsubscribeToken,
		"confirmed_at":       subscriber.ConfirmedAt,
		"updated_at":         now,
	}, "id = ? AND status = ? AND confirmation_token = ?",
		subscriber.ID, string(domain.StatusPending), confirmationToken)
	if err != nil {
		return err
	}
	subscriber.Status = domain.StatusConfirmed
	subscriber.ConfirmationToken = nil
	subscriber.UpdatedAt = now
	return nil
}

// MarkUnsubscribed 条件更新：令牌一致且尚未退订
func (s *Store) MarkUnsubscribed(ctx context.Context, subscriber *domain.Subscriber, unsubscribeToken string) error {
	now := time.Now().UTC()
	err := s.transition(ctx, map[string]interface{}{
		"status":             string(domain.StatusUnsubscribed),
		"confirmation_token": nil,
		"unsubscribe_token":  nil,
		"unsubscribed_at":    subscriber.UnsubscribedAt,
		"updated_at":         now,
	}, "id = ? AND unsubscribe_token = ? AND status <> ?",
		subscriber.ID, unsubscribeToken, string(domain.StatusUnsubscribed))
	if err != nil {
		return err
	}
	subscriber.Status = domain.StatusUnsubscribed
	subscriber.ConfirmationToken = nil
	subscriber.UnsubscribeToken = nil
	subscriber.UpdatedAt = now
	return nil
}

// AssignUnsubscribeToken 仅在令牌为空时补写，避免覆盖并发写入的令牌
func (s *Store) AssignUnsubscribeToken(ctx context.Context, id, token string) error {
	return s.transition(ctx, map[string]interface{}{
		"unsubscribe_token": token,
		"updated_at":        time.Now().UTC(),
	}, "id = ? AND status = ? AND unsubscribe_token IS NULL", id, string(domain.StatusConfirmed))
}

func (s *Store) transition(ctx context.Context, values map[string]interface{}, query string, args ...interface{}) error {
	result := s.db.WithContext(ctx).Model(&subscriberModel{}).
		Where(query, args...).
		Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrStaleSubscriber
	}
	return nil
}

// ListActiveConfirmed 返回可接收群发的订阅者
func (s *Store) ListActiveConfirmed(ctx context.Context) ([]*domain.Subscriber, error) {
	var models []subscriberModel
	err := s.db.WithContext(ctx).
		Where("status = ? AND unsubscribed_at IS NULL", string(domain.StatusConfirmed)).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	result := make([]*domain.Subscriber, 0, len(models))
	for i := range models {
		result = append(result, models[i].toDomain())
	}
	return result, nil
}

// CountByStatus 统计各状态订阅者数量
func (s *Store) CountByStatus(ctx context.Context) (domain.SubscriberStats, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := s.db.WithContext(ctx).Model(&subscriberModel{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return domain.SubscriberStats{}, err
	}

	var stats domain.SubscriberStats
	for _, r := range rows {
		switch domain.SubscriberStatus(r.Status) {
		case domain.StatusPending:
			stats.Pending = r.Count
		case domain.StatusConfirmed:
			stats.Confirmed = r.Count
		case domain.StatusUnsubscribed:
			stats.Unsubscribed = r.Count
		}
		stats.Total += r.Count
	}
	return stats, nil
}

// ========== Newsletter Repository ==========

// GetNewsletter 根据 ID 获取期刊
func (s *Store) GetNewsletter(ctx context.Context, id string) (*domain.Newsletter, error) {
	var m issueModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrNewsletterNotFound
		}
		return nil, err
	}
	return m.toDomain(), nil
}

// SaveNewsletter 保存期刊，ID 为空时自动分配
func (s *Store) SaveNewsletter(ctx context.Context, newsletter *domain.Newsletter) error {
	if newsletter.ID == "" {
		newsletter.ID = uuid.NewString()
	}
	m := &issueModel{
		ID:          newsletter.ID,
		Subject:     newsletter.Subject,
		HTML:        newsletter.HTML,
		PreviewText: newsletter.PreviewText,
		SentAt:      newsletter.SentAt,
		CreatedAt:   newsletter.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	newsletter.CreatedAt = m.CreatedAt
	return nil
}

// MarkNewsletterSent 记录期刊发送时间
func (s *Store) MarkNewsletterSent(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Model(&issueModel{}).
		Where("id = ?", id).
		Update("sent_at", time.Now().UTC())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrNewsletterNotFound
	}
	return nil
}

// Health 检查数据库连接
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
