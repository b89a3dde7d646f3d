package postgres

import (
	"time"

	"zephortech/backend/internal/domain"
)

// subscriberModel newsletter_subscribers 表映射
type subscriberModel struct {
	ID                string     `gorm:"primaryKey;type:varchar(36)"`
	Email             string     `gorm:"type:varchar(254);uniqueIndex;not null"`
	Status            string     `gorm:"type:varchar(20);index;not null"`
	ConfirmationToken *string    `gorm:"type:varchar(128);index"`
	UnsubscribeToken  *string    `gorm:"type:varchar(128);index"`
	ConfirmedAt       *time.Time
	UnsubscribedAt    *time.Time
	Source            string    `gorm:"type:varchar(100)"`
	CreatedAt         time.Time `gorm:"not null"`
	UpdatedAt         time.Time `gorm:"not null"`
}

func (subscriberModel) TableName() string { return "newsletter_subscribers" }

func (m *subscriberModel) toDomain() *domain.Subscriber {
	return &domain.Subscriber{
		ID:                m.ID,
		Email:             m.Email,
		Status:            domain.SubscriberStatus(m.Status),
		ConfirmationToken: m.ConfirmationToken,
		UnsubscribeToken:  m.UnsubscribeToken,
		ConfirmedAt:       m.ConfirmedAt,
		UnsubscribedAt:    m.UnsubscribedAt,
		Source:            m.Source,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func fromSubscriber(s *domain.Subscriber) *subscriberModel {
	return &subscriberModel{
		ID:                s.ID,
		Email:             s.Email,
		Status:            string(s.Status),
		ConfirmationToken: s.ConfirmationToken,
		UnsubscribeToken:  s.UnsubscribeToken,
		ConfirmedAt:       s.ConfirmedAt,
		UnsubscribedAt:    s.UnsubscribedAt,
		Source:            s.Source,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
}

// issueModel newsletter_issues 表映射
type issueModel struct {
	ID          string `gorm:"primaryKey;type:varchar(64)"`
	Subject     string `gorm:"type:varchar(255);not null"`
	HTML        string `gorm:"column:html;type:text;not null"`
	PreviewText string `gorm:"type:varchar(255)"`
	SentAt      *time.Time
	CreatedAt   time.Time `gorm:"not null"`
}

func (issueModel) TableName() string { return "newsletter_issues" }

func (m *issueModel) toDomain() *domain.Newsletter {
	return &domain.Newsletter{
		ID:          m.ID,
		Subject:     m.Subject,
		HTML:        m.HTML,
		PreviewText: m.PreviewText,
		SentAt:      m.SentAt,
		CreatedAt:   m.CreatedAt,
	}
}
