package domain

import (
	"strings"
	"time"
)

// SubscriberStatus 订阅者状态
type SubscriberStatus string

const (
	// StatusPending 已提交订阅，等待邮件确认
	StatusPending SubscriberStatus = "pending"
	// StatusConfirmed 已通过双重确认，可以接收邮件
	StatusConfirmed SubscriberStatus = "confirmed"
	// StatusUnsubscribed 已退订
	StatusUnsubscribed SubscriberStatus = "unsubscribed"
)

// Valid 判断状态值是否合法
func (s SubscriberStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusUnsubscribed:
		return true
	}
	return false
}

// Subscriber 新闻通讯订阅者
//
// 不变量：
//   - 每个规范化邮箱只有一条记录
//   - 状态为 confirmed 时 ConfirmationToken 为空
//   - 状态为 unsubscribed 时 UnsubscribeToken 为空
type Subscriber struct {
	ID                string           `json:"id"`
	Email             string           `json:"email"`
	Status            SubscriberStatus `json:"status"`
	ConfirmationToken *string          `json:"-"`
	UnsubscribeToken  *string          `json:"-"`
	ConfirmedAt       *time.Time       `json:"confirmedAt,omitempty"`
	UnsubscribedAt    *time.Time       `json:"unsubscribedAt,omitempty"`
	Source            string           `json:"source"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

// Clone 返回订阅者的深拷贝，避免调用方修改存储中的指针字段
func (s *Subscriber) Clone() *Subscriber {
	if s == nil {
		return nil
	}
	cp := *s
	cp.ConfirmationToken = cloneString(s.ConfirmationToken)
	cp.UnsubscribeToken = cloneString(s.UnsubscribeToken)
	cp.ConfirmedAt = cloneTime(s.ConfirmedAt)
	cp.UnsubscribedAt = cloneTime(s.UnsubscribedAt)
	return &cp
}

// IsActive 判断订阅者是否应当接收群发邮件
func (s *Subscriber) IsActive() bool {
	return s.Status == StatusConfirmed && s.UnsubscribedAt == nil
}

// SubscriberStats 各状态订阅者数量
type SubscriberStats struct {
	Pending      int64 `json:"pending"`
	Confirmed    int64 `json:"confirmed"`
	Unsubscribed int64 `json:"unsubscribed"`
	Total        int64 `json:"total"`
}

// NormalizeEmail 规范化邮箱地址（去除首尾空白并转为小写）
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// StringPtr 返回字符串指针
func StringPtr(s string) *string {
	return &s
}

// TimePtr 返回时间指针
func TimePtr(t time.Time) *time.Time {
	return &t
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
