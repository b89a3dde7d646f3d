package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrNoRecipient 消息没有收件人
var ErrNoRecipient = errors.New("message has no recipient")

// Message 一封待发送的邮件
type Message struct {
	To      []string
	Subject string
	HTML    string
	Text    string
	ReplyTo string
	Headers map[string]string // 额外邮件头，例如 List-Unsubscribe
}

// Validate 检查邮件是否可以发送
func (m Message) Validate() error {
	if len(m.To) == 0 {
		return ErrNoRecipient
	}
	if strings.TrimSpace(m.Subject) == "" {
		return errors.New("message subject is required")
	}
	return nil
}

// Sender 事务邮件发送接口
//
// 发送失败以 error 返回，由调用方决定是否吞掉（如订阅确认邮件）或逐个记录（如群发）。
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Config 邮件发送配置
type Config struct {
	Provider          string // resend | smtp | none
	From              string
	ReplyTo           string
	ResendAPIKey      string
	ResendEndpoint    string
	SMTPHost          string
	SMTPPort          int
	SMTPUser          string
	SMTPPass          string
	RequestsPerSecond float64
	Timeout           time.Duration
}

// New 根据配置创建发送器
func New(cfg Config, logger *zap.Logger) (Sender, error) {
	switch strings.ToLower(cfg.Provider) {
	case "resend":
		if cfg.ResendAPIKey == "" {
			return nil, fmt.Errorf("mail.resend_api_key is required for provider resend")
		}
		return NewResendSender(cfg), nil
	case "smtp":
		if cfg.SMTPHost == "" {
			return nil, fmt.Errorf("mail.smtp_host is required for provider smtp")
		}
		return NewSMTPSender(cfg), nil
	case "", "none":
		return NewNopSender(logger), nil
	default:
		return nil, fmt.Errorf("unsupported mail provider: %s", cfg.Provider)
	}
}
