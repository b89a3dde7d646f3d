package mailer

import (
	"context"

	"go.uber.org/zap"
)

// NopSender 只记录日志、不真正发送的发送器，用于本地开发
type NopSender struct {
	logger *zap.Logger
}

// NewNopSender 创建空发送器
func NewNopSender(logger *zap.Logger) *NopSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NopSender{logger: logger}
}

// Send 实现 Sender
func (s *NopSender) Send(_ context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	s.logger.Info("email delivery disabled, message discarded",
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject))
	return nil
}
