package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"zephortech/backend/internal/domain"
	"zephortech/backend/internal/mailer"
)

// ContactService 处理联系表单
//
// 联系表单没有持久化存储，通知邮件即为唯一记录，所以发送失败必须返回错误。
type ContactService struct {
	sender    mailer.Sender
	recipient string
	logger    *zap.Logger
	now       func() time.Time
}

// NewContactService 创建联系表单服务
func NewContactService(sender mailer.Sender, recipient string, logger *zap.Logger) *ContactService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContactService{
		sender:    sender,
		recipient: recipient,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Submit 校验表单并向站点负责人发送通知邮件
func (s *ContactService) Submit(ctx context.Context, input domain.ContactInput) (*domain.ContactSubmission, error) {
	input = input.Normalize()
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if s.recipient == "" {
		return nil, fmt.Errorf("%w: contact recipient", domain.ErrNotConfigured)
	}

	submission := &domain.ContactSubmission{
		ID:         uuid.NewString(),
		Name:       input.Name,
		Email:      input.Email,
		Company:    input.Company,
		Message:    input.Message,
		ReceivedAt: s.now(),
	}

	html, err := mailer.RenderContactNotification(mailer.ContactNotificationData{
		ID:         submission.ID,
		Name:       submission.Name,
		Email:      submission.Email,
		Company:    submission.Company,
		Message:    submission.Message,
		ReceivedAt: submission.ReceivedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("render contact notification: %w", err)
	}

	err = s.sender.Send(ctx, mailer.Message{
		To:      []string{s.recipient},
		Subject: "New contact request from " + submission.Name,
		HTML:    html,
		ReplyTo: submission.Email,
	})
	if err != nil {
		s.logger.Error("Failed to deliver contact notification",
			zap.String("submission_id", submission.ID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", domain.ErrDeliveryFailed, err)
	}

	s.logger.Info("Contact request received",
		zap.String("submission_id", submission.ID),
		zap.String("email", submission.Email))
	return submission, nil
}
