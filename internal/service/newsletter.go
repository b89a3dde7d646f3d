package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"zephortech/backend/internal/content"
	"zephortech/backend/internal/domain"
	"zephortech/backend/internal/mailer"
	"zephortech/backend/internal/storage"
	"zephortech/backend/internal/token"
)

// 群发默认参数
const (
	DefaultBatchSize         = 50
	DefaultBatchDelay        = time.Second
	DefaultMaxReportedErrors = 10
	DefaultSubscriberSource  = "web-newsletter-form"
)

// NewsletterConfig 订阅服务配置
type NewsletterConfig struct {
	AdminKey          string
	AdminKeyHash      string
	BatchSize         int
	BatchDelay        time.Duration
	MaxReportedErrors int
	Source            string
	SiteName          string
	SiteURL           string // 站点首页，用于欢迎邮件
	APIBaseURL        string // 对外 API 根地址，确认与退订链接基于此生成
}

// SubscribeResult 订阅结果
type SubscribeResult struct {
	Subscriber        *domain.Subscriber
	AlreadySubscribed bool
	// NotificationError 确认邮件发送失败的原因，订阅本身仍然成功
	NotificationError error
}

// UnsubscribeResult 退订结果
type UnsubscribeResult struct {
	Subscriber          *domain.Subscriber
	AlreadyUnsubscribed bool
}

// BroadcastRequest 群发请求，取值为 InlineContent 或 StoredIssue
type BroadcastRequest interface {
	broadcastRequest()
}

// InlineContent 直接提交主题与 HTML 正文
type InlineContent struct {
	Subject     string
	HTML        string
	PreviewText string
}

// StoredIssue 按 ID 引用已保存的期刊
type StoredIssue struct {
	ID string
}

func (InlineContent) broadcastRequest() {}
func (StoredIssue) broadcastRequest()   {}

// Sleeper 批次间等待，ctx 取消时应立即返回
type Sleeper func(ctx context.Context, d time.Duration) error

// NewsletterOption 订阅服务可选项
type NewsletterOption func(*NewsletterService)

// WithIssueSource 期刊在本地存储中找不到时回退到 CMS 查找
func WithIssueSource(src content.IssueSource) NewsletterOption {
	return func(s *NewsletterService) {
		s.cms = src
	}
}

// WithSleeper 替换批次间等待实现
func WithSleeper(sleep Sleeper) NewsletterOption {
	return func(s *NewsletterService) {
		s.sleep = sleep
	}
}

// WithClock 替换时间来源
func WithClock(now func() time.Time) NewsletterOption {
	return func(s *NewsletterService) {
		s.now = now
	}
}

// WithRecorder 注入指标记录器
func WithRecorder(r Recorder) NewsletterOption {
	return func(s *NewsletterService) {
		s.metrics = r
	}
}

// NewsletterService 管理订阅者生命周期：订阅、确认、退订与群发
type NewsletterService struct {
	repo    storage.SubscriberRepository
	issues  storage.NewsletterRepository
	cms     content.IssueSource
	sender  mailer.Sender
	tokens  token.Generator
	cfg     NewsletterConfig
	logger  *zap.Logger
	metrics Recorder
	sleep   Sleeper
	now     func() time.Time
}

// NewNewsletterService 创建订阅服务
func NewNewsletterService(
	repo storage.SubscriberRepository,
	issues storage.NewsletterRepository,
	sender mailer.Sender,
	tokens token.Generator,
	cfg NewsletterConfig,
	logger *zap.Logger,
	opts ...NewsletterOption,
) *NewsletterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tokens == nil {
		tokens = token.NewRandomHex()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = 0
	}
	if cfg.MaxReportedErrors <= 0 {
		cfg.MaxReportedErrors = DefaultMaxReportedErrors
	}
	if cfg.Source == "" {
		cfg.Source = DefaultSubscriberSource
	}
	if cfg.SiteName == "" {
		cfg.SiteName = "ZephorTech"
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")

	s := &NewsletterService{
		repo:    repo,
		issues:  issues,
		sender:  sender,
		tokens:  tokens,
		cfg:     cfg,
		logger:  logger,
		metrics: nopRecorder{},
		sleep:   sleepContext,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe 登记订阅并发送确认邮件
//
// 已确认的邮箱直接返回 AlreadySubscribed，不修改记录也不发信。
// 其余情况（新邮箱、待确认、已退订）都会重新生成两枚令牌并回到 pending。
func (s *NewsletterService) Subscribe(ctx context.Context, email string) (*SubscribeResult, error) {
	email = domain.NormalizeEmail(email)
	if err := domain.ValidateEmailAddress(email); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, storage.ErrSubscriberNotFound) {
		return nil, persistenceError(err)
	}
	if existing != nil && existing.Status == domain.StatusConfirmed {
		s.metrics.RecordNewsletterEvent("already_subscribed")
		return &SubscribeResult{Subscriber: existing, AlreadySubscribed: true}, nil
	}

	confirmToken, err := s.tokens.Generate()
	if err != nil {
		return nil, err
	}
	unsubscribeToken, err := s.tokens.Generate()
	if err != nil {
		return nil, err
	}

	now := s.now()
	sub := existing
	if sub == nil {
		sub = &domain.Subscriber{Email: email, CreatedAt: now}
	}
	if sub.Source == "" {
		sub.Source = s.cfg.Source
	}
	sub.Status = domain.StatusPending
	sub.ConfirmationToken = domain.StringPtr(confirmToken)
	sub.UnsubscribeToken = domain.StringPtr(unsubscribeToken)
	sub.ConfirmedAt = nil
	sub.UnsubscribedAt = nil
	sub.UpdatedAt = now

	if err := s.repo.Upsert(ctx, sub); err != nil {
		return nil, persistenceError(err)
	}
	s.metrics.RecordNewsletterEvent("subscribed")

	result := &SubscribeResult{Subscriber: sub}
	if err := s.sendConfirmation(ctx, sub.Email, confirmToken, unsubscribeToken); err != nil {
		s.logger.Warn("Failed to send confirmation email",
			zap.String("email", sub.Email),
			zap.Error(err))
		result.NotificationError = err
	}
	return result, nil
}

// Confirm 使用确认令牌完成双重确认，令牌只能使用一次
func (s *NewsletterService) Confirm(ctx context.Context, confirmationToken string) (*domain.Subscriber, error) {
	confirmationToken = strings.TrimSpace(confirmationToken)
	if confirmationToken == "" {
		return nil, domain.ErrMissingToken
	}

	sub, err := s.repo.GetByConfirmationToken(ctx, confirmationToken)
	if err != nil {
		if errors.Is(err, storage.ErrSubscriberNotFound) {
			return nil, domain.ErrInvalidToken
		}
		return nil, persistenceError(err)
	}
	if sub.Status != domain.StatusPending {
		return nil, domain.ErrInvalidToken
	}

	if sub.UnsubscribeToken == nil {
		tok, err := s.tokens.Generate()
		if err != nil {
			return nil, err
		}
		sub.UnsubscribeToken = domain.StringPtr(tok)
	}
	sub.ConfirmedAt = domain.TimePtr(s.now())

	// 读取之后记录可能已被并发确认或退订，由条件写入裁决
	if err := s.repo.ConfirmPending(ctx, sub, confirmationToken); err != nil {
		if isStale(err) {
			return nil, domain.ErrInvalidToken
		}
		return nil, &domain.UpdateError{Err: err}
	}
	s.metrics.RecordNewsletterEvent("confirmed")
	s.logger.Info("Subscriber confirmed", zap.String("email", sub.Email))

	if err := s.sendWelcome(ctx, sub); err != nil {
		s.logger.Warn("Failed to send welcome email",
			zap.String("email", sub.Email),
			zap.Error(err))
	}
	return sub, nil
}

// Unsubscribe 使用退订令牌退订
func (s *NewsletterService) Unsubscribe(ctx context.Context, unsubscribeToken string) (*UnsubscribeResult, error) {
	unsubscribeToken = strings.TrimSpace(unsubscribeToken)
	if unsubscribeToken == "" {
		return nil, domain.ErrMissingToken
	}

	sub, err := s.repo.GetByUnsubscribeToken(ctx, unsubscribeToken)
	if err != nil {
		if errors.Is(err, storage.ErrSubscriberNotFound) {
			return nil, domain.ErrInvalidToken
		}
		return nil, persistenceError(err)
	}
	if sub.Status == domain.StatusUnsubscribed {
		s.metrics.RecordNewsletterEvent("already_unsubscribed")
		return &UnsubscribeResult{Subscriber: sub, AlreadyUnsubscribed: true}, nil
	}

	sub.UnsubscribedAt = domain.TimePtr(s.now())

	if err := s.repo.MarkUnsubscribed(ctx, sub, unsubscribeToken); err != nil {
		if isStale(err) {
			return nil, domain.ErrInvalidToken
		}
		return nil, &domain.UpdateError{Err: err}
	}
	s.metrics.RecordNewsletterEvent("unsubscribed")
	s.logger.Info("Subscriber unsubscribed", zap.String("email", sub.Email))
	return &UnsubscribeResult{Subscriber: sub}, nil
}

// Authorize 校验群发管理密钥
//
// 未配置任何密钥时返回 domain.ErrNotConfigured，密钥不匹配返回 domain.ErrUnauthorized。
func (s *NewsletterService) Authorize(key string) error {
	if s.cfg.AdminKey == "" && s.cfg.AdminKeyHash == "" {
		return domain.ErrNotConfigured
	}
	if key == "" {
		return domain.ErrUnauthorized
	}
	if s.cfg.AdminKeyHash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.AdminKeyHash), []byte(key)); err != nil {
			return domain.ErrUnauthorized
		}
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(s.cfg.AdminKey), []byte(key)) != 1 {
		return domain.ErrUnauthorized
	}
	return nil
}

// ResolveContent 将群发请求解析为统一的群发内容
func (s *NewsletterService) ResolveContent(ctx context.Context, req BroadcastRequest) (domain.BroadcastContent, error) {
	switch r := req.(type) {
	case InlineContent:
		c := domain.BroadcastContent{
			Subject:     strings.TrimSpace(r.Subject),
			HTML:        r.HTML,
			PreviewText: strings.TrimSpace(r.PreviewText),
		}
		return c, c.Validate()
	case StoredIssue:
		id := strings.TrimSpace(r.ID)
		if id == "" {
			return domain.BroadcastContent{}, domain.ErrMissingBroadcastFields
		}
		issue, err := s.lookupIssue(ctx, id)
		if err != nil {
			return domain.BroadcastContent{}, err
		}
		c := domain.BroadcastContent{
			Subject:     issue.Subject,
			HTML:        issue.HTML,
			PreviewText: issue.PreviewText,
			IssueID:     issue.ID,
		}
		return c, c.Validate()
	default:
		return domain.BroadcastContent{}, domain.ErrMissingBroadcastFields
	}
}

// SaveIssue 保存期刊供之后按 ID 群发，id 为空时由存储分配
func (s *NewsletterService) SaveIssue(ctx context.Context, id string, in InlineContent) (*domain.Newsletter, error) {
	if s.issues == nil {
		return nil, fmt.Errorf("%w: newsletter repository", domain.ErrNotConfigured)
	}
	c, err := s.ResolveContent(ctx, in)
	if err != nil {
		return nil, err
	}

	issue := &domain.Newsletter{
		ID:          strings.TrimSpace(id),
		Subject:     c.Subject,
		HTML:        c.HTML,
		PreviewText: c.PreviewText,
		CreatedAt:   s.now(),
	}
	if err := s.issues.SaveNewsletter(ctx, issue); err != nil {
		return nil, persistenceError(err)
	}
	s.logger.Info("Newsletter issue saved", zap.String("issue_id", issue.ID))
	return issue, nil
}

func (s *NewsletterService) lookupIssue(ctx context.Context, id string) (*domain.Newsletter, error) {
	if s.issues != nil {
		issue, err := s.issues.GetNewsletter(ctx, id)
		switch {
		case err == nil:
			return issue, nil
		case !errors.Is(err, domain.ErrNewsletterNotFound):
			return nil, persistenceError(err)
		}
	}
	if s.cms != nil {
		issue, err := s.cms.GetNewsletter(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNewsletterNotFound) {
				return nil, err
			}
			return nil, persistenceError(err)
		}
		return issue, nil
	}
	return nil, domain.ErrNewsletterNotFound
}

// Broadcast 向所有有效订阅者群发
//
// 收件人分批处理，批内并发发送并收集全部结果，批次之间等待 BatchDelay。
// 单个收件人失败不会中断群发，只计入报告。调用方应先通过 Authorize 校验权限。
func (s *NewsletterService) Broadcast(ctx context.Context, req BroadcastRequest) (*domain.BroadcastReport, error) {
	c, err := s.ResolveContent(ctx, req)
	if err != nil {
		return nil, err
	}

	recipients, err := s.repo.ListActiveConfirmed(ctx)
	if err != nil {
		return nil, persistenceError(err)
	}
	if len(recipients) == 0 {
		return nil, domain.ErrNoRecipients
	}

	report := &domain.BroadcastReport{
		Total:  len(recipients),
		Errors: []domain.DeliveryError{},
	}
	s.logger.Info("Starting newsletter broadcast",
		zap.String("subject", c.Subject),
		zap.Int("recipients", len(recipients)),
		zap.Int("batch_size", s.cfg.BatchSize))

	for start := 0; start < len(recipients); start += s.cfg.BatchSize {
		end := min(start+s.cfg.BatchSize, len(recipients))
		batch := recipients[start:end]

		outcomes := make([]error, len(batch))
		var g errgroup.Group
		for i, sub := range batch {
			i, sub := i, sub
			g.Go(func() error {
				outcomes[i] = s.deliver(ctx, sub, c)
				return nil
			})
		}
		_ = g.Wait()

		for i, err := range outcomes {
			if err == nil {
				report.Sent++
				s.metrics.RecordDelivery("sent")
				continue
			}
			report.Failed++
			s.metrics.RecordDelivery("failed")
			s.logger.Warn("Newsletter delivery failed",
				zap.String("email", batch[i].Email),
				zap.Error(err))
			if len(report.Errors) < s.cfg.MaxReportedErrors {
				report.Errors = append(report.Errors, domain.DeliveryError{
					Email: batch[i].Email,
					Error: err.Error(),
				})
			}
		}

		if end < len(recipients) && s.cfg.BatchDelay > 0 {
			if err := s.sleep(ctx, s.cfg.BatchDelay); err != nil {
				s.logger.Warn("Broadcast interrupted",
					zap.Int("sent", report.Sent),
					zap.Int("failed", report.Failed),
					zap.Error(err))
				return report, err
			}
		}
	}

	if c.IssueID != "" && s.issues != nil {
		if err := s.issues.MarkNewsletterSent(ctx, c.IssueID); err != nil && !errors.Is(err, domain.ErrNewsletterNotFound) {
			s.logger.Warn("Failed to mark newsletter as sent",
				zap.String("newsletter_id", c.IssueID),
				zap.Error(err))
		}
	}

	s.logger.Info("Newsletter broadcast finished",
		zap.Int("total", report.Total),
		zap.Int("sent", report.Sent),
		zap.Int("failed", report.Failed))
	return report, nil
}

// deliver 向单个订阅者发送，必要时先补写退订令牌
func (s *NewsletterService) deliver(ctx context.Context, sub *domain.Subscriber, c domain.BroadcastContent) error {
	if sub.UnsubscribeToken == nil {
		tok, err := s.tokens.Generate()
		if err != nil {
			return err
		}
		if err := s.repo.AssignUnsubscribeToken(ctx, sub.ID, tok); err != nil {
			return fmt.Errorf("persist unsubscribe token: %w", err)
		}
		sub.UnsubscribeToken = domain.StringPtr(tok)
	}

	unsubscribeURL := s.unsubscribeURL(*sub.UnsubscribeToken)
	html, err := mailer.RenderBroadcast(mailer.BroadcastData{
		SiteName:       s.cfg.SiteName,
		Subject:        c.Subject,
		PreviewText:    c.PreviewText,
		Content:        template.HTML(c.HTML),
		UnsubscribeURL: unsubscribeURL,
	})
	if err != nil {
		return fmt.Errorf("render newsletter: %w", err)
	}

	return s.sender.Send(ctx, mailer.Message{
		To:      []string{sub.Email},
		Subject: c.Subject,
		HTML:    html,
		Headers: map[string]string{
			"List-Unsubscribe": "<" + unsubscribeURL + ">",
		},
	})
}

// Stats 返回各状态订阅者数量
func (s *NewsletterService) Stats(ctx context.Context) (domain.SubscriberStats, error) {
	stats, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return domain.SubscriberStats{}, persistenceError(err)
	}
	return stats, nil
}

func (s *NewsletterService) sendConfirmation(ctx context.Context, email, confirmToken, unsubscribeToken string) error {
	unsubscribeURL := s.unsubscribeURL(unsubscribeToken)
	html, err := mailer.RenderConfirmation(mailer.ConfirmationData{
		SiteName:       s.cfg.SiteName,
		ConfirmURL:     s.link("/newsletter/confirm", confirmToken),
		UnsubscribeURL: unsubscribeURL,
	})
	if err != nil {
		return fmt.Errorf("render confirmation: %w", err)
	}
	return s.sender.Send(ctx, mailer.Message{
		To:      []string{email},
		Subject: "Confirm your " + s.cfg.SiteName + " newsletter subscription",
		HTML:    html,
		Headers: map[string]string{
			"List-Unsubscribe": "<" + unsubscribeURL + ">",
		},
	})
}

func (s *NewsletterService) sendWelcome(ctx context.Context, sub *domain.Subscriber) error {
	unsubscribeURL := s.unsubscribeURL(*sub.UnsubscribeToken)
	html, err := mailer.RenderWelcome(mailer.WelcomeData{
		SiteName:       s.cfg.SiteName,
		SiteURL:        s.cfg.SiteURL,
		UnsubscribeURL: unsubscribeURL,
	})
	if err != nil {
		return fmt.Errorf("render welcome: %w", err)
	}
	return s.sender.Send(ctx, mailer.Message{
		To:      []string{sub.Email},
		Subject: "Welcome to the " + s.cfg.SiteName + " newsletter",
		HTML:    html,
		Headers: map[string]string{
			"List-Unsubscribe": "<" + unsubscribeURL + ">",
		},
	})
}

func (s *NewsletterService) unsubscribeURL(tok string) string {
	return s.link("/newsletter/unsubscribe", tok)
}

func (s *NewsletterService) link(path, tok string) string {
	return s.cfg.APIBaseURL + path + "?" + url.Values{"token": {tok}}.Encode()
}

func persistenceError(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
}

// isStale 前置状态已变化或记录已消失
func isStale(err error) bool {
	return errors.Is(err, storage.ErrStaleSubscriber) || errors.Is(err, storage.ErrSubscriberNotFound)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
