package httptransport

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"zephortech/backend/internal/config"
	"zephortech/backend/internal/domain"
	"zephortech/backend/internal/service"
)

// NewsletterHandler 新闻通讯订阅接口
type NewsletterHandler struct {
	newsletter *service.NewsletterService
	site       config.SiteConfig
	logger     *zap.Logger
}

// NewNewsletterHandler 创建订阅接口处理器
func NewNewsletterHandler(newsletter *service.NewsletterService, site config.SiteConfig, logger *zap.Logger) *NewsletterHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NewsletterHandler{
		newsletter: newsletter,
		site:       site,
		logger:     logger,
	}
}

type subscribeRequest struct {
	Email string `json:"email"`
}

type sendRequest struct {
	Subject      string `json:"subject"`
	Content      string `json:"content"`
	PreviewText  string `json:"previewText"`
	NewsletterID string `json:"newsletterId"`
}

type sendResponse struct {
	Code    int                     `json:"code"`
	Message string                  `json:"message"`
	Results *domain.BroadcastReport `json:"results"`
}

// Subscribe 订阅新闻通讯
// POST /api/newsletter/subscribe
func (h *NewsletterHandler) Subscribe(c *gin.Context) {
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	res, err := h.newsletter.Subscribe(c.Request.Context(), req.Email)
	if err != nil {
		status, msg := StatusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("Subscribe failed", zap.Error(err))
			msg = MsgSubscribeFailed
		}
		Error(c, status, msg)
		return
	}

	if res.AlreadySubscribed {
		SuccessWithMsg(c, MsgAlreadySubscribed, nil)
		return
	}
	SuccessWithMsg(c, MsgSubscribed, nil)
}

// Confirm 确认订阅，结果以重定向返回站点页面
// GET /api/newsletter/confirm?token=
func (h *NewsletterHandler) Confirm(c *gin.Context) {
	if _, err := h.newsletter.Confirm(c.Request.Context(), c.Query("token")); err != nil {
		h.redirectError(c, err)
		return
	}
	c.Redirect(http.StatusFound, h.site.BaseURL+h.site.ConfirmedPath)
}

// Unsubscribe 退订
// GET /api/newsletter/unsubscribe?token=
func (h *NewsletterHandler) Unsubscribe(c *gin.Context) {
	res, err := h.newsletter.Unsubscribe(c.Request.Context(), c.Query("token"))
	if err != nil {
		h.redirectError(c, err)
		return
	}

	target := h.site.BaseURL + h.site.UnsubscribedPath
	if res.AlreadyUnsubscribed {
		target += "?already=true"
	}
	c.Redirect(http.StatusFound, target)
}

// UnsubscribeRateLimited 退订接口超限时重定向到错误页
func (h *NewsletterHandler) UnsubscribeRateLimited(c *gin.Context) {
	h.redirectError(c, domain.ErrRateLimited)
}

// Send 群发新闻通讯（需要管理密钥）
// POST /api/newsletter/send
func (h *NewsletterHandler) Send(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	var broadcast service.BroadcastRequest
	if id := strings.TrimSpace(req.NewsletterID); id != "" {
		broadcast = service.StoredIssue{ID: id}
	} else {
		broadcast = service.InlineContent{
			Subject:     req.Subject,
			HTML:        req.Content,
			PreviewText: req.PreviewText,
		}
	}

	report, err := h.newsletter.Broadcast(c.Request.Context(), broadcast)
	if err != nil {
		status, msg := StatusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("Newsletter broadcast failed", zap.Error(err))
			if msg == MsgInternalError {
				msg = MsgBroadcastFailed
			}
		}
		// 群发中途中断时附带已完成的统计
		if report != nil {
			c.JSON(status, sendResponse{Code: status, Message: msg, Results: report})
			return
		}
		Error(c, status, msg)
		return
	}

	c.JSON(http.StatusOK, sendResponse{
		Code:    CodeSuccess,
		Message: broadcastMessage(report),
		Results: report,
	})
}

// Stats 订阅者统计（需要管理密钥）
// GET /api/newsletter/stats
func (h *NewsletterHandler) Stats(c *gin.Context) {
	stats, err := h.newsletter.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to load subscriber stats", zap.Error(err))
		InternalError(c, MsgStatsFailed)
		return
	}
	Success(c, stats)
}

func (h *NewsletterHandler) redirectError(c *gin.Context, err error) {
	reason := domain.KindOf(err)
	if reason == domain.ReasonServerError || reason == domain.ReasonDatabaseError || reason == domain.ReasonUpdateError {
		h.logger.Error("Newsletter link handling failed",
			zap.String("path", c.FullPath()),
			zap.String("reason", string(reason)),
			zap.Error(err))
	}
	target := h.site.BaseURL + h.site.ErrorPath + "?" + url.Values{"reason": {string(reason)}}.Encode()
	c.Redirect(http.StatusFound, target)
}

func broadcastMessage(r *domain.BroadcastReport) string {
	if r.Failed == 0 {
		return fmt.Sprintf("Newsletter sent to all %d subscribers", r.Sent)
	}
	return fmt.Sprintf("Newsletter sent to %d of %d subscribers (%d failed)", r.Sent, r.Total, r.Failed)
}
