package httptransport

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"zephortech/backend/internal/middleware"
)

// ContentInvalidator 清除内容列表缓存，*content.CachedSource 满足该接口
type ContentInvalidator interface {
	Invalidate(ctx context.Context)
}

// ContentHandler 内容缓存管理接口
type ContentHandler struct {
	cache  ContentInvalidator
	logger *zap.Logger
}

// NewContentHandler 创建内容缓存管理处理器
func NewContentHandler(cache ContentInvalidator, logger *zap.Logger) *ContentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContentHandler{cache: cache, logger: logger}
}

// Webhook CMS 发布内容后回调，清除本地与 Redis 中的列表缓存
// POST /api/content/webhook
func (h *ContentHandler) Webhook(c *gin.Context) {
	h.cache.Invalidate(c.Request.Context())
	h.logger.Info("Content cache invalidated", zap.String("ip", middleware.ClientID(c)))
	SuccessWithMsg(c, MsgContentInvalidated, nil)
}
