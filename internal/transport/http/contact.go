package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"zephortech/backend/internal/domain"
	"zephortech/backend/internal/service"
)

// ContactHandler 联系表单接口
type ContactHandler struct {
	contact *service.ContactService
	logger  *zap.Logger
}

// NewContactHandler 创建联系表单处理器
func NewContactHandler(contact *service.ContactService, logger *zap.Logger) *ContactHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContactHandler{contact: contact, logger: logger}
}

type contactResponse struct {
	ID string `json:"id"`
}

// Submit 提交联系表单
// POST /api/contact
func (h *ContactHandler) Submit(c *gin.Context) {
	var req domain.ContactInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	submission, err := h.contact.Submit(c.Request.Context(), req)
	if err != nil {
		status, msg := StatusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("Contact submission failed", zap.Error(err))
			msg = MsgContactFailed
		}
		Error(c, status, msg)
		return
	}

	SuccessWithMsg(c, MsgContactReceived, contactResponse{ID: submission.ID})
}
