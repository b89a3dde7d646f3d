package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"zephortech/backend/internal/service"
)

// SearchHandler 内容搜索接口
type SearchHandler struct {
	search *service.SearchService
	logger *zap.Logger
}

// NewSearchHandler 创建搜索接口处理器
func NewSearchHandler(search *service.SearchService, logger *zap.Logger) *SearchHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchHandler{search: search, logger: logger}
}

// Search 搜索服务、案例与博客
// GET /api/search?q=
func (h *SearchHandler) Search(c *gin.Context) {
	results, err := h.search.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.logger.Error("Search failed", zap.Error(err))
		InternalError(c, MsgSearchFailed)
		return
	}
	SuccessResults(c, "", results)
}
