package middleware

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	// 表单类请求（订阅、联系）的限制
	SmallBodyLimit = 64 * 1024 // 64KB
	// 群发邮件正文的限制
	BroadcastBodyLimit = 2 * 1024 * 1024 // 2MB
)

// DynamicBodySizeLimit 根据路由动态设置请求体大小限制
//
// 按 c.FullPath() 匹配路由模板，未登记的路由使用 defaultLimit。
func DynamicBodySizeLimit(limits map[string]int64, defaultLimit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, exists := limits[c.FullPath()]
		if !exists {
			limit = defaultLimit
		}

		if c.Request.ContentLength > limit {
			abortTooLarge(c, limit)
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Header("X-Max-Body-Size", strconv.FormatInt(limit, 10))

		c.Next()
	}
}

func abortTooLarge(c *gin.Context, limit int64) {
	c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
		"error":   "Request body too large",
		"message": fmt.Sprintf("Request body exceeds maximum size of %d bytes", limit),
		"limit":   limit,
		"size":    c.Request.ContentLength,
	})
}
