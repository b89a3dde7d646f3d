package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"zephortech/backend/internal/domain"
)

// KeyAuthorizer 校验静态管理密钥
type KeyAuthorizer interface {
	Authorize(key string) error
}

// AdminKeyAuth 管理密钥中间件
type AdminKeyAuth struct {
	authorizer KeyAuthorizer
	logger     *zap.Logger
}

// NewAdminKeyAuth 创建管理密钥中间件
func NewAdminKeyAuth(authorizer KeyAuthorizer, logger *zap.Logger) *AdminKeyAuth {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminKeyAuth{
		authorizer: authorizer,
		logger:     logger,
	}
}

// RequireAdminKey 要求 Authorization: Bearer <admin key>
//
// 服务端未配置密钥时返回 500，密钥缺失或错误返回 401，均不会进入后续处理。
func (a *AdminKeyAuth) RequireAdminKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := a.authorizer.Authorize(BearerToken(c))
		switch {
		case err == nil:
			c.Next()
		case errors.Is(err, domain.ErrNotConfigured):
			a.logger.Error("Admin key is not configured", zap.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "newsletter admin key is not configured",
			})
		default:
			a.logger.Warn("Rejected admin request",
				zap.String("path", c.Request.URL.Path),
				zap.String("ip", ClientID(c)))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "unauthorized",
			})
		}
	}
}

// BearerToken 提取 Authorization 头中的 Bearer 令牌
func BearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	scheme, value, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(value)
}
