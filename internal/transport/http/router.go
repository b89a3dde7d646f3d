package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"zephortech/backend/internal/config"
	"zephortech/backend/internal/health"
	"zephortech/backend/internal/middleware"
	"zephortech/backend/internal/monitoring"
	"zephortech/backend/internal/ratelimit"
	"zephortech/backend/internal/service"
)

// 限流桶名称
const (
	BucketNewsletter  = "newsletter"
	BucketUnsubscribe = "newsletter-unsubscribe"
	BucketContact     = "contact"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config            *config.Config
	NewsletterService *service.NewsletterService
	SearchService     *service.SearchService
	ContactService    *service.ContactService
	ContentCache      ContentInvalidator // 可选，配置后开放缓存清除回调
	Limiter           ratelimit.Limiter
	Metrics           *monitoring.Metrics   // 可选
	Health            *health.HealthChecker // 可选
	Logger            *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := deps.Config

	router := gin.New()

	// 使用自定义中间件替代默认中间件
	var blocks middleware.BlockRecorder
	if deps.Metrics != nil {
		mm := middleware.NewMonitoringMiddleware(deps.Metrics, logger)
		router.Use(mm.PanicRecovery())
		router.Use(mm.HTTPMetrics())
		blocks = deps.Metrics
	} else {
		router.Use(middleware.RecoveryHandler(logger))
	}
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.SecurityHeaders())

	// 群发正文允许更大的请求体
	router.Use(middleware.DynamicBodySizeLimit(map[string]int64{
		"/api/newsletter/send": middleware.BroadcastBodyLimit,
	}, middleware.SmallBodyLimit))

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "X-RateLimit-Limit", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	// 健康检查与指标
	router.GET("/health", func(c *gin.Context) {
		if deps.Health == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		results := deps.Health.CheckHealth()
		if !health.Healthy(results) {
			c.JSON(http.StatusServiceUnavailable, results)
			return
		}
		c.JSON(http.StatusOK, results)
	})
	if deps.Health != nil {
		router.GET("/health/live", gin.WrapF(deps.Health.LiveEndpoint))
		router.GET("/health/ready", gin.WrapF(deps.Health.ReadyEndpoint))
	}
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	limiter := middleware.NewRateLimiter(deps.Limiter, blocks, logger)
	newsletterRule := rule(BucketNewsletter, cfg.RateLimit.Newsletter)
	unsubscribeRule := rule(BucketUnsubscribe, cfg.RateLimit.Unsubscribe)
	contactRule := rule(BucketContact, cfg.RateLimit.Contact)

	api := router.Group("/api")
	api.Use(middleware.ValidateContentType("application/json"))
	{
		// 管理密钥由 NewsletterService 校验
		var adminAuth *middleware.AdminKeyAuth
		if deps.NewsletterService != nil {
			adminAuth = middleware.NewAdminKeyAuth(deps.NewsletterService, logger)
		}

		// ========== Newsletter Routes ==========
		if deps.NewsletterService != nil {
			h := NewNewsletterHandler(deps.NewsletterService, cfg.Site, logger)

			nl := api.Group("/newsletter")
			nl.POST("/subscribe", limiter.Limit(newsletterRule), h.Subscribe)
			nl.GET("/confirm", h.Confirm)
			nl.GET("/unsubscribe", limiter.LimitWith(unsubscribeRule, h.UnsubscribeRateLimited), h.Unsubscribe)
			nl.POST("/send", adminAuth.RequireAdminKey(), h.Send)
			nl.GET("/stats", adminAuth.RequireAdminKey(), h.Stats)
		}

		// ========== Search Routes ==========
		if deps.SearchService != nil {
			api.GET("/search", NewSearchHandler(deps.SearchService, logger).Search)
		}

		// ========== Content Routes ==========
		if deps.ContentCache != nil && adminAuth != nil {
			h := NewContentHandler(deps.ContentCache, logger)
			api.POST("/content/webhook", adminAuth.RequireAdminKey(), h.Webhook)
		}

		// ========== Contact Routes ==========
		if deps.ContactService != nil {
			api.POST("/contact", limiter.Limit(contactRule), NewContactHandler(deps.ContactService, logger).Submit)
		}
	}

	return router
}

func rule(bucket string, r config.Rule) ratelimit.Rule {
	return ratelimit.Rule{Bucket: bucket, Limit: r.Limit, Window: r.Window}
}
