package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"zephortech/backend/internal/cache"
	"zephortech/backend/internal/config"
	"zephortech/backend/internal/content"
	"zephortech/backend/internal/health"
	"zephortech/backend/internal/logger"
	"zephortech/backend/internal/mailer"
	"zephortech/backend/internal/monitoring"
	"zephortech/backend/internal/ratelimit"
	"zephortech/backend/internal/service"
	"zephortech/backend/internal/storage"
	"zephortech/backend/internal/storage/memory"
	"zephortech/backend/internal/storage/postgres"
	redisstore "zephortech/backend/internal/storage/redis"
	"zephortech/backend/internal/token"
	httptransport "zephortech/backend/internal/transport/http"
)

const version = "1.0.0"

// main 启动 ZephorTech 站点后端 HTTP 服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     cfg.Log.File,
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
		Service:     "zephortech-api",
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting zephortech server",
		zap.String("version", version),
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	store, err := initializeStorage(cfg, log)
	if err != nil {
		log.Fatal("failed to initialize storage", zap.Error(err))
	}

	// Redis 为可选依赖，限流后端为 redis 时必须可用
	var redisClient *redisstore.Client
	if cfg.Redis.Enabled {
		redisClient, err = redisstore.New(cfg.Redis, log)
		if err != nil {
			if cfg.RateLimit.Backend == "redis" {
				log.Fatal("redis is required by the rate limiter", zap.Error(err))
			}
			log.Warn("redis unavailable, continuing without shared cache", zap.Error(err))
			redisClient = nil
		}
	}

	var limiter ratelimit.Limiter
	var memoryLimiter *ratelimit.MemoryLimiter
	if cfg.RateLimit.Backend == "redis" && redisClient != nil {
		limiter = ratelimit.NewRedisLimiter(redisClient.Client(), log)
		log.Info("using redis rate limiter")
	} else {
		memoryLimiter = ratelimit.NewMemoryLimiter()
		limiter = memoryLimiter
		log.Info("using in-memory rate limiter")
	}

	sender, err := mailer.New(mailer.Config{
		Provider:          cfg.Mail.Provider,
		From:              cfg.Mail.From,
		ReplyTo:           cfg.Mail.ReplyTo,
		ResendAPIKey:      cfg.Mail.ResendAPIKey,
		ResendEndpoint:    cfg.Mail.ResendEndpoint,
		SMTPHost:          cfg.Mail.SMTPHost,
		SMTPPort:          cfg.Mail.SMTPPort,
		SMTPUser:          cfg.Mail.SMTPUser,
		SMTPPass:          cfg.Mail.SMTPPass,
		RequestsPerSecond: cfg.Mail.RequestsPerSecond,
		Timeout:           cfg.Mail.Timeout,
	}, log)
	if err != nil {
		log.Fatal("failed to initialize mailer", zap.Error(err))
	}
	log.Info("mailer initialized", zap.String("provider", cfg.Mail.Provider))

	source, err := initializeContent(cfg, redisClient, log)
	if err != nil {
		log.Fatal("failed to initialize content source", zap.Error(err))
	}
	localCache := source.local

	metrics := monitoring.NewMetrics(nil)

	healthChecker := health.NewHealthChecker(store, log)
	if redisClient != nil {
		healthChecker.AddReadinessCheck("redis", redisClient)
	}
	healthChecker.AddReadinessCheck("content", health.ContextPinger(3*time.Second, func(ctx context.Context) error {
		_, err := source.ListServices(ctx)
		return err
	}))

	newsletterService := service.NewNewsletterService(
		store,
		store,
		sender,
		token.NewRandomHex(),
		service.NewsletterConfig{
			AdminKey:          cfg.Newsletter.AdminKey,
			AdminKeyHash:      cfg.Newsletter.AdminKeyHash,
			BatchSize:         cfg.Newsletter.BatchSize,
			BatchDelay:        cfg.Newsletter.BatchDelay,
			MaxReportedErrors: cfg.Newsletter.MaxReportedErrors,
			Source:            cfg.Newsletter.Source,
			SiteURL:           cfg.Site.BaseURL,
			APIBaseURL:        cfg.Site.APIBaseURL,
		},
		log,
		service.WithIssueSource(source),
		service.WithRecorder(metrics),
	)
	searchService := service.NewSearchService(source, log, service.WithSearchRecorder(metrics))
	contactService := service.NewContactService(sender, cfg.Contact.Recipient, log)

	if !cfg.Newsletter.HasAdminKey() {
		log.Warn("newsletter admin key is not configured, broadcast endpoints will reject requests")
	}

	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:            cfg,
		NewsletterService: newsletterService,
		SearchService:     searchService,
		ContactService:    contactService,
		ContentCache:      source,
		Limiter:           limiter,
		Metrics:           metrics,
		Health:            healthChecker,
		Logger:            log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		// 群发请求同步等待所有批次完成
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 内存限流器的过期窗口清理
	if memoryLimiter != nil {
		group.Go(func() error {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()

			for {
				select {
				case <-groupCtx.Done():
					return nil
				case <-ticker.C:
					if n := memoryLimiter.Sweep(); n > 0 {
						log.Debug("rate limit windows swept", zap.Int("count", n))
					}
				}
			}
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		localCache.Close()
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				log.Warn("redis close warning", zap.Error(err))
			}
		}
		if err := store.Close(); err != nil {
			log.Warn("storage close warning", zap.Error(err))
		}

		log.Info("server stopped")
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}

// initializeStorage 根据配置选择数据库或内存存储
func initializeStorage(cfg *config.Config, log *zap.Logger) (storage.Store, error) {
	if cfg.Database.Type == "" || cfg.Database.DSN == "" {
		log.Info("using memory storage (development mode)")
		return memory.NewStore(), nil
	}

	store, err := postgres.Open(cfg.Database.Type, cfg.Database.DSN, postgres.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		AutoMigrate:     cfg.Database.AutoMigrate,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Database.Type, err)
	}

	log.Info("database storage initialized successfully",
		zap.String("database_type", cfg.Database.Type),
	)
	return store, nil
}

// cachedContent 带缓存的内容源，同时保留本地缓存以便关闭时释放
type cachedContent struct {
	*content.CachedSource
	local *cache.LocalCache
}

// initializeContent 创建内容源并包装两级缓存
func initializeContent(cfg *config.Config, redisClient *redisstore.Client, log *zap.Logger) (*cachedContent, error) {
	var src content.Source
	switch cfg.Content.Provider {
	case "strapi":
		src = content.NewStrapiSource(cfg.Content.StrapiURL, cfg.Content.StrapiToken, 10*time.Second)
		log.Info("using strapi content source", zap.String("url", cfg.Content.StrapiURL))
	default:
		fs, err := content.NewFileSource(cfg.Content.FilePath)
		if err != nil {
			return nil, err
		}
		src = fs
		log.Info("using file content source", zap.String("path", cfg.Content.FilePath))
	}

	local := cache.NewLocalCache(cfg.Content.CacheTTL, time.Minute)

	var remote content.RemoteCache
	if redisClient != nil {
		remote = redisClient
	}

	return &cachedContent{
		CachedSource: content.NewCachedSource(src, local, remote, cfg.Content.CacheTTL, log),
		local:        local,
	}, nil
}
