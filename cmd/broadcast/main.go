package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"zephortech/backend/internal/config"
	"zephortech/backend/internal/content"
	"zephortech/backend/internal/logger"
	"zephortech/backend/internal/mailer"
	"zephortech/backend/internal/service"
	"zephortech/backend/internal/storage/postgres"
	"zephortech/backend/internal/token"
)

// main 从命令行向所有已确认订阅者群发期刊，走与 HTTP 接口相同的批次与报告逻辑。
func main() {
	subject := flag.String("subject", "", "邮件主题（与 -html-file 搭配使用）")
	htmlFile := flag.String("html-file", "", "HTML 正文文件路径")
	preview := flag.String("preview", "", "预览文本")
	issueID := flag.String("id", "", "已保存期刊的 ID（与 -subject/-html-file 二选一；配合 -save 时作为保存的 ID）")
	save := flag.Bool("save", false, "先将 -subject/-html-file 保存为期刊，再按期刊群发并记录发送时间")
	key := flag.String("key", os.Getenv("ZEPHOR_BROADCAST_KEY"), "群发管理密钥")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("错误: 加载配置失败: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		Service:     "zephortech-broadcast",
	})
	if err != nil {
		fmt.Printf("错误: 初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	saveID := ""
	if *save {
		saveID, *issueID = *issueID, ""
	}
	req, err := buildRequest(*subject, *htmlFile, *preview, *issueID)
	if err != nil {
		fmt.Printf("错误: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}

	// 内存存储没有持久化的订阅者，命令行群发只支持数据库
	if cfg.Database.Type == "" || cfg.Database.DSN == "" {
		fmt.Println("错误: 需要配置 ZEPHOR_DATABASE_TYPE 与 ZEPHOR_DATABASE_DSN")
		os.Exit(1)
	}
	store, err := postgres.Open(cfg.Database.Type, cfg.Database.DSN, postgres.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		log.Fatal("failed to open storage", zap.Error(err))
	}
	defer store.Close()

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

	opts := []service.NewsletterOption{}
	if cfg.Content.Provider == "strapi" {
		opts = append(opts, service.WithIssueSource(
			content.NewStrapiSource(cfg.Content.StrapiURL, cfg.Content.StrapiToken, 10*time.Second),
		))
	}

	svc := service.NewNewsletterService(store, store, sender, token.NewRandomHex(), service.NewsletterConfig{
		AdminKey:          cfg.Newsletter.AdminKey,
		AdminKeyHash:      cfg.Newsletter.AdminKeyHash,
		BatchSize:         cfg.Newsletter.BatchSize,
		BatchDelay:        cfg.Newsletter.BatchDelay,
		MaxReportedErrors: cfg.Newsletter.MaxReportedErrors,
		Source:            cfg.Newsletter.Source,
		SiteURL:           cfg.Site.BaseURL,
		APIBaseURL:        cfg.Site.APIBaseURL,
	}, log, opts...)

	if err := svc.Authorize(*key); err != nil {
		fmt.Printf("错误: 管理密钥校验失败: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *save {
		// -save 时 buildRequest 只会返回 InlineContent
		issue, err := svc.SaveIssue(ctx, saveID, req.(service.InlineContent))
		if err != nil {
			log.Fatal("failed to save newsletter issue", zap.Error(err))
		}
		fmt.Printf("已保存期刊: %s\n", issue.ID)
		req = service.StoredIssue{ID: issue.ID}
	}

	report, err := svc.Broadcast(ctx, req)
	if report != nil {
		out, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(out))
	}
	if err != nil {
		log.Error("broadcast failed", zap.Error(err))
		os.Exit(1)
	}
	if report.Failed > 0 {
		os.Exit(2)
	}
}

// buildRequest 根据参数组合出群发请求
func buildRequest(subject, htmlFile, preview, issueID string) (service.BroadcastRequest, error) {
	if issueID != "" {
		if subject != "" || htmlFile != "" {
			return nil, fmt.Errorf("-id 不能与 -subject/-html-file 同时使用")
		}
		return service.StoredIssue{ID: issueID}, nil
	}
	if subject == "" || htmlFile == "" {
		return nil, fmt.Errorf("需要 -id，或同时提供 -subject 与 -html-file")
	}
	body, err := os.ReadFile(htmlFile)
	if err != nil {
		return nil, fmt.Errorf("读取正文失败: %w", err)
	}
	return service.InlineContent{Subject: subject, HTML: string(body), PreviewText: preview}, nil
}
