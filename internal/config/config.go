package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// SiteConfig 定义前端站点地址，确认/退订后的重定向目标基于此构建
type SiteConfig struct {
	BaseURL          string // 站点根地址，例如 "https://zephortech.com"
	ConfirmedPath    string // 订阅确认成功页
	UnsubscribedPath string // 退订成功页
	ErrorPath        string // 订阅流程错误页（携带 reason 参数）
	APIBaseURL       string // 邮件中确认/退订链接使用的 API 根地址，默认 BaseURL + "/api"
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	File        string // 日志文件路径，留空只输出到控制台
}

// DatabaseConfig 定义数据库连接配置（支持 MySQL 和 PostgreSQL）
type DatabaseConfig struct {
	Type            string        // 数据库类型: "mysql"、"postgres"，留空使用内存存储
	DSN             string        // 数据库连接字符串
	MaxOpenConns    int           // 最大打开连接数，默认 25
	MaxIdleConns    int           // 最大空闲连接数，默认 5
	ConnMaxLifetime time.Duration // 连接最大生命周期，默认 5 分钟
	AutoMigrate     bool          // 启动时是否执行 GORM AutoMigrate
}

// RedisConfig 定义 Redis 配置（分布式限流与内容二级缓存）
type RedisConfig struct {
	Enabled  bool
	Address  string // Redis 服务地址，格式 "host:port"，默认 "localhost:6379"
	Password string // Redis 认证密码，留空表示无密码
	DB       int    // Redis 数据库编号，默认 0
}

// MailConfig 定义事务邮件发送配置
type MailConfig struct {
	Provider          string // "resend"、"smtp" 或 "none"
	From              string
	ReplyTo           string
	ResendAPIKey      string
	ResendEndpoint    string
	SMTPHost          string
	SMTPPort          int
	SMTPUser          string
	SMTPPass          string
	RequestsPerSecond float64       // 出站请求限速，0 表示不限
	Timeout           time.Duration // 单次发送超时
}

// NewsletterConfig 定义订阅与群发配置
type NewsletterConfig struct {
	AdminKey          string        // 群发接口的静态管理密钥
	AdminKeyHash      string        // 管理密钥的 bcrypt 哈希（与 AdminKey 二选一）
	BatchSize         int           // 每批收件人数量，默认 50
	BatchDelay        time.Duration // 批次间冷却时间，默认 1 秒
	MaxReportedErrors int           // 响应中保留的错误条数，默认 10
	Source            string        // 订阅来源标记
}

// Rule 描述单个限流桶
type Rule struct {
	Limit  int
	Window time.Duration
}

// RateLimitConfig 定义公共接口的限流配置
type RateLimitConfig struct {
	Backend     string // "memory" 或 "redis"
	Newsletter  Rule
	Unsubscribe Rule
	Contact     Rule
}

// ContentConfig 定义内容源（服务、案例、博客）配置
type ContentConfig struct {
	Provider    string // "strapi" 或 "file"
	StrapiURL   string
	StrapiToken string
	FilePath    string
	CacheTTL    time.Duration
}

// ContactConfig 定义联系表单配置
type ContactConfig struct {
	Recipient string // 联系表单通知收件人
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server     ServerConfig
	Site       SiteConfig
	CORS       CORSConfig
	Log        LogConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Mail       MailConfig
	Newsletter NewsletterConfig
	RateLimit  RateLimitConfig
	Content    ContentConfig
	Contact    ContactConfig
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: ZEPHOR_
// 例如: ZEPHOR_SERVER_PORT, ZEPHOR_NEWSLETTER_ADMIN_KEY
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetEnvPrefix("zephor")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	port := v.GetInt("server.port")
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid server.port: %d", port)
	}

	dbType := strings.ToLower(strings.TrimSpace(v.GetString("database.type")))
	switch dbType {
	case "", "mysql", "postgres":
	case "postgresql":
		dbType = "postgres"
	default:
		return nil, fmt.Errorf("unsupported database.type: %s (supported: mysql, postgres)", dbType)
	}

	connMaxLifetime, err := parseDuration(v, "database.conn_max_lifetime")
	if err != nil {
		return nil, err
	}
	batchDelay, err := parseDuration(v, "newsletter.batch_delay")
	if err != nil {
		return nil, err
	}
	mailTimeout, err := parseDuration(v, "mail.timeout")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parseDuration(v, "content.cache_ttl")
	if err != nil {
		return nil, err
	}

	newsletterRule, err := parseRule(v, "ratelimit.newsletter")
	if err != nil {
		return nil, err
	}
	unsubscribeRule, err := parseRule(v, "ratelimit.unsubscribe")
	if err != nil {
		return nil, err
	}
	contactRule, err := parseRule(v, "ratelimit.contact")
	if err != nil {
		return nil, err
	}

	batchSize := v.GetInt("newsletter.batch_size")
	if batchSize <= 0 {
		return nil, fmt.Errorf("newsletter.batch_size must be positive")
	}

	maxErrors := v.GetInt("newsletter.max_reported_errors")
	if maxErrors < 0 {
		maxErrors = 10
	}

	corsOrigins := parseList(v.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	provider := strings.ToLower(v.GetString("mail.provider"))
	if provider != "resend" && provider != "smtp" && provider != "none" {
		return nil, fmt.Errorf("unsupported mail.provider: %s (supported: resend, smtp, none)", provider)
	}

	backend := strings.ToLower(v.GetString("ratelimit.backend"))
	if backend != "memory" && backend != "redis" {
		return nil, fmt.Errorf("unsupported ratelimit.backend: %s", backend)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("server.host"),
			Port: port,
		},
		Site: SiteConfig{
			BaseURL:          strings.TrimRight(v.GetString("site.base_url"), "/"),
			ConfirmedPath:    v.GetString("site.confirmed_path"),
			UnsubscribedPath: v.GetString("site.unsubscribed_path"),
			ErrorPath:        v.GetString("site.error_path"),
			APIBaseURL:       strings.TrimRight(v.GetString("site.api_base_url"), "/"),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
			File:        v.GetString("log.file"),
		},
		Database: DatabaseConfig{
			Type:            dbType,
			DSN:             v.GetString("database.dsn"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: connMaxLifetime,
			AutoMigrate:     v.GetBool("database.auto_migrate"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Address:  v.GetString("redis.address"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Mail: MailConfig{
			Provider:          provider,
			From:              v.GetString("mail.from"),
			ReplyTo:           v.GetString("mail.reply_to"),
			ResendAPIKey:      v.GetString("mail.resend_api_key"),
			ResendEndpoint:    v.GetString("mail.resend_endpoint"),
			SMTPHost:          v.GetString("mail.smtp_host"),
			SMTPPort:          v.GetInt("mail.smtp_port"),
			SMTPUser:          v.GetString("mail.smtp_user"),
			SMTPPass:          v.GetString("mail.smtp_pass"),
			RequestsPerSecond: v.GetFloat64("mail.requests_per_second"),
			Timeout:           mailTimeout,
		},
		Newsletter: NewsletterConfig{
			AdminKey:          v.GetString("newsletter.admin_key"),
			AdminKeyHash:      v.GetString("newsletter.admin_key_hash"),
			BatchSize:         batchSize,
			BatchDelay:        batchDelay,
			MaxReportedErrors: maxErrors,
			Source:            v.GetString("newsletter.source"),
		},
		RateLimit: RateLimitConfig{
			Backend:     backend,
			Newsletter:  newsletterRule,
			Unsubscribe: unsubscribeRule,
			Contact:     contactRule,
		},
		Content: ContentConfig{
			Provider:    strings.ToLower(v.GetString("content.provider")),
			StrapiURL:   strings.TrimRight(v.GetString("content.strapi_url"), "/"),
			StrapiToken: v.GetString("content.strapi_token"),
			FilePath:    v.GetString("content.file_path"),
			CacheTTL:    cacheTTL,
		},
		Contact: ContactConfig{
			Recipient: v.GetString("contact.recipient"),
		},
	}

	if cfg.Content.Provider != "strapi" && cfg.Content.Provider != "file" {
		return nil, fmt.Errorf("unsupported content.provider: %s (supported: strapi, file)", cfg.Content.Provider)
	}
	if cfg.RateLimit.Backend == "redis" && !cfg.Redis.Enabled {
		return nil, fmt.Errorf("ratelimit.backend=redis requires redis.enabled=true")
	}

	if cfg.Site.APIBaseURL == "" {
		cfg.Site.APIBaseURL = cfg.Site.BaseURL + "/api"
	}

	return cfg, nil
}

// HasAdminKey 判断是否配置了群发管理密钥
func (c NewsletterConfig) HasAdminKey() bool {
	return c.AdminKey != "" || c.AdminKeyHash != ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("site.base_url", "http://localhost:3000")
	v.SetDefault("site.confirmed_path", "/newsletter/confirmed")
	v.SetDefault("site.unsubscribed_path", "/newsletter/unsubscribed")
	v.SetDefault("site.error_path", "/newsletter/error")
	v.SetDefault("site.api_base_url", "")
	v.SetDefault("cors.allowed_origins", "*")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.file", "")
	v.SetDefault("database.type", "")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("mail.provider", "none")
	v.SetDefault("mail.from", "ZephorTech <newsletter@zephortech.com>")
	v.SetDefault("mail.reply_to", "")
	v.SetDefault("mail.resend_api_key", "")
	v.SetDefault("mail.resend_endpoint", "https://api.resend.com/emails")
	v.SetDefault("mail.smtp_host", "")
	v.SetDefault("mail.smtp_port", 587)
	v.SetDefault("mail.smtp_user", "")
	v.SetDefault("mail.smtp_pass", "")
	v.SetDefault("mail.requests_per_second", 0)
	v.SetDefault("mail.timeout", "15s")
	v.SetDefault("newsletter.admin_key", "")
	v.SetDefault("newsletter.admin_key_hash", "")
	v.SetDefault("newsletter.batch_size", 50)
	v.SetDefault("newsletter.batch_delay", "1s")
	v.SetDefault("newsletter.max_reported_errors", 10)
	v.SetDefault("newsletter.source", "web-newsletter-form")
	v.SetDefault("ratelimit.backend", "memory")
	v.SetDefault("ratelimit.newsletter.limit", 10)
	v.SetDefault("ratelimit.newsletter.window", "60s")
	v.SetDefault("ratelimit.unsubscribe.limit", 10)
	v.SetDefault("ratelimit.unsubscribe.window", "60s")
	v.SetDefault("ratelimit.contact.limit", 5)
	v.SetDefault("ratelimit.contact.window", "60s")
	v.SetDefault("content.provider", "file")
	v.SetDefault("content.strapi_url", "http://localhost:1337")
	v.SetDefault("content.strapi_token", "")
	v.SetDefault("content.file_path", "./data/content.yaml")
	v.SetDefault("content.cache_ttl", "5m")
	v.SetDefault("contact.recipient", "hello@zephortech.com")
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parseRule(v *viper.Viper, prefix string) (Rule, error) {
	window, err := parseDuration(v, prefix+".window")
	if err != nil {
		return Rule{}, err
	}
	limit := v.GetInt(prefix + ".limit")
	if limit <= 0 {
		return Rule{}, fmt.Errorf("%s.limit must be positive", prefix)
	}
	return Rule{Limit: limit, Window: window}, nil
}

// parseList 将逗号分隔的字符串解析为字符串切片
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 注意：
//   - 如果文件不存在，静默失败（.env 是可选的）
//   - 已存在的环境变量优先级更高，不会被覆盖
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
