package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zephortech/backend/internal/config"
	"zephortech/backend/internal/content"
	"zephortech/backend/internal/domain"
	"zephortech/backend/internal/health"
	"zephortech/backend/internal/mailer"
	"zephortech/backend/internal/monitoring"
	"zephortech/backend/internal/ratelimit"
	"zephortech/backend/internal/service"
	"zephortech/backend/internal/storage/memory"
	"zephortech/backend/internal/token"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const contentYAML = `
services:
  - id: "svc-1"
    slug: cloud-engineering
    title: Cloud Engineering
    shortDescription: Infrastructure for fintech teams
caseStudies:
  - id: "case-1"
    slug: fintech-platform-modernization
    title: FinTech Platform Modernization
    summary: Rebuilt a core banking platform
blogPosts:
  - id: "blog-1"
    slug: regulated
    title: Lessons from regulated industries
    excerpt: Shipping fintech software safely
`

// recordingSender 记录发出的邮件，可按收件人注入失败
type recordingSender struct {
	mu     sync.Mutex
	sent   []mailer.Message
	failTo map[string]bool
}

func (s *recordingSender) Send(_ context.Context, msg mailer.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failTo[msg.To[0]] {
		return errors.New("rejected by provider")
	}
	s.sent = append(s.sent, msg)
	return nil
}

// countingInvalidator 记录缓存清除次数
type countingInvalidator struct {
	calls atomic.Int64
}

func (c *countingInvalidator) Invalidate(context.Context) { c.calls.Add(1) }

type testEnv struct {
	router *gin.Engine
	store  *memory.Store
	sender *recordingSender
	cache  *countingInvalidator
	cfg    *config.Config
}

func testAppConfig() *config.Config {
	window := time.Minute
	return &config.Config{
		Site: config.SiteConfig{
			BaseURL:          "https://zephortech.com",
			ConfirmedPath:    "/newsletter/confirmed",
			UnsubscribedPath: "/newsletter/unsubscribed",
			ErrorPath:        "/newsletter/error",
			APIBaseURL:       "https://zephortech.com/api",
		},
		CORS: config.CORSConfig{AllowedOrigins: []string{"*"}},
		RateLimit: config.RateLimitConfig{
			Newsletter:  config.Rule{Limit: 3, Window: window},
			Unsubscribe: config.Rule{Limit: 3, Window: window},
			Contact:     config.Rule{Limit: 2, Window: window},
		},
	}
}

func newTestEnv(t *testing.T, adminKey string) *testEnv {
	t.Helper()
	cfg := testAppConfig()
	store := memory.NewStore()
	sender := &recordingSender{failTo: map[string]bool{}}

	var n int
	var mu sync.Mutex
	tokens := token.GeneratorFunc(func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return "tok-" + string(rune('a'+n-1)), nil
	})

	newsletter := service.NewNewsletterService(store, store, sender, tokens, service.NewsletterConfig{
		AdminKey:   adminKey,
		BatchSize:  50,
		APIBaseURL: cfg.Site.APIBaseURL,
	}, nil)

	src, err := content.NewFileSourceFromBytes([]byte(contentYAML))
	require.NoError(t, err)

	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	cache := &countingInvalidator{}
	router := NewRouter(RouterDependencies{
		Config:            cfg,
		NewsletterService: newsletter,
		SearchService:     service.NewSearchService(src, nil, service.WithSearchRecorder(metrics)),
		ContactService:    service.NewContactService(sender, "hello@zephortech.com", nil),
		ContentCache:      cache,
		Limiter:           ratelimit.NewMemoryLimiter(),
		Metrics:           metrics,
		Health:            health.NewHealthChecker(store, nil),
	})

	return &testEnv{router: router, store: store, sender: sender, cache: cache, cfg: cfg}
}

func (e *testEnv) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestNewsletterRoutes(t *testing.T) {
	t.Run("订阅确认退订重定向", func(t *testing.T) {
		env := newTestEnv(t, "secret")

		w := env.do(http.MethodPost, "/api/newsletter/subscribe", `{"email":"Reader@Example.com"}`, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, MsgSubscribed, decode(t, w)["message"])

		w = env.do(http.MethodGet, "/api/newsletter/confirm?token=tok-a", "", nil)
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "https://zephortech.com/newsletter/confirmed", w.Header().Get("Location"))

		w = env.do(http.MethodGet, "/api/newsletter/confirm?token=tok-a", "", nil)
		assert.Equal(t, "https://zephortech.com/newsletter/error?reason=invalid-token", w.Header().Get("Location"))

		w = env.do(http.MethodPost, "/api/newsletter/subscribe", `{"email":"reader@example.com"}`, nil)
		assert.Equal(t, MsgAlreadySubscribed, decode(t, w)["message"])

		w = env.do(http.MethodGet, "/api/newsletter/unsubscribe?token=tok-b", "", nil)
		assert.Equal(t, "https://zephortech.com/newsletter/unsubscribed", w.Header().Get("Location"))

		w = env.do(http.MethodGet, "/api/newsletter/unsubscribe?token=tok-b", "", nil)
		assert.Equal(t, "https://zephortech.com/newsletter/error?reason=invalid-token", w.Header().Get("Location"))
	})

	t.Run("缺少令牌", func(t *testing.T) {
		env := newTestEnv(t, "secret")

		w := env.do(http.MethodGet, "/api/newsletter/confirm", "", nil)
		assert.Equal(t, "https://zephortech.com/newsletter/error?reason=missing-token", w.Header().Get("Location"))
	})

	t.Run("已退订时带 already 参数", func(t *testing.T) {
		env := newTestEnv(t, "secret")
		require.NoError(t, env.store.Upsert(context.Background(), &domain.Subscriber{
			Email:            "gone@example.com",
			Status:           domain.StatusUnsubscribed,
			UnsubscribeToken: domain.StringPtr("stale"),
		}))

		w := env.do(http.MethodGet, "/api/newsletter/unsubscribe?token=stale", "", nil)
		assert.Equal(t, "https://zephortech.com/newsletter/unsubscribed?already=true", w.Header().Get("Location"))
	})

	t.Run("无效邮箱返回 400", func(t *testing.T) {
		env := newTestEnv(t, "secret")

		w := env.do(http.MethodPost, "/api/newsletter/subscribe", `{"email":"nope"}`, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, MsgInvalidEmail, decode(t, w)["message"])

		w = env.do(http.MethodPost, "/api/newsletter/subscribe", `not json`, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("订阅限流", func(t *testing.T) {
		env := newTestEnv(t, "secret")
		headers := map[string]string{"X-Forwarded-For": "203.0.113.9"}

		for i := 0; i < 3; i++ {
			w := env.do(http.MethodPost, "/api/newsletter/subscribe", `{"email":"a@b.com"}`, headers)
			assert.Equal(t, http.StatusOK, w.Code)
		}
		w := env.do(http.MethodPost, "/api/newsletter/subscribe", `{"email":"a@b.com"}`, headers)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
	})

	t.Run("退订限流重定向", func(t *testing.T) {
		env := newTestEnv(t, "secret")
		headers := map[string]string{"X-Real-IP": "198.51.100.1"}

		for i := 0; i < 3; i++ {
			env.do(http.MethodGet, "/api/newsletter/unsubscribe?token=x", "", headers)
		}
		w := env.do(http.MethodGet, "/api/newsletter/unsubscribe?token=x", "", headers)
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "https://zephortech.com/newsletter/error?reason=rate-limit", w.Header().Get("Location"))
	})
}

func TestSendRoute(t *testing.T) {
	auth := map[string]string{"Authorization": "Bearer secret"}

	seed := func(t *testing.T, env *testEnv, emails ...string) {
		for _, email := range emails {
			require.NoError(t, env.store.Upsert(context.Background(), &domain.Subscriber{
				Email:            email,
				Status:           domain.StatusConfirmed,
				UnsubscribeToken: domain.StringPtr("u-" + email),
			}))
		}
	}

	t.Run("群发并返回统计", func(t *testing.T) {
		env := newTestEnv(t, "secret")
		seed(t, env, "a@x.com", "b@x.com", "c@x.com")
		env.sender.failTo["b@x.com"] = true

		w := env.do(http.MethodPost, "/api/newsletter/send", `{"subject":"Hello","content":"<p>Hi</p>"}`, auth)
		require.Equal(t, http.StatusOK, w.Code)

		body := decode(t, w)
		results := body["results"].(map[string]any)
		assert.Equal(t, 3.0, results["total"])
		assert.Equal(t, 2.0, results["sent"])
		assert.Equal(t, 1.0, results["failed"])
		assert.Len(t, results["errors"], 1)
		assert.Contains(t, body["message"], "2 of 3")
	})

	t.Run("未授权", func(t *testing.T) {
		env := newTestEnv(t, "secret")
		seed(t, env, "a@x.com")

		w := env.do(http.MethodPost, "/api/newsletter/send", `{"subject":"Hello","content":"<p>Hi</p>"}`, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Empty(t, env.sender.sent)
	})

	t.Run("未配置密钥", func(t *testing.T) {
		env := newTestEnv(t, "")

		w := env.do(http.MethodPost, "/api/newsletter/send", `{"subject":"Hello","content":"<p>Hi</p>"}`, auth)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("缺少字段与无收件人", func(t *testing.T) {
		env := newTestEnv(t, "secret")

		w := env.do(http.MethodPost, "/api/newsletter/send", `{"subject":"Hello"}`, auth)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, MsgMissingBroadcastFields, decode(t, w)["message"])

		w = env.do(http.MethodPost, "/api/newsletter/send", `{"subject":"Hello","content":"<p>Hi</p>"}`, auth)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, MsgNoRecipients, decode(t, w)["message"])
	})

	t.Run("期刊不存在", func(t *testing.T) {
		env := newTestEnv(t, "secret")
		seed(t, env, "a@x.com")

		w := env.do(http.MethodPost, "/api/newsletter/send", `{"newsletterId":"missing"}`, auth)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("订阅者统计", func(t *testing.T) {
		env := newTestEnv(t, "secret")
		seed(t, env, "a@x.com", "b@x.com")

		w := env.do(http.MethodGet, "/api/newsletter/stats", "", auth)
		require.Equal(t, http.StatusOK, w.Code)
		data := decode(t, w)["data"].(map[string]any)
		assert.Equal(t, 2.0, data["confirmed"])
		assert.Equal(t, 2.0, data["total"])
	})
}

func TestSearchRoute(t *testing.T) {
	env := newTestEnv(t, "secret")

	w := env.do(http.MethodGet, "/api/search?q=fintech", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	results := decode(t, w)["results"].([]any)
	require.Len(t, results, 3)
	first := results[0].(map[string]any)
	assert.Equal(t, "case-study", first["type"])
	assert.Equal(t, "/case-studies/fintech-platform-modernization", first["url"])
	assert.NotContains(t, first, "score")

	w = env.do(http.MethodGet, "/api/search?q=f", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"results":[]`)
}

func TestContactRoute(t *testing.T) {
	env := newTestEnv(t, "secret")
	body := `{"name":"Ada","email":"ada@example.com","message":"We want to talk about a project."}`
	headers := map[string]string{"X-Forwarded-For": "192.0.2.1"}

	w := env.do(http.MethodPost, "/api/contact", body, headers)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, MsgContactReceived, decode(t, w)["message"])
	require.Len(t, env.sender.sent, 1)
	assert.Equal(t, "ada@example.com", env.sender.sent[0].ReplyTo)

	w = env.do(http.MethodPost, "/api/contact", `{"name":"Ada","email":"ada@example.com","message":"short"}`, headers)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/api/contact", body, headers)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestContentWebhookRoute(t *testing.T) {
	auth := map[string]string{"Authorization": "Bearer secret"}

	t.Run("授权后清除内容缓存", func(t *testing.T) {
		env := newTestEnv(t, "secret")

		w := env.do(http.MethodPost, "/api/content/webhook", `{"event":"entry.publish"}`, auth)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, MsgContentInvalidated, decode(t, w)["message"])
		assert.Equal(t, int64(1), env.cache.calls.Load())
	})

	t.Run("未授权不清除", func(t *testing.T) {
		env := newTestEnv(t, "secret")

		w := env.do(http.MethodPost, "/api/content/webhook", `{}`, map[string]string{"Authorization": "Bearer wrong"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Zero(t, env.cache.calls.Load())
	})
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	env := newTestEnv(t, "secret")

	w := env.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", decode(t, w)["database"])

	w = env.do(http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	env.do(http.MethodGet, "/api/search?q=cloud", "", nil)
	w = env.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `zephor_http_requests_total{endpoint="/api/search",method="GET",status_code="200"}`)
	assert.Contains(t, w.Body.String(), "zephor_search_requests_total 1")
}
