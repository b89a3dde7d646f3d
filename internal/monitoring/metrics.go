package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 订阅指标
	NewsletterEvents     *prometheus.CounterVec
	NewsletterDeliveries *prometheus.CounterVec

	// 搜索指标
	SearchRequests prometheus.Counter
	SearchResults  prometheus.Histogram

	// 限流与错误指标
	RateLimitBlocks *prometheus.CounterVec
	PanicsTotal     prometheus.Counter

	gatherer prometheus.Gatherer
}

// NewMetrics 创建监控指标并注册到指定注册表
//
// 参数:
//   - reg: 指标注册表，传 nil 时使用 prometheus 默认注册表
func NewMetrics(reg prometheus.Registerer) *Metrics {
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zephor_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "zephor_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		NewsletterEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zephor_newsletter_events_total",
				Help: "Newsletter lifecycle transitions by event",
			},
			[]string{"event"},
		),

		NewsletterDeliveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zephor_newsletter_deliveries_total",
				Help: "Broadcast deliveries by result",
			},
			[]string{"result"},
		),

		SearchRequests: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "zephor_search_requests_total",
				Help: "Total number of content search requests",
			},
		),

		SearchResults: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "zephor_search_results",
				Help:    "Number of results returned per search",
				Buckets: []float64{0, 1, 2, 5, 10, 20},
			},
		),

		RateLimitBlocks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zephor_ratelimit_blocks_total",
				Help: "Requests rejected by the rate limiter",
			},
			[]string{"bucket"},
		),

		PanicsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "zephor_panics_total",
				Help: "Total number of recovered panics",
			},
		),

		gatherer: gatherer,
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordNewsletterEvent 记录订阅状态事件
func (m *Metrics) RecordNewsletterEvent(event string) {
	m.NewsletterEvents.WithLabelValues(event).Inc()
}

// RecordDelivery 记录群发投递结果（sent / failed）
func (m *Metrics) RecordDelivery(result string) {
	m.NewsletterDeliveries.WithLabelValues(result).Inc()
}

// RecordSearch 记录一次搜索及其结果数
func (m *Metrics) RecordSearch(results int) {
	m.SearchRequests.Inc()
	m.SearchResults.Observe(float64(results))
}

// RecordRateLimitBlock 记录限流阻止
func (m *Metrics) RecordRateLimitBlock(bucket string) {
	m.RateLimitBlocks.WithLabelValues(bucket).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
