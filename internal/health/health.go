package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"
)

// Pinger 可探测的依赖，例如订阅存储或 Redis 客户端
type Pinger interface {
	Health() error
}

// PingerFunc 将函数适配为 Pinger
type PingerFunc func() error

// Health 调用底层函数
func (f PingerFunc) Health() error { return f() }

// HealthChecker 健康检查器
//
// 订阅存储不可用时进程应被重启，作为存活检查；
// Redis 与内容源只影响部分功能，作为就绪检查。
type HealthChecker struct {
	health    healthcheck.Handler
	store     Pinger
	readiness map[string]Pinger
	logger    *zap.Logger
	now       func() time.Time
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(store Pinger, logger *zap.Logger) *HealthChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	hc := &HealthChecker{
		health:    healthcheck.NewHandler(),
		store:     store,
		readiness: make(map[string]Pinger),
		logger:    logger,
		now:       time.Now,
	}

	hc.health.AddLivenessCheck("database", hc.check("database", store))
	hc.health.AddLivenessCheck("goroutines", healthcheck.GoroutineCountCheck(10000))
	return hc
}

// AddReadinessCheck 添加就绪检查
func (hc *HealthChecker) AddReadinessCheck(name string, p Pinger) {
	hc.readiness[name] = p
	hc.health.AddReadinessCheck(name, hc.check(name, p))
}

func (hc *HealthChecker) check(name string, p Pinger) healthcheck.Check {
	return healthcheck.Timeout(func() error {
		if err := p.Health(); err != nil {
			hc.logger.Warn("Health check failed", zap.String("check", name), zap.Error(err))
			return err
		}
		return nil
	}, 5*time.Second)
}

// Handler 返回健康检查处理器（/live 与 /ready）
func (hc *HealthChecker) Handler() http.Handler {
	return hc.health
}

// LiveEndpoint 存活检查
func (hc *HealthChecker) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	hc.health.LiveEndpoint(w, r)
}

// ReadyEndpoint 就绪检查
func (hc *HealthChecker) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	hc.health.ReadyEndpoint(w, r)
}

// CheckHealth 执行全部检查并返回可读结果
func (hc *HealthChecker) CheckHealth() map[string]string {
	results := make(map[string]string)

	if err := hc.store.Health(); err != nil {
		results["database"] = fmt.Sprintf("ERROR: %v", err)
	} else {
		results["database"] = "OK"
	}

	for name, p := range hc.readiness {
		if err := p.Health(); err != nil {
			results[name] = fmt.Sprintf("ERROR: %v", err)
		} else {
			results[name] = "OK"
		}
	}

	results["timestamp"] = hc.now().Format(time.RFC3339)
	return results
}

// Healthy 判断 CheckHealth 的结果是否全部正常
func Healthy(results map[string]string) bool {
	for name, v := range results {
		if name != "timestamp" && v != "OK" {
			return false
		}
	}
	return true
}

// ContextPinger 将带超时的 ctx 探测函数适配为 Pinger
func ContextPinger(timeout time.Duration, fn func(ctx context.Context) error) Pinger {
	return PingerFunc(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return fn(ctx)
	})
}
