package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHealthChecker(t *testing.T) {
	t.Run("全部正常", func(t *testing.T) {
		hc := NewHealthChecker(PingerFunc(func() error { return nil }), nil)
		hc.AddReadinessCheck("redis", PingerFunc(func() error { return nil }))

		results := hc.CheckHealth()
		assert.Equal(t, "OK", results["database"])
		assert.Equal(t, "OK", results["redis"])
		assert.True(t, Healthy(results))

		rec := httptest.NewRecorder()
		hc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("就绪检查失败", func(t *testing.T) {
		hc := NewHealthChecker(PingerFunc(func() error { return nil }), nil)
		hc.AddReadinessCheck("redis", PingerFunc(func() error { return errors.New("connection refused") }))

		results := hc.CheckHealth()
		assert.Contains(t, results["redis"], "connection refused")
		assert.False(t, Healthy(results))

		rec := httptest.NewRecorder()
		hc.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		rec = httptest.NewRecorder()
		hc.LiveEndpoint(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("存储故障影响存活检查", func(t *testing.T) {
		hc := NewHealthChecker(PingerFunc(func() error { return errors.New("db down") }), nil)

		rec := httptest.NewRecorder()
		hc.LiveEndpoint(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("带超时的探测", func(t *testing.T) {
		p := ContextPinger(time.Second, func(ctx context.Context) error {
			_, ok := ctx.Deadline()
			assert.True(t, ok)
			return nil
		})
		assert.NoError(t, p.Health())
	})
}
