package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	registry := prometheus.NewRegistry()
	m := New(registry)

	engine := gin.New()
	engine.Use(m.Middleware())
	engine.GET("/ok", func(c *gin.Context) {
		c.String(http.StatusOK, "hello")
	})

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))

	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "200")); got != 3 {
		t.Errorf("200のリクエスト数が一致しません: got %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "404")); got != 1 {
		t.Errorf("404のリクエスト数が一致しません: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ResponseBytesTotal); got < 15 {
		t.Errorf("送信バイト数が少なすぎます: got %v", got)
	}
	if got := testutil.ToFloat64(m.InFlight); got != 0 {
		t.Errorf("処理中リクエスト数が0に戻っていません: got %v", got)
	}
}

func TestNewRegistersCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)
	m.RateLimitDropped.Inc()
	m.StreamAborts.Inc()

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather に失敗しました: %v", err)
	}

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{"devserver_ratelimit_dropped_total", "devserver_stream_aborts_total", "devserver_requests_in_flight"} {
		if !names[want] {
			t.Errorf("メトリクス %s が登録されていません", want)
		}
	}
}
