package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics は配信サーバーが使う prometheus コレクタをまとめたもの
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	RequestDurationSec *prometheus.HistogramVec
	ResponseBytesTotal prometheus.Counter
	InFlight           prometheus.Gauge
	RateLimitDropped   prometheus.Counter
	StreamAborts       prometheus.Counter
}

// New はコレクタを作成して registry に登録する
func New(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devserver_requests_total",
			Help: "Total number of HTTP requests served.",
		}, []string{"method", "status"}),
		RequestDurationSec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "devserver_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "status"}),
		ResponseBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "devserver_response_bytes_total",
			Help: "Total number of response body bytes written.",
		}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "devserver_requests_in_flight",
			Help: "Number of requests currently being served.",
		}),
		RateLimitDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "devserver_ratelimit_dropped_total",
			Help: "Total number of requests rejected by the rate limiter.",
		}),
		StreamAborts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "devserver_stream_aborts_total",
			Help: "Total number of file transfers aborted after headers were sent.",
		}),
	}

	registry.MustRegister(
		m.RequestsTotal,
		m.RequestDurationSec,
		m.ResponseBytesTotal,
		m.InFlight,
		m.RateLimitDropped,
		m.StreamAborts,
	)

	return m
}

// Middleware はリクエスト数・処理時間・送信バイト数を記録する
// パスはラベルに含めない（ファイル名ごとに系列が増えるのを避ける）
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		startedAt := time.Now()
		m.InFlight.Inc()
		defer m.InFlight.Dec()

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		m.RequestsTotal.WithLabelValues(method, status).Inc()
		m.RequestDurationSec.WithLabelValues(method, status).Observe(time.Since(startedAt).Seconds())
		if size := c.Writer.Size(); size > 0 {
			m.ResponseBytesTotal.Add(float64(size))
		}
	}
}
