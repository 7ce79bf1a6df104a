package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"devserver/internal/metrics"
	"devserver/internal/ratelimit"
)

const (
	requestIDHeader = "X-Request-Id"
	requestIDKey    = "request_id"
)

// Recovery はハンドラ内のパニックを回復して 500 を返す
// http.ErrAbortHandler は接続を切るためにそのまま再送出する
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}

			logger.Error("パニックから復帰しました",
				"panic", rec,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"request_id", c.GetString(requestIDKey),
			)

			if !c.Writer.Written() {
				writeText(c.Writer, http.StatusInternalServerError, "Internal Server Error")
			}
			c.Abort()
		}()

		c.Next()
	}
}

// RequestID はリクエストIDを払い出してコンテキストに保存する
// クライアントが X-Request-Id を送った場合のみレスポンスに返す
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id != "" {
			c.Header(requestIDHeader, id)
		} else {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)

		c.Next()
	}
}

// AccessLog はリクエストごとのアクセスログを debug レベルで出力する
func AccessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !logger.Enabled(c.Request.Context(), slog.LevelDebug) {
			c.Next()
			return
		}

		startedAt := time.Now()
		c.Next()

		logger.Debug("リクエストを処理しました",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"bytes", c.Writer.Size(),
			"duration", time.Since(startedAt),
			"client_ip", c.ClientIP(),
			"request_id", c.GetString(requestIDKey),
		)
	}
}

// RateLimit はクライアントIP単位でリクエストを制限する
func RateLimit(limiter *ratelimit.Limiter, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter.Allow(c.ClientIP()) {
			c.Next()
			return
		}

		if m != nil {
			m.RateLimitDropped.Inc()
		}
		writeText(c.Writer, http.StatusTooManyRequests, "Too Many Requests")
		c.Abort()
	}
}
