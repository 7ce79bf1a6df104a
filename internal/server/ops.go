package server

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type statusResponse struct {
	Status        string     `json:"status"`
	Server        serverInfo `json:"server"`
	Root          string     `json:"root"`
	UptimeSeconds float64    `json:"uptime_seconds"`
	Timestamp     time.Time  `json:"timestamp"`
}

type serverInfo struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// OpsHandler は運用エンドポイント用の http.Handler を返す
// 配信用とは別のリスナーで提供するため、静的ファイルのパスと衝突しない
func (s *Server) OpsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		ErrorLog: slogPrintln{s},
	}))
	return mux
}

// handleHealth はヘルスチェックエンドポイント
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
	})
}

// handleStatus はステータス確認エンドポイント
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	port := s.config.Server.Port
	if tcp, ok := s.Addr().(*net.TCPAddr); ok {
		port = tcp.Port
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Status: "running",
		Server: serverInfo{
			Host: s.config.Server.Host,
			Port: port,
		},
		Root:          s.config.Assets.Root,
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
		Timestamp:     time.Now(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		writeText(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// slogPrintln は promhttp のエラーログを slog に流す
type slogPrintln struct {
	s *Server
}

func (p slogPrintln) Println(v ...any) {
	p.s.logger.Error("メトリクスの収集に失敗しました", "error", fmt.Sprint(v...))
}
