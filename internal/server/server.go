package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"devserver/internal/config"
	"devserver/internal/metrics"
	"devserver/internal/ratelimit"
)

const (
	// レート制限の訪問者情報を掃除する間隔と、破棄するまでの無通信時間
	limiterSweepInterval = time.Minute
	limiterIdleTimeout   = 5 * time.Minute

	defaultShutdownTimeout = 5 * time.Second
)

// Server はHTTPサーバーを管理する構造体
type Server struct {
	config     *config.Config
	logger     *slog.Logger
	engine     *gin.Engine
	dispatcher *Dispatcher
	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	limiter    *ratelimit.Limiter

	httpServer *http.Server
	opsServer  *http.Server

	listener    net.Listener
	opsListener net.Listener

	banner    io.Writer // 起動メッセージの出力先
	startedAt time.Time
}

// New は新しいServerインスタンスを作成する
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	dispatcher, err := NewDispatcher(cfg.Assets.Root, logger)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)
	dispatcher.onAbort = m.StreamAborts.Inc

	s := &Server{
		config:     cfg,
		logger:     logger,
		dispatcher: dispatcher,
		registry:   registry,
		metrics:    m,
		banner:     os.Stdout,
		startedAt:  time.Now(),
	}

	if cfg.RateLimit.Enabled() {
		s.limiter = ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}

	if err := s.setupEngine(); err != nil {
		return nil, err
	}

	s.httpServer = &http.Server{
		Handler:      s.engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	if cfg.Ops.Port > 0 {
		s.opsServer = &http.Server{
			Handler:     s.OpsHandler(),
			ReadTimeout: cfg.Server.ReadTimeout,
			ErrorLog:    slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		}
	}

	return s, nil
}

// setupEngine は gin エンジンとミドルウェアを設定する
func (s *Server) setupEngine() error {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	if err := engine.SetTrustedProxies(nil); err != nil {
		return fmt.Errorf("信頼するプロキシの設定に失敗: %w", err)
	}

	engine.Use(
		Recovery(s.logger),
		RequestID(),
		AccessLog(s.logger),
		s.metrics.Middleware(),
	)
	if s.limiter != nil {
		engine.Use(RateLimit(s.limiter, s.metrics))
	}

	// 配信ルート配下のすべてのパスを Dispatcher に渡す
	handler := gin.WrapH(s.dispatcher)
	engine.GET("/*filepath", handler)
	engine.HEAD("/*filepath", handler)

	s.engine = engine
	return nil
}

// Handler は配信用の http.Handler を返す
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Listen はリッスンを開始し、起動メッセージを出力する
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.config.ServerAddress())
	if err != nil {
		return fmt.Errorf("ポートのリッスンに失敗 (%s): %w", s.config.ServerAddress(), err)
	}
	s.listener = ln

	if s.opsServer != nil {
		opsLn, err := net.Listen("tcp", s.config.OpsAddress())
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("運用ポートのリッスンに失敗 (%s): %w", s.config.OpsAddress(), err)
		}
		s.opsListener = opsLn
		s.logger.Info("運用エンドポイントを起動しました", "addr", opsLn.Addr().String())
	}

	s.printBanner()
	return nil
}

// Addr は実際にリッスンしているアドレスを返す（Listen 前は nil）
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// OpsAddr は運用エンドポイントのアドレスを返す（無効な場合は nil）
func (s *Server) OpsAddr() net.Addr {
	if s.opsListener == nil {
		return nil
	}
	return s.opsListener.Addr()
}

// printBanner は起動URLとエントリーページのURLを出力する
func (s *Server) printBanner() {
	base := "http://" + s.publicHost() + "/"

	fmt.Fprintf(s.banner, "開発サーバーを起動しました: %s\n", base)
	for _, page := range EntryPages {
		fmt.Fprintf(s.banner, "%s: %s%s\n", page.Label, base, page.Name)
	}
}

// publicHost はブラウザで開けるホスト:ポートを返す
// ワイルドカードで待ち受けている場合は localhost に置き換える
func (s *Server) publicHost() string {
	host := s.config.Server.Host
	port := strconv.Itoa(s.config.Server.Port)

	if tcp, ok := s.Addr().(*net.TCPAddr); ok {
		port = strconv.Itoa(tcp.Port)
	}

	switch host {
	case "", "0.0.0.0", "::", "[::]":
		host = "localhost"
	}

	return net.JoinHostPort(host, port)
}

// Serve はリッスン済みのサーバーでリクエストを処理する
// コンテキストの終了かシグナル受信でグレースフルシャットダウンする
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return errors.New("Listen が呼ばれていません")
	}

	// シャットダウン用のチャンネル
	shutdownCh := make(chan error, 2)

	go func() {
		if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			shutdownCh <- fmt.Errorf("サーバーの実行に失敗: %w", err)
		}
	}()

	if s.opsServer != nil && s.opsListener != nil {
		go func() {
			if err := s.opsServer.Serve(s.opsListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				shutdownCh <- fmt.Errorf("運用サーバーの実行に失敗: %w", err)
			}
		}()
	}

	sweepCtx, cancelSweep := context.WithCancel(ctx)
	defer cancelSweep()
	if s.limiter != nil {
		go s.limiter.Run(sweepCtx, limiterSweepInterval, limiterIdleTimeout)
	}

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	// コンテキストかシグナルを待つ
	select {
	case <-ctx.Done():
		s.logger.Info("コンテキストがキャンセルされました")
	case sig := <-sigCh:
		s.logger.Info("シグナルを受信しました", "signal", sig.String())
	case err := <-shutdownCh:
		_ = s.Shutdown()
		return err
	}

	// グレースフルシャットダウン
	return s.Shutdown()
}

// Start はリッスンを開始してサーバーを起動する
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Shutdown はサーバーをグレースフルにシャットダウンする
func (s *Server) Shutdown() error {
	s.logger.Info("サーバーをシャットダウンしています...")

	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("サーバーのシャットダウンに失敗: %w", err))
	}
	if s.opsServer != nil {
		if err := s.opsServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("運用サーバーのシャットダウンに失敗: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	s.logger.Info("サーバーが正常にシャットダウンされました")
	return nil
}
