package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"devserver/internal/config"
	"devserver/internal/logging"
	"devserver/internal/server"
)

func main() {
	// 設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "設定の読み込みに失敗しました: %v\n", err)
		os.Exit(1)
	}

	// ロガーを作成（起動メッセージは標準出力、ログは標準エラー出力）
	logger := logging.New(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	// サーバーを作成
	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("サーバーの作成に失敗しました", "error", err)
		os.Exit(1)
	}

	// サーバーを起動
	if err := srv.Start(context.Background()); err != nil {
		logger.Error("サーバーの起動に失敗しました", "error", err)
		os.Exit(1)
	}
}
