// 掲示板バックエンドのエントリポイント。
// 会員登録・ログイン・トークン再発行を提供し、すべてのリクエストを認証ゲートで検査する。
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nao1215/community/internal/board"
	"github.com/nao1215/community/pkg/config"
	"github.com/nao1215/community/pkg/logging"
)

// shutdownTimeout は処理中のリクエストの完了を待つ最大時間。
const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	logger, err := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("ロガーの初期化に失敗: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server, err := board.NewServer(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("サーバーの初期化に失敗")
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("port", cfg.Server.Port).Info("掲示板サービスを起動します")
		errCh <- server.Run()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("掲示板サービスの起動に失敗")
		}
	case <-ctx.Done():
		logger.Info("停止シグナルを受信しました")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("掲示板サービスの停止に失敗")
		os.Exit(1)
	}
	logger.Info("掲示板サービスを停止しました")
}
