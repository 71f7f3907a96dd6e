package board

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/community/internal/auth"
	"github.com/nao1215/community/internal/user"
	"github.com/nao1215/community/pkg/config"
	"github.com/nao1215/community/pkg/metrics"
	"github.com/nao1215/community/pkg/middleware"
	"github.com/nao1215/community/pkg/token"
	"github.com/sirupsen/logrus"
)

// Server は掲示板バックエンドのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// httpServer はRunで起動し、Shutdownで停止する。
	httpServer *http.Server
	// store はユーザーストア。
	store *user.Store
	// codec はトークンの発行と検証を行う。
	codec *token.Codec
	// exclusions は認証ゲートの許可リスト。
	exclusions middleware.Exclusions
	// metrics はPrometheusメトリクス。
	metrics *metrics.Metrics
	// logger はサーバー全体のロガー。
	logger logrus.FieldLogger
	// cfg はサービスの設定。
	cfg *config.Config
}

// NewServer は設定からサーバーを生成する。ユーザーストアのマイグレーションもここで行う。
func NewServer(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定が不正です: %w", err)
	}

	exclusions, err := cfg.ExclusionRules()
	if err != nil {
		return nil, err
	}

	codec, err := token.NewCodec([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("トークンCodecの生成に失敗: %w", err)
	}

	store, err := user.Open(ctx, cfg.Database.Path, logger)
	if err != nil {
		return nil, err
	}

	s := &Server{
		router:     gin.New(),
		store:      store,
		codec:      codec,
		exclusions: exclusions,
		metrics:    metrics.New(),
		logger:     logger,
		cfg:        cfg,
	}
	s.setupRoutes()
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler はルーターを http.Handler として返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動する。Shutdownで停止した場合は http.ErrServerClosed を返す。
func (s *Server) Run() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown は処理中のリクエストを待ってサーバーを停止し、ユーザーストアを閉じる。
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTPサーバーの停止に失敗: %w", err))
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("ユーザーストアのクローズに失敗: %w", err))
	}
	return errors.Join(errs...)
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	s.router.Use(middleware.Recovery(s.logger))
	s.router.Use(middleware.RequestLogger(s.logger))
	s.router.Use(middleware.CORS(s.cfg.CORS.AllowedOrigins))
	s.router.Use(s.metrics.Middleware())

	// ヘルスチェックとメトリクス、画像配信（認証不要）
	// 認証ゲートより先に登録するため、ゲートは適用されない
	s.router.GET("/health", s.handleHealth())
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	s.router.Static(user.UploadURLPrefix, s.cfg.Upload.Dir)

	// ここから後に登録するルートと、どのルートにも一致しないリクエストはすべてゲートを通る
	s.router.Use(middleware.Authenticate(s.codec, s.exclusions,
		middleware.WithDecisionObserver(func(d middleware.GateDecision) {
			s.metrics.ObserveGateDecision(string(d))
		}),
	))

	hasher := user.NewHasher(0)
	authService := auth.NewService(s.store, hasher, s.codec)
	auth.NewHandler(authService, auth.CookieConfig{
		Domain:   s.cfg.Cookie.Domain,
		Secure:   s.cfg.Cookie.Secure,
		SameSite: s.cfg.Cookie.SameSiteMode(),
	}, s.logger, auth.WithSessionObserver(s.metrics.ObserveSession)).RegisterRoutes(s.router)

	user.NewHandler(s.store, hasher, s.logger, user.WithUploadDir(s.cfg.Upload.Dir)).RegisterRoutes(s.router)
}

// handleHealth はヘルスチェックのハンドラを返す。ユーザーストアに到達できなければ503を返す。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.store.Ping(c.Request.Context()); err != nil {
			s.logger.WithError(err).Warn("ヘルスチェックでデータベースに到達できません")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "service": "community"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "community"})
	}
}
