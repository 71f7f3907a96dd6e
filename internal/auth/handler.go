package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/community/pkg/response"
	"github.com/nao1215/community/pkg/token"
	"github.com/sirupsen/logrus"
)

// DefaultCookieName はリフレッシュトークンを運ぶCookieの名前。
const DefaultCookieName = "refreshToken"

// セッション操作の種別と結果。メトリクスのラベルになる。
const (
	OperationLogin   = "login"
	OperationLogout  = "logout"
	OperationRefresh = "refresh"

	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultError   = "error"
)

// CookieConfig はリフレッシュトークンCookieの属性。
type CookieConfig struct {
	// Name はCookie名。空なら DefaultCookieName。
	Name string
	// Domain はDomain属性。空ならホスト限定。
	Domain string
	// Secure はSecure属性を付けるかどうか。
	Secure bool
	// SameSite はSameSite属性。
	SameSite http.SameSite
}

// HandlerOption はHandlerの動作を調整する。
type HandlerOption func(*Handler)

// WithSessionObserver はセッション操作ごとの結果を受け取る関数を登録する。
func WithSessionObserver(fn func(operation, result string)) HandlerOption {
	return func(h *Handler) {
		h.observe = fn
	}
}

// Handler は /auth のHTTPハンドラ。
type Handler struct {
	service *Service
	cookie  CookieConfig
	logger  logrus.FieldLogger
	observe func(operation, result string)
}

// NewHandler は新しいHandlerを生成する。
func NewHandler(service *Service, cookie CookieConfig, logger logrus.FieldLogger, opts ...HandlerOption) *Handler {
	if cookie.Name == "" {
		cookie.Name = DefaultCookieName
	}
	if cookie.SameSite == 0 {
		cookie.SameSite = http.SameSiteLaxMode
	}

	h := &Handler{
		service: service,
		cookie:  cookie,
		logger:  logger,
		observe: func(string, string) {},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes は /auth のルートを登録する。
func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.POST("/auth", h.handleLogin())
	r.DELETE("/auth", h.handleLogout())
	r.GET("/auth", h.handleRefresh())
}

// loginRequest はログインリクエストのJSON構造。
type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// loginResponse はログイン成功時のJSONレスポンス構造。
type loginResponse struct {
	UserID       int64  `json:"userId"`
	Email        string `json:"email"`
	Nickname     string `json:"nickname"`
	ProfileImage string `json:"profileImage"`
	Token        string `json:"token"`
}

// handleLogin はログインを処理するハンドラを返す。
func (h *Handler) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			h.observe(OperationLogin, ResultFailure)
			response.Error(c, http.StatusBadRequest, "invalid request", response.CodeNone)
			return
		}

		session, err := h.service.Login(c.Request.Context(), req.Email, req.Password)
		if errors.Is(err, ErrInvalidCredentials) {
			h.observe(OperationLogin, ResultFailure)
			response.Error(c, http.StatusUnauthorized, "login failed", response.CodeNone)
			return
		}
		if err != nil {
			h.observe(OperationLogin, ResultError)
			h.logger.WithError(err).Error("ログイン処理エラー")
			response.Error(c, http.StatusInternalServerError, "internal server error", response.CodeNone)
			return
		}

		h.setRefreshCookie(c, session.RefreshToken, int(token.RefreshTokenTTL.Seconds()))
		h.observe(OperationLogin, ResultSuccess)
		response.JSON(c, http.StatusOK, "login success", loginResponse{
			UserID:       session.Profile.UserID,
			Email:        session.Profile.Email,
			Nickname:     session.Profile.Nickname,
			ProfileImage: session.Profile.ProfileImage,
			Token:        session.AccessToken,
		})
	}
}

// handleLogout はリフレッシュトークンCookieを失効させるハンドラを返す。
func (h *Handler) handleLogout() gin.HandlerFunc {
	return func(c *gin.Context) {
		// gin.Context.SetCookieは負のmaxAgeを "Max-Age=0" として書き出す
		h.setRefreshCookie(c, "", -1)
		h.observe(OperationLogout, ResultSuccess)
		response.JSON(c, http.StatusOK, "logout success", nil)
	}
}

// handleRefresh はCookieのリフレッシュトークンからアクセストークンを再発行するハンドラを返す。
func (h *Handler) handleRefresh() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Cookieがない場合は空文字列のままServiceに渡し、ErrNoRefreshTokenとして扱う
		refreshToken, _ := c.Cookie(h.cookie.Name)

		accessToken, err := h.service.Refresh(c.Request.Context(), refreshToken)
		switch {
		case err == nil:
			h.observe(OperationRefresh, ResultSuccess)
			response.JSON(c, http.StatusOK, "refresh success", accessToken)
		case errors.Is(err, ErrNoRefreshToken):
			h.observe(OperationRefresh, ResultFailure)
			response.Error(c, http.StatusUnauthorized, "include refresh token in cookie", response.CodeNoRefreshToken)
		case errors.Is(err, ErrRefreshTokenExpired):
			h.observe(OperationRefresh, ResultFailure)
			response.Error(c, http.StatusUnauthorized, "refresh token expired, login again", response.CodeRefreshTokenExpired)
		case errors.Is(err, ErrInvalidRefreshToken):
			h.observe(OperationRefresh, ResultFailure)
			h.logger.WithError(err).Debug("無効なリフレッシュトークン")
			response.Error(c, http.StatusUnauthorized, "invalid token, user not found", response.CodeNone)
		default:
			h.observe(OperationRefresh, ResultError)
			h.logger.WithError(err).Error("アクセストークン再発行エラー")
			response.Error(c, http.StatusInternalServerError, "internal server error", response.CodeNone)
		}
	}
}

func (h *Handler) setRefreshCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(h.cookie.SameSite)
	c.SetCookie(h.cookie.Name, value, maxAge, "/", h.cookie.Domain, h.cookie.Secure, true)
}
