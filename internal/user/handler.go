package user

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nao1215/community/pkg/middleware"
	"github.com/nao1215/community/pkg/response"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultUploadDir はプロフィール画像の既定の保存先。
	DefaultUploadDir = "./uploads"
	// UploadURLPrefix はアップロードした画像を配信するURLのパス。
	UploadURLPrefix = "/uploads"
	// maxImageSize はアップロードできる画像の最大バイト数。
	maxImageSize = 10 << 20
)

// Handler はユーザー関連のHTTPハンドラ。
type Handler struct {
	store     *Store
	hasher    *Hasher
	logger    logrus.FieldLogger
	uploadDir string
}

// Option はHandlerの設定を変更する。
type Option func(*Handler)

// WithUploadDir はプロフィール画像の保存先ディレクトリを指定する。
func WithUploadDir(dir string) Option {
	return func(h *Handler) {
		if dir != "" {
			h.uploadDir = dir
		}
	}
}

// NewHandler は新しいHandlerを生成する。
func NewHandler(store *Store, hasher *Hasher, logger logrus.FieldLogger, opts ...Option) *Handler {
	h := &Handler{store: store, hasher: hasher, logger: logger, uploadDir: DefaultUploadDir}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes はユーザー関連のルートを登録する。
// 会員登録と重複確認は除外ルールで公開され、それ以外は認証ゲートの後ろで動く。
func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.POST("/users", h.handleCreate())
	r.POST("/users/availability/email", h.handleEmailAvailability())
	r.POST("/users/availability/nickname", h.handleNicknameAvailability())
	r.POST("/users/image", h.handleUploadImage())
	r.GET("/users/:userId", h.handleGet())
	r.POST("/users/:userId", h.handleChangePassword())
	r.PATCH("/users/:userId", h.handleUpdateProfile())
	r.DELETE("/users/:userId", h.handleDelete())
}

// createUserRequest は会員登録リクエストのJSON構造。
type createUserRequest struct {
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required"`
	Nickname     string `json:"nickname" binding:"required"`
	ProfileImage string `json:"profileImage"`
}

// emailAvailabilityRequest はメールアドレス重複確認のJSON構造。
type emailAvailabilityRequest struct {
	Email string `json:"email" binding:"required"`
}

// nicknameAvailabilityRequest はニックネーム重複確認のJSON構造。
type nicknameAvailabilityRequest struct {
	Nickname string `json:"nickname" binding:"required"`
}

// changePasswordRequest はパスワード変更のJSON構造。
type changePasswordRequest struct {
	CurPassword string `json:"curPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

// updateProfileRequest はプロフィール更新のJSON構造。
type updateProfileRequest struct {
	Nickname     string `json:"nickname" binding:"required"`
	ProfileImage string `json:"profileImage"`
}

// userInfoResponse はユーザー詳細のJSONレスポンス構造。
type userInfoResponse struct {
	UserID     int64  `json:"userId"`
	Email      string `json:"email"`
	Nickname   string `json:"nickname"`
	UserImage  string `json:"userImage"`
	CreatedAt  string `json:"createdAt"`
	ModifiedAt string `json:"modifiedAt"`
}

func toUserInfoResponse(u *User) userInfoResponse {
	return userInfoResponse{
		UserID:     u.ID,
		Email:      u.Email,
		Nickname:   u.Nickname,
		UserImage:  u.ProfileImage,
		CreatedAt:  u.CreatedAt.Format(time.RFC3339),
		ModifiedAt: u.UpdatedAt.Format(time.RFC3339),
	}
}

// handleCreate は会員登録を処理するハンドラを返す。
func (h *Handler) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, "invalid request", response.CodeNone)
			return
		}

		hash, ok := h.hash(c, req.Password)
		if !ok {
			return
		}

		id, err := h.store.Create(c.Request.Context(), NewUser{
			Email:        req.Email,
			Nickname:     req.Nickname,
			PasswordHash: hash,
			ProfileImage: req.ProfileImage,
		})
		switch {
		case errors.Is(err, ErrDuplicateEmail):
			response.Error(c, http.StatusConflict, "same email user already exists", response.CodeNone)
			return
		case errors.Is(err, ErrDuplicateNickname):
			response.Error(c, http.StatusConflict, "same nickname user already exists", response.CodeNone)
			return
		case err != nil:
			h.logger.WithError(err).Error("ユーザー登録エラー")
			response.Error(c, http.StatusInternalServerError, "internal server error", response.CodeNone)
			return
		}

		location := fmt.Sprintf("/users/%d", id)
		c.Header("Location", location)
		response.JSON(c, http.StatusCreated, "user created", gin.H{"location": location})
	}
}

// handleEmailAvailability はメールアドレスが未使用かを返すハンドラを返す。
func (h *Handler) handleEmailAvailability() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req emailAvailabilityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, "invalid request", response.CodeNone)
			return
		}

		available, err := h.available(c, func() error {
			_, err := h.store.FindByEmail(c.Request.Context(), req.Email)
			return err
		})
		if err != nil {
			return
		}

		message := "email already exists"
		if available {
			message = "you can use this email"
		}
		response.JSON(c, http.StatusOK, message, gin.H{"availability": available})
	}
}

// handleNicknameAvailability はニックネームが未使用かを返すハンドラを返す。
func (h *Handler) handleNicknameAvailability() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req nicknameAvailabilityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, "invalid request", response.CodeNone)
			return
		}

		available, err := h.available(c, func() error {
			_, err := h.store.FindByNickname(c.Request.Context(), req.Nickname)
			return err
		})
		if err != nil {
			return
		}

		message := "nickname already exists"
		if available {
			message = "you can use this nickname"
		}
		response.JSON(c, http.StatusOK, message, gin.H{"availability": available})
	}
}

// hash はパスワードをハッシュ化する。bcryptが扱えない72バイト超のパスワードは
// 入力の誤りとして400を、それ以外の失敗は500を書き込んでfalseを返す。
func (h *Handler) hash(c *gin.Context, password string) (string, bool) {
	hash, err := h.hasher.Hash(password)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		response.Error(c, http.StatusBadRequest, "invalid request", response.CodeNone)
		return "", false
	}
	if err != nil {
		h.logger.WithError(err).Error("パスワードのハッシュ化エラー")
		response.Error(c, http.StatusInternalServerError, "internal server error", response.CodeNone)
		return "", false
	}
	return hash, true
}

// available は検索結果から未使用かどうかを判定する。
// ストアのエラー時は500を書き込んだうえでエラーを返す。
func (h *Handler) available(c *gin.Context, find func() error) (bool, error) {
	err := find()
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, ErrNotFound):
		return true, nil
	default:
		h.logger.WithError(err).Error("重複確認エラー")
		response.Error(c, http.StatusInternalServerError, "internal server error", response.CodeNone)
		return false, err
	}
}

// handleGet はユーザー詳細を返すハンドラを返す。
func (h *Handler) handleGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathUserID(c)
		if !ok {
			return
		}

		u, err := h.store.FindByID(c.Request.Context(), id)
		if errors.Is(err, ErrNotFound) {
			response.Error(c, http.StatusNotFound, "user not found", response.CodeNone)
			return
		}
		if err != nil {
			h.logger.WithError(err).WithField("user_id", id).Error("ユーザー取得エラー")
			response.Error(c, http.StatusInternalServerError, "internal server error", response.CodeNone)
			return
		}

		response.JSON(c, http.StatusOK, "user info successfully got", toUserInfoResponse(u))
	}
}

// handleDelete は退会を処理するハンドラを返す。本人以外は削除できない。
func (h *Handler) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := selfUserID(c)
		if !ok {
			return
		}

		err := h.store.Delete(c.Request.Context(), id)
		if errors.Is(err, ErrNotFound) {
			response.Error(c, http.StatusNotFound, "user not found", response.CodeNone)
			return
		}
		if err != nil {
			h.logger.WithError(err).WithField("user_id", id).Error("ユーザー削除エラー")
			response.Error(c, http.StatusInternalServerError, "internal server error", response.CodeNone)
			return
		}

		c.Status(http.StatusNoContent)
	}
}

// handleChangePassword はパスワード変更を処理するハンドラを返す。
// 本人以外、または現在のパスワードが一致しない場合は403を返す。
func (h *Handler) handleChangePassword() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := selfUserID(c)
		if !ok {
			return
		}

		var req changePasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, "invalid request", response.CodeNone)
			return
		}

		u, err := h.store.FindByID(c.Request.Context(), id)
		if errors.Is(err, ErrNotFound) {
			response.Error(c, http.StatusNotFound, "user not found", response.CodeNone)
			return
		}
		if err != nil {
			h.logger.WithError(err).WithField("user_id", id).Error("ユーザー取得エラー")
			response.Error(c, http.StatusInternalServerError, "internal server error", response.CodeNone)
			return
		}

		if !h.hasher.Compare(u.PasswordHash, req.CurPassword) {
			response.Error(c, http.StatusForbidden, "current password not match", response.CodeNone)
			return
		}

		hash, ok := h.hash(c, req.NewPassword)
		if !ok {
			return
		}

		err = h.store.UpdatePassword(c.Request.Context(), id, hash)
		if errors.Is(err, ErrNotFound) {
			response.Error(c, http.StatusNotFound, "user not found", response.CodeNone)
			return
		}
		if err != nil {
			h.logger.WithError(err).WithField("user_id", id).Error("パスワード更新エラー")
			response.Error(c, http.StatusInternalServerError, "internal server error", response.CodeNone)
			return
		}

		h.logger.WithField("user_id", id).Info("パスワードを変更しました")
		response.JSON(c, http.StatusOK, "password successfully modified", nil)
	}
}

// handleUpdateProfile はニックネームとプロフィール画像の更新を処理するハンドラを返す。
func (h *Handler) handleUpdateProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := selfUserID(c)
		if !ok {
			return
		}

		var req updateProfileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, "invalid request", response.CodeNone)
			return
		}

		u, err := h.store.UpdateProfile(c.Request.Context(), id, req.Nickname, req.ProfileImage)
		switch {
		case errors.Is(err, ErrNotFound):
			response.Error(c, http.StatusNotFound, "user not found", response.CodeNone)
			return
		case errors.Is(err, ErrDuplicateNickname):
			response.Error(c, http.StatusConflict, "same nickname user already exists", response.CodeNone)
			return
		case err != nil:
			h.logger.WithError(err).WithField("user_id", id).Error("プロフィール更新エラー")
			response.Error(c, http.StatusInternalServerError, "internal server error", response.CodeNone)
			return
		}

		response.JSON(c, http.StatusOK, "user successfully modified", toUserInfoResponse(u))
	}
}

// handleUploadImage はプロフィール画像のアップロードを処理するハンドラを返す。
// multipartの "img" パートを受け取り、配信用のURLを返す。
func (h *Handler) handleUploadImage() gin.HandlerFunc {
	return func(c *gin.Context) {
		file, err := c.FormFile("img")
		if err != nil || file.Size == 0 {
			response.Error(c, http.StatusBadRequest, "no file included", response.CodeNone)
			return
		}
		if file.Size > maxImageSize {
			response.Error(c, http.StatusRequestEntityTooLarge, "file too large", response.CodeNone)
			return
		}
		if !strings.HasPrefix(file.Header.Get("Content-Type"), "image/") {
			response.Error(c, http.StatusBadRequest, "not an image format file", response.CodeNone)
			return
		}

		name := uuid.NewString() + imageExt(file.Filename)
		if err := os.MkdirAll(h.uploadDir, 0o750); err != nil {
			h.logger.WithError(err).WithField("dir", h.uploadDir).Error("アップロード先の作成エラー")
			response.Error(c, http.StatusInternalServerError, "internal server error", response.CodeNone)
			return
		}
		if err := c.SaveUploadedFile(file, filepath.Join(h.uploadDir, name)); err != nil {
			h.logger.WithError(err).WithField("file", name).Error("画像の保存エラー")
			response.Error(c, http.StatusInternalServerError, "internal server error", response.CodeNone)
			return
		}

		response.JSON(c, http.StatusOK, "uploaded link provided", gin.H{"url": UploadURLPrefix + "/" + name})
	}
}

// imageExt は元のファイル名から保存に使う拡張子を取り出す。
// 英数字以外を含む拡張子は捨てる。
func imageExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) < 2 || len(ext) > 10 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}

// selfUserID はパスのユーザーIDが認証済みユーザー本人かを確認する。
// 本人でなければ403を書き込む。
func selfUserID(c *gin.Context) (int64, bool) {
	id, ok := pathUserID(c)
	if !ok {
		return 0, false
	}
	current, ok := middleware.UserID(c)
	if !ok || current != id {
		response.Error(c, http.StatusForbidden, "forbidden user", response.CodeNone)
		return 0, false
	}
	return id, true
}

// pathUserID はパスパラメータのユーザーIDを読み取る。不正な場合は400を書き込む。
func pathUserID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid user id", response.CodeNone)
		return 0, false
	}
	return id, true
}
