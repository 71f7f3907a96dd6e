// Package auth はログイン・ログアウト・アクセストークン再発行を提供する。
//
// ログインではアクセストークンとリフレッシュトークンの組を発行し、
// リフレッシュトークンはHttpOnly Cookieとしてクライアントに渡す。
// サーバー側にセッションは保持せず、トークンの検証だけで状態を判断する。
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/nao1215/community/internal/user"
	"github.com/nao1215/community/pkg/token"
)

var (
	// ErrInvalidCredentials はメールアドレスかパスワードが誤っていることを示す。
	// どちらが誤っていたかは区別しない。
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrNoRefreshToken はリフレッシュトークンが渡されなかったことを示す。
	ErrNoRefreshToken = errors.New("auth: no refresh token")
	// ErrRefreshTokenExpired はリフレッシュトークンの有効期限切れを示す。
	ErrRefreshTokenExpired = errors.New("auth: refresh token expired")
	// ErrInvalidRefreshToken はリフレッシュトークンが無効か、ユーザーが存在しないことを示す。
	ErrInvalidRefreshToken = errors.New("auth: invalid refresh token")
)

// UserFinder はログインと再発行で使うユーザー検索。*user.Store が満たす。
type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*user.User, error)
	FindByID(ctx context.Context, id int64) (*user.User, error)
}

// PasswordVerifier はパスワードの照合。*user.Hasher が満たす。
type PasswordVerifier interface {
	Compare(hash, password string) bool
	CompareDummy(password string) bool
}

// TokenIssuer はトークンの発行と検証。*token.Codec が満たす。
type TokenIssuer interface {
	CreateAccessToken(userID int64) (string, error)
	CreateRefreshToken(userID int64) (string, error)
	Parse(tokenString string) (*token.Claims, error)
}

// Profile はログイン応答に含めるユーザー情報。
type Profile struct {
	UserID       int64
	Email        string
	Nickname     string
	ProfileImage string
}

// Session はログイン成功時に発行されたトークンの組。
type Session struct {
	AccessToken  string
	RefreshToken string
	Profile      Profile
}

// Service は認証のユースケースを実行する。
type Service struct {
	users     UserFinder
	passwords PasswordVerifier
	issuer    TokenIssuer
}

// NewService は新しいServiceを生成する。
func NewService(users UserFinder, passwords PasswordVerifier, issuer TokenIssuer) *Service {
	return &Service{users: users, passwords: passwords, issuer: issuer}
}

// Login はメールアドレスとパスワードを照合し、トークンの組を発行する。
// 照合に失敗した場合は ErrInvalidCredentials を返す。
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, user.ErrNotFound) {
		// 未登録でも照合と同程度の時間をかける
		s.passwords.CompareDummy(password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("ログインユーザーの検索に失敗: %w", err)
	}
	if !s.passwords.Compare(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	accessToken, err := s.issuer.CreateAccessToken(u.ID)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.issuer.CreateRefreshToken(u.ID)
	if err != nil {
		return nil, err
	}

	return &Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Profile: Profile{
			UserID:       u.ID,
			Email:        u.Email,
			Nickname:     u.Nickname,
			ProfileImage: u.ProfileImage,
		},
	}, nil
}

// Refresh はリフレッシュトークンを検証し、新しいアクセストークンを返す。
// リフレッシュトークン自体は再発行しない。
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", ErrNoRefreshToken
	}

	claims, err := s.issuer.Parse(refreshToken)
	switch {
	case errors.Is(err, token.ErrExpired):
		return "", fmt.Errorf("%w: %w", ErrRefreshTokenExpired, err)
	case err != nil:
		return "", fmt.Errorf("%w: %w", ErrInvalidRefreshToken, err)
	}
	if claims.Kind != token.KindRefresh {
		return "", fmt.Errorf("%w: %sトークンが渡されました", ErrInvalidRefreshToken, claims.Kind)
	}

	userID, err := claims.UserID()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRefreshToken, err)
	}
	u, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, user.ErrNotFound) {
		return "", fmt.Errorf("%w: %w", ErrInvalidRefreshToken, err)
	}
	if err != nil {
		return "", fmt.Errorf("再発行ユーザーの検索に失敗: %w", err)
	}

	return s.issuer.CreateAccessToken(u.ID)
}
