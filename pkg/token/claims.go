package token

import (
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// Kind はトークンの用途を表す。
type Kind string

const (
	// KindAccess はリクエストごとにAuthorizationヘッダーで送られる短命トークン。
	KindAccess Kind = "access"
	// KindRefresh はCookieでのみ運ばれ、アクセストークンの再発行に使う長命トークン。
	KindRefresh Kind = "refresh"
)

// Claims はトークンのペイロード。
// Subjectには10進数のユーザーIDが入る。リフレッシュトークンのみIDにjtiを持つ。
type Claims struct {
	jwt.RegisteredClaims
	// Kind はトークンの用途。
	Kind Kind `json:"type"`
}

// UserID はSubjectをユーザーIDとして解釈する。
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("subjectがユーザーIDではありません: %w", err)
	}
	return id, nil
}

// validate はjwtライブラリの検証に加えて、用途とSubjectの形式を確認する。
func (c *Claims) validate() error {
	switch c.Kind {
	case KindAccess, KindRefresh:
	default:
		return fmt.Errorf("不明なトークン種別: %q", c.Kind)
	}
	if _, err := c.UserID(); err != nil {
		return err
	}
	return nil
}
