package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/community/pkg/response"
	"github.com/nao1215/community/pkg/token"
)

// contextKeyUserID は認証済みユーザーIDをGinコンテキストに保存するキー。
const contextKeyUserID = "user_id"

// bearerPrefix はAuthorizationヘッダーの値に要求される接頭辞。
const bearerPrefix = "Bearer "

// TokenParser はアクセストークンを検証してクレームを返す。
// *token.Codec が満たす。
type TokenParser interface {
	Parse(tokenString string) (*token.Claims, error)
}

// GateDecision は認証ゲートが1リクエストに対して下した判定。
type GateDecision string

const (
	// DecisionExempt は除外ルールに一致して検査をスキップしたことを示す。
	DecisionExempt GateDecision = "exempt"
	// DecisionAuthenticated は有効なアクセストークンで通過したことを示す。
	DecisionAuthenticated GateDecision = "authenticated"
	// DecisionNoAccessToken はヘッダーがない、または形式不正で拒否したことを示す。
	DecisionNoAccessToken GateDecision = "no_access_token"
	// DecisionInvalidAccessToken はトークンの検証に失敗して拒否したことを示す。
	DecisionInvalidAccessToken GateDecision = "invalid_access_token"
)

// AuthOption はAuthenticateの動作を調整する。
type AuthOption func(*authConfig)

type authConfig struct {
	observe func(GateDecision)
}

// WithDecisionObserver はリクエストごとの判定を受け取る関数を登録する。
// メトリクスの集計に使う。
func WithDecisionObserver(fn func(GateDecision)) AuthOption {
	return func(cfg *authConfig) {
		cfg.observe = fn
	}
}

// Authenticate はアクセストークンを検証するGinミドルウェアを返す。
//
// 除外ルールに一致するリクエストはそのまま通す。それ以外は
// "Authorization: Bearer <token>" を要求し、ヘッダーがなければ AUTH_NO_AT、
// トークンが無効・期限切れ・アクセストークン以外であれば AUTH_AT_EXPIRED を
// 401で返して後続を実行しない。成功時はユーザーIDをコンテキストに設定する。
func Authenticate(parser TokenParser, exclusions Exclusions, opts ...AuthOption) gin.HandlerFunc {
	cfg := authConfig{observe: func(GateDecision) {}}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(c *gin.Context) {
		if exclusions.IsExempt(c.Request.Method, c.Request.URL.Path) {
			cfg.observe(DecisionExempt)
			c.Next()
			return
		}

		tokenString, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			cfg.observe(DecisionNoAccessToken)
			response.Abort(c, http.StatusUnauthorized, "no access token in header", response.CodeNoAccessToken)
			return
		}

		userID, ok := accessTokenSubject(parser, tokenString)
		if !ok {
			cfg.observe(DecisionInvalidAccessToken)
			response.Abort(c, http.StatusUnauthorized, "access token expired, get a new token", response.CodeAccessTokenExpired)
			return
		}

		cfg.observe(DecisionAuthenticated)
		c.Set(contextKeyUserID, userID)
		c.Next()
	}
}

// bearerToken は "Bearer <token>" 形式のヘッダー値からトークンを取り出す。
func bearerToken(header string) (string, bool) {
	tokenString, found := strings.CutPrefix(header, bearerPrefix)
	if !found || tokenString == "" {
		return "", false
	}
	return tokenString, true
}

// accessTokenSubject はトークンを検証し、アクセストークンであればユーザーIDを返す。
func accessTokenSubject(parser TokenParser, tokenString string) (int64, bool) {
	claims, err := parser.Parse(tokenString)
	if err != nil || claims.Kind != token.KindAccess {
		return 0, false
	}
	userID, err := claims.UserID()
	if err != nil {
		return 0, false
	}
	return userID, true
}

// UserID はGinコンテキストから認証済みユーザーIDを取得する。
// Authenticateを通過していないリクエストではfalseを返す。
func UserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(contextKeyUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
