// Package response はHTTP APIの共通レスポンスエンベロープを提供する。
//
// すべての応答は {"message": ..., "errorCode": ..., "data": ...} の形をとり、
// errorCodeとdataは値がない場合にnullとして出力される。
package response

import (
	"bytes"
	"encoding/json"

	"github.com/gin-gonic/gin"
)

// ErrorCode はクライアントが次に取るべき行動を示すエラーコード。
// ゼロ値はコードなしを表し、JSONではnullになる。
type ErrorCode string

const (
	// CodeNone はエラーコードを持たない応答。
	CodeNone ErrorCode = ""
	// CodeNoAccessToken は保護されたルートにAuthorizationヘッダーがないことを示す。
	CodeNoAccessToken ErrorCode = "AUTH_NO_AT"
	// CodeAccessTokenExpired はアクセストークンが無効または期限切れであることを示す。
	CodeAccessTokenExpired ErrorCode = "AUTH_AT_EXPIRED"
	// CodeNoRefreshToken はリフレッシュ要求にCookieがないことを示す。
	CodeNoRefreshToken ErrorCode = "AUTH_NO_RT"
	// CodeRefreshTokenExpired はリフレッシュトークンが期限切れであることを示す。
	CodeRefreshTokenExpired ErrorCode = "AUTH_RT_EXPIRED"
)

// MarshalJSON はコードなしをnullとして出力する。
func (c ErrorCode) MarshalJSON() ([]byte, error) {
	if c == CodeNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(c))
}

// UnmarshalJSON はnullをコードなしとして読み込む。
func (c *ErrorCode) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*c = CodeNone
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*c = ErrorCode(s)
	return nil
}

// Envelope は全APIで共通のレスポンス形式。
type Envelope struct {
	// Message は人が読むための結果説明。
	Message string `json:"message"`
	// ErrorCode は失敗時の分類。成功時はnull。
	ErrorCode ErrorCode `json:"errorCode"`
	// Data は応答の本体。ない場合はnull。
	Data any `json:"data"`
}

// JSON はエンベロープを書き込む。gin.Context.JSONがContent-Typeに
// charset=utf-8を付与し、ステータスをボディより先に書き込む。
func JSON(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Envelope{Message: message, Data: data})
}

// Error はエラーコード付きのエンベロープを書き込む。後続のハンドラは止めない。
func Error(c *gin.Context, status int, message string, code ErrorCode) {
	c.JSON(status, Envelope{Message: message, ErrorCode: code})
}

// Abort はエラーエンベロープを書き込み、ミドルウェアチェーンを中断する。
func Abort(c *gin.Context, status int, message string, code ErrorCode) {
	c.AbortWithStatusJSON(status, Envelope{Message: message, ErrorCode: code})
}
