package token

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// AccessTokenTTL はアクセストークンの有効期間。
	AccessTokenTTL = 5 * time.Minute
	// RefreshTokenTTL はリフレッシュトークンの有効期間。
	RefreshTokenTTL = 14 * 24 * time.Hour

	// issuer はトークンのissクレームに入る値。
	issuer = "community-board"
)

var (
	// ErrMalformed はトークンの構造やエンコーディングを解釈できないことを示す。
	ErrMalformed = errors.New("token: malformed")
	// ErrSignatureInvalid は署名が一致しないことを示す。
	ErrSignatureInvalid = errors.New("token: signature invalid")
	// ErrExpired は有効期限を過ぎていることを示す。
	ErrExpired = errors.New("token: expired")
)

// signingMethod は全トークン共通の署名アルゴリズム。
var signingMethod = jwt.SigningMethodHS256

// Codec は固定の共有鍵でトークンを発行・検証する。
// 生成後は鍵も設定も書き換えないため、並行利用にロックは不要。
type Codec struct {
	key []byte
	now func() time.Time
}

// Option はCodecの生成オプション。
type Option func(*Codec)

// WithClock は現在時刻の取得元を差し替える。テストで時間を進めるために使う。
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// NewCodec は署名鍵からCodecを生成する。
// 鍵はコピーして保持するため、呼び出し側が後でスライスを書き換えても影響しない。
func NewCodec(key []byte, opts ...Option) (*Codec, error) {
	if len(key) == 0 {
		return nil, errors.New("署名鍵が空です")
	}

	c := &Codec{
		key: append([]byte(nil), key...),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CreateAccessToken はユーザーIDに対する5分間有効のアクセストークンを発行する。
func (c *Codec) CreateAccessToken(userID int64) (string, error) {
	return c.sign(userID, KindAccess, AccessTokenTTL, "")
}

// CreateRefreshToken はユーザーIDに対する14日間有効のリフレッシュトークンを発行する。
// 呼び出しごとに新しいjtiを付与する。
func (c *Codec) CreateRefreshToken(userID int64) (string, error) {
	return c.sign(userID, KindRefresh, RefreshTokenTTL, uuid.NewString())
}

func (c *Codec) sign(userID int64, kind Kind, ttl time.Duration, id string) (string, error) {
	now := c.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    issuer,
			ID:        id,
		},
		Kind: kind,
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("%sトークンの署名に失敗: %w", kind, err)
	}
	return signed, nil
}

// Parse はトークン文字列を検証し、クレームを返す。
//
// 返すエラーは errors.Is で ErrMalformed、ErrSignatureInvalid、ErrExpired の
// いずれかに分類できる。署名はペイロードの解釈より先に検証するため、
// 改ざんされたトークンは必ず ErrSignatureInvalid になる。
func (c *Codec) Parse(tokenString string) (*Claims, error) {
	parser := c.parser()

	if err := c.verifySignature(parser, tokenString); err != nil {
		return nil, err
	}

	claims := &Claims{}
	if _, err := parser.ParseWithClaims(tokenString, claims, c.keyFunc); err != nil {
		return nil, classify(err)
	}
	if err := claims.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return claims, nil
}

func (c *Codec) parser() *jwt.Parser {
	return jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithTimeFunc(c.validationTime),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
	)
}

// validationTime は期限判定に使う時刻を返す。
// jwtライブラリは now >= exp を期限切れとするため、1ナノ秒戻して
// exp ちょうどの時刻までを有効、exp を過ぎたら期限切れとする。
func (c *Codec) validationTime() time.Time {
	return c.now().Add(-time.Nanosecond)
}

// verifySignature はヘッダーとペイロードをデコードする前に、
// 署名入力の文字列そのものに対してHMACを照合する。
func (c *Codec) verifySignature(parser *jwt.Parser, tokenString string) error {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return fmt.Errorf("%w: セグメント数が%dです", ErrMalformed, len(parts))
	}

	sig, err := parser.DecodeSegment(parts[2])
	if err != nil {
		return fmt.Errorf("%w: 署名をデコードできません: %w", ErrSignatureInvalid, err)
	}
	if err := signingMethod.Verify(parts[0]+"."+parts[1], sig, c.key); err != nil {
		return fmt.Errorf("%w: %w", ErrSignatureInvalid, err)
	}
	return nil
}

func (c *Codec) keyFunc(_ *jwt.Token) (any, error) {
	return c.key, nil
}

// classify はjwtライブラリのエラーをこのパッケージの分類に変換する。
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %w", ErrSignatureInvalid, err)
	default:
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
}
