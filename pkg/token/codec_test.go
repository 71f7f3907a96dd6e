package token

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testKey はテスト用の署名鍵。
var testKey = []byte("test-secret-key-for-unit-tests")

// newTestCodec は時刻を固定したCodecと、その時刻を進める関数を返す。
func newTestCodec(t *testing.T, start time.Time) (*Codec, func(time.Duration)) {
	t.Helper()

	now := start
	c, err := NewCodec(testKey, WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	return c, func(d time.Duration) { now = now.Add(d) }
}

// signRaw は任意のクレームをテスト鍵で署名する。
func signRaw(t *testing.T, method jwt.SigningMethod, claims jwt.Claims, key any) string {
	t.Helper()

	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestNewCodec(t *testing.T) {
	t.Parallel()

	t.Run("空の鍵はエラーになること", func(t *testing.T) {
		t.Parallel()

		_, err := NewCodec(nil)
		require.Error(t, err)
	})

	t.Run("生成後に元の鍵スライスを書き換えても影響しないこと", func(t *testing.T) {
		t.Parallel()

		key := []byte("mutable-key")
		c, err := NewCodec(key)
		require.NoError(t, err)

		tok, err := c.CreateAccessToken(1)
		require.NoError(t, err)

		key[0] = 'X'
		_, err = c.Parse(tok)
		assert.NoError(t, err)
	})
}

func TestCreateAndParse(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("アクセストークンがsubjectを保って往復すること", func(t *testing.T) {
		t.Parallel()

		c, _ := newTestCodec(t, base)
		tok, err := c.CreateAccessToken(42)
		require.NoError(t, err)

		claims, err := c.Parse(tok)
		require.NoError(t, err)

		id, err := claims.UserID()
		require.NoError(t, err)
		assert.Equal(t, int64(42), id)
		assert.Equal(t, KindAccess, claims.Kind)
		assert.Empty(t, claims.ID)
		assert.True(t, claims.IssuedAt.Time.Equal(base))
		assert.Equal(t, AccessTokenTTL, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
	})

	t.Run("リフレッシュトークンは14日間有効でjtiを持つこと", func(t *testing.T) {
		t.Parallel()

		c, _ := newTestCodec(t, base)
		tok, err := c.CreateRefreshToken(7)
		require.NoError(t, err)

		claims, err := c.Parse(tok)
		require.NoError(t, err)

		assert.Equal(t, KindRefresh, claims.Kind)
		assert.Equal(t, "7", claims.Subject)
		assert.NotEmpty(t, claims.ID)
		assert.Equal(t, RefreshTokenTTL, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
	})

	t.Run("リフレッシュトークンのjtiは発行ごとに異なること", func(t *testing.T) {
		t.Parallel()

		c, _ := newTestCodec(t, base)
		first, err := c.CreateRefreshToken(7)
		require.NoError(t, err)
		second, err := c.CreateRefreshToken(7)
		require.NoError(t, err)

		a, err := c.Parse(first)
		require.NoError(t, err)
		b, err := c.Parse(second)
		require.NoError(t, err)
		assert.NotEqual(t, a.ID, b.ID)
	})

	t.Run("署名アルゴリズムがHS256であること", func(t *testing.T) {
		t.Parallel()

		c, _ := newTestCodec(t, base)
		tok, err := c.CreateAccessToken(1)
		require.NoError(t, err)

		parsed, _, err := jwt.NewParser().ParseUnverified(tok, &Claims{})
		require.NoError(t, err)
		assert.Equal(t, "HS256", parsed.Method.Alg())
	})

	t.Run("負のユーザーIDや大きな値も往復すること", func(t *testing.T) {
		t.Parallel()

		c, _ := newTestCodec(t, base)
		for _, id := range []int64{0, -1, 1 << 62} {
			tok, err := c.CreateAccessToken(id)
			require.NoError(t, err)
			claims, err := c.Parse(tok)
			require.NoError(t, err)
			got, err := claims.UserID()
			require.NoError(t, err)
			assert.Equal(t, id, got)
		}
	})
}

func TestParseExpiry(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("ユーザー42のアクセストークンは5分経過後に期限切れになること", func(t *testing.T) {
		t.Parallel()

		c, advance := newTestCodec(t, base)
		tok, err := c.CreateAccessToken(42)
		require.NoError(t, err)

		claims, err := c.Parse(tok)
		require.NoError(t, err)
		assert.Equal(t, "42", claims.Subject)

		advance(4*time.Minute + 59*time.Second)
		_, err = c.Parse(tok)
		require.NoError(t, err)

		advance(2 * time.Second)
		_, err = c.Parse(tok)
		require.ErrorIs(t, err, ErrExpired)
		assert.NotErrorIs(t, err, ErrSignatureInvalid)
		assert.NotErrorIs(t, err, ErrMalformed)
	})

	t.Run("有効期限ちょうどの時刻はまだ有効で、それを過ぎると期限切れになること", func(t *testing.T) {
		t.Parallel()

		c, advance := newTestCodec(t, base)
		tok, err := c.CreateAccessToken(7)
		require.NoError(t, err)

		advance(AccessTokenTTL)
		_, err = c.Parse(tok)
		require.NoError(t, err)

		advance(time.Nanosecond)
		_, err = c.Parse(tok)
		assert.ErrorIs(t, err, ErrExpired)
	})

	t.Run("リフレッシュトークンは14日経過後に期限切れになること", func(t *testing.T) {
		t.Parallel()

		c, advance := newTestCodec(t, base)
		tok, err := c.CreateRefreshToken(3)
		require.NoError(t, err)

		advance(13 * 24 * time.Hour)
		_, err = c.Parse(tok)
		require.NoError(t, err)

		advance(24*time.Hour + time.Second)
		_, err = c.Parse(tok)
		assert.ErrorIs(t, err, ErrExpired)
	})

	t.Run("別のCodecで発行された期限切れトークンも期限切れに分類されること", func(t *testing.T) {
		t.Parallel()

		issuerCodec, _ := newTestCodec(t, base.Add(-time.Hour))
		tok, err := issuerCodec.CreateAccessToken(9)
		require.NoError(t, err)

		verifier, _ := newTestCodec(t, base)
		_, err = verifier.Parse(tok)
		assert.ErrorIs(t, err, ErrExpired)
	})
}

func TestParseTampered(t *testing.T) {
	t.Parallel()

	c, _ := newTestCodec(t, time.Now())
	tok, err := c.CreateRefreshToken(42)
	require.NoError(t, err)

	t.Run("任意の1バイトを書き換えると署名エラーになること", func(t *testing.T) {
		t.Parallel()

		for i := range len(tok) {
			if tok[i] == '.' {
				continue
			}
			replacement := byte('A')
			if tok[i] == 'A' {
				replacement = 'B'
			}
			tampered := tok[:i] + string(replacement) + tok[i+1:]

			_, err := c.Parse(tampered)
			if !assert.ErrorIs(t, err, ErrSignatureInvalid, "position %d", i) {
				return
			}
		}
	})

	t.Run("異なる鍵で署名されたトークンは署名エラーになること", func(t *testing.T) {
		t.Parallel()

		other, err := NewCodec([]byte("another-secret"))
		require.NoError(t, err)
		foreign, err := other.CreateAccessToken(42)
		require.NoError(t, err)

		_, err = c.Parse(foreign)
		assert.ErrorIs(t, err, ErrSignatureInvalid)
	})

	t.Run("alg=noneのトークンは署名エラーになること", func(t *testing.T) {
		t.Parallel()

		claims := Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "42",
				Issuer:    issuer,
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
			Kind: KindAccess,
		}
		unsigned := signRaw(t, jwt.SigningMethodNone, claims, jwt.UnsafeAllowNoneSignatureType)

		_, err := c.Parse(unsigned)
		assert.ErrorIs(t, err, ErrSignatureInvalid)
	})
}

func TestParseMalformed(t *testing.T) {
	t.Parallel()

	c, _ := newTestCodec(t, time.Now())

	tests := []struct {
		name  string
		input string
	}{
		{name: "空文字列", input: ""},
		{name: "ドットなし", input: "not-a-token"},
		{name: "セグメントが2つ", input: "aaa.bbb"},
		{name: "セグメントが4つ", input: "a.b.c.d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := c.Parse(tt.input)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}

	t.Run("正しく署名されていてもsubjectが整数でなければ不正形式になること", func(t *testing.T) {
		t.Parallel()

		claims := Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "user-abc",
				Issuer:    issuer,
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
			Kind: KindAccess,
		}
		_, err := c.Parse(signRaw(t, jwt.SigningMethodHS256, claims, testKey))
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("未知のトークン種別は不正形式になること", func(t *testing.T) {
		t.Parallel()

		claims := Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "1",
				Issuer:    issuer,
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
			Kind: "session",
		}
		_, err := c.Parse(signRaw(t, jwt.SigningMethodHS256, claims, testKey))
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("有効期限のないトークンは受け付けないこと", func(t *testing.T) {
		t.Parallel()

		claims := Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "1", Issuer: issuer},
			Kind:             KindAccess,
		}
		_, err := c.Parse(signRaw(t, jwt.SigningMethodHS256, claims, testKey))
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrExpired)
	})
}

func TestParseConcurrent(t *testing.T) {
	t.Parallel()

	c, err := NewCodec(testKey)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := range 64 {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			tok, err := c.CreateAccessToken(id)
			if err != nil {
				errs <- err
				return
			}
			claims, err := c.Parse(tok)
			if err != nil {
				errs <- err
				return
			}
			if claims.Subject != strconv.FormatInt(id, 10) {
				errs <- assert.AnError
			}
		}(int64(i))
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}
