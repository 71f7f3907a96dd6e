package middleware

import (
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExclusionRule(t *testing.T) {
	t.Parallel()

	t.Run("メソッドは大文字に正規化されること", func(t *testing.T) {
		t.Parallel()

		r, err := ParseExclusionRule("  get /posts/*  ")
		require.NoError(t, err)
		assert.Equal(t, ExclusionRule{Method: http.MethodGet, Pattern: "/posts/*"}, r)
		assert.Equal(t, "GET /posts/*", r.String())
	})

	for _, in := range []string{"", "GET", "/posts", "GET posts", " /posts"} {
		t.Run("不正な形式はエラーになること: "+in, func(t *testing.T) {
			t.Parallel()

			_, err := ParseExclusionRule(in)
			assert.Error(t, err)
		})
	}
}

func TestExclusionsIsExempt(t *testing.T) {
	t.Parallel()

	exclusions := DefaultExclusions()

	tests := []struct {
		name   string
		method string
		path   string
		want   bool
	}{
		{name: "ログインは公開", method: http.MethodPost, path: "/auth", want: true},
		{name: "ログアウトは保護", method: http.MethodDelete, path: "/auth", want: false},
		{name: "リフレッシュは保護", method: http.MethodGet, path: "/auth", want: false},
		{name: "投稿一覧は公開", method: http.MethodGet, path: "/posts", want: true},
		{name: "投稿詳細は公開", method: http.MethodGet, path: "/posts/7", want: true},
		{name: "メソッドは大文字小文字を区別しない", method: "get", path: "/posts/7", want: true},
		{name: "投稿詳細の下位パスは保護", method: http.MethodGet, path: "/posts/7/extra", want: false},
		{name: "投稿作成は保護", method: http.MethodPost, path: "/posts", want: false},
		{name: "投稿更新は保護", method: http.MethodPatch, path: "/posts/7", want: false},
		{name: "ワイルドカードは空セグメントに一致しない", method: http.MethodGet, path: "/posts/", want: false},
		{name: "返信一覧は公開", method: http.MethodGet, path: "/replies/3", want: true},
		{name: "返信の親パスは保護", method: http.MethodGet, path: "/replies", want: false},
		{name: "会員登録は公開", method: http.MethodPost, path: "/users", want: true},
		{name: "メール重複確認は公開", method: http.MethodPost, path: "/users/availability/email", want: true},
		{name: "ニックネーム重複確認は公開", method: http.MethodPost, path: "/users/availability/nickname", want: true},
		{name: "重複確認のGETは保護", method: http.MethodGet, path: "/users/availability/email", want: false},
		{name: "プロフィール画像アップロードは公開", method: http.MethodPost, path: "/users/image", want: true},
		{name: "ユーザー詳細は保護", method: http.MethodGet, path: "/users/1", want: false},
		{name: "末尾スラッシュは別のパス", method: http.MethodPost, path: "/auth/", want: false},
		{name: "ルートは保護", method: http.MethodGet, path: "/", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, exclusions.IsExempt(tt.method, tt.path))
		})
	}

	t.Run("ルールが空なら常に保護されること", func(t *testing.T) {
		t.Parallel()

		assert.False(t, NewExclusions().IsExempt(http.MethodPost, "/auth"))
	})

	t.Run("Rulesの戻り値を書き換えても一覧は変わらないこと", func(t *testing.T) {
		t.Parallel()

		e := NewExclusions(ExclusionRule{Method: http.MethodGet, Pattern: "/a"})
		rules := e.Rules()
		rules[0].Pattern = "/b"
		assert.True(t, e.IsExempt(http.MethodGet, "/a"))
		assert.False(t, e.IsExempt(http.MethodGet, "/b"))
	})

	t.Run("並行に呼び出しても結果が変わらないこと", func(t *testing.T) {
		t.Parallel()

		var wg sync.WaitGroup
		for range 32 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.True(t, exclusions.IsExempt(http.MethodGet, "/posts/1"))
				assert.False(t, exclusions.IsExempt(http.MethodGet, "/posts/1/2"))
			}()
		}
		wg.Wait()
	})
}
