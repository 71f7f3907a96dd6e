package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasher(t *testing.T) {
	t.Parallel()

	h := NewHasher(bcrypt.MinCost)

	t.Run("ハッシュ化したパスワードと照合できること", func(t *testing.T) {
		t.Parallel()

		hash, err := h.Hash("s3cret")
		require.NoError(t, err)
		assert.NotEqual(t, "s3cret", hash)
		assert.True(t, h.Compare(hash, "s3cret"))
		assert.False(t, h.Compare(hash, "wrong"))
	})

	t.Run("同じパスワードでもハッシュは毎回異なること", func(t *testing.T) {
		t.Parallel()

		a, err := h.Hash("same")
		require.NoError(t, err)
		b, err := h.Hash("same")
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("不正なハッシュとの照合はfalseになること", func(t *testing.T) {
		t.Parallel()

		assert.False(t, h.Compare("not-a-bcrypt-hash", "s3cret"))
	})

	t.Run("ダミー照合は常にfalseを返すこと", func(t *testing.T) {
		t.Parallel()

		assert.False(t, h.CompareDummy("community-board-dummy-password"))
		assert.False(t, h.CompareDummy(""))
	})
}

func TestNewHasher_DefaultCost(t *testing.T) {
	t.Parallel()

	assert.Equal(t, bcrypt.DefaultCost, NewHasher(0).cost)
	assert.Equal(t, bcrypt.MinCost, NewHasher(bcrypt.MinCost).cost)
}
