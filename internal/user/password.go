package user

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// dummyHash は存在しないユーザーに対して照合を行うためのハッシュ。初回利用時に生成する。
var dummyHash = sync.OnceValue(func() []byte {
	b, err := bcrypt.GenerateFromPassword([]byte("community-board-dummy-password"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return b
})

// Hasher はbcryptによるパスワードのハッシュ化と照合を行う。
type Hasher struct {
	cost int
}

// NewHasher はコストを指定してHasherを生成する。0以下なら bcrypt.DefaultCost を使う。
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash はパスワードをハッシュ化する。
func (h *Hasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("パスワードのハッシュ化に失敗: %w", err)
	}
	return string(b), nil
}

// Compare はパスワードがハッシュと一致するかを返す。比較は定数時間で行われる。
func (h *Hasher) Compare(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// CompareDummy は存在しないユーザーのログインでも照合と同程度の時間をかけるために使う。
// 常にfalseを返す。
func (h *Hasher) CompareDummy(password string) bool {
	_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
	return false
}
