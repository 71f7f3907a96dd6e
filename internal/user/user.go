package user

import (
	"embed"
	"errors"
	"time"
)

// Migrations はusersテーブルのマイグレーション。
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir はMigrations内のディレクトリ名。
const MigrationsDir = "migrations"

var (
	// ErrNotFound はユーザーが存在しないことを示す。
	ErrNotFound = errors.New("user: not found")
	// ErrDuplicateEmail は同じメールアドレスのユーザーが既に存在することを示す。
	ErrDuplicateEmail = errors.New("user: email already exists")
	// ErrDuplicateNickname は同じニックネームのユーザーが既に存在することを示す。
	ErrDuplicateNickname = errors.New("user: nickname already exists")
)

// User は掲示板のユーザー。
type User struct {
	// ID はユーザーの一意識別子。トークンのsubjectになる。
	ID int64
	// Email はログインに使うメールアドレス。
	Email string
	// Nickname は表示名。
	Nickname string
	// PasswordHash はbcryptでハッシュ化したパスワード。
	PasswordHash string
	// ProfileImage はプロフィール画像のURL。
	ProfileImage string
	// CreatedAt は登録日時。
	CreatedAt time.Time
	// UpdatedAt は更新日時。
	UpdatedAt time.Time
}

// NewUser は登録するユーザーの入力。PasswordHashはハッシュ化済みであること。
type NewUser struct {
	Email        string
	Nickname     string
	PasswordHash string
	ProfileImage string
}
