package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nao1215/community/pkg/migration"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// userColumns はSELECTで取得する列。scanUserの順序と一致させること。
const userColumns = "id, email, nickname, password, profile_image, created_at, updated_at"

// Store はSQLiteに保存されたユーザーを扱う。
// *sql.DBはゴルーチン安全なので、Storeも並行に利用できる。
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore は接続済みのデータベースからStoreを生成する。スキーマは作成しない。
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Open はSQLiteデータベースを開き、マイグレーションを適用したStoreを返す。
func Open(ctx context.Context, dsn string, logger logrus.FieldLogger) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if isMemoryDSN(dsn) {
		// インメモリDBは接続ごとに別のデータベースになるため1本に固定する
		db.SetMaxOpenConns(1)
	}

	if _, err := migration.Run(ctx, db, Migrations, MigrationsDir, logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return NewStore(db), nil
}

func isMemoryDSN(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// Close はデータベース接続を閉じる。
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping はデータベースに到達できるかを確認する。
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// FindByID はIDでユーザーを検索する。存在しなければ ErrNotFound を返す。
func (s *Store) FindByID(ctx context.Context, id int64) (*User, error) {
	return s.findOne(ctx, "id = ?", id)
}

// FindByEmail はメールアドレスでユーザーを検索する。存在しなければ ErrNotFound を返す。
func (s *Store) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.findOne(ctx, "email = ?", email)
}

// FindByNickname はニックネームでユーザーを検索する。存在しなければ ErrNotFound を返す。
func (s *Store) FindByNickname(ctx context.Context, nickname string) (*User, error) {
	return s.findOne(ctx, "nickname = ?", nickname)
}

func (s *Store) findOne(ctx context.Context, where string, arg any) (*User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE "+where, arg)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗: %w", err)
	}
	return u, nil
}

func scanUser(row *sql.Row) (*User, error) {
	var (
		u                    User
		createdAt, updatedAt int64
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Nickname, &u.PasswordHash, &u.ProfileImage, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	u.CreatedAt = time.Unix(createdAt, 0).UTC()
	u.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &u, nil
}

// Create はユーザーを登録し、採番されたIDを返す。
// メールアドレスまたはニックネームが重複する場合は ErrDuplicateEmail か ErrDuplicateNickname を返す。
func (s *Store) Create(ctx context.Context, nu NewUser) (int64, error) {
	if _, err := s.FindByEmail(ctx, nu.Email); err == nil {
		return 0, ErrDuplicateEmail
	} else if !errors.Is(err, ErrNotFound) {
		return 0, err
	}
	if _, err := s.FindByNickname(ctx, nu.Nickname); err == nil {
		return 0, ErrDuplicateNickname
	} else if !errors.Is(err, ErrNotFound) {
		return 0, err
	}

	now := s.now().Unix()
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO users (email, nickname, password, profile_image, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		nu.Email, nu.Nickname, nu.PasswordHash, nu.ProfileImage, now, now,
	)
	if err != nil {
		// 事前確認と挿入の間に同じ値が登録された場合は一意制約で検出する
		return 0, classifyConstraint(fmt.Errorf("ユーザーの登録に失敗: %w", err))
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("採番されたIDの取得に失敗: %w", err)
	}
	return id, nil
}

// Delete はユーザーを削除する。存在しなければ ErrNotFound を返す。
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("ユーザーの削除に失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePassword はパスワードハッシュを差し替える。存在しなければ ErrNotFound を返す。
func (s *Store) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET password = ?, updated_at = ? WHERE id = ?",
		passwordHash, s.now().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("パスワードの更新に失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新件数の取得に失敗: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProfile はニックネームとプロフィール画像を更新し、更新後のユーザーを返す。
// ニックネームが他のユーザーと重複する場合は ErrDuplicateNickname を返す。
func (s *Store) UpdateProfile(ctx context.Context, id int64, nickname, profileImage string) (*User, error) {
	holder, err := s.FindByNickname(ctx, nickname)
	switch {
	case err == nil && holder.ID != id:
		return nil, ErrDuplicateNickname
	case err != nil && !errors.Is(err, ErrNotFound):
		return nil, err
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET nickname = ?, profile_image = ?, updated_at = ? WHERE id = ?",
		nickname, profileImage, s.now().Unix(), id,
	)
	if err != nil {
		return nil, classifyConstraint(fmt.Errorf("プロフィールの更新に失敗: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("更新件数の取得に失敗: %w", err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return s.FindByID(ctx, id)
}

func classifyConstraint(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed: users.email"):
		return ErrDuplicateEmail
	case strings.Contains(msg, "UNIQUE constraint failed: users.nickname"):
		return ErrDuplicateNickname
	default:
		return err
	}
}
