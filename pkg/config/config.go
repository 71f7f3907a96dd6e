// Package config はサービスの設定を読み込む。
//
// 既定値、YAMLファイル、環境変数の順に上書きする。YAMLファイルが存在しない場合は
// エラーにせず既定値を使う。JWTの署名鍵はソースコードに持たず、必ず外部から与える。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/nao1215/community/pkg/middleware"
	"gopkg.in/yaml.v3"
)

// Config はサービス全体の設定。
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Cookie   CookieConfig   `yaml:"cookie"`
	CORS     CORSConfig     `yaml:"cors"`
	Upload   UploadConfig   `yaml:"upload"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig はHTTPサーバーの設定。
type ServerConfig struct {
	// Port はリッスンポート。
	Port string `yaml:"port"`
}

// DatabaseConfig はユーザーストアの設定。
type DatabaseConfig struct {
	// Path はSQLiteのDSN。
	Path string `yaml:"path"`
}

// AuthConfig は認証の設定。
type AuthConfig struct {
	// JWTSecret はトークン署名用の共有鍵。空は許可しない。
	JWTSecret string `yaml:"jwt_secret"`
	// Exclusions は認証を必要としない "METHOD /path" の一覧。
	// 空の場合は公開エンドポイントの既定リストを使う。
	Exclusions []string `yaml:"exclusions"`
}

// CookieConfig はリフレッシュトークンCookieの属性。
type CookieConfig struct {
	// Domain はCookieのDomain属性。空ならホスト限定。
	Domain string `yaml:"domain"`
	// Secure はSecure属性を付けるかどうか。
	Secure bool `yaml:"secure"`
	// SameSite は lax, strict, none のいずれか。
	SameSite string `yaml:"same_site"`
}

// SameSiteMode はSameSite属性をnet/httpの値に変換する。空はlaxとして扱う。
func (c CookieConfig) SameSiteMode() http.SameSite {
	switch c.SameSite {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// CORSConfig はCORSの設定。
type CORSConfig struct {
	// AllowedOrigins はクロスオリジンを許可するオリジン。
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// UploadConfig はプロフィール画像のアップロード設定。
type UploadConfig struct {
	// Dir は画像の保存先ディレクトリ。/uploads 配下で公開される。
	Dir string `yaml:"dir"`
}

// LogConfig はログ出力の設定。
type LogConfig struct {
	// Level はlogrusのログレベル名。
	Level string `yaml:"level"`
	// Format は text または json。
	Format string `yaml:"format"`
}

// Default は既定値の設定を返す。JWTSecretは空のまま。
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Port: "8080"},
		Database: DatabaseConfig{Path: "/data/community.db"},
		Cookie:   CookieConfig{SameSite: "lax"},
		CORS:     CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		Upload:   UploadConfig{Dir: "./uploads"},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

// Load は既定値にYAMLファイルと環境変数を重ねた設定を返す。
// pathが空、またはファイルが存在しない場合はYAMLの読み込みを省略する。
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("設定ファイルの解析に失敗: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv は環境変数が設定されている項目を上書きする。
func (c *Config) applyEnv() error {
	c.Server.Port = getEnvOr("PORT", c.Server.Port)
	c.Database.Path = getEnvOr("DATABASE_PATH", c.Database.Path)
	c.Auth.JWTSecret = getEnvOr("JWT_SECRET", c.Auth.JWTSecret)
	c.Cookie.Domain = getEnvOr("COOKIE_DOMAIN", c.Cookie.Domain)
	c.Cookie.SameSite = getEnvOr("COOKIE_SAME_SITE", c.Cookie.SameSite)
	c.Upload.Dir = getEnvOr("UPLOAD_DIR", c.Upload.Dir)
	c.Log.Level = getEnvOr("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnvOr("LOG_FORMAT", c.Log.Format)

	if v := os.Getenv("FRONTEND_URL"); v != "" {
		c.CORS.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("COOKIE_SECURE"); v != "" {
		secure, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("COOKIE_SECUREの値が不正です: %w", err)
		}
		c.Cookie.Secure = secure
	}
	return nil
}

// Validate は起動前に満たすべき条件を確認する。
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT署名鍵が設定されていません (auth.jwt_secret または JWT_SECRET)")
	}
	if c.Server.Port == "" {
		return errors.New("リッスンポートが設定されていません")
	}
	if c.Upload.Dir == "" {
		return errors.New("画像の保存先が設定されていません (upload.dir または UPLOAD_DIR)")
	}
	switch c.Cookie.SameSite {
	case "", "lax", "strict", "none":
	default:
		return fmt.Errorf("cookie.same_siteの値が不正です: %q", c.Cookie.SameSite)
	}
	if _, err := c.ExclusionRules(); err != nil {
		return err
	}
	return nil
}

// ExclusionRules は認証の除外ルールを返す。
// 設定が空なら既定の公開エンドポイントを返す。
func (c *Config) ExclusionRules() (middleware.Exclusions, error) {
	if len(c.Auth.Exclusions) == 0 {
		return middleware.DefaultExclusions(), nil
	}

	rules := make([]middleware.ExclusionRule, 0, len(c.Auth.Exclusions))
	for _, s := range c.Auth.Exclusions {
		r, err := middleware.ParseExclusionRule(s)
		if err != nil {
			return middleware.Exclusions{}, err
		}
		rules = append(rules, r)
	}
	return middleware.NewExclusions(rules...), nil
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
