// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// アクセストークンによる認証ゲートと公開エンドポイントの除外ルール、
// リクエストログ、パニックリカバリ、CORS設定を含む。
package middleware
