// Package board は掲示板バックエンドのHTTPサーバーを組み立てる。
//
// 設定からユーザーストア、トークンCodec、認証ゲートを生成し、
// /auth と /users のハンドラを登録する。/health と /metrics は認証ゲートの外に置く。
package board
