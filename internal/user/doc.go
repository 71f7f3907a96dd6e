// Package user は掲示板ユーザーの永続化と、会員登録・重複確認・照会のHTTPハンドラを提供する。
//
// ユーザーはSQLiteに保存し、パスワードはbcryptでハッシュ化する。
// 認証処理からはIDとメールアドレスによる検索と、パスワードハッシュの照合だけが使われる。
package user
