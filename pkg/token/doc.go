// Package token はアクセストークンとリフレッシュトークンの発行・検証を提供する。
//
// トークンはHS256で署名されたJWTであり、サーバー側には一切の状態を持たない。
// 署名鍵は起動時に一度だけ注入され、以後は読み取り専用として扱うため、
// Codecはロックなしで複数のゴルーチンから同時に利用できる。
package token
