// Package logging はlogrusのロガーを設定から組み立てる。
package logging

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// New は出力先、レベル名、フォーマット名からロガーを生成する。
// formatは "text" または "json"。空の場合はtextとして扱う。
func New(out io.Writer, level, format string) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(out)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("ログレベルが不正です: %w", err)
	}
	logger.SetLevel(lvl)

	switch format {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("ログフォーマットが不正です: %q", format)
	}
	return logger, nil
}
