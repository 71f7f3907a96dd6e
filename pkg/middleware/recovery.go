package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/community/pkg/response"
	"github.com/sirupsen/logrus"
)

// Recovery はパニックからの回復を行うGinミドルウェアを返す。
// パニック発生時はリクエスト情報とともにログへ出力し、500のエンベロープを返す。
func Recovery(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.WithFields(logrus.Fields{
					"method": c.Request.Method,
					"path":   c.Request.URL.Path,
					"panic":  r,
				}).Error("ハンドラでパニックが発生しました")
				response.Abort(c, http.StatusInternalServerError, "internal server error", response.CodeNone)
			}
		}()
		c.Next()
	}
}
