package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRequestLogger はRequestLoggerミドルウェアを検証する。
func TestRequestLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		wantLevel logrus.Level
	}{
		{name: "成功はInfoで記録されること", status: http.StatusOK, wantLevel: logrus.InfoLevel},
		{name: "クライアントエラーはWarnで記録されること", status: http.StatusUnauthorized, wantLevel: logrus.WarnLevel},
		{name: "サーバーエラーはErrorで記録されること", status: http.StatusInternalServerError, wantLevel: logrus.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, hook := logtest.NewNullLogger()
			router := gin.New()
			router.Use(RequestLogger(logger))
			router.GET("/posts", func(c *gin.Context) {
				c.Status(tt.status)
			})

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/posts", nil))

			require.Len(t, hook.AllEntries(), 1)
			entry := hook.LastEntry()
			assert.Equal(t, tt.wantLevel, entry.Level)
			assert.Equal(t, http.MethodGet, entry.Data["method"])
			assert.Equal(t, "/posts", entry.Data["path"])
			assert.Equal(t, tt.status, entry.Data["status"])
			assert.NotContains(t, entry.Data, "user_id")
		})
	}

	t.Run("認証済みリクエストではユーザーIDが記録されること", func(t *testing.T) {
		t.Parallel()

		logger, hook := logtest.NewNullLogger()
		router := gin.New()
		router.Use(RequestLogger(logger))
		router.GET("/me", func(c *gin.Context) {
			c.Set(contextKeyUserID, int64(42))
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))

		require.NotNil(t, hook.LastEntry())
		assert.Equal(t, int64(42), hook.LastEntry().Data["user_id"])
	})
}
