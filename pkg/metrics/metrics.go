// Package metrics はPrometheusメトリクスを提供する。
//
// 認証ゲートの判定、ログイン・ログアウト・リフレッシュの結果、HTTPリクエストを集計する。
// レジストリはインスタンスごとに持つため、テストで複数生成しても衝突しない。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics はサービスのメトリクス一式。
type Metrics struct {
	registry *prometheus.Registry

	// GateDecisionsTotal は認証ゲートの判定件数。
	GateDecisionsTotal *prometheus.CounterVec
	// SessionOperationsTotal はセッション操作の結果件数。
	SessionOperationsTotal *prometheus.CounterVec
	// HTTPRequestsTotal はHTTPリクエスト件数。
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTPRequestDuration はHTTPリクエストの処理時間。
	HTTPRequestDuration *prometheus.HistogramVec
}

// New は新しいレジストリにメトリクスを登録して返す。
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		GateDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "community_auth_gate_decisions_total",
				Help: "Total number of authentication gate decisions",
			},
			[]string{"decision"},
		),
		SessionOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "community_auth_session_operations_total",
				Help: "Total number of login, logout and refresh operations",
			},
			[]string{"operation", "result"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "community_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "community_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	m.registry.MustRegister(
		m.GateDecisionsTotal,
		m.SessionOperationsTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)
	return m
}

// ObserveGateDecision は認証ゲートの判定を1件記録する。
func (m *Metrics) ObserveGateDecision(decision string) {
	m.GateDecisionsTotal.WithLabelValues(decision).Inc()
}

// ObserveSession はセッション操作の結果を1件記録する。
func (m *Metrics) ObserveSession(operation, result string) {
	m.SessionOperationsTotal.WithLabelValues(operation, result).Inc()
}

// Middleware はHTTPリクエストの件数と処理時間を記録するGinミドルウェアを返す。
// ラベルにはルート定義を使い、一致するルートがなければ "unmatched" とする。
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler は /metrics で公開するハンドラを返す。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
