// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// 認証イベントとHTTPステータスコードを記録する。
type Collector struct {
	accountsCreated prometheus.Counter
	loginSuccess    prometheus.Counter
	loginFailure    prometheus.Counter
	resetRequested  prometheus.Counter
	resetRedeemed   prometheus.Counter
	sessionsReaped  prometheus.Counter
	httpStatus      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		accountsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "accountd_accounts_created_total",
			Help: "作成されたアカウントの合計数",
		}),
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "accountd_login_success_total",
			Help: "ログイン成功の合計数",
		}),
		loginFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "accountd_login_failure_total",
			Help: "ログイン失敗の合計数",
		}),
		resetRequested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "accountd_password_reset_requested_total",
			Help: "発行されたパスワードリセットトークンの合計数",
		}),
		resetRedeemed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "accountd_password_reset_redeemed_total",
			Help: "リデンプションに成功したパスワードリセットの合計数",
		}),
		sessionsReaped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "accountd_sessions_reaped_total",
			Help: "リーパーが削除した期限切れセッションの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "accountd_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.accountsCreated,
		c.loginSuccess,
		c.loginFailure,
		c.resetRequested,
		c.resetRedeemed,
		c.sessionsReaped,
		c.httpStatus,
	)

	return c
}

// RecordAccountCreated はアカウント作成を記録する。
func (c *Collector) RecordAccountCreated() {
	c.accountsCreated.Inc()
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess() {
	c.loginSuccess.Inc()
}

// RecordLoginFailure はログイン失敗を記録する。
func (c *Collector) RecordLoginFailure() {
	c.loginFailure.Inc()
}

// RecordResetRequested はリセットトークン発行を記録する。
func (c *Collector) RecordResetRequested() {
	c.resetRequested.Inc()
}

// RecordResetRedeemed はリセットのリデンプション成功を記録する。
func (c *Collector) RecordResetRedeemed() {
	c.resetRedeemed.Inc()
}

// RecordSessionsReaped は削除された期限切れセッション数を記録する。
func (c *Collector) RecordSessionsReaped(count int64) {
	c.sessionsReaped.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
