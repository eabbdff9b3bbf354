// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 会話エンジンとハンドラー層から利用する。
type MetricsCollector interface {
	RecordTurn(action string)
	RecordReservation(pool string)
	RecordRollback(pool string)
	RecordBudgetRejection(scope string)
	RecordGatewayFailure()
	RecordGatewayLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	turns           *prometheus.CounterVec
	reservations    *prometheus.CounterVec
	rollbacks       *prometheus.CounterVec
	budgetRejects   *prometheus.CounterVec
	gatewayFailures prometheus.Counter
	gatewayLatency  prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobnavi_turns_total",
			Help: "アクション別の会話ターン数",
		}, []string{"action"}),
		reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobnavi_token_reservations_total",
			Help: "プール別のトークン予約成功数",
		}, []string{"pool"}),
		rollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobnavi_token_rollbacks_total",
			Help: "プール別のトークン予約ロールバック数",
		}, []string{"pool"}),
		budgetRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobnavi_budget_rejections_total",
			Help: "スコープ別の日次予算超過による拒否数",
		}, []string{"scope"}),
		gatewayFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobnavi_gateway_failures_total",
			Help: "AIゲートウェイ呼び出し失敗の合計数",
		}),
		gatewayLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "jobnavi_gateway_latency_seconds",
			Help:    "AIゲートウェイ呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.turns,
		c.reservations,
		c.rollbacks,
		c.budgetRejects,
		c.gatewayFailures,
		c.gatewayLatency,
	)

	return c
}

// RecordTurn はアクション別の会話ターンを記録する。
func (c *Collector) RecordTurn(action string) {
	c.turns.WithLabelValues(action).Inc()
}

// RecordReservation はトークン予約の成功を記録する。
func (c *Collector) RecordReservation(pool string) {
	c.reservations.WithLabelValues(pool).Inc()
}

// RecordRollback はトークン予約のロールバックを記録する。
func (c *Collector) RecordRollback(pool string) {
	c.rollbacks.WithLabelValues(pool).Inc()
}

// RecordBudgetRejection は日次予算超過による拒否を記録する。
func (c *Collector) RecordBudgetRejection(scope string) {
	c.budgetRejects.WithLabelValues(scope).Inc()
}

// RecordGatewayFailure はAIゲートウェイの呼び出し失敗を記録する。
func (c *Collector) RecordGatewayFailure() {
	c.gatewayFailures.Inc()
}

// RecordGatewayLatency はAIゲートウェイ呼び出しのレイテンシを記録する。
func (c *Collector) RecordGatewayLatency(duration time.Duration) {
	c.gatewayLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
