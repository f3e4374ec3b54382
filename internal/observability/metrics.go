// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Control loop metrics
	CyclesTotal   *prometheus.CounterVec
	CycleDuration prometheus.Histogram
	BotRunning    prometheus.Gauge
	WhitelistSize prometheus.Gauge

	// Trading metrics
	TradesOpened     prometheus.Counter
	TradesClosed     *prometheus.CounterVec
	OrdersCancelled  *prometheus.CounterVec
	OpenTrades       prometheus.Gauge
	RealizedProfit   prometheus.Gauge
	SignalsEvaluated *prometheus.CounterVec
	PairsBlacklisted prometheus.Counter

	// Exchange metrics
	ExchangeCallLatency *prometheus.HistogramVec
	ExchangeErrors      *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastHeartbeat prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "freqtrade"
	}

	return &Metrics{
		// Control loop metrics
		CyclesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "cycles_total",
			Help:      "Total number of trading cycles by outcome",
		}, []string{"outcome"}),
		CycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of one trading cycle in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		BotRunning: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "running",
			Help:      "1 when the bot is RUNNING, 0 when STOPPED",
		}),
		WhitelistSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "whitelist_size",
			Help:      "Number of pairs in the current whitelist",
		}),

		// Trading metrics
		TradesOpened: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "trades_opened_total",
			Help:      "Total number of trades opened",
		}),
		TradesClosed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "trades_closed_total",
			Help:      "Total number of trades closed by result",
		}, []string{"result"}),
		OrdersCancelled: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "orders_cancelled_total",
			Help:      "Total number of timed out orders cancelled by side",
		}, []string{"side"}),
		OpenTrades: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "open_trades",
			Help:      "Current number of open trades",
		}),
		RealizedProfit: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "realized_profit",
			Help:      "Realized profit of closed trades in stake currency",
		}),
		SignalsEvaluated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "signals_evaluated_total",
			Help:      "Total number of signal evaluations by result",
		}, []string{"result"}),
		PairsBlacklisted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "pairs_blacklisted_total",
			Help:      "Total number of pairs blacklisted at runtime",
		}),

		// Exchange metrics
		ExchangeCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "call_latency_seconds",
			Help:      "Exchange API call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		ExchangeErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "errors_total",
			Help:      "Total number of exchange errors by class",
		}, []string{"method", "class"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastHeartbeat: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_heartbeat_timestamp",
			Help:      "Unix timestamp of the last control loop iteration",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordCycle records one trading cycle.
func RecordCycle(outcome string, seconds float64) {
	DefaultMetrics.CyclesTotal.WithLabelValues(outcome).Inc()
	DefaultMetrics.CycleDuration.Observe(seconds)
}

// SetRunning updates the bot state gauge.
func SetRunning(running bool) {
	if running {
		DefaultMetrics.BotRunning.Set(1)
		return
	}
	DefaultMetrics.BotRunning.Set(0)
}

// SetWhitelistSize updates the whitelist gauge.
func SetWhitelistSize(n int) {
	DefaultMetrics.WhitelistSize.Set(float64(n))
}

// RecordTradeOpened increments the opened trades counter.
func RecordTradeOpened() {
	DefaultMetrics.TradesOpened.Inc()
}

// RecordTradeClosed increments the closed trades counter.
func RecordTradeClosed(profitable bool) {
	result := "loss"
	if profitable {
		result = "profit"
	}
	DefaultMetrics.TradesClosed.WithLabelValues(result).Inc()
}

// RecordOrderCancelled increments the cancelled orders counter.
func RecordOrderCancelled(side string) {
	DefaultMetrics.OrdersCancelled.WithLabelValues(side).Inc()
}

// SetOpenTrades updates the open trades gauge.
func SetOpenTrades(n int) {
	DefaultMetrics.OpenTrades.Set(float64(n))
}

// SetRealizedProfit updates the realized profit gauge.
func SetRealizedProfit(v float64) {
	DefaultMetrics.RealizedProfit.Set(v)
}

// RecordSignal records a signal evaluation result.
func RecordSignal(result string) {
	DefaultMetrics.SignalsEvaluated.WithLabelValues(result).Inc()
}

// RecordPairBlacklisted increments the blacklisted pairs counter.
func RecordPairBlacklisted() {
	DefaultMetrics.PairsBlacklisted.Inc()
}

// RecordExchangeCall records exchange call latency and error class.
func RecordExchangeCall(method string, seconds float64, class string) {
	DefaultMetrics.ExchangeCallLatency.WithLabelValues(method).Observe(seconds)
	if class != "" {
		DefaultMetrics.ExchangeErrors.WithLabelValues(method, class).Inc()
	}
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordHeartbeat stamps the last loop iteration.
func RecordHeartbeat(unixSeconds int64) {
	DefaultMetrics.LastHeartbeat.Set(float64(unixSeconds))
}
