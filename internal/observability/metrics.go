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
	// Trade metrics
	TradesTotal     *prometheus.CounterVec // action, outcome
	TradeVolume     *prometheus.CounterVec // action
	TradeLatency    prometheus.Histogram
	WalletRotations prometheus.Counter
	WalletsCooling  prometheus.Gauge

	// Blockhash metrics
	BlockhashAge         prometheus.Gauge
	BlockhashFetchErrors prometheus.Counter

	// Account cache metrics
	AccountCacheSize      prometheus.Gauge
	AccountCacheEvictions prometheus.Counter

	// Reporting metrics
	ReportsSent   prometheus.Counter
	JournalErrors prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "market_maker"
	}

	return &Metrics{
		TradesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trades",
			Name:      "executed_total",
			Help:      "Total number of trades by action and outcome",
		}, []string{"action", "outcome"}),
		TradeVolume: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trades",
			Name:      "volume_units_total",
			Help:      "Total traded input volume in smallest units",
		}, []string{"action"}),
		TradeLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "trades",
			Name:      "execution_seconds",
			Help:      "Trade build-submit-confirm latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		WalletRotations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wallets",
			Name:      "rotations_total",
			Help:      "Total number of wallet rotation events",
		}),
		WalletsCooling: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "wallets",
			Name:      "cooling",
			Help:      "Number of wallets currently excluded by cooldown",
		}),
		BlockhashAge: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "blockhash",
			Name:      "age_seconds",
			Help:      "Age of the cached blockhash in seconds",
		}),
		BlockhashFetchErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "blockhash",
			Name:      "fetch_errors_total",
			Help:      "Total number of failed blockhash fetches",
		}),
		AccountCacheSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "accountcache",
			Name:      "entries",
			Help:      "Number of token accounts in the existence cache",
		}),
		AccountCacheEvictions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "accountcache",
			Name:      "evictions_total",
			Help:      "Total number of TTL-evicted cache entries",
		}),
		ReportsSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reporting",
			Name:      "sent_total",
			Help:      "Total number of activity reports dispatched",
		}),
		JournalErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "errors_total",
			Help:      "Total number of trade journal write errors",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordTrade records one executed trade.
func RecordTrade(action string, succeeded bool, amountIn uint64, seconds float64) {
	outcome := "success"
	if !succeeded {
		outcome = "failure"
	}
	DefaultMetrics.TradesTotal.WithLabelValues(action, outcome).Inc()
	if succeeded {
		DefaultMetrics.TradeVolume.WithLabelValues(action).Add(float64(amountIn))
	}
	DefaultMetrics.TradeLatency.Observe(seconds)
}

// RecordRotation increments the wallet rotation counter.
func RecordRotation() {
	DefaultMetrics.WalletRotations.Inc()
}

// UpdateWalletsCooling updates the cooling wallets gauge.
func UpdateWalletsCooling(n int) {
	DefaultMetrics.WalletsCooling.Set(float64(n))
}

// UpdateBlockhashAge updates the cached blockhash age gauge.
func UpdateBlockhashAge(seconds float64) {
	DefaultMetrics.BlockhashAge.Set(seconds)
}

// RecordBlockhashFetchError increments the failed fetch counter.
func RecordBlockhashFetchError() {
	DefaultMetrics.BlockhashFetchErrors.Inc()
}

// UpdateAccountCache updates cache gauges after a maintenance sweep.
func UpdateAccountCache(size, evicted int) {
	DefaultMetrics.AccountCacheSize.Set(float64(size))
	if evicted > 0 {
		DefaultMetrics.AccountCacheEvictions.Add(float64(evicted))
	}
}

// RecordReportSent increments the reports dispatched counter.
func RecordReportSent() {
	DefaultMetrics.ReportsSent.Inc()
}

// RecordJournalError increments the journal error counter.
func RecordJournalError() {
	DefaultMetrics.JournalErrors.Inc()
}
