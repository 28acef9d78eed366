package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"net/http"
)

var (
	verdictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alphadesk_verdicts_total",
			Help: "Risk gate verdicts by action, status and reason",
		},
		[]string{"action", "status", "reason"},
	)

	tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alphadesk_trades_total",
			Help: "Trades committed to the ledger",
		},
		[]string{"action"},
	)

	overridesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "alphadesk_overrides_total",
			Help: "Soft rejections pushed through by explicit user override",
		},
	)

	portfolioCash = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "alphadesk_portfolio_cash",
			Help: "Current ledger cash balance",
		},
	)

	quoteRefreshErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "alphadesk_quote_refresh_errors_total",
			Help: "Failed quote feed refreshes",
		},
	)

	quoteCacheSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "alphadesk_quote_cache_size",
			Help: "Tickers currently held in the quote cache",
		},
	)
)

func init() {
	prometheus.MustRegister(verdictsTotal)
	prometheus.MustRegister(tradesTotal)
	prometheus.MustRegister(overridesTotal)
	prometheus.MustRegister(portfolioCash)
	prometheus.MustRegister(quoteRefreshErrors)
	prometheus.MustRegister(quoteCacheSize)
}

// Handler exposes the registry for mounting at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordVerdict(action, status, reason string) {
	if reason == "" {
		reason = "none"
	}
	verdictsTotal.WithLabelValues(action, status, reason).Inc()
}

func RecordTrade(action string) {
	tradesTotal.WithLabelValues(action).Inc()
}

func RecordOverride() {
	overridesTotal.Inc()
}

func SetPortfolioCash(cash float64) {
	portfolioCash.Set(cash)
}

func QuoteRefreshError() {
	quoteRefreshErrors.Inc()
}

func SetQuoteCacheSize(n int) {
	quoteCacheSize.Set(float64(n))
}
