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
	// Settlement metrics
	SettlementsStarted   prometheus.Counter
	SettlementsConfirmed prometheus.Counter
	SettlementsFailed    *prometheus.CounterVec // by reason
	ConfirmationLatency  prometheus.Histogram

	// Reconciliation metrics
	ReconcileSuccess prometheus.Counter
	ReconcileErrors  prometheus.Counter
	ReconcilerRuns   prometheus.Counter

	// Notification metrics
	NotificationsEmitted *prometheus.CounterVec // by kind
	ActiveNotifications  prometheus.Gauge

	// Wallet metrics
	WalletConnects    *prometheus.CounterVec // by provider kind
	WalletDisconnects prometheus.Counter
	BalanceQueries    prometheus.Counter

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec // by route, status

	// RPC metrics
	RPCLatency *prometheus.HistogramVec // by method
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_marketplace"
	}

	return &Metrics{
		SettlementsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_started_total",
			Help:      "Settlement attempts that claimed a listing.",
		}),
		SettlementsConfirmed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_confirmed_total",
			Help:      "Settlements confirmed by the ledger.",
		}),
		SettlementsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_failed_total",
			Help:      "Settlement failures by reason.",
		}, []string{"reason"}),
		ConfirmationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "confirmation_latency_seconds",
			Help:      "Time from submission to ledger confirmation.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		ReconcileSuccess: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_success_total",
			Help:      "Successful off-chain reconciliations.",
		}),
		ReconcileErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_errors_total",
			Help:      "Failed off-chain reconciliation attempts.",
		}),
		ReconcilerRuns: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciler_runs_total",
			Help:      "Follow-up reconciler sweep executions.",
		}),
		NotificationsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_emitted_total",
			Help:      "Notification events emitted by kind.",
		}, []string{"kind"}),
		ActiveNotifications: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "notifications_active",
			Help:      "Notification events currently within their TTL.",
		}),
		WalletConnects: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallet_connects_total",
			Help:      "Wallet connects by provider kind.",
		}, []string{"kind"}),
		WalletDisconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallet_disconnects_total",
			Help:      "Wallet disconnects.",
		}),
		BalanceQueries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "balance_queries_total",
			Help:      "Ledger balance queries.",
		}),
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"route", "status"}),
		RPCLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_latency_seconds",
			Help:      "Ledger RPC call latency by method.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"method"}),
	}
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
