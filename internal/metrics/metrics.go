package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	PaymentsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_payments_created_total",
			Help: "Total number of payments created",
		},
		[]string{"mode"},
	)

	PaymentsSettledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_payments_settled_total",
			Help: "Total number of payments settled",
		},
		[]string{"mode"},
	)

	SettlementRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_settlement_rejections_total",
			Help: "Total number of rejected settlement attempts",
		},
		[]string{"reason"},
	)

	UnconfirmedSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_unconfirmed_payments_swept_total",
			Help: "Total number of stale unconfirmed payments removed by the sweeper",
		},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordPaymentCreated(mode string) {
	PaymentsCreatedTotal.WithLabelValues(mode).Inc()
}

func RecordPaymentSettled(mode string) {
	PaymentsSettledTotal.WithLabelValues(mode).Inc()
}

func RecordSettlementRejection(reason string) {
	SettlementRejectionsTotal.WithLabelValues(reason).Inc()
}

func RecordUnconfirmedSwept(n int64) {
	UnconfirmedSweptTotal.Add(float64(n))
}
