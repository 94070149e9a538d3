package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
		paymentEmailTotal,
		PaymentVerifyRequests,
		PaymentVerifyDuration,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payments by status (initiated/completed).",
		},
		[]string{"status"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "The total monetary value of completed payments, labeled by currency.",
		},
		[]string{"currency"},
	)

	// Email attempts about payment events, by event kind and delivery status.
	// status: sent|error|no_company|no_address
	paymentEmailTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_email_total",
			Help: "Payment-event emails by kind and delivery status.",
		},
		[]string{"kind", "status"},
	)

	// Count of confirm calls grouped by result and bounded reason.
	// result: ok|fail
	// reason (fail only): bad_json|not_found|forbidden|already_completed|not_paid|rejected|error
	PaymentVerifyRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_verify_requests_total",
			Help: "Count of payment confirm/webhook calls by result and reason.",
		},
		[]string{"result", "reason"},
	)

	// Latency of the confirm/webhook handlers grouped by result.
	PaymentVerifyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_verify_duration_seconds",
			Help:    "Duration of payment confirm/webhook handlers in seconds.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"result"},
	)
)

func IncPayment(status string) {
	paymentsTotal.WithLabelValues(norm(status)).Inc()
}

func AddPaymentRevenue(currency string, amount int64) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}

func IncPaymentEmail(kind, status string) {
	paymentEmailTotal.WithLabelValues(norm(kind), norm(status)).Inc()
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
