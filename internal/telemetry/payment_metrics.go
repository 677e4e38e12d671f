package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PaymentMetrics holds Prometheus metrics for webhook ingestion and
// reconciliation.
type PaymentMetrics struct {
	// Webhooks
	WebhookReceived *prometheus.CounterVec
	WebhookOutcomes *prometheus.CounterVec
	WebhookLatency  *prometheus.HistogramVec

	// Ledger
	TransactionsCreated *prometheus.CounterVec
	CommissionAccrued   *prometheus.CounterVec

	// External API performance
	StripeAPILatency *prometheus.HistogramVec
}

// NewPaymentMetrics creates payment metrics registered with reg.
// A nil reg uses the default Prometheus registerer.
func NewPaymentMetrics(namespace string, reg prometheus.Registerer) *PaymentMetrics {
	if namespace == "" {
		namespace = "quill"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)
	subsystem := "payments"

	return &PaymentMetrics{
		WebhookReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_received_total",
				Help:      "Total verified webhooks received",
			},
			[]string{"event_type"},
		),
		WebhookOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_outcomes_total",
				Help:      "Total webhook deliveries by reported outcome",
			},
			[]string{"outcome", "reason"},
		),
		WebhookLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_latency_seconds",
				Help:      "Time from receipt to outcome",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"outcome"},
		),
		TransactionsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "transactions_created_total",
				Help:      "Total transactions written to the ledger",
			},
			[]string{"kind"}, // kind: one-time, subscription
		),
		CommissionAccrued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "commission_accrued_minor_total",
				Help:      "Commission accrued in minor currency units",
			},
			[]string{"currency"},
		),
		StripeAPILatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "stripe_api_duration_seconds",
				Help:      "Stripe API call duration",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"operation"}, // operation: get_subscription, create_checkout_session
		),
	}
}

// ObserveOutcome records a delivery's outcome and its latency.
func (m *PaymentMetrics) ObserveOutcome(outcome, reason string, started time.Time) {
	if m == nil {
		return
	}
	m.WebhookOutcomes.WithLabelValues(outcome, reason).Inc()
	m.WebhookLatency.WithLabelValues(outcome).Observe(time.Since(started).Seconds())
}

// ObserveStripeCall records the duration of a Stripe API call.
func (m *PaymentMetrics) ObserveStripeCall(operation string, started time.Time) {
	if m == nil {
		return
	}
	m.StripeAPILatency.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}
