package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics holds Prometheus metrics for business-level observability
// of the subscription billing flow.
type BusinessMetrics struct {
	// Checkout funnel
	CheckoutStarted *prometheus.CounterVec
	CheckoutFailed  *prometheus.CounterVec

	// Webhook reconciliation
	WebhookReceived  *prometheus.CounterVec
	WebhookProcessed *prometheus.CounterVec
	WebhookIgnored   *prometheus.CounterVec
	WebhookFailed    *prometheus.CounterVec
	WebhookLatency   *prometheus.HistogramVec

	// Subscription lifecycle
	SubscriptionsActivated *prometheus.CounterVec
	SubscriptionsCancelled *prometheus.CounterVec
	EntitlementsGranted    *prometheus.CounterVec
	EntitlementsRevoked    prometheus.Counter

	// Status polling
	StatusPolls *prometheus.CounterVec

	// Revenue tracking
	RevenueCollected *prometheus.CounterVec

	// External API performance
	GatewayLatency *prometheus.HistogramVec
}

// Business is the global metrics instance. Call sites nil-check it so code
// paths stay usable in tests that never initialize metrics.
var Business *BusinessMetrics

// InitBusinessMetrics creates, registers, and installs the global business
// metrics.
func InitBusinessMetrics(namespace string) *BusinessMetrics {
	Business = NewBusinessMetrics(namespace)
	return Business
}

// NewBusinessMetrics creates and registers all business metrics.
func NewBusinessMetrics(namespace string) *BusinessMetrics {
	if namespace == "" {
		namespace = "escriba"
	}

	subsystem := "billing"

	return &BusinessMetrics{
		CheckoutStarted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "checkout_started_total",
				Help:      "Total checkout submissions sent to the payment gateway",
			},
			[]string{"plan"},
		),
		CheckoutFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "checkout_failed_total",
				Help:      "Total checkout submissions rejected by the payment gateway",
			},
			[]string{"plan"},
		),
		WebhookReceived: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_received_total",
				Help:      "Total gateway notifications received",
			},
			[]string{"type"},
		),
		WebhookProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_processed_total",
				Help:      "Total gateway notifications reconciled successfully",
			},
			[]string{"type"},
		),
		WebhookIgnored: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_ignored_total",
				Help:      "Total gateway notifications ignored as irrelevant",
			},
			[]string{"reason"},
		),
		WebhookFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_failed_total",
				Help:      "Total gateway notifications dropped after an error",
			},
			[]string{"reason"},
		),
		WebhookLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_duration_seconds",
				Help:      "Gateway notification processing time in seconds",
				Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"type"},
		),
		SubscriptionsActivated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "subscriptions_activated_total",
				Help:      "Total orders transitioned to approved",
			},
			[]string{"plan"},
		),
		SubscriptionsCancelled: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "subscriptions_cancelled_total",
				Help:      "Total orders transitioned to cancelled",
			},
			[]string{"plan"},
		),
		EntitlementsGranted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "entitlements_granted_total",
				Help:      "Total entitlement grants or extensions applied to users",
			},
			[]string{"plan"},
		),
		EntitlementsRevoked: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "entitlements_revoked_total",
				Help:      "Total entitlement revocations applied to users",
			},
		),
		StatusPolls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "status_polls_total",
				Help:      "Total on-demand order status checks",
			},
			[]string{"outcome"}, // terminal, reconciled, gateway_error, no_preapproval
		),
		RevenueCollected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "revenue_collected_cents_total",
				Help:      "Total approved order value in cents",
			},
			[]string{"plan", "currency"},
		),
		GatewayLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "gateway_request_duration_seconds",
				Help:      "Payment gateway API call duration in seconds",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),
	}
}
