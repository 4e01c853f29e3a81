package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics holds Prometheus metrics for business-level observability.
type BusinessMetrics struct {
	// Cart
	CartItemsAdd *prometheus.CounterVec
	CartUpdated  *prometheus.CounterVec
	CartCleared  prometheus.Counter

	// Promotions
	PromoValidated *prometheus.CounterVec

	// Checkout funnel
	CheckoutStarted  prometheus.Counter
	PaymentAttempts  *prometheus.CounterVec
	PaymentSucceeded *prometheus.CounterVec
	PaymentFailed    *prometheus.CounterVec

	// Orders
	OrdersCreated *prometheus.CounterVec
	OrderValue    prometheus.Histogram

	// Webhooks
	WebhookReceived  *prometheus.CounterVec
	WebhookProcessed *prometheus.CounterVec
	WebhookFailed    *prometheus.CounterVec

	// Sessions & accounts
	GuestSessionsCreated prometheus.Counter
	SessionsExpiredSwept prometheus.Counter
	Signups              prometheus.Counter
	Logins               prometheus.Counter
	LoginFailed          prometheus.Counter

	// Guest conversion
	ConversionsStarted     prometheus.Counter
	ConversionsCompleted   prometheus.Counter
	ConversionsRetried     prometheus.Counter
	ConversionLinesDropped prometheus.Counter
}

// NewBusinessMetrics creates and registers all business metrics
func NewBusinessMetrics(namespace string) *BusinessMetrics {
	if namespace == "" {
		namespace = "stitch"
	}

	subsystem := "business"

	return &BusinessMetrics{
		CartItemsAdd: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cart_items_add_total",
				Help:      "Total add to cart actions",
			},
			[]string{"owner_kind"},
		),
		CartUpdated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cart_updated_total",
				Help:      "Total cart line updates, removals and list moves",
			},
			[]string{"operation"}, // operation: update, remove, save_for_later, move_to_cart
		),
		CartCleared: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cart_cleared_total",
				Help:      "Total explicit cart clears",
			},
		),
		PromoValidated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "promo_validated_total",
				Help:      "Total promo code validation attempts",
			},
			[]string{"outcome"}, // outcome: applied, rejected
		),
		CheckoutStarted: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "checkout_started_total",
				Help:      "Total checkouts started",
			},
		),
		PaymentAttempts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payment_attempts_total",
				Help:      "Total payment attempts",
			},
			[]string{"method"}, // method: cod, gateway
		),
		PaymentSucceeded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payment_succeeded_total",
				Help:      "Total successful payments",
			},
			[]string{"method"},
		),
		PaymentFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payment_failed_total",
				Help:      "Total failed payment attempts",
			},
			[]string{"source"}, // source: client, gateway
		),
		OrdersCreated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "orders_created_total",
				Help:      "Total orders created",
			},
			[]string{"payment_method", "owner_kind"},
		),
		OrderValue: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "order_value_cents",
				Help:      "Distribution of order totals in cents",
				Buckets:   prometheus.ExponentialBuckets(10000, 2, 12),
			},
		),
		WebhookReceived: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_received_total",
				Help:      "Total gateway callbacks received",
			},
			[]string{"type"},
		),
		WebhookProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_processed_total",
				Help:      "Total gateway callbacks processed successfully",
			},
			[]string{"type"},
		),
		WebhookFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_failed_total",
				Help:      "Total gateway callbacks that failed processing",
			},
			[]string{"type", "reason"}, // reason: bad_signature, processing_error
		),
		GuestSessionsCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "guest_sessions_created_total",
				Help:      "Total guest sessions issued",
			},
		),
		SessionsExpiredSwept: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "sessions_expired_swept_total",
				Help:      "Total expired guest sessions removed by the cleanup worker",
			},
		),
		Signups: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "signups_total",
				Help:      "Total account registrations",
			},
		),
		Logins: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "logins_total",
				Help:      "Total successful logins",
			},
		),
		LoginFailed: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "login_failed_total",
				Help:      "Total failed login attempts",
			},
		),
		ConversionsStarted: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "guest_conversions_started_total",
				Help:      "Total guest-to-user conversions started",
			},
		),
		ConversionsCompleted: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "guest_conversions_completed_total",
				Help:      "Total guest-to-user conversions completed",
			},
		),
		ConversionsRetried: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "guest_conversions_retried_total",
				Help:      "Total conversions resumed from a checkpoint",
			},
		),
		ConversionLinesDropped: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "guest_conversion_lines_dropped_total",
				Help:      "Total cart lines dropped during conversion merges",
			},
		),
	}
}
