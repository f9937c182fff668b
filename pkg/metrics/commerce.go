package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CommerceMetrics records counters for the order and payment pipeline.
type CommerceMetrics struct {
	checkoutDuration *prometheus.HistogramVec
	ordersCreated    prometheus.Counter
	checkoutFailures *prometheus.CounterVec
	paymentEvents    *prometheus.CounterVec
	statusChanges    *prometheus.CounterVec
}

// NewCommerceMetrics registers the commerce metrics on the provided registerer.
func NewCommerceMetrics(reg prometheus.Registerer) *CommerceMetrics {
	if reg == nil {
		return &CommerceMetrics{}
	}
	checkoutDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Duration of checkout transactions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	ordersCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders committed by checkout.",
	})
	checkoutFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_failures_total",
		Help: "Checkout attempts rejected, by reason.",
	}, []string{"reason"})
	paymentEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_events_total",
		Help: "Gateway payment events processed, by status and source.",
	}, []string{"status", "source"})
	statusChanges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_changes_total",
		Help: "Order lifecycle transitions, by target status.",
	}, []string{"to"})
	reg.MustRegister(checkoutDuration, ordersCreated, checkoutFailures, paymentEvents, statusChanges)
	return &CommerceMetrics{
		checkoutDuration: checkoutDuration,
		ordersCreated:    ordersCreated,
		checkoutFailures: checkoutFailures,
		paymentEvents:    paymentEvents,
		statusChanges:    statusChanges,
	}
}

// ObserveCheckout records the duration of a checkout attempt.
func (m *CommerceMetrics) ObserveCheckout(outcome string, duration time.Duration) {
	if m == nil || m.checkoutDuration == nil {
		return
	}
	m.checkoutDuration.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}

// IncOrderCreated increments the created-orders counter.
func (m *CommerceMetrics) IncOrderCreated() {
	if m == nil || m.ordersCreated == nil {
		return
	}
	m.ordersCreated.Inc()
}

// IncCheckoutFailure counts a rejected checkout by reason.
func (m *CommerceMetrics) IncCheckoutFailure(reason string) {
	if m == nil || m.checkoutFailures == nil {
		return
	}
	m.checkoutFailures.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncPaymentEvent counts a processed gateway event.
func (m *CommerceMetrics) IncPaymentEvent(status, source string) {
	if m == nil || m.paymentEvents == nil {
		return
	}
	m.paymentEvents.WithLabelValues(normalizeLabel(status), normalizeLabel(source)).Inc()
}

// IncStatusChange counts an order lifecycle transition.
func (m *CommerceMetrics) IncStatusChange(to string) {
	if m == nil || m.statusChanges == nil {
		return
	}
	m.statusChanges.WithLabelValues(normalizeLabel(to)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
