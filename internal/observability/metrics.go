// Package observability exposes Prometheus metrics for the reservation core.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the counters and histograms recorded by the services.
// All methods are safe on a nil receiver so wiring metrics stays optional.
type Metrics struct {
	registry *prometheus.Registry

	reservations     *prometheus.CounterVec
	lockWait         prometheus.Histogram
	ordersExpired    prometheus.Counter
	paymentApprovals *prometheus.CounterVec
}

// Reservation outcomes recorded on reservations_total.
const (
	OutcomeCreated     = "created"
	OutcomeSoldOut     = "sold_out"
	OutcomeLockTimeout = "lock_timeout"
	OutcomeInvalid     = "invalid"
	OutcomeError       = "error"
)

// NewMetrics constructs all collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "liveshop_reservations_total",
			Help: "Reservation attempts by outcome.",
		}, []string{"outcome"}),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "liveshop_lock_wait_seconds",
			Help:    "Time spent waiting for the per-product lock.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		ordersExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "liveshop_orders_expired_total",
			Help: "Orders moved to EXPIRED with stock returned.",
		}),
		paymentApprovals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "liveshop_payment_approvals_total",
			Help: "Payment approval attempts by resulting status.",
		}, []string{"status"}),
	}
	m.registry.MustRegister(m.reservations, m.lockWait, m.ordersExpired, m.paymentApprovals)
	return m
}

// Registry returns the registry backing the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveReservation counts one reservation attempt.
func (m *Metrics) ObserveReservation(outcome string) {
	if m == nil {
		return
	}
	m.reservations.WithLabelValues(outcome).Inc()
}

// ObserveLockWait records how long a caller queued for the product lock.
func (m *Metrics) ObserveLockWait(d time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.Observe(d.Seconds())
}

// ObserveOrderExpired counts one expired order.
func (m *Metrics) ObserveOrderExpired() {
	if m == nil {
		return
	}
	m.ordersExpired.Inc()
}

// ObservePaymentApproval counts one approval attempt by final status.
func (m *Metrics) ObservePaymentApproval(status string) {
	if m == nil {
		return
	}
	m.paymentApprovals.WithLabelValues(status).Inc()
}
