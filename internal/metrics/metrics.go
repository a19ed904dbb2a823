// Package metrics registers the Prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups every collector.  A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// outcome: created, seat_unavailable, invalid, error
	BookingsTotal *prometheus.CounterVec
	// status the booking moved to: CONFIRMED, CANCELLED, EXPIRED
	BookingTransitions *prometheus.CounterVec
	// result: applied, duplicate, rejected, unknown_reference, error
	PaymentCallbacks *prometheus.CounterVec
	// result: ok, unavailable
	PaymentSessions *prometheus.CounterVec
	// result: expired, skipped, error
	SweptBookings *prometheus.CounterVec

	StorageRetries prometheus.Counter
}

// New registers the collectors on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the collectors on reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "http_requests_total", Help: "Total number of HTTP requests"},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		BookingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "bookings_total", Help: "Booking attempts by outcome"},
			[]string{"outcome"},
		),
		BookingTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "booking_transitions_total", Help: "Bookings resolved by terminal status"},
			[]string{"status"},
		),
		PaymentCallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "payment_callbacks_total", Help: "Payment callbacks by result"},
			[]string{"result"},
		),
		PaymentSessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "payment_sessions_total", Help: "Payment session requests by result"},
			[]string{"result"},
		),
		SweptBookings: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "expiry_sweeper_bookings_total", Help: "Bookings handled by the expiry sweeper"},
			[]string{"result"},
		),
		StorageRetries: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "storage_retries_total", Help: "Transactions retried after a storage failure"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.BookingsTotal,
		m.BookingTransitions,
		m.PaymentCallbacks,
		m.PaymentSessions,
		m.SweptBookings,
		m.StorageRetries,
	)
	return m
}

func (m *Metrics) Booking(outcome string) {
	if m != nil {
		m.BookingsTotal.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) Transition(status string) {
	if m != nil {
		m.BookingTransitions.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) Callback(result string) {
	if m != nil {
		m.PaymentCallbacks.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) Session(result string) {
	if m != nil {
		m.PaymentSessions.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) Swept(result string) {
	if m != nil {
		m.SweptBookings.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) Retry() {
	if m != nil {
		m.StorageRetries.Inc()
	}
}
