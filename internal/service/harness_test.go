package service

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/showtime-seat-booking/internal/metrics"
	"github.com/iliyamo/showtime-seat-booking/internal/model"
	"github.com/iliyamo/showtime-seat-booking/internal/payment"
	"github.com/iliyamo/showtime-seat-booking/internal/ports"
)

type harness struct {
	store   *memStore
	clock   *testClock
	cache   *memCache
	pub     *memPublisher
	gw      *payment.VNPay
	metrics *metrics.Metrics
	opts    []Option

	inventory *Inventory
	res       *ReservationManager
	pay       *PaymentOrchestrator
	exp       *Expirer
	query     *BookingQuery
}

func newHarness(t *testing.T, extra ...Option) *harness {
	t.Helper()
	h := &harness{
		store:   newMemStore(),
		clock:   newTestClock(),
		cache:   newMemCache(),
		pub:     &memPublisher{},
		gw:      testGateway(),
		metrics: metrics.NewWithRegistry(prometheus.NewRegistry()),
	}
	h.opts = append([]Option{
		WithClock(h.clock.Now),
		WithCache(h.cache),
		WithPublisher(h.pub),
		WithMetrics(h.metrics),
	}, extra...)
	h.inventory = NewInventory(h.store, h.opts...)
	h.res = NewReservationManager(h.store, h.opts...)
	h.pay = NewPaymentOrchestrator(h.store, h.gw, h.opts...)
	h.exp = NewExpirer(h.store, h.opts...)
	h.query = NewBookingQuery(h.store, h.opts...)
	return h
}

// withGateway swaps the payment gateway.
func (h *harness) withGateway(g ports.PaymentGateway, extra ...Option) {
	h.pay = NewPaymentOrchestrator(h.store, g, append(append([]Option{}, h.opts...), extra...)...)
}

func (h *harness) book(t *testing.T, user, showtime string, seats ...string) *model.Booking {
	t.Helper()
	b, err := h.res.CreateBooking(context.Background(), CreateBookingInput{
		UserID: user, ShowtimeID: showtime, SeatNumbers: seats,
	})
	require.NoError(t, err)
	return b
}

// pay opens a session for b and delivers a callback with code.
func (h *harness) payWith(t *testing.T, b *model.Booking, code string) (*CallbackResult, error) {
	t.Helper()
	sess, err := h.pay.InitiatePayment(context.Background(), b.ID, b.UserID, "10.0.0.1")
	require.NoError(t, err)
	return h.pay.HandleCallback(context.Background(), vnpCallback(h.gw, sess.Reference, b.TotalPrice, code))
}
