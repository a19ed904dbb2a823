// Package service implements seat inventory, reservation, payment and
// expiry on top of the ports interfaces.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/showtime-seat-booking/internal/metrics"
	"github.com/iliyamo/showtime-seat-booking/internal/model"
	"github.com/iliyamo/showtime-seat-booking/internal/ports"
	"github.com/iliyamo/showtime-seat-booking/internal/queue"
)

const (
	DefaultHoldWindow     = 10 * time.Minute
	DefaultPaymentTimeout = 10 * time.Second
	publishTimeout        = 3 * time.Second
)

// Option configures a service.
type Option func(*deps)

type deps struct {
	log            *zap.Logger
	metrics        *metrics.Metrics
	cache          ports.AvailabilityCache
	publisher      ports.EventPublisher
	now            func() time.Time
	holdWindow     time.Duration
	paymentTimeout time.Duration
	ticketQR       bool
}

func newDeps(opts []Option) deps {
	d := deps{
		log:            zap.NewNop(),
		now:            func() time.Time { return time.Now().UTC() },
		holdWindow:     DefaultHoldWindow,
		paymentTimeout: DefaultPaymentTimeout,
		ticketQR:       true,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

func WithLogger(l *zap.Logger) Option {
	return func(d *deps) {
		if l != nil {
			d.log = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option { return func(d *deps) { d.metrics = m } }

func WithCache(c ports.AvailabilityCache) Option { return func(d *deps) { d.cache = c } }

func WithPublisher(p ports.EventPublisher) Option { return func(d *deps) { d.publisher = p } }

// WithClock overrides the time source.  Times are normalized to UTC.
func WithClock(now func() time.Time) Option {
	return func(d *deps) { d.now = func() time.Time { return now().UTC() } }
}

func WithHoldWindow(w time.Duration) Option {
	return func(d *deps) {
		if w > 0 {
			d.holdWindow = w
		}
	}
}

func WithPaymentTimeout(t time.Duration) Option {
	return func(d *deps) {
		if t > 0 {
			d.paymentTimeout = t
		}
	}
}

// WithTicketQR toggles QR code rendering in booking views.
func WithTicketQR(enabled bool) Option { return func(d *deps) { d.ticketQR = enabled } }

func (d *deps) invalidate(ctx context.Context, showtimeID string) {
	if d.cache != nil {
		d.cache.Invalidate(context.WithoutCancel(ctx), showtimeID)
	}
}

// publish is best effort: the transition has already committed.
func (d *deps) publish(ctx context.Context, eventType string, b *model.Booking, reason string, refund bool) {
	if d.publisher == nil || b == nil {
		return
	}
	ev := queue.BookingEvent{
		Type:           eventType,
		BookingID:      b.ID,
		UserID:         b.UserID,
		ShowtimeID:     b.ShowtimeID,
		Seats:          b.SeatNumbers,
		TotalPrice:     b.TotalPrice,
		Status:         string(b.Status),
		Reason:         reason,
		RefundRequired: refund,
		OccurredAt:     d.now().Format(time.RFC3339),
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := d.publisher.Publish(pctx, ev); err != nil {
		d.log.Warn("booking event not published",
			zap.String("type", eventType), zap.String("booking_id", b.ID), zap.Error(err))
	}
}
