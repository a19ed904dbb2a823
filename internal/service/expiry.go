package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/iliyamo/showtime-seat-booking/internal/model"
	"github.com/iliyamo/showtime-seat-booking/internal/ports"
	"github.com/iliyamo/showtime-seat-booking/internal/queue"
)

// Expirer reclaims seats of bookings whose hold window ended without
// payment.  It is the only writer of HELD->AVAILABLE on timeout.
type Expirer struct {
	store ports.Store
	deps
}

func NewExpirer(store ports.Store, opts ...Option) *Expirer {
	return &Expirer{store: store, deps: newDeps(opts)}
}

// DueBookings lists up to limit pending bookings past expires_at.
func (e *Expirer) DueBookings(ctx context.Context, limit int) ([]string, error) {
	return e.store.DueBookings(ctx, e.now(), limit)
}

// ExpireBooking moves one booking to EXPIRED and frees its seats.  It
// returns false when a callback or cancel resolved the booking first.
func (e *Expirer) ExpireBooking(ctx context.Context, bookingID string) (bool, error) {
	var expired *model.Booking
	err := e.store.WithTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		now := e.now()
		ok, err := tx.ExpireBooking(ctx, bookingID, now)
		if err != nil || !ok {
			return err
		}
		b, err := tx.Booking(ctx, bookingID)
		if err != nil {
			return err
		}
		released, err := tx.ReleaseSeats(ctx, bookingID, now)
		if err != nil {
			return err
		}
		if err := tx.DeleteSessions(ctx, bookingID); err != nil {
			return err
		}
		if err := tx.RecordTransition(ctx, model.SeatTransition{
			BookingID: bookingID, ShowtimeID: b.ShowtimeID, SeatCount: int(released),
			FromStatus: model.SeatHeld, ToStatus: model.SeatAvailable, Reason: model.ReasonExpire, At: now,
		}); err != nil {
			return err
		}
		expired = b
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("expire booking %s: %w", bookingID, err)
	}
	if expired == nil {
		return false, nil
	}

	e.metrics.Transition(string(model.BookingExpired))
	e.invalidate(ctx, expired.ShowtimeID)
	e.publish(ctx, queue.EventBookingExpired, expired, model.ReasonExpire, false)
	e.log.Info("booking expired", zap.String("booking_id", bookingID), zap.Strings("seats", expired.SeatNumbers))
	return true, nil
}
