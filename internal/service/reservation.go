package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/showtime-seat-booking/internal/model"
	"github.com/iliyamo/showtime-seat-booking/internal/ports"
	"github.com/iliyamo/showtime-seat-booking/internal/queue"
)

// CreateBookingInput is a request to hold seats of one showtime.
type CreateBookingInput struct {
	UserID      string
	ShowtimeID  string
	SeatNumbers []string
}

// ReservationManager holds and releases seats for bookings.  It is the
// only writer of AVAILABLE->HELD and of HELD->AVAILABLE on user cancel.
type ReservationManager struct {
	store ports.Store
	deps
}

func NewReservationManager(store ports.Store, opts ...Option) *ReservationManager {
	return &ReservationManager{store: store, deps: newDeps(opts)}
}

// CreateBooking holds every requested seat or none of them.
func (m *ReservationManager) CreateBooking(ctx context.Context, in CreateBookingInput) (*model.Booking, error) {
	userID := strings.TrimSpace(in.UserID)
	showtimeID := strings.TrimSpace(in.ShowtimeID)
	if userID == "" || showtimeID == "" {
		m.metrics.Booking("invalid")
		return nil, fmt.Errorf("%w: user and showtime are required", model.ErrInvalidInput)
	}
	numbers, err := normalizeSeats(in.SeatNumbers)
	if err != nil {
		m.metrics.Booking("invalid")
		return nil, err
	}

	// The id is fixed before the first attempt so a retry can recognize
	// its own commit.
	bookingID := uuid.NewString()
	var booking *model.Booking
	attempt := func() error {
		b, err := m.holdSeats(ctx, bookingID, userID, showtimeID, numbers)
		if err != nil {
			return err
		}
		booking = b
		return nil
	}

	err = m.retryOnce(ctx, "create booking", attempt, func(retryErr error) bool {
		if !errors.Is(retryErr, model.ErrSeatUnavailable) {
			return false
		}
		existing, err := m.store.Booking(ctx, bookingID)
		if err != nil || existing.UserID != userID {
			return false
		}
		booking = existing
		return true
	})
	if err != nil {
		switch {
		case errors.Is(err, model.ErrSeatUnavailable):
			m.metrics.Booking("seat_unavailable")
			m.log.Info("seat contention",
				zap.String("showtime_id", showtimeID), zap.String("user_id", userID), zap.Error(err))
			return nil, err
		case model.IsDomainError(err):
			m.metrics.Booking("invalid")
			return nil, err
		default:
			m.metrics.Booking("error")
			m.log.Error("create booking failed", zap.String("showtime_id", showtimeID), zap.Error(err))
			return nil, fmt.Errorf("create booking: %w", err)
		}
	}

	m.metrics.Booking("created")
	m.invalidate(ctx, showtimeID)
	m.publish(ctx, queue.EventBookingCreated, booking, model.ReasonHold, false)
	m.log.Info("booking created",
		zap.String("booking_id", booking.ID), zap.String("showtime_id", showtimeID),
		zap.Strings("seats", booking.SeatNumbers), zap.Int64("total_price", booking.TotalPrice))
	return booking, nil
}

func (m *ReservationManager) holdSeats(ctx context.Context, bookingID, userID, showtimeID string, numbers []string) (*model.Booking, error) {
	var booking *model.Booking
	err := m.store.WithTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		seats, err := tx.SeatsByNumber(ctx, showtimeID, numbers)
		if err != nil {
			return err
		}
		if len(seats) == 0 {
			n, err := tx.CountSeats(ctx, showtimeID)
			if err != nil {
				return err
			}
			if n == 0 {
				return model.ErrShowtimeNotFound
			}
		}
		if len(seats) != len(numbers) {
			return fmt.Errorf("%w: %s", model.ErrUnknownSeat, strings.Join(missingSeats(numbers, seats), ","))
		}

		var taken []string
		var total int64
		for _, s := range seats {
			if s.Status != model.SeatAvailable {
				taken = append(taken, s.SeatNumber)
			}
			total += s.Price
		}
		if len(taken) > 0 {
			return &model.SeatUnavailableError{Seats: taken}
		}

		now := m.now()
		heldUntil := now.Add(m.holdWindow)
		// The read above is advisory; the conditional update decides.
		n, err := tx.HoldSeats(ctx, showtimeID, numbers, bookingID, heldUntil, now)
		if err != nil {
			return err
		}
		if n != int64(len(numbers)) {
			return &model.SeatUnavailableError{Seats: lostSeats(ctx, tx, showtimeID, bookingID, numbers)}
		}

		b := &model.Booking{
			ID:          bookingID,
			UserID:      userID,
			ShowtimeID:  showtimeID,
			SeatNumbers: numbers,
			TotalPrice:  total,
			Status:      model.BookingPendingPayment,
			CreatedAt:   now,
			ExpiresAt:   heldUntil,
		}
		if err := tx.InsertBooking(ctx, b); err != nil {
			return err
		}
		if err := tx.RecordTransition(ctx, model.SeatTransition{
			BookingID: bookingID, ShowtimeID: showtimeID, SeatCount: len(numbers),
			FromStatus: model.SeatAvailable, ToStatus: model.SeatHeld, Reason: model.ReasonHold, At: now,
		}); err != nil {
			return err
		}
		booking = b
		return nil
	})
	return booking, err
}

// CancelBooking releases a pending booking on behalf of its owner.
func (m *ReservationManager) CancelBooking(ctx context.Context, bookingID, requesterID string) (*model.Booking, error) {
	var cancelled *model.Booking
	attempt := func() error {
		return m.store.WithTx(ctx, func(ctx context.Context, tx ports.Tx) error {
			b, err := tx.Booking(ctx, bookingID)
			if err != nil {
				return err
			}
			if b.UserID != requesterID {
				return fmt.Errorf("%w: not the booking owner", model.ErrNotCancellable)
			}
			if b.Status != model.BookingPendingPayment {
				return fmt.Errorf("%w: booking is %s", model.ErrNotCancellable, b.Status)
			}
			now := m.now()
			ok, err := tx.TransitionBooking(ctx, bookingID, model.BookingPendingPayment, model.BookingCancelled, now)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: booking already resolved", model.ErrNotCancellable)
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
				FromStatus: model.SeatHeld, ToStatus: model.SeatAvailable, Reason: model.ReasonCancel, At: now,
			}); err != nil {
				return err
			}
			b.Status = model.BookingCancelled
			b.ResolvedAt = &now
			cancelled = b
			return nil
		})
	}

	err := m.retryOnce(ctx, "cancel booking", attempt, func(retryErr error) bool {
		if !errors.Is(retryErr, model.ErrNotCancellable) {
			return false
		}
		b, err := m.store.Booking(ctx, bookingID)
		if err != nil || b.UserID != requesterID || b.Status != model.BookingCancelled {
			return false
		}
		cancelled = b
		return true
	})
	if err != nil {
		if model.IsDomainError(err) {
			return nil, err
		}
		m.log.Error("cancel booking failed", zap.String("booking_id", bookingID), zap.Error(err))
		return nil, fmt.Errorf("cancel booking: %w", err)
	}

	m.metrics.Transition(string(model.BookingCancelled))
	m.invalidate(ctx, cancelled.ShowtimeID)
	m.publish(ctx, queue.EventBookingCancelled, cancelled, model.ReasonCancel, false)
	m.log.Info("booking cancelled", zap.String("booking_id", bookingID))
	return cancelled, nil
}

// retryOnce runs op and, when it fails with a storage error, runs it a
// second time.  recovered inspects the retry's error and reports whether
// the first attempt had in fact committed.
func (m *ReservationManager) retryOnce(ctx context.Context, op string, attempt func() error, recovered func(error) bool) error {
	err := attempt()
	if err == nil || model.IsDomainError(err) || ctx.Err() != nil {
		return err
	}
	m.metrics.Retry()
	m.log.Warn("storage failure, retrying once", zap.String("op", op), zap.Error(err))

	retryErr := attempt()
	if retryErr != nil && recovered(retryErr) {
		return nil
	}
	return retryErr
}

// normalizeSeats upper-cases and validates the requested seat numbers.
// lostSeats names the requested seats a concurrent writer took between
// the advisory read and the hold.  Rows this transaction already moved
// read back as held by bookingID; everything else was lost.  When the
// re-read fails the whole request is reported.
func lostSeats(ctx context.Context, tx ports.Tx, showtimeID, bookingID string, numbers []string) []string {
	seats, err := tx.SeatsByNumber(ctx, showtimeID, numbers)
	if err != nil {
		return numbers
	}
	var lost []string
	for _, s := range seats {
		if s.Status == model.SeatHeld && s.HeldByBookingID != nil && *s.HeldByBookingID == bookingID {
			continue
		}
		lost = append(lost, s.SeatNumber)
	}
	if len(lost) == 0 {
		return numbers
	}
	return lost
}

func normalizeSeats(in []string) ([]string, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("%w: no seats requested", model.ErrInvalidSeatSelection)
	}
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, raw := range in {
		n := strings.ToUpper(strings.TrimSpace(raw))
		if n == "" {
			return nil, fmt.Errorf("%w: blank seat number", model.ErrInvalidSeatSelection)
		}
		if seen[n] {
			return nil, fmt.Errorf("%w: duplicate seat %s", model.ErrInvalidSeatSelection, n)
		}
		seen[n] = true
		out = append(out, n)
	}
	return out, nil
}

func missingSeats(requested []string, found []model.ShowtimeSeat) []string {
	have := make(map[string]bool, len(found))
	for _, s := range found {
		have[s.SeatNumber] = true
	}
	var missing []string
	for _, n := range requested {
		if !have[n] {
			missing = append(missing, n)
		}
	}
	return missing
}
