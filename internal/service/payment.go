package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/showtime-seat-booking/internal/model"
	"github.com/iliyamo/showtime-seat-booking/internal/ports"
	"github.com/iliyamo/showtime-seat-booking/internal/queue"
)

// CallbackResult describes what a verified callback did.
type CallbackResult struct {
	Booking *model.Booking
	// Applied is false for duplicates and for callbacks that lost the
	// race against another transition.
	Applied bool
	// RefundRequired is set when a payment succeeded after the hold
	// window had ended and the seats were not sold.
	RefundRequired bool
}

// PaymentOrchestrator opens payment sessions and resolves bookings from
// provider callbacks.  It is the only writer of HELD->BOOKED and of
// HELD->AVAILABLE on failed payments.
type PaymentOrchestrator struct {
	store   ports.Store
	gateway ports.PaymentGateway
	deps
}

func NewPaymentOrchestrator(store ports.Store, gateway ports.PaymentGateway, opts ...Option) *PaymentOrchestrator {
	return &PaymentOrchestrator{store: store, gateway: gateway, deps: newDeps(opts)}
}

// InitiatePayment returns a payment session for a pending booking,
// reusing the newest session while it is still valid.
func (o *PaymentOrchestrator) InitiatePayment(ctx context.Context, bookingID, requesterID, clientIP string) (*model.PaymentSession, error) {
	var (
		session *model.PaymentSession
		reused  bool
	)
	err := o.store.WithTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		b, err := tx.Booking(ctx, bookingID)
		if err != nil {
			return err
		}
		if requesterID != "" && b.UserID != requesterID {
			return model.ErrBookingNotFound
		}
		if b.Status != model.BookingPendingPayment {
			return fmt.Errorf("%w: booking is %s", model.ErrNotPayable, b.Status)
		}
		now := o.now()
		if !now.Before(b.ExpiresAt) {
			return fmt.Errorf("%w: hold window ended", model.ErrNotPayable)
		}

		latest, err := tx.LatestSession(ctx, bookingID)
		if err != nil {
			return err
		}
		if latest != nil && latest.RedirectURL != "" && now.Before(latest.ExpiresAt) {
			session, reused = latest, true
			return nil
		}

		// Recorded before the provider call so a callback for a call that
		// timed out on our side still resolves.
		session = &model.PaymentSession{
			Reference: newReference(bookingID),
			BookingID: bookingID,
			Amount:    b.TotalPrice,
			CreatedAt: now,
			ExpiresAt: b.ExpiresAt,
		}
		return tx.InsertSession(ctx, session)
	})
	if err != nil {
		if model.IsDomainError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("initiate payment: %w", err)
	}
	if reused {
		return session, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, o.paymentTimeout)
	defer cancel()
	redirectURL, err := o.gateway.CreateSession(callCtx, model.PaymentRequest{
		Reference: session.Reference,
		BookingID: bookingID,
		Amount:    session.Amount,
		ClientIP:  clientIP,
		CreatedAt: session.CreatedAt,
		ExpiresAt: session.ExpiresAt,
	})
	if err != nil {
		o.metrics.Session("unavailable")
		o.log.Warn("payment provider call failed, booking left pending",
			zap.String("booking_id", bookingID), zap.String("reference", session.Reference), zap.Error(err))
		if errors.Is(err, model.ErrPaymentProviderUnavailable) {
			return nil, err
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: %v", model.ErrPaymentProviderUnavailable, err)
		}
		return nil, fmt.Errorf("create payment session: %w", err)
	}

	session.RedirectURL = redirectURL
	if err := o.store.WithTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		return tx.SetSessionURL(ctx, session.Reference, redirectURL)
	}); err != nil {
		// The session is usable; the next initiate opens a fresh one.
		o.log.Warn("payment session url not stored", zap.String("reference", session.Reference), zap.Error(err))
	}
	o.metrics.Session("ok")
	return session, nil
}

// HandleCallback verifies a provider callback and resolves its booking.
// Duplicate callbacks are no-ops.
func (o *PaymentOrchestrator) HandleCallback(ctx context.Context, params url.Values) (*CallbackResult, error) {
	cb, err := o.gateway.VerifyCallback(params)
	if err != nil {
		o.metrics.Callback("rejected")
		o.log.Warn("payment callback rejected", zap.Error(err))
		if !errors.Is(err, model.ErrCallbackVerificationFailed) {
			err = fmt.Errorf("%w: %v", model.ErrCallbackVerificationFailed, err)
		}
		return nil, err
	}

	var (
		result    = &CallbackResult{}
		eventType string
		reason    string
	)
	err = o.store.WithTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		session, err := tx.SessionByReference(ctx, cb.Reference)
		if err != nil {
			return err
		}
		if session == nil {
			// Sessions are dropped on resolution; a late or repeated callback
			// is matched to its booking through the reference itself.
			id, ok := bookingIDFromReference(cb.Reference)
			if !ok {
				return fmt.Errorf("%w: %s", model.ErrUnknownPaymentReference, cb.Reference)
			}
			b, err := tx.Booking(ctx, id)
			if errors.Is(err, model.ErrBookingNotFound) {
				return fmt.Errorf("%w: %s", model.ErrUnknownPaymentReference, cb.Reference)
			}
			if err != nil {
				return err
			}
			if !b.Status.Terminal() {
				// A pending booking only loses sessions it never had.
				return fmt.Errorf("%w: %s", model.ErrUnknownPaymentReference, cb.Reference)
			}
			result.Booking = b
			return nil
		}

		b, err := tx.Booking(ctx, session.BookingID)
		if err != nil {
			return err
		}
		result.Booking = b
		if b.Status.Terminal() {
			return nil
		}

		now := o.now()
		paid := cb.Outcome == model.PaymentSuccess
		if paid && cb.Amount != 0 && cb.Amount != b.TotalPrice {
			o.log.Warn("payment amount mismatch, treating as failure",
				zap.String("booking_id", b.ID), zap.Int64("expected", b.TotalPrice), zap.Int64("paid", cb.Amount))
			paid = false
		}

		var (
			to        model.BookingStatus
			seatTo    model.SeatStatus
			moveSeats func(context.Context, string, time.Time) (int64, error)
		)
		switch {
		case paid && now.Before(b.ExpiresAt):
			to, seatTo, moveSeats = model.BookingConfirmed, model.SeatBooked, tx.ConfirmSeats
			eventType, reason = queue.EventBookingConfirmed, model.ReasonConfirm
		case paid:
			to, seatTo, moveSeats = model.BookingExpired, model.SeatAvailable, tx.ReleaseSeats
			eventType, reason = queue.EventBookingExpired, model.ReasonLatePayment
			result.RefundRequired = true
		default:
			to, seatTo, moveSeats = model.BookingCancelled, model.SeatAvailable, tx.ReleaseSeats
			eventType, reason = queue.EventBookingCancelled, model.ReasonPaymentFailed
		}

		ok, err := tx.TransitionBooking(ctx, b.ID, model.BookingPendingPayment, to, now)
		if err != nil {
			return err
		}
		if !ok {
			// Another transition won; report the state it left behind.
			current, err := tx.Booking(ctx, b.ID)
			if err != nil {
				return err
			}
			result.Booking = current
			result.RefundRequired = false
			return nil
		}

		moved, err := moveSeats(ctx, b.ID, now)
		if err != nil {
			return err
		}
		if to == model.BookingConfirmed && moved != int64(len(b.SeatNumbers)) {
			return fmt.Errorf("booking %s holds %d of %d seats", b.ID, moved, len(b.SeatNumbers))
		}
		if err := tx.SetPaymentRef(ctx, b.ID, cb.Reference); err != nil {
			return err
		}
		if err := tx.DeleteSessions(ctx, b.ID); err != nil {
			return err
		}
		if err := tx.RecordTransition(ctx, model.SeatTransition{
			BookingID: b.ID, ShowtimeID: b.ShowtimeID, SeatCount: int(moved),
			FromStatus: model.SeatHeld, ToStatus: seatTo, Reason: reason, At: now,
		}); err != nil {
			return err
		}

		ref := cb.Reference
		b.Status = to
		b.PaymentRef = &ref
		b.ResolvedAt = &now
		result.Applied = true
		return nil
	})
	if err != nil {
		if errors.Is(err, model.ErrUnknownPaymentReference) {
			o.metrics.Callback("unknown_reference")
			o.log.Warn("payment callback for unknown reference", zap.String("reference", cb.Reference))
			return nil, err
		}
		o.metrics.Callback("error")
		o.log.Error("payment callback failed", zap.String("reference", cb.Reference), zap.Error(err))
		return nil, fmt.Errorf("handle callback: %w", err)
	}

	if !result.Applied {
		o.metrics.Callback("duplicate")
		b := result.Booking
		if cb.Outcome == model.PaymentSuccess && !paidBy(b, cb.Reference) {
			// Money arrived for seats this booking no longer holds.
			result.RefundRequired = true
			o.log.Warn("payment succeeded for resolved booking, refund required",
				zap.String("booking_id", b.ID), zap.String("status", string(b.Status)), zap.String("reference", cb.Reference))
			return result, nil
		}
		o.log.Info("payment callback ignored, booking already resolved",
			zap.String("reference", cb.Reference), zap.String("status", string(b.Status)))
		return result, nil
	}

	b := result.Booking
	o.metrics.Callback("applied")
	o.metrics.Transition(string(b.Status))
	o.invalidate(ctx, b.ShowtimeID)
	o.publish(ctx, eventType, b, reason, result.RefundRequired)
	if result.RefundRequired {
		o.log.Warn("payment succeeded after hold window, refund required",
			zap.String("booking_id", b.ID), zap.String("reference", cb.Reference), zap.Int64("amount", b.TotalPrice))
	} else {
		o.log.Info("booking resolved by payment callback",
			zap.String("booking_id", b.ID), zap.String("status", string(b.Status)), zap.String("outcome", string(cb.Outcome)))
	}
	return result, nil
}

// paidBy reports whether b was confirmed by the payment ref.
func paidBy(b *model.Booking, ref string) bool {
	return b.Status == model.BookingConfirmed && b.PaymentRef != nil && *b.PaymentRef == ref
}

// newReference returns a provider transaction reference: the booking id
// without dashes followed by 8 random hex characters.  VNPay only
// accepts alphanumeric references.
func newReference(bookingID string) string {
	return strings.ReplaceAll(bookingID, "-", "") + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func bookingIDFromReference(ref string) (string, bool) {
	if len(ref) != 40 {
		return "", false
	}
	id, err := uuid.Parse(ref[:32])
	if err != nil {
		return "", false
	}
	return id.String(), true
}
