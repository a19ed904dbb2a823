// Package ports declares the collaborators the booking services depend
// on.  The MySQL repository, the payment gateways, the Redis cache and
// the RabbitMQ publisher implement them.
package ports

import (
	"context"
	"net/url"
	"time"

	"github.com/iliyamo/showtime-seat-booking/internal/model"
	"github.com/iliyamo/showtime-seat-booking/internal/queue"
)

// Reader holds the read operations available both inside and outside a
// transaction.
type Reader interface {
	// ShowtimeSeats returns every seat of the showtime ordered by row and column.
	ShowtimeSeats(ctx context.Context, showtimeID string) ([]model.ShowtimeSeat, error)
	// Booking returns model.ErrBookingNotFound when the id is unknown.
	Booking(ctx context.Context, bookingID string) (*model.Booking, error)
}

// Store is the durable seat inventory and booking table.
type Store interface {
	Reader
	// WithTx runs fn in one transaction.  A non-nil error from fn rolls
	// everything back.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// DueBookings lists pending bookings whose hold window has ended.
	DueBookings(ctx context.Context, now time.Time, limit int) ([]string, error)
}

// Tx is the set of writes that mutate seat and booking state.  Every
// status change is a conditional update; the returned counts and
// booleans report whether the expected prior state matched.
type Tx interface {
	Reader

	CountSeats(ctx context.Context, showtimeID string) (int, error)
	SeatsByNumber(ctx context.Context, showtimeID string, numbers []string) ([]model.ShowtimeSeat, error)
	InsertSeats(ctx context.Context, seats []model.ShowtimeSeat) error

	// HoldSeats moves AVAILABLE seats to HELD for bookingID.
	HoldSeats(ctx context.Context, showtimeID string, numbers []string, bookingID string, heldUntil, now time.Time) (int64, error)
	// ConfirmSeats moves the booking's HELD seats to BOOKED.
	ConfirmSeats(ctx context.Context, bookingID string, now time.Time) (int64, error)
	// ReleaseSeats moves the booking's HELD seats back to AVAILABLE.
	ReleaseSeats(ctx context.Context, bookingID string, now time.Time) (int64, error)

	InsertBooking(ctx context.Context, b *model.Booking) error
	// TransitionBooking moves a booking from one status to another.
	TransitionBooking(ctx context.Context, bookingID string, from, to model.BookingStatus, now time.Time) (bool, error)
	// ExpireBooking moves a pending booking whose expires_at <= now to EXPIRED.
	ExpireBooking(ctx context.Context, bookingID string, now time.Time) (bool, error)
	SetPaymentRef(ctx context.Context, bookingID, ref string) error

	InsertSession(ctx context.Context, s *model.PaymentSession) error
	SetSessionURL(ctx context.Context, ref, redirectURL string) error
	// LatestSession returns nil when the booking has no session.
	LatestSession(ctx context.Context, bookingID string) (*model.PaymentSession, error)
	// SessionByReference returns nil when the reference is unknown.
	SessionByReference(ctx context.Context, ref string) (*model.PaymentSession, error)
	DeleteSessions(ctx context.Context, bookingID string) error

	RecordTransition(ctx context.Context, t model.SeatTransition) error
}

// PaymentGateway opens payment sessions and authenticates callbacks.
type PaymentGateway interface {
	// CreateSession returns the redirect URL for the payer.  Transport
	// and provider-side failures wrap model.ErrPaymentProviderUnavailable.
	CreateSession(ctx context.Context, req model.PaymentRequest) (string, error)
	// VerifyCallback checks the integrity signature before decoding the
	// outcome.  Failures wrap model.ErrCallbackVerificationFailed.
	VerifyCallback(params url.Values) (model.PaymentCallback, error)
}

// AvailabilityCache caches availability projections.  Implementations
// swallow their own errors; a miss is always safe.
type AvailabilityCache interface {
	Get(ctx context.Context, showtimeID string) (*model.Availability, bool)
	// Generation is captured before reading the store and handed to Set.
	Generation(ctx context.Context, showtimeID string) int64
	// Set is a no-op when Invalidate ran after gen was captured.
	Set(ctx context.Context, a *model.Availability, gen int64)
	Invalidate(ctx context.Context, showtimeID string)
}

// EventPublisher delivers booking lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.BookingEvent) error
}
