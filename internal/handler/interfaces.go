package handler

import (
	"context"
	"net/url"

	"github.com/iliyamo/showtime-seat-booking/internal/model"
	"github.com/iliyamo/showtime-seat-booking/internal/service"
)

// Reserver creates and cancels bookings.
type Reserver interface {
	CreateBooking(ctx context.Context, in service.CreateBookingInput) (*model.Booking, error)
	CancelBooking(ctx context.Context, bookingID, requesterID string) (*model.Booking, error)
}

// Payer opens payment sessions and applies provider callbacks.
type Payer interface {
	InitiatePayment(ctx context.Context, bookingID, requesterID, clientIP string) (*model.PaymentSession, error)
	HandleCallback(ctx context.Context, params url.Values) (*service.CallbackResult, error)
}

// Querier serves read projections.
type Querier interface {
	GetShowtimeAvailability(ctx context.Context, showtimeID string) (*model.Availability, error)
	GetBooking(ctx context.Context, bookingID, requesterID string) (*model.BookingView, error)
}

// SeatInitializer creates the seat rows of a showtime.
type SeatInitializer interface {
	InitializeShowtimeSeats(ctx context.Context, showtimeID, pattern string, basePrice int64) (bool, error)
}

var (
	_ Reserver        = (*service.ReservationManager)(nil)
	_ Payer           = (*service.PaymentOrchestrator)(nil)
	_ Querier         = (*service.BookingQuery)(nil)
	_ SeatInitializer = (*service.Inventory)(nil)
)
