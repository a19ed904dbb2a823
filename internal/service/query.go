package service

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/iliyamo/showtime-seat-booking/internal/model"
	"github.com/iliyamo/showtime-seat-booking/internal/ports"
	"github.com/iliyamo/showtime-seat-booking/internal/seatmap"
)

// BookingQuery serves read-only projections.  It never writes seat state.
type BookingQuery struct {
	store ports.Store
	deps
}

func NewBookingQuery(store ports.Store, opts ...Option) *BookingQuery {
	return &BookingQuery{store: store, deps: newDeps(opts)}
}

// GetShowtimeAvailability returns every seat with status and price.
func (q *BookingQuery) GetShowtimeAvailability(ctx context.Context, showtimeID string) (*model.Availability, error) {
	var gen int64
	if q.cache != nil {
		if a, ok := q.cache.Get(ctx, showtimeID); ok {
			return a, nil
		}
		gen = q.cache.Generation(ctx, showtimeID)
	}
	seats, err := q.store.ShowtimeSeats(ctx, showtimeID)
	if err != nil {
		return nil, fmt.Errorf("get availability: %w", err)
	}
	if len(seats) == 0 {
		return nil, model.ErrShowtimeNotFound
	}

	a := &model.Availability{
		ShowtimeID: showtimeID,
		Counts: map[model.SeatStatus]int{
			model.SeatAvailable: 0,
			model.SeatHeld:      0,
			model.SeatBooked:    0,
		},
		Seats:  seats,
		Layout: seatmap.LayoutFromSeats(seats),
	}
	for _, s := range seats {
		a.Counts[s.Status]++
	}
	if q.cache != nil {
		q.cache.Set(ctx, a, gen)
	}
	return a, nil
}

// GetBooking returns the booking with one ticket per seat.  Bookings of
// other users are reported as not found.
func (q *BookingQuery) GetBooking(ctx context.Context, bookingID, requesterID string) (*model.BookingView, error) {
	b, err := q.store.Booking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if requesterID != "" && b.UserID != requesterID {
		return nil, model.ErrBookingNotFound
	}
	seats, err := q.store.ShowtimeSeats(ctx, b.ShowtimeID)
	if err != nil {
		return nil, fmt.Errorf("get booking seats: %w", err)
	}
	bySeat := make(map[string]model.ShowtimeSeat, len(seats))
	for _, s := range seats {
		bySeat[s.SeatNumber] = s
	}

	view := &model.BookingView{Booking: *b, Tickets: make([]model.Ticket, 0, len(b.SeatNumbers))}
	for _, n := range b.SeatNumbers {
		s := bySeat[n]
		t := model.Ticket{
			Code:       ticketCode(b.ID, n),
			SeatNumber: n,
			Class:      s.Class,
			Price:      s.Price,
		}
		if b.Status == model.BookingConfirmed && q.ticketQR {
			png, err := qrcode.Encode(t.Code, qrcode.Medium, 256)
			if err != nil {
				q.log.Warn("ticket qr code not rendered", zap.String("code", t.Code), zap.Error(err))
			} else {
				t.QRCode = base64.StdEncoding.EncodeToString(png)
			}
		}
		view.Tickets = append(view.Tickets, t)
	}
	return view, nil
}

func ticketCode(bookingID, seat string) string {
	return bookingID + "-" + seat
}
