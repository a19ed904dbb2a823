package model

import "time"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingPendingPayment BookingStatus = "PENDING_PAYMENT"
	BookingConfirmed      BookingStatus = "CONFIRMED"
	BookingCancelled      BookingStatus = "CANCELLED"
	BookingExpired        BookingStatus = "EXPIRED"
)

// Terminal reports whether no further transitions are allowed.
func (s BookingStatus) Terminal() bool {
	return s == BookingConfirmed || s == BookingCancelled || s == BookingExpired
}

// Booking aggregates the seats a user holds or bought for a showtime.
// Seat numbers and total price are fixed at creation.
//
// Fields:
//  ID          – booking id (UUID).
//  UserID      – user who created the booking.
//  ShowtimeID  – showtime the seats belong to.
//  SeatNumbers – seats held by the booking.
//  TotalPrice  – sum of seat prices at hold time.
//  Status      – lifecycle state.
//  PaymentRef  – provider reference that resolved the booking.
//  CreatedAt   – creation timestamp.
//  ExpiresAt   – end of the hold window.
//  ResolvedAt  – time the booking reached a terminal state.
type Booking struct {
	ID          string        `json:"booking_id"`
	UserID      string        `json:"user_id"`
	ShowtimeID  string        `json:"showtime_id"`
	SeatNumbers []string      `json:"seat_numbers"`
	TotalPrice  int64         `json:"total_price"`
	Status      BookingStatus `json:"status"`
	PaymentRef  *string       `json:"payment_ref,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	ExpiresAt   time.Time     `json:"expires_at"`
	ResolvedAt  *time.Time    `json:"resolved_at,omitempty"`
}

// Ticket is the per-seat view of a booking.  QRCode is a base64 PNG
// and is only present once the booking is confirmed.
type Ticket struct {
	Code       string    `json:"code"`
	SeatNumber string    `json:"seat_number"`
	Class      SeatClass `json:"class"`
	Price      int64     `json:"price"`
	QRCode     string    `json:"qr_code,omitempty"`
}

// BookingView is a booking with its derived tickets.
type BookingView struct {
	Booking
	Tickets []Ticket `json:"tickets"`
}

// SeatTransition is an audit record of a seat status change performed
// for a booking.
type SeatTransition struct {
	BookingID  string     `db:"booking_id"`
	ShowtimeID string     `db:"showtime_id"`
	SeatCount  int        `db:"seat_count"`
	FromStatus SeatStatus `db:"from_status"`
	ToStatus   SeatStatus `db:"to_status"`
	Reason     string     `db:"reason"`
	At         time.Time  `db:"created_at"`
}

// Transition reasons recorded in the audit trail.
const (
	ReasonHold          = "hold"
	ReasonConfirm       = "confirm"
	ReasonCancel        = "cancel"
	ReasonPaymentFailed = "payment_failed"
	ReasonExpire        = "expire"
	ReasonLatePayment   = "late_payment"
)
