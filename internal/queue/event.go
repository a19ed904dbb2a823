// Package queue defines booking lifecycle events and moves them over
// RabbitMQ.
package queue

// Event types carried in BookingEvent.Type and the AMQP type property.
const (
	EventBookingCreated   = "booking.created"
	EventBookingConfirmed = "booking.confirmed"
	EventBookingCancelled = "booking.cancelled"
	EventBookingExpired   = "booking.expired"
)

// BookingEvent is published after a booking transition commits.  It
// carries enough information for downstream consumers to log, notify or
// trigger analytics without querying the primary database.
type BookingEvent struct {
	Type           string   `json:"type"`
	BookingID      string   `json:"booking_id"`
	UserID         string   `json:"user_id"`
	ShowtimeID     string   `json:"showtime_id"`
	Seats          []string `json:"seats"`
	TotalPrice     int64    `json:"total_price"`
	Status         string   `json:"status"`
	Reason         string   `json:"reason,omitempty"`
	RefundRequired bool     `json:"refund_required,omitempty"`
	OccurredAt     string   `json:"occurred_at"`
}
