package model

import "time"

// SeatStatus is the availability state of a seat for one showtime.
type SeatStatus string

const (
	SeatAvailable SeatStatus = "AVAILABLE"
	SeatHeld      SeatStatus = "HELD"
	SeatBooked    SeatStatus = "BOOKED"
)

// ShowtimeSeat tracks availability and pricing of a seat for a
// particular showtime.  There is exactly one row per seat per showtime,
// created when the showtime's seats are initialized.
//
// Fields:
//  ShowtimeID      – the showtime to which this seat belongs.
//  SeatNumber      – seat number from the seat map ("A1").
//  Class           – seat class copied from the layout.
//  Status          – AVAILABLE, HELD or BOOKED.
//  Price           – price locked in at initialization.
//  HeldByBookingID – booking holding or owning the seat, if any.
//  HeldUntil       – end of the hold window while HELD.
//  UpdatedAt       – last status change.
type ShowtimeSeat struct {
	ShowtimeID      string     `db:"showtime_id" json:"showtime_id"`
	SeatNumber      string     `db:"seat_number" json:"seat_number"`
	Class           SeatClass  `db:"seat_class" json:"class"`
	Status          SeatStatus `db:"status" json:"status"`
	Price           int64      `db:"price" json:"price"`
	HeldByBookingID *string    `db:"held_by_booking_id" json:"-"`
	HeldUntil       *time.Time `db:"held_until" json:"held_until,omitempty"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// Availability is the read projection of a showtime's seats used by
// clients to render the seat map.
type Availability struct {
	ShowtimeID string             `json:"showtime_id"`
	Counts     map[SeatStatus]int `json:"counts"`
	Seats      []ShowtimeSeat     `json:"seats"`
	Layout     []RowLayout        `json:"layout,omitempty"`
}

// RowLayout describes one row of the auditorium grid.
type RowLayout struct {
	Row   string    `json:"row"`
	Count int       `json:"count"`
	Class SeatClass `json:"class"`
	Width int       `json:"width"`
}
