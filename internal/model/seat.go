package model

// SeatClass is the fixed class of a physical seat within an auditorium
// pattern.  It never changes after the layout is created.
type SeatClass string

const (
	SeatClassStandard SeatClass = "STANDARD"
	SeatClassVIP      SeatClass = "VIP"
	SeatClassCouple   SeatClass = "COUPLE"
)

// Seat describes one seat of an auditorium layout as produced by the
// seat map builder.  Seats are identified by their seat number, which
// is the row letter followed by the column (e.g. "A1", "K7").
//
// Fields:
//  Number        – row letter plus column, unique within the layout.
//  Row           – row letter.
//  Column        – 1-based column within the row.
//  Width         – physical width in grid units (2 for couple seats).
//  Class         – STANDARD, VIP or COUPLE.
//  MultiplierPct – price multiplier in percent of the base price.
//  Price         – base price × multiplier, rounded down.
type Seat struct {
	Number        string    `json:"seat_number"`
	Row           string    `json:"row"`
	Column        int       `json:"column"`
	Width         int       `json:"width"`
	Class         SeatClass `json:"class"`
	MultiplierPct int       `json:"multiplier_pct"`
	Price         int64     `json:"price"`
}
