package model

import "time"

// PaymentOutcome is the normalized result reported by a payment callback.
type PaymentOutcome string

const (
	PaymentSuccess   PaymentOutcome = "SUCCESS"
	PaymentFailure   PaymentOutcome = "FAILURE"
	PaymentCancelled PaymentOutcome = "CANCELLED"
)

// PaymentSession is a provider session opened for a pending booking.
// Sessions are removed once the booking is resolved.
type PaymentSession struct {
	Reference   string    `db:"reference" json:"reference"`
	BookingID   string    `db:"booking_id" json:"booking_id"`
	Amount      int64     `db:"amount" json:"amount"`
	RedirectURL string    `db:"redirect_url" json:"url"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	ExpiresAt   time.Time `db:"expires_at" json:"expires_at"`
}

// PaymentRequest is what the orchestrator asks a gateway to open.
type PaymentRequest struct {
	Reference string
	BookingID string
	Amount    int64
	OrderInfo string
	ClientIP  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// PaymentCallback is a verified provider notification.
type PaymentCallback struct {
	Reference     string
	Outcome       PaymentOutcome
	Amount        int64
	ProviderTxnID string
	ResponseCode  string
}
