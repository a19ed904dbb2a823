package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidPattern             = errors.New("invalid auditorium pattern")
	ErrInvalidInput               = errors.New("invalid input")
	ErrInvalidSeatSelection       = errors.New("invalid seat selection")
	ErrUnknownSeat                = errors.New("unknown seat")
	ErrShowtimeNotFound           = errors.New("showtime not found")
	ErrBookingNotFound            = errors.New("booking not found")
	ErrSeatUnavailable            = errors.New("seat unavailable")
	ErrNotCancellable             = errors.New("booking not cancellable")
	ErrNotPayable                 = errors.New("booking not payable")
	ErrPaymentProviderUnavailable = errors.New("payment provider unavailable")
	ErrCallbackVerificationFailed = errors.New("callback verification failed")
	ErrUnknownPaymentReference    = errors.New("unknown payment reference")
)

// SeatUnavailableError lists the requested seats that could not be held.
// It matches ErrSeatUnavailable with errors.Is.
type SeatUnavailableError struct {
	Seats []string
}

func (e *SeatUnavailableError) Error() string {
	if len(e.Seats) == 0 {
		return ErrSeatUnavailable.Error()
	}
	return fmt.Sprintf("%s: %s", ErrSeatUnavailable, strings.Join(e.Seats, ","))
}

func (e *SeatUnavailableError) Is(target error) bool { return target == ErrSeatUnavailable }

// IsDomainError reports whether err is an expected business outcome as
// opposed to an infrastructure failure.
func IsDomainError(err error) bool {
	for _, target := range []error{
		ErrInvalidPattern, ErrInvalidInput, ErrInvalidSeatSelection, ErrUnknownSeat,
		ErrShowtimeNotFound, ErrBookingNotFound, ErrSeatUnavailable, ErrNotCancellable,
		ErrNotPayable, ErrPaymentProviderUnavailable, ErrCallbackVerificationFailed,
		ErrUnknownPaymentReference,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
