package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/showtime-seat-booking/internal/model"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message,omitempty"`
	Seats   []string `json:"seats,omitempty"`
}

// statusFor maps a domain error to its HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrInvalidPattern):
		return http.StatusBadRequest, "invalid_pattern"
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, model.ErrInvalidSeatSelection):
		return http.StatusBadRequest, "invalid_seat_selection"
	case errors.Is(err, model.ErrUnknownSeat):
		return http.StatusBadRequest, "unknown_seat"
	case errors.Is(err, model.ErrSeatUnavailable):
		return http.StatusConflict, "seat_unavailable"
	case errors.Is(err, model.ErrNotCancellable):
		return http.StatusConflict, "not_cancellable"
	case errors.Is(err, model.ErrNotPayable):
		return http.StatusConflict, "not_payable"
	case errors.Is(err, model.ErrBookingNotFound):
		return http.StatusNotFound, "booking_not_found"
	case errors.Is(err, model.ErrShowtimeNotFound):
		return http.StatusNotFound, "showtime_not_found"
	case errors.Is(err, model.ErrUnknownPaymentReference):
		return http.StatusNotFound, "unknown_payment_reference"
	case errors.Is(err, model.ErrPaymentProviderUnavailable):
		return http.StatusServiceUnavailable, "payment_provider_unavailable"
	case errors.Is(err, model.ErrCallbackVerificationFailed):
		return http.StatusBadRequest, "callback_verification_failed"
	}
	return http.StatusInternalServerError, "internal_error"
}

// respondError writes err as JSON.  Unexpected errors are logged and
// their text is not exposed.
func respondError(c echo.Context, log *zap.Logger, err error) error {
	status, code := statusFor(err)
	body := ErrorResponse{Error: code}
	if status == http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", c.Request().Method), zap.String("path", c.Path()), zap.Error(err))
		return c.JSON(status, body)
	}
	var unavailable *model.SeatUnavailableError
	if errors.As(err, &unavailable) {
		body.Seats = unavailable.Seats
	}
	body.Message = err.Error()
	return c.JSON(status, body)
}

// ErrorHandler replaces echo's default handler so framework errors
// (404 routes, bind and validation failures, panics) share the JSON shape.
func ErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, body := http.StatusInternalServerError, ErrorResponse{Error: "internal_error"}
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			body.Error = http.StatusText(status)
			if m, ok := he.Message.(string); ok {
				body.Message = m
			}
		} else if s, code := statusFor(err); s != http.StatusInternalServerError {
			status, body.Error, body.Message = s, code, err.Error()
		}
		if status >= 500 {
			log.Error("unhandled error", zap.Int("status", status), zap.String("path", c.Request().URL.Path), zap.Error(err))
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			log.Error("error response not sent", zap.Error(werr))
		}
	}
}
