package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/showtime-seat-booking/internal/middleware"
	"github.com/iliyamo/showtime-seat-booking/internal/model"
	"github.com/iliyamo/showtime-seat-booking/internal/service"
)

// BookingHandler serves the customer booking routes.  JWTAuth and
// RequireRole run before every method.
type BookingHandler struct {
	reserver Reserver
	payer    Payer
	query    Querier
	log      *zap.Logger
}

func NewBookingHandler(r Reserver, p Payer, q Querier, log *zap.Logger) *BookingHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &BookingHandler{reserver: r, payer: p, query: q, log: log}
}

// CreateBookingRequest is the body of POST /bookings.  UserID is optional
// and must match the token subject when present.
type CreateBookingRequest struct {
	UserID     interface{} `json:"user_id,omitempty"`
	ShowtimeID string      `json:"showtime_id" validate:"required"`
	SeatIDs    []string    `json:"seat_ids" validate:"required,min=1"`
}

// PaymentLink is the provider redirect returned with a new booking.
type PaymentLink struct {
	URL       string `json:"url"`
	Reference string `json:"reference"`
}

type CreateBookingResponse struct {
	BookingID    string              `json:"booking_id"`
	Status       model.BookingStatus `json:"status"`
	SeatNumbers  []string            `json:"seat_numbers"`
	TotalPrice   int64               `json:"total_price"`
	ExpiresAt    time.Time           `json:"expires_at"`
	Payment      *PaymentLink        `json:"payment"`
	PaymentError string              `json:"payment_error,omitempty"`
}

// Create handles POST /bookings.  Seats are held first; a payment session
// is then opened.  When that fails the booking is still returned and the
// client retries through POST /bookings/:id/payment.
func (h *BookingHandler) Create(c echo.Context) error {
	userID := middleware.UserID(c)
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}
	var req CreateBookingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request_body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if claimed := claimedUserID(req.UserID); claimed != "" && claimed != userID {
		return c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden", Message: "user_id does not match token"})
	}

	ctx := c.Request().Context()
	b, err := h.reserver.CreateBooking(ctx, service.CreateBookingInput{
		UserID:      userID,
		ShowtimeID:  req.ShowtimeID,
		SeatNumbers: req.SeatIDs,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}

	resp := CreateBookingResponse{
		BookingID:   b.ID,
		Status:      b.Status,
		SeatNumbers: b.SeatNumbers,
		TotalPrice:  b.TotalPrice,
		ExpiresAt:   b.ExpiresAt,
	}
	sess, err := h.payer.InitiatePayment(ctx, b.ID, userID, c.RealIP())
	if err != nil {
		_, resp.PaymentError = statusFor(err)
		h.log.Warn("booking created without payment session", zap.String("booking_id", b.ID), zap.Error(err))
	} else {
		resp.Payment = &PaymentLink{URL: sess.RedirectURL, Reference: sess.Reference}
	}
	return c.JSON(http.StatusCreated, resp)
}

// InitiatePayment handles POST /bookings/:id/payment.
func (h *BookingHandler) InitiatePayment(c echo.Context) error {
	sess, err := h.payer.InitiatePayment(c.Request().Context(), c.Param("id"), middleware.UserID(c), c.RealIP())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// Cancel handles DELETE /bookings/:id.
func (h *BookingHandler) Cancel(c echo.Context) error {
	b, err := h.reserver.CancelBooking(c.Request().Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Get handles GET /bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	view, err := h.query.GetBooking(c.Request().Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, view)
}

// claimedUserID accepts the user id as a JSON string or number.
func claimedUserID(v interface{}) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	}
	return ""
}
