package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/showtime-seat-booking/internal/model"
)

// PaymentHandler receives provider callbacks.  These routes carry no JWT;
// the provider signature authenticates them.
type PaymentHandler struct {
	payer Payer
	log   *zap.Logger
}

func NewPaymentHandler(p Payer, log *zap.Logger) *PaymentHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &PaymentHandler{payer: p, log: log}
}

// IPNResponse is the acknowledgement format VNPay expects.
type IPNResponse struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

// IPN handles GET /payments/vnpay/ipn.  VNPay retries until it gets an
// HTTP 200, so every outcome, errors included, answers 200.
func (h *PaymentHandler) IPN(c echo.Context) error {
	res, err := h.payer.HandleCallback(c.Request().Context(), c.QueryParams())
	var ack IPNResponse
	switch {
	case errors.Is(err, model.ErrCallbackVerificationFailed):
		ack = IPNResponse{RspCode: "97", Message: "Invalid signature"}
	case errors.Is(err, model.ErrUnknownPaymentReference):
		ack = IPNResponse{RspCode: "01", Message: "Order not found"}
	case err != nil:
		ack = IPNResponse{RspCode: "99", Message: "Unknown error"}
	case !res.Applied:
		ack = IPNResponse{RspCode: "02", Message: "Order already confirmed"}
	default:
		ack = IPNResponse{RspCode: "00", Message: "Confirm Success"}
	}
	if err == nil && res.RefundRequired {
		h.log.Warn("refund required", zap.String("booking_id", res.Booking.ID), zap.Int64("amount", res.Booking.TotalPrice))
	}
	return c.JSON(http.StatusOK, ack)
}

// Return handles GET /payments/vnpay/return, where the browser lands
// after checkout.
func (h *PaymentHandler) Return(c echo.Context) error {
	res, err := h.payer.HandleCallback(c.Request().Context(), c.QueryParams())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"booking_id":      res.Booking.ID,
		"status":          res.Booking.Status,
		"refund_required": res.RefundRequired,
	})
}
