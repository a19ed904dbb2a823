package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ShowtimeHandler serves seat inventory routes.
type ShowtimeHandler struct {
	inventory SeatInitializer
	query     Querier
	log       *zap.Logger
}

func NewShowtimeHandler(inv SeatInitializer, q Querier, log *zap.Logger) *ShowtimeHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ShowtimeHandler{inventory: inv, query: q, log: log}
}

// InitSeatsRequest is the body of PUT /showtimes/:id/seats.
type InitSeatsRequest struct {
	Pattern   string `json:"pattern" validate:"required"`
	BasePrice int64  `json:"base_price" validate:"required,gt=0"`
}

// GetSeats handles GET /showtimes/:id/seats.
func (h *ShowtimeHandler) GetSeats(c echo.Context) error {
	a, err := h.query.GetShowtimeAvailability(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, a)
}

// InitSeats handles PUT /showtimes/:id/seats.  It answers 201 when rows
// were created and 200 when the showtime was already initialized.
func (h *ShowtimeHandler) InitSeats(c echo.Context) error {
	var req InitSeatsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request_body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	showtimeID := c.Param("id")
	created, err := h.inventory.InitializeShowtimeSeats(c.Request().Context(), showtimeID, req.Pattern, req.BasePrice)
	if err != nil {
		return respondError(c, h.log, err)
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, echo.Map{"showtime_id": showtimeID, "created": created})
}
