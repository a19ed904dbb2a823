// Package router wires handlers and middleware onto echo.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/showtime-seat-booking/internal/handler"
	"github.com/iliyamo/showtime-seat-booking/internal/middleware"
)

// RegisterRoutes registers the unauthenticated routes: health, metrics,
// public seat availability and the payment provider callbacks.
func RegisterRoutes(e *echo.Echo, health *handler.HealthHandler, showtimes *handler.ShowtimeHandler, payments *handler.PaymentHandler) {
	e.GET("/healthz", health.Check)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.GET("/showtimes/:id/seats", showtimes.GetSeats)

	// Provider callbacks are authenticated by their signature.
	e.GET("/payments/vnpay/ipn", payments.IPN)
	e.GET("/payments/vnpay/return", payments.Return)
}

// RegisterAdmin registers seat inventory management for ADMIN and OWNER.
func RegisterAdmin(e *echo.Echo, showtimes *handler.ShowtimeHandler, jwtSecret string) {
	e.PUT("/showtimes/:id/seats", showtimes.InitSeats,
		middleware.JWTAuth(jwtSecret), middleware.RequireRole(middleware.RoleAdmin, middleware.RoleOwner))
}

// RegisterBookings registers the customer booking routes.  Only booking
// creation is rate limited.
func RegisterBookings(e *echo.Echo, bookings *handler.BookingHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/bookings")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(middleware.RoleCustomer))

	if limiter != nil {
		g.POST("", bookings.Create, limiter)
	} else {
		g.POST("", bookings.Create)
	}
	g.GET("/:id", bookings.Get)
	g.DELETE("/:id", bookings.Cancel)
	g.POST("/:id/payment", bookings.InitiatePayment)
}
