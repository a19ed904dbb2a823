package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/showtime-seat-booking/internal/middleware"
	"github.com/iliyamo/showtime-seat-booking/internal/model"
	"github.com/iliyamo/showtime-seat-booking/internal/service"
)

const testSecret = "handler-secret"

type MockReserver struct{ mock.Mock }

func (m *MockReserver) CreateBooking(ctx context.Context, in service.CreateBookingInput) (*model.Booking, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Booking), args.Error(1)
}

func (m *MockReserver) CancelBooking(ctx context.Context, bookingID, requesterID string) (*model.Booking, error) {
	args := m.Called(ctx, bookingID, requesterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Booking), args.Error(1)
}

type MockPayer struct{ mock.Mock }

func (m *MockPayer) InitiatePayment(ctx context.Context, bookingID, requesterID, clientIP string) (*model.PaymentSession, error) {
	args := m.Called(ctx, bookingID, requesterID, clientIP)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentSession), args.Error(1)
}

func (m *MockPayer) HandleCallback(ctx context.Context, params url.Values) (*service.CallbackResult, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CallbackResult), args.Error(1)
}

type MockQuerier struct{ mock.Mock }

func (m *MockQuerier) GetShowtimeAvailability(ctx context.Context, showtimeID string) (*model.Availability, error) {
	args := m.Called(ctx, showtimeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Availability), args.Error(1)
}

func (m *MockQuerier) GetBooking(ctx context.Context, bookingID, requesterID string) (*model.BookingView, error) {
	args := m.Called(ctx, bookingID, requesterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BookingView), args.Error(1)
}

type MockInitializer struct{ mock.Mock }

func (m *MockInitializer) InitializeShowtimeSeats(ctx context.Context, showtimeID, pattern string, basePrice int64) (bool, error) {
	args := m.Called(ctx, showtimeID, pattern, basePrice)
	return args.Bool(0), args.Error(1)
}

type stubPinger struct{ err error }

func (p stubPinger) PingContext(context.Context) error { return p.err }

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	e.HTTPErrorHandler = ErrorHandler(zap.NewNop())
	return e
}

func token(t *testing.T, sub string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub, "role": "CUSTOMER", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func do(e *echo.Echo, method, target, body, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type bookingFixture struct {
	e     *echo.Echo
	res   *MockReserver
	pay   *MockPayer
	query *MockQuerier
}

func newBookingFixture() *bookingFixture {
	f := &bookingFixture{e: newTestEcho(), res: new(MockReserver), pay: new(MockPayer), query: new(MockQuerier)}
	h := NewBookingHandler(f.res, f.pay, f.query, zap.NewNop())
	g := f.e.Group("/bookings", middleware.JWTAuth(testSecret))
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.DELETE("/:id", h.Cancel)
	g.POST("/:id/payment", h.InitiatePayment)
	return f
}

func sampleBooking() *model.Booking {
	return &model.Booking{
		ID:          "b-1",
		UserID:      "42",
		ShowtimeID:  "st-1",
		SeatNumbers: []string{"A1", "A2"},
		TotalPrice:  200000,
		Status:      model.BookingPendingPayment,
		ExpiresAt:   time.Date(2026, 5, 1, 12, 10, 0, 0, time.UTC),
	}
}

func TestBookingHandler_Create(t *testing.T) {
	f := newBookingFixture()
	in := service.CreateBookingInput{UserID: "42", ShowtimeID: "st-1", SeatNumbers: []string{"A1", "A2"}}
	f.res.On("CreateBooking", mock.Anything, in).Return(sampleBooking(), nil)
	f.pay.On("InitiatePayment", mock.Anything, "b-1", "42", mock.Anything).
		Return(&model.PaymentSession{Reference: "ref-1", RedirectURL: "https://pay.example/ref-1"}, nil)

	rec := do(f.e, http.MethodPost, "/bookings", `{"showtime_id":"st-1","seat_ids":["A1","A2"],"user_id":42}`, token(t, "42"))

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp CreateBookingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "b-1", resp.BookingID)
	assert.Equal(t, model.BookingPendingPayment, resp.Status)
	assert.Equal(t, int64(200000), resp.TotalPrice)
	require.NotNil(t, resp.Payment)
	assert.Equal(t, "https://pay.example/ref-1", resp.Payment.URL)
	assert.Equal(t, "ref-1", resp.Payment.Reference)
	f.res.AssertExpectations(t)
	f.pay.AssertExpectations(t)
}

func TestBookingHandler_CreateWithoutPaymentSession(t *testing.T) {
	f := newBookingFixture()
	f.res.On("CreateBooking", mock.Anything, mock.Anything).Return(sampleBooking(), nil)
	f.pay.On("InitiatePayment", mock.Anything, "b-1", "42", mock.Anything).
		Return(nil, model.ErrPaymentProviderUnavailable)

	rec := do(f.e, http.MethodPost, "/bookings", `{"showtime_id":"st-1","seat_ids":["A1","A2"]}`, token(t, "42"))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"payment":null`)
	assert.Contains(t, rec.Body.String(), `"payment_error":"payment_provider_unavailable"`)
}

func TestBookingHandler_CreateErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		sub    string
		err    error
		status int
		want   string
	}{
		{"seat unavailable", `{"showtime_id":"st-1","seat_ids":["A1"]}`, "42", &model.SeatUnavailableError{Seats: []string{"A1"}}, 409, `"seats":["A1"]`},
		{"unknown seat", `{"showtime_id":"st-1","seat_ids":["Z1"]}`, "42", model.ErrUnknownSeat, 400, `"error":"unknown_seat"`},
		{"showtime not found", `{"showtime_id":"st-9","seat_ids":["A1"]}`, "42", model.ErrShowtimeNotFound, 404, `"error":"showtime_not_found"`},
		{"storage failure", `{"showtime_id":"st-1","seat_ids":["A1"]}`, "42", errors.New("db down"), 500, `"error":"internal_error"`},
		{"missing seats", `{"showtime_id":"st-1","seat_ids":[]}`, "42", nil, 400, ""},
		{"malformed body", `{"showtime_id":`, "42", nil, 400, `"error":"invalid_request_body"`},
		{"user mismatch", `{"showtime_id":"st-1","seat_ids":["A1"],"user_id":"7"}`, "42", nil, 403, `"error":"forbidden"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBookingFixture()
			if tt.err != nil {
				f.res.On("CreateBooking", mock.Anything, mock.Anything).Return(nil, tt.err)
			}
			rec := do(f.e, http.MethodPost, "/bookings", tt.body, token(t, tt.sub))
			assert.Equal(t, tt.status, rec.Code)
			if tt.want != "" {
				assert.Contains(t, rec.Body.String(), tt.want)
			}
			assert.NotContains(t, rec.Body.String(), "db down")
			f.pay.AssertNotCalled(t, "InitiatePayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestBookingHandler_RequiresToken(t *testing.T) {
	f := newBookingFixture()
	rec := do(f.e, http.MethodPost, "/bookings", `{"showtime_id":"st-1","seat_ids":["A1"]}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	f.res.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
}

func TestBookingHandler_Cancel(t *testing.T) {
	f := newBookingFixture()
	cancelled := sampleBooking()
	cancelled.Status = model.BookingCancelled
	f.res.On("CancelBooking", mock.Anything, "b-1", "42").Return(cancelled, nil)
	f.res.On("CancelBooking", mock.Anything, "b-2", "42").Return(nil, model.ErrNotCancellable)

	rec := do(f.e, http.MethodDelete, "/bookings/b-1", "", token(t, "42"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"CANCELLED"`)

	rec = do(f.e, http.MethodDelete, "/bookings/b-2", "", token(t, "42"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"not_cancellable"`)
}

func TestBookingHandler_Get(t *testing.T) {
	f := newBookingFixture()
	view := &model.BookingView{
		Booking: *sampleBooking(),
		Tickets: []model.Ticket{{Code: "b-1-A1", SeatNumber: "A1", Class: model.SeatClassStandard, Price: 100000}},
	}
	f.query.On("GetBooking", mock.Anything, "b-1", "42").Return(view, nil)
	f.query.On("GetBooking", mock.Anything, "b-1", "7").Return(nil, model.ErrBookingNotFound)

	rec := do(f.e, http.MethodGet, "/bookings/b-1", "", token(t, "42"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"b-1-A1"`)
	assert.Contains(t, rec.Body.String(), `"booking_id":"b-1"`)

	rec = do(f.e, http.MethodGet, "/bookings/b-1", "", token(t, "7"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBookingHandler_InitiatePayment(t *testing.T) {
	f := newBookingFixture()
	f.pay.On("InitiatePayment", mock.Anything, "b-1", "42", mock.Anything).
		Return(&model.PaymentSession{Reference: "ref-1", BookingID: "b-1", RedirectURL: "https://pay.example/ref-1"}, nil)
	f.pay.On("InitiatePayment", mock.Anything, "b-2", "42", mock.Anything).
		Return(nil, model.ErrPaymentProviderUnavailable)
	f.pay.On("InitiatePayment", mock.Anything, "b-3", "42", mock.Anything).
		Return(nil, model.ErrNotPayable)

	rec := do(f.e, http.MethodPost, "/bookings/b-1/payment", "", token(t, "42"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"url":"https://pay.example/ref-1"`)

	assert.Equal(t, http.StatusServiceUnavailable, do(f.e, http.MethodPost, "/bookings/b-2/payment", "", token(t, "42")).Code)
	assert.Equal(t, http.StatusConflict, do(f.e, http.MethodPost, "/bookings/b-3/payment", "", token(t, "42")).Code)
}

func TestShowtimeHandler(t *testing.T) {
	e := newTestEcho()
	inv, query := new(MockInitializer), new(MockQuerier)
	h := NewShowtimeHandler(inv, query, zap.NewNop())
	e.GET("/showtimes/:id/seats", h.GetSeats)
	e.PUT("/showtimes/:id/seats", h.InitSeats)

	inv.On("InitializeShowtimeSeats", mock.Anything, "st-1", "ONE", int64(100000)).Return(true, nil).Once()
	inv.On("InitializeShowtimeSeats", mock.Anything, "st-1", "ONE", int64(100000)).Return(false, nil).Once()
	inv.On("InitializeShowtimeSeats", mock.Anything, "st-1", "NINE", int64(100000)).Return(false, model.ErrInvalidPattern)

	assert.Equal(t, http.StatusCreated, do(e, http.MethodPut, "/showtimes/st-1/seats", `{"pattern":"ONE","base_price":100000}`, "").Code)
	assert.Equal(t, http.StatusOK, do(e, http.MethodPut, "/showtimes/st-1/seats", `{"pattern":"ONE","base_price":100000}`, "").Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPut, "/showtimes/st-1/seats", `{"pattern":"NINE","base_price":100000}`, "").Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPut, "/showtimes/st-1/seats", `{"pattern":"ONE","base_price":0}`, "").Code)

	avail := &model.Availability{
		ShowtimeID: "st-1",
		Counts:     map[model.SeatStatus]int{model.SeatAvailable: 1, model.SeatHeld: 0, model.SeatBooked: 0},
		Seats:      []model.ShowtimeSeat{{ShowtimeID: "st-1", SeatNumber: "A1", Status: model.SeatAvailable, Price: 100000}},
	}
	query.On("GetShowtimeAvailability", mock.Anything, "st-1").Return(avail, nil)
	query.On("GetShowtimeAvailability", mock.Anything, "st-9").Return(nil, model.ErrShowtimeNotFound)

	rec := do(e, http.MethodGet, "/showtimes/st-1/seats", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"AVAILABLE":1`)
	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/showtimes/st-9/seats", "", "").Code)
	inv.AssertExpectations(t)
}

func TestPaymentHandler_IPN(t *testing.T) {
	confirmed := sampleBooking()
	confirmed.Status = model.BookingConfirmed
	tests := []struct {
		ref  string
		res  *service.CallbackResult
		err  error
		code string
	}{
		{"applied", &service.CallbackResult{Booking: confirmed, Applied: true}, nil, "00"},
		{"duplicate", &service.CallbackResult{Booking: confirmed}, nil, "02"},
		{"refund", &service.CallbackResult{Booking: confirmed, RefundRequired: true}, nil, "02"},
		{"unknown", nil, model.ErrUnknownPaymentReference, "01"},
		{"forged", nil, model.ErrCallbackVerificationFailed, "97"},
		{"broken", nil, errors.New("db down"), "99"},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			e := newTestEcho()
			pay := new(MockPayer)
			h := NewPaymentHandler(pay, zap.NewNop())
			e.GET("/payments/vnpay/ipn", h.IPN)
			pay.On("HandleCallback", mock.Anything, url.Values{"vnp_TxnRef": {tt.ref}}).Return(tt.res, tt.err)

			rec := do(e, http.MethodGet, "/payments/vnpay/ipn?vnp_TxnRef="+tt.ref, "", "")
			assert.Equal(t, http.StatusOK, rec.Code)
			var ack IPNResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
			assert.Equal(t, tt.code, ack.RspCode)
		})
	}
}

func TestPaymentHandler_Return(t *testing.T) {
	e := newTestEcho()
	pay := new(MockPayer)
	h := NewPaymentHandler(pay, zap.NewNop())
	e.GET("/payments/vnpay/return", h.Return)

	confirmed := sampleBooking()
	confirmed.Status = model.BookingConfirmed
	pay.On("HandleCallback", mock.Anything, url.Values{"vnp_TxnRef": {"ok"}}).
		Return(&service.CallbackResult{Booking: confirmed, Applied: true}, nil)
	pay.On("HandleCallback", mock.Anything, url.Values{"vnp_TxnRef": {"bad"}}).
		Return(nil, model.ErrCallbackVerificationFailed)

	rec := do(e, http.MethodGet, "/payments/vnpay/return?vnp_TxnRef=ok", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"CONFIRMED"`)

	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/payments/vnpay/return?vnp_TxnRef=bad", "", "").Code)
}

func TestHealthHandler_Check(t *testing.T) {
	e := newTestEcho()
	e.GET("/healthz", NewHealthHandler(stubPinger{}).Check)
	e.GET("/down", NewHealthHandler(stubPinger{err: errors.New("refused")}).Check)

	rec := do(e, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Equal(t, http.StatusServiceUnavailable, do(e, http.MethodGet, "/down", "", "").Code)
}

func TestErrorHandler(t *testing.T) {
	e := newTestEcho()
	e.GET("/teapot", func(c echo.Context) error { return echo.NewHTTPError(http.StatusTeapot, "short and stout") })
	e.GET("/domain", func(c echo.Context) error { return model.ErrBookingNotFound })
	e.GET("/panic", func(c echo.Context) error { return errors.New("secret detail") })

	rec := do(e, http.MethodGet, "/teapot", "", "")
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, rec.Body.String(), "short and stout")

	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/domain", "", "").Code)
	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/no-such-route", "", "").Code)

	rec = do(e, http.MethodGet, "/panic", "", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret detail")
}
