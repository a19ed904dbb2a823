package repository

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/showtime-seat-booking/internal/model"
)

func TestClassify(t *testing.T) {
	plain := errors.New("syntax error")
	tests := []struct {
		name     string
		err      error
		conflict bool
	}{
		{"deadlock", &mysql.MySQLError{Number: 1213, Message: "Deadlock found"}, true},
		{"lock wait timeout", fmt.Errorf("hold: %w", &mysql.MySQLError{Number: 1205}), true},
		{"bad connection", driver.ErrBadConn, true},
		{"invalid connection", mysql.ErrInvalidConn, true},
		{"duplicate key", &mysql.MySQLError{Number: 1062}, false},
		{"other", plain, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			assert.Equal(t, tt.conflict, errors.Is(got, ErrTxConflict))
		})
	}
	assert.NoError(t, classify(nil))
	assert.Same(t, plain, classify(plain))
}

func TestBookingRowToModel(t *testing.T) {
	created := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	row := bookingRow{
		ID:          "b-1",
		UserID:      "42",
		ShowtimeID:  "st-1",
		SeatNumbers: "A1,A2,K3",
		TotalPrice:  400000,
		Status:      "CONFIRMED",
		PaymentRef:  sql.NullString{String: "ref-1", Valid: true},
		CreatedAt:   created,
		ExpiresAt:   created.Add(10 * time.Minute),
		ResolvedAt:  sql.NullTime{Time: created.Add(time.Minute), Valid: true},
	}

	b := row.toModel()
	assert.Equal(t, []string{"A1", "A2", "K3"}, b.SeatNumbers)
	assert.Equal(t, model.BookingConfirmed, b.Status)
	if assert.NotNil(t, b.PaymentRef) {
		assert.Equal(t, "ref-1", *b.PaymentRef)
	}
	if assert.NotNil(t, b.ResolvedAt) {
		assert.Equal(t, created.Add(time.Minute), *b.ResolvedAt)
	}

	row.PaymentRef, row.ResolvedAt, row.Status = sql.NullString{}, sql.NullTime{}, "PENDING_PAYMENT"
	b = row.toModel()
	assert.Nil(t, b.PaymentRef)
	assert.Nil(t, b.ResolvedAt)
	assert.False(t, b.Status.Terminal())
}
