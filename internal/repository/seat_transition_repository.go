package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/showtime-seat-booking/internal/model"
)

func insertTransition(ctx context.Context, e sqlx.ExtContext, t model.SeatTransition) error {
	_, err := sqlx.NamedExecContext(ctx, e,
		`INSERT INTO seat_transitions (booking_id, showtime_id, seat_count, from_status, to_status, reason, created_at)
		 VALUES (:booking_id, :showtime_id, :seat_count, :from_status, :to_status, :reason, :created_at)`, t)
	return err
}
