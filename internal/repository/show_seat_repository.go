package repository

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/showtime-seat-booking/internal/model"
	"github.com/iliyamo/showtime-seat-booking/internal/seatmap"
)

var seatColumns = []string{
	"showtime_id", "seat_number", "seat_class", "status", "price",
	"held_by_booking_id", "held_until", "updated_at",
}

func listShowtimeSeats(ctx context.Context, q sqlx.QueryerContext, showtimeID string) ([]model.ShowtimeSeat, error) {
	query, args, err := sq.Select(seatColumns...).
		From("showtime_seats").
		Where(sq.Eq{"showtime_id": showtimeID}).
		OrderBy("row_label", "col_number").
		ToSql()
	if err != nil {
		return nil, err
	}
	var seats []model.ShowtimeSeat
	if err := sqlx.SelectContext(ctx, q, &seats, query, args...); err != nil {
		return nil, err
	}
	return seats, nil
}

func countShowtimeSeats(ctx context.Context, q sqlx.QueryerContext, showtimeID string) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, q, &n, `SELECT COUNT(*) FROM showtime_seats WHERE showtime_id = ?`, showtimeID)
	return n, err
}

func seatsByNumber(ctx context.Context, q sqlx.QueryerContext, showtimeID string, numbers []string) ([]model.ShowtimeSeat, error) {
	if len(numbers) == 0 {
		return nil, nil
	}
	query, args, err := sq.Select(seatColumns...).
		From("showtime_seats").
		Where(sq.Eq{"showtime_id": showtimeID, "seat_number": numbers}).
		OrderBy("row_label", "col_number").
		ToSql()
	if err != nil {
		return nil, err
	}
	var seats []model.ShowtimeSeat
	if err := sqlx.SelectContext(ctx, q, &seats, query, args...); err != nil {
		return nil, err
	}
	return seats, nil
}

// insertShowtimeSeats uses INSERT IGNORE so concurrent initializers of
// the same showtime converge on one row per seat.
func insertShowtimeSeats(ctx context.Context, e sqlx.ExecerContext, seats []model.ShowtimeSeat) error {
	if len(seats) == 0 {
		return nil
	}
	ins := sq.Insert("showtime_seats").
		Options("IGNORE").
		Columns("showtime_id", "seat_number", "row_label", "col_number", "seat_class", "status", "price", "updated_at")
	for _, s := range seats {
		row, col, _ := seatmap.SplitNumber(s.SeatNumber)
		ins = ins.Values(s.ShowtimeID, s.SeatNumber, row, col, s.Class, s.Status, s.Price, s.UpdatedAt)
	}
	query, args, err := ins.ToSql()
	if err != nil {
		return err
	}
	_, err = e.ExecContext(ctx, query, args...)
	return err
}

// holdSeats is the seat CAS: only rows still AVAILABLE are moved to HELD.
func holdSeats(ctx context.Context, e sqlx.ExecerContext, showtimeID string, numbers []string, bookingID string, heldUntil, now time.Time) (int64, error) {
	query, args, err := sq.Update("showtime_seats").
		Set("status", model.SeatHeld).
		Set("held_by_booking_id", bookingID).
		Set("held_until", heldUntil).
		Set("updated_at", now).
		Where(sq.Eq{"showtime_id": showtimeID, "seat_number": numbers, "status": model.SeatAvailable}).
		ToSql()
	if err != nil {
		return 0, err
	}
	return execAffected(ctx, e, query, args...)
}

func confirmSeats(ctx context.Context, e sqlx.ExecerContext, bookingID string, now time.Time) (int64, error) {
	query, args, err := sq.Update("showtime_seats").
		Set("status", model.SeatBooked).
		Set("held_until", nil).
		Set("updated_at", now).
		Where(sq.Eq{"held_by_booking_id": bookingID, "status": model.SeatHeld}).
		ToSql()
	if err != nil {
		return 0, err
	}
	return execAffected(ctx, e, query, args...)
}

func releaseSeats(ctx context.Context, e sqlx.ExecerContext, bookingID string, now time.Time) (int64, error) {
	query, args, err := sq.Update("showtime_seats").
		Set("status", model.SeatAvailable).
		Set("held_by_booking_id", nil).
		Set("held_until", nil).
		Set("updated_at", now).
		Where(sq.Eq{"held_by_booking_id": bookingID, "status": model.SeatHeld}).
		ToSql()
	if err != nil {
		return 0, err
	}
	return execAffected(ctx, e, query, args...)
}

func execAffected(ctx context.Context, e sqlx.ExecerContext, query string, args ...interface{}) (int64, error) {
	res, err := e.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
