package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/showtime-seat-booking/internal/model"
)

// bookingRow is the persistence shape of model.Booking.  Seat numbers
// are stored comma separated.
type bookingRow struct {
	ID          string         `db:"id"`
	UserID      string         `db:"user_id"`
	ShowtimeID  string         `db:"showtime_id"`
	SeatNumbers string         `db:"seat_numbers"`
	TotalPrice  int64          `db:"total_price"`
	Status      string         `db:"status"`
	PaymentRef  sql.NullString `db:"payment_ref"`
	CreatedAt   time.Time      `db:"created_at"`
	ExpiresAt   time.Time      `db:"expires_at"`
	ResolvedAt  sql.NullTime   `db:"resolved_at"`
}

func (r bookingRow) toModel() *model.Booking {
	b := &model.Booking{
		ID:          r.ID,
		UserID:      r.UserID,
		ShowtimeID:  r.ShowtimeID,
		SeatNumbers: strings.Split(r.SeatNumbers, ","),
		TotalPrice:  r.TotalPrice,
		Status:      model.BookingStatus(r.Status),
		CreatedAt:   r.CreatedAt,
		ExpiresAt:   r.ExpiresAt,
	}
	if r.PaymentRef.Valid {
		ref := r.PaymentRef.String
		b.PaymentRef = &ref
	}
	if r.ResolvedAt.Valid {
		at := r.ResolvedAt.Time
		b.ResolvedAt = &at
	}
	return b
}

var bookingColumns = []string{
	"id", "user_id", "showtime_id", "seat_numbers", "total_price", "status",
	"payment_ref", "created_at", "expires_at", "resolved_at",
}

func insertBooking(ctx context.Context, e sqlx.ExecerContext, b *model.Booking) error {
	query, args, err := sq.Insert("bookings").
		Columns("id", "user_id", "showtime_id", "seat_numbers", "total_price", "status", "created_at", "expires_at", "updated_at").
		Values(b.ID, b.UserID, b.ShowtimeID, strings.Join(b.SeatNumbers, ","), b.TotalPrice, b.Status, b.CreatedAt, b.ExpiresAt, b.CreatedAt).
		ToSql()
	if err != nil {
		return err
	}
	_, err = e.ExecContext(ctx, query, args...)
	return err
}

func getBooking(ctx context.Context, q sqlx.QueryerContext, where sq.Eq) (*model.Booking, error) {
	query, args, err := sq.Select(bookingColumns...).From("bookings").Where(where).ToSql()
	if err != nil {
		return nil, err
	}
	var row bookingRow
	if err := sqlx.GetContext(ctx, q, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrBookingNotFound
		}
		return nil, err
	}
	return row.toModel(), nil
}

// transitionBooking is the booking CAS keyed on the current status.
func transitionBooking(ctx context.Context, e sqlx.ExecerContext, id string, from, to model.BookingStatus, now time.Time) (bool, error) {
	upd := sq.Update("bookings").
		Set("status", to).
		Set("updated_at", now).
		Where(sq.Eq{"id": id, "status": from})
	if to.Terminal() {
		upd = upd.Set("resolved_at", now)
	}
	query, args, err := upd.ToSql()
	if err != nil {
		return false, err
	}
	n, err := execAffected(ctx, e, query, args...)
	return n == 1, err
}

// expireBooking only matches pending bookings whose hold window has ended.
func expireBooking(ctx context.Context, e sqlx.ExecerContext, id string, now time.Time) (bool, error) {
	query, args, err := sq.Update("bookings").
		Set("status", model.BookingExpired).
		Set("updated_at", now).
		Set("resolved_at", now).
		Where(sq.Eq{"id": id, "status": model.BookingPendingPayment}).
		Where(sq.LtOrEq{"expires_at": now}).
		ToSql()
	if err != nil {
		return false, err
	}
	n, err := execAffected(ctx, e, query, args...)
	return n == 1, err
}

func setPaymentRef(ctx context.Context, e sqlx.ExecerContext, id, ref string) error {
	_, err := e.ExecContext(ctx, `UPDATE bookings SET payment_ref = ? WHERE id = ?`, ref, id)
	return err
}

func dueBookings(ctx context.Context, q sqlx.QueryerContext, now time.Time, limit int) ([]string, error) {
	query, args, err := sq.Select("id").
		From("bookings").
		Where(sq.Eq{"status": model.BookingPendingPayment}).
		Where(sq.LtOrEq{"expires_at": now}).
		OrderBy("expires_at").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := sqlx.SelectContext(ctx, q, &ids, query, args...); err != nil {
		return nil, err
	}
	return ids, nil
}
