package repository

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/showtime-seat-booking/internal/model"
)

var sessionColumns = []string{"reference", "booking_id", "amount", "redirect_url", "created_at", "expires_at"}

func insertSession(ctx context.Context, e sqlx.ExecerContext, s *model.PaymentSession) error {
	query, args, err := sq.Insert("payment_sessions").
		Columns(sessionColumns...).
		Values(s.Reference, s.BookingID, s.Amount, s.RedirectURL, s.CreatedAt, s.ExpiresAt).
		ToSql()
	if err != nil {
		return err
	}
	_, err = e.ExecContext(ctx, query, args...)
	return err
}

func setSessionURL(ctx context.Context, e sqlx.ExecerContext, ref, redirectURL string) error {
	_, err := e.ExecContext(ctx, `UPDATE payment_sessions SET redirect_url = ? WHERE reference = ?`, redirectURL, ref)
	return err
}

// findSession returns nil, nil when no row matches.
func findSession(ctx context.Context, q sqlx.QueryerContext, b sq.SelectBuilder) (*model.PaymentSession, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	var s model.PaymentSession
	if err := sqlx.GetContext(ctx, q, &s, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func latestSession(ctx context.Context, q sqlx.QueryerContext, bookingID string) (*model.PaymentSession, error) {
	return findSession(ctx, q, sq.Select(sessionColumns...).
		From("payment_sessions").
		Where(sq.Eq{"booking_id": bookingID}).
		OrderBy("created_at DESC").
		Limit(1))
}

func sessionByReference(ctx context.Context, q sqlx.QueryerContext, ref string) (*model.PaymentSession, error) {
	return findSession(ctx, q, sq.Select(sessionColumns...).
		From("payment_sessions").
		Where(sq.Eq{"reference": ref}))
}

func deleteSessions(ctx context.Context, e sqlx.ExecerContext, bookingID string) error {
	_, err := e.ExecContext(ctx, `DELETE FROM payment_sessions WHERE booking_id = ?`, bookingID)
	return err
}
