package repository

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/showtime-seat-booking/internal/model"
	"github.com/iliyamo/showtime-seat-booking/internal/ports"
)

// Store is the MySQL implementation of ports.Store.
type Store struct {
	db *sqlx.DB
}

var _ ports.Store = (*Store)(nil)

// NewStore wraps an open database handle.
func NewStore(db *sqlx.DB) *Store { return &Store{db: db} }

// WithTx begins a transaction, runs fn and commits.  Any error from fn
// or from commit rolls the transaction back.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(ctx, &txStore{tx: tx}); err != nil {
		return classify(err)
	}
	if err := tx.Commit(); err != nil {
		return classify(err)
	}
	committed = true
	return nil
}

func (s *Store) ShowtimeSeats(ctx context.Context, showtimeID string) ([]model.ShowtimeSeat, error) {
	return listShowtimeSeats(ctx, s.db, showtimeID)
}

func (s *Store) Booking(ctx context.Context, bookingID string) (*model.Booking, error) {
	return getBooking(ctx, s.db, sq.Eq{"id": bookingID})
}

func (s *Store) DueBookings(ctx context.Context, now time.Time, limit int) ([]string, error) {
	return dueBookings(ctx, s.db, now, limit)
}

// txStore binds every operation to one transaction.
type txStore struct {
	tx *sqlx.Tx
}

func (t *txStore) ShowtimeSeats(ctx context.Context, showtimeID string) ([]model.ShowtimeSeat, error) {
	return listShowtimeSeats(ctx, t.tx, showtimeID)
}

func (t *txStore) Booking(ctx context.Context, bookingID string) (*model.Booking, error) {
	return getBooking(ctx, t.tx, sq.Eq{"id": bookingID})
}

func (t *txStore) CountSeats(ctx context.Context, showtimeID string) (int, error) {
	return countShowtimeSeats(ctx, t.tx, showtimeID)
}

func (t *txStore) SeatsByNumber(ctx context.Context, showtimeID string, numbers []string) ([]model.ShowtimeSeat, error) {
	return seatsByNumber(ctx, t.tx, showtimeID, numbers)
}

func (t *txStore) InsertSeats(ctx context.Context, seats []model.ShowtimeSeat) error {
	return insertShowtimeSeats(ctx, t.tx, seats)
}

func (t *txStore) HoldSeats(ctx context.Context, showtimeID string, numbers []string, bookingID string, heldUntil, now time.Time) (int64, error) {
	return holdSeats(ctx, t.tx, showtimeID, numbers, bookingID, heldUntil, now)
}

func (t *txStore) ConfirmSeats(ctx context.Context, bookingID string, now time.Time) (int64, error) {
	return confirmSeats(ctx, t.tx, bookingID, now)
}

func (t *txStore) ReleaseSeats(ctx context.Context, bookingID string, now time.Time) (int64, error) {
	return releaseSeats(ctx, t.tx, bookingID, now)
}

func (t *txStore) InsertBooking(ctx context.Context, b *model.Booking) error {
	return insertBooking(ctx, t.tx, b)
}

func (t *txStore) TransitionBooking(ctx context.Context, bookingID string, from, to model.BookingStatus, now time.Time) (bool, error) {
	return transitionBooking(ctx, t.tx, bookingID, from, to, now)
}

func (t *txStore) ExpireBooking(ctx context.Context, bookingID string, now time.Time) (bool, error) {
	return expireBooking(ctx, t.tx, bookingID, now)
}

func (t *txStore) SetPaymentRef(ctx context.Context, bookingID, ref string) error {
	return setPaymentRef(ctx, t.tx, bookingID, ref)
}

func (t *txStore) InsertSession(ctx context.Context, s *model.PaymentSession) error {
	return insertSession(ctx, t.tx, s)
}

func (t *txStore) SetSessionURL(ctx context.Context, ref, redirectURL string) error {
	return setSessionURL(ctx, t.tx, ref, redirectURL)
}

func (t *txStore) LatestSession(ctx context.Context, bookingID string) (*model.PaymentSession, error) {
	return latestSession(ctx, t.tx, bookingID)
}

func (t *txStore) SessionByReference(ctx context.Context, ref string) (*model.PaymentSession, error) {
	return sessionByReference(ctx, t.tx, ref)
}

func (t *txStore) DeleteSessions(ctx context.Context, bookingID string) error {
	return deleteSessions(ctx, t.tx, bookingID)
}

func (t *txStore) RecordTransition(ctx context.Context, tr model.SeatTransition) error {
	return insertTransition(ctx, t.tx, tr)
}
