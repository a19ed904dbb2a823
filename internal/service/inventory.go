package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/showtime-seat-booking/internal/model"
	"github.com/iliyamo/showtime-seat-booking/internal/ports"
	"github.com/iliyamo/showtime-seat-booking/internal/seatmap"
)

// Inventory creates and reads the per-showtime seat rows.
type Inventory struct {
	store ports.Store
	deps
}

func NewInventory(store ports.Store, opts ...Option) *Inventory {
	return &Inventory{store: store, deps: newDeps(opts)}
}

// InitializeShowtimeSeats creates one AVAILABLE row per seat of the
// pattern.  It is a no-op when the showtime already has seats; created
// reports whether rows were written.
func (s *Inventory) InitializeShowtimeSeats(ctx context.Context, showtimeID, pattern string, basePrice int64) (bool, error) {
	showtimeID = strings.TrimSpace(showtimeID)
	if showtimeID == "" {
		return false, fmt.Errorf("%w: showtime id is required", model.ErrInvalidInput)
	}
	if basePrice <= 0 {
		return false, fmt.Errorf("%w: base price must be positive", model.ErrInvalidInput)
	}
	p, err := seatmap.ParsePattern(pattern)
	if err != nil {
		return false, err
	}
	layout, err := seatmap.Build(p, basePrice)
	if err != nil {
		return false, err
	}

	created := false
	err = s.store.WithTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		n, err := tx.CountSeats(ctx, showtimeID)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		now := s.now()
		rows := make([]model.ShowtimeSeat, 0, len(layout))
		for _, seat := range layout {
			rows = append(rows, model.ShowtimeSeat{
				ShowtimeID: showtimeID,
				SeatNumber: seat.Number,
				Class:      seat.Class,
				Status:     model.SeatAvailable,
				Price:      seat.Price,
				UpdatedAt:  now,
			})
		}
		if err := tx.InsertSeats(ctx, rows); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("initialize showtime seats: %w", err)
	}
	if created {
		s.invalidate(ctx, showtimeID)
		s.log.Info("showtime seats initialized",
			zap.String("showtime_id", showtimeID), zap.String("pattern", string(p)), zap.Int("seats", len(layout)))
	}
	return created, nil
}

// GetSeats returns every seat of the showtime with its current status.
func (s *Inventory) GetSeats(ctx context.Context, showtimeID string) ([]model.ShowtimeSeat, error) {
	seats, err := s.store.ShowtimeSeats(ctx, showtimeID)
	if err != nil {
		return nil, fmt.Errorf("get seats: %w", err)
	}
	if len(seats) == 0 {
		return nil, model.ErrShowtimeNotFound
	}
	return seats, nil
}
