// Package worker runs background jobs.
package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/showtime-seat-booking/internal/metrics"
)

// BookingExpirer finds and expires bookings whose hold window ended.
type BookingExpirer interface {
	DueBookings(ctx context.Context, limit int) ([]string, error)
	ExpireBooking(ctx context.Context, bookingID string) (bool, error)
}

// ExpirySweeper expires abandoned bookings on a fixed interval.
type ExpirySweeper struct {
	expirer  BookingExpirer
	interval time.Duration
	batch    int
	log      *zap.Logger
	metrics  *metrics.Metrics
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

func NewExpirySweeper(e BookingExpirer, interval time.Duration, batch int, log *zap.Logger, m *metrics.Metrics) *ExpirySweeper {
	if batch <= 0 {
		batch = 200
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ExpirySweeper{
		expirer:  e,
		interval: interval,
		batch:    batch,
		log:      log,
		metrics:  m,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start sweeps once immediately and then on every tick.  It blocks
// until ctx is done or Stop is called.
func (s *ExpirySweeper) Start(ctx context.Context) {
	s.log.Info("expiry sweeper started", zap.Duration("interval", s.interval), zap.Int("batch", s.batch))
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("expiry sweeper stopped (context cancelled)")
			return
		case <-s.stopCh:
			s.log.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Stop signals the loop and waits for the current sweep to finish.
func (s *ExpirySweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
}

// Sweep expires every due booking, one transaction each.  A failing
// booking is logged and skipped.  It returns the number expired.
func (s *ExpirySweeper) Sweep(ctx context.Context) int {
	ids, err := s.expirer.DueBookings(ctx, s.batch)
	if err != nil {
		s.log.Error("expiry sweep: listing due bookings failed", zap.Error(err))
		return 0
	}
	expired := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		ok, err := s.expirer.ExpireBooking(ctx, id)
		switch {
		case err != nil:
			s.metrics.Swept("error")
			s.log.Error("expiry sweep: booking not expired", zap.String("booking_id", id), zap.Error(err))
		case ok:
			s.metrics.Swept("expired")
			expired++
		default:
			// resolved concurrently by a callback or cancel
			s.metrics.Swept("skipped")
		}
	}
	if expired > 0 {
		s.log.Info("expiry sweep finished", zap.Int("due", len(ids)), zap.Int("expired", expired))
	} else {
		s.log.Debug("expiry sweep finished", zap.Int("due", len(ids)))
	}
	return expired
}
