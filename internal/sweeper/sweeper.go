package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-booking/internal/booking"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

// Expirer is the slice of the booking service the sweeper drives.
type Expirer interface {
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]models.Booking, error)
	Expire(ctx context.Context, id string) (*models.Booking, error)
}

const sweepBatchSize = 100

// Sweeper reclaims abandoned reservations: pending bookings whose hold TTL
// has lapsed are transitioned to EXPIRED, returning their held inventory
// and coupon uses to the pool. It shares the CAS transition primitive with
// the reconciler, so running both concurrently is safe.
type Sweeper struct {
	Bookings Expirer
	Interval time.Duration
	log      *logger.Logger
}

func NewSweeper(bookings Expirer, interval time.Duration, log *logger.Logger) *Sweeper {
	return &Sweeper{Bookings: bookings, Interval: interval, log: log}
}

// Run sweeps on a ticker until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.log.Info("SWEEPER", fmt.Sprintf("Expiry sweeper started, interval %s", s.Interval))

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("SWEEPER", "Expiry sweeper stopped")
			return
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil {
				s.log.Error("SWEEPER", fmt.Sprintf("Sweep failed: %v", err))
			}
		}
	}
}

// SweepOnce expires every pending booking past its TTL. A booking that a
// concurrent reconciler finalized first loses the CAS and is skipped.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	expired, err := s.Bookings.ListExpiredPending(ctx, time.Now(), sweepBatchSize)
	if err != nil {
		return fmt.Errorf("failed to list expired bookings: %w", err)
	}

	for _, b := range expired {
		if _, err := s.Bookings.Expire(ctx, b.ID); err != nil {
			if errors.Is(err, booking.ErrIllegalStateTransition) {
				s.log.Debug("SWEEPER", fmt.Sprintf("Booking %s finalized concurrently, skipping", b.ID))
				continue
			}
			s.log.Error("SWEEPER", fmt.Sprintf("Failed to expire booking %s: %v", b.ID, err))
			continue
		}
		s.log.Info("SWEEPER", fmt.Sprintf("Expired booking %s (hold lapsed at %s)", b.ID, b.ExpiresAt.Format(time.RFC3339)))
	}

	if len(expired) > 0 {
		s.log.Info("SWEEPER", fmt.Sprintf("Sweep pass processed %d bookings", len(expired)))
	}
	return nil
}
