package sweeper

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/quicktix/quicktix/internal/clock"
	"github.com/quicktix/quicktix/internal/observability"
)

// Bookings is the slice of the booking state machine the sweeper drives.
// Expire reports false for bookings no longer in a releasable pending state,
// which makes concurrent or repeated sweeps safe.
type Bookings interface {
	ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
	Expire(ctx context.Context, id uuid.UUID) (bool, error)
}

type Sweeper struct {
	bookings Bookings
	window   time.Duration
	interval time.Duration
	batch    int
	clock    clock.Clock
	logger   observability.Logger
}

func New(bookings Bookings, window, interval time.Duration, clk clock.Clock, logger observability.Logger) *Sweeper {
	return &Sweeper{
		bookings: bookings,
		window:   window,
		interval: interval,
		batch:    500,
		clock:    clk,
		logger:   logger,
	}
}

// Sweep expires every stale pending booking in its own transaction.
// Per-booking failures are logged and skipped so one stuck booking cannot
// block the rest of the batch.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.bookings.ListExpiredPending(ctx, now.Add(-s.window), s.batch)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, id := range ids {
		expired, err := s.bookings.Expire(ctx, id)
		if err != nil {
			s.logger.WithError(err).WithField("booking_id", id).Error("failed to expire booking")
			continue
		}
		if expired {
			processed++
		}
	}

	observability.SweeperProcessed.Set(float64(processed))
	if processed > 0 {
		s.logger.WithField("processed", processed).Info("sweep completed")
	}
	return processed, nil
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx, s.clock.Now()); err != nil {
				s.logger.WithError(err).Error("sweep failed")
			}
		}
	}
}
