package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"radagast/internal/domain"
	"radagast/internal/infrastructure/metrics"
)

const sweepBatchSize = 100

type ExpiredFinder interface {
	FindExpiredPending(ctx context.Context, now time.Time, maxAttempts, limit int) ([]uint, error)
}

type AutoConfirmer interface {
	AutoConfirm(ctx context.Context, invoiceID uint) (*domain.Reservation, error)
}

// Sweeper enforces reservation deadlines server-side: clients render a
// countdown from expiresAt, but only this scan makes the deadline real.
// It survives restarts because eligibility is derived from persisted state.
type Sweeper struct {
	finder      ExpiredFinder
	confirmer   AutoConfirmer
	interval    time.Duration
	maxAttempts int
	logger      *zap.Logger
	now         func() time.Time
}

func New(finder ExpiredFinder, confirmer AutoConfirmer, interval time.Duration, maxAttempts int, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		finder:      finder,
		confirmer:   confirmer,
		interval:    interval,
		maxAttempts: maxAttempts,
		logger:      logger,
		now:         time.Now,
	}
}

// Run blocks until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("expiry sweeper started",
		zap.Duration("interval", s.interval),
		zap.Int("maxAttempts", s.maxAttempts))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	metrics.SweepRuns.Inc()

	invoiceIDs, err := s.finder.FindExpiredPending(ctx, s.now(), s.maxAttempts, sweepBatchSize)
	if err != nil {
		s.logger.Error("scanning expired reservations", zap.Error(err))
		return
	}

	for _, invoiceID := range invoiceIDs {
		res, err := s.confirmer.AutoConfirm(ctx, invoiceID)
		if err != nil {
			// Retried on the next sweep until the attempt cap excludes it.
			s.logger.Warn("auto-confirm failed",
				zap.Uint("invoiceId", invoiceID),
				zap.Error(err))
			continue
		}

		if res.State == domain.ReservationConfirmed {
			s.logger.Info("reservation auto-confirmed",
				zap.Uint("invoiceId", invoiceID),
				zap.Time("expiredAt", res.ExpiresAt))
		}
	}
}
