package services

import (
	"context"
	"log/slog"
	"time"

	"snaplink/internal/metrics"
)

// ExpirationSweeper periodically deletes links that expired more than
// grace ago. Resolution never relies on it; it only reclaims storage.
type ExpirationSweeper struct {
	links    *ShortenerService
	logger   *slog.Logger
	clock    Clock
	interval time.Duration
	grace    time.Duration
}

func NewExpirationSweeper(links *ShortenerService, logger *slog.Logger, clock Clock, interval, grace time.Duration) *ExpirationSweeper {
	return &ExpirationSweeper{links: links, logger: logger, clock: clock, interval: interval, grace: grace}
}

// Start blocks until ctx is cancelled. A non-positive interval disables it.
func (s *ExpirationSweeper) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("Expiration sweeper disabled")
		return
	}
	s.logger.Info("Expiration sweeper starting", "interval", s.interval, "grace", s.grace)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.Error("Expiration sweep failed", "error", err)
			}
		case <-ctx.Done():
			s.logger.Info("Expiration sweeper stopping")
			return
		}
	}
}

func (s *ExpirationSweeper) RunOnce(ctx context.Context) (int64, error) {
	cutoff := s.clock().Add(-s.grace)
	n, err := s.links.SweepExpired(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.SweptLinksTotal.Add(float64(n))
		s.logger.Info("Swept expired links", "count", n, "cutoff", cutoff)
	}
	return n, nil
}
