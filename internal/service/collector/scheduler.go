package collector

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StatsScheduler periodically recomputes cluster statistics so aggregates
// stay close to the live subscriber counts.
type StatsScheduler struct {
	collector *Collector
	interval  time.Duration
	logger    *zap.Logger
	done      chan struct{}
}

func NewStatsScheduler(collector *Collector, interval time.Duration, logger *zap.Logger) *StatsScheduler {
	return &StatsScheduler{
		collector: collector,
		interval:  interval,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Start runs the refresh loop until the context is cancelled. One refresh
// runs immediately on startup.
func (s *StatsScheduler) Start(ctx context.Context) error {
	defer close(s.done)

	s.logger.Info("Stats scheduler started", zap.Duration("interval", s.interval))

	if err := s.collector.RefreshClusterStatistics(ctx); err != nil {
		s.logger.Warn("Initial statistics refresh failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stats scheduler stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := s.collector.RefreshClusterStatistics(ctx); err != nil {
				s.logger.Warn("Scheduled statistics refresh failed", zap.Error(err))
			}
		}
	}
}

// Shutdown waits for the loop to exit or the context to expire.
func (s *StatsScheduler) Shutdown(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
