// Package worker runs background maintenance jobs.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Purger deletes messages created before a cutoff.
type Purger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionSweeper periodically purges messages older than the retention window.
type RetentionSweeper struct {
	store     Purger
	retention time.Duration
	interval  time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewRetentionSweeper creates a sweeper that keeps retention worth of messages
// and runs every interval.
func NewRetentionSweeper(store Purger, retention, interval time.Duration, logger *zap.Logger) *RetentionSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &RetentionSweeper{store: store, retention: retention, interval: interval, logger: logger, now: time.Now}
}

// Sweep executes one purge pass.
func (s *RetentionSweeper) Sweep(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.retention)
	n, err := s.store.PurgeBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("expired messages purged", zap.Int64("count", n), zap.Time("cutoff", cutoff))
	}
	return n, nil
}

// Run sweeps once immediately, then on every tick until ctx is done.
func (s *RetentionSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("retention sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			s.logger.Info("retention sweeper stopping")
			return
		case <-ticker.C:
		}
	}
}
