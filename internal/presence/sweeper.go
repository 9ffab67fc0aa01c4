package presence

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Sweeper periodically demotes characters that have gone quiet. It
// runs on its own schedule, touches only the status store, and never
// interacts with sessions or the registry: a sleeping character keeps
// its room membership until it leaves or disconnects.
type Sweeper struct {
	store     StatusStore
	logger    *zap.Logger
	threshold time.Duration
	interval  time.Duration
	now       func() time.Time
}

// NewSweeper creates a Sweeper.
//
// Precondition: store and logger must be non-nil; threshold and
// interval must be > 0.
func NewSweeper(store StatusStore, logger *zap.Logger, threshold, interval time.Duration) *Sweeper {
	if threshold <= 0 || interval <= 0 {
		panic("presence.NewSweeper: threshold and interval must be > 0")
	}
	return &Sweeper{
		store:     store,
		logger:    logger,
		threshold: threshold,
		interval:  interval,
		now:       time.Now,
	}
}

// Sweep runs one pass: every active character whose last activity is
// older than the threshold is set to sleeping in a single batch.
//
// Idempotent: a character demoted by one pass is already sleeping on
// the next, so back-to-back sweeps count it at most once.
//
// Postcondition: Returns the number of characters demoted.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.threshold)

	if s.logger.Core().Enabled(zapcore.DebugLevel) {
		stale, err := s.store.FindActiveOlderThan(ctx, cutoff)
		if err == nil {
			for _, c := range stale {
				s.logger.Debug("demoting inactive character",
					zap.Int64("character", c.ID),
					zap.String("name", c.Name),
					zap.Time("last_activity", c.LastActivityAt),
				)
			}
		}
	}

	count, err := s.store.DemoteInactive(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("demoting inactive characters: %w", err)
	}
	if count > 0 {
		s.logger.Info("inactivity sweep complete",
			zap.Int64("demoted", count),
			zap.Duration("threshold", s.threshold),
		)
	}
	return count, nil
}

// Run sweeps on a fixed interval until ctx is cancelled. Sweep
// failures are logged and the loop keeps going; the store may be
// transiently unavailable.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.Info("inactivity sweeper started",
		zap.Duration("interval", s.interval),
		zap.Duration("threshold", s.threshold),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("inactivity sweeper stopped")
			return nil
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Warn("inactivity sweep failed", zap.Error(err))
			}
		}
	}
}
