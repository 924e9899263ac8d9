package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// RecoveryStore is the slice of persistence the sweeper uses.
type RecoveryStore interface {
	ResetStuckSources(ctx context.Context, threshold time.Duration) (int64, error)
	ErrorStuckItems(ctx context.Context, threshold time.Duration) (int64, error)
	ResetStuckBriefings(ctx context.Context, threshold time.Duration) (int64, error)
}

// Thresholds carries the per-pipeline stuck cutoffs.
type Thresholds struct {
	Source   time.Duration
	Item     time.Duration
	Briefing time.Duration
}

// RecoverySweeper heals entities left in transitional states by a crash
// or a hung worker. Sources and briefings return to their pre-queue
// state and re-enter rotation; items are dead-lettered to ERROR so a
// partially billed enrichment is never silently retried.
type RecoverySweeper struct {
	store      RecoveryStore
	interval   time.Duration
	thresholds Thresholds
	logger     *slog.Logger
	stopChan   chan struct{}
}

// NewRecoverySweeper creates the sweeper.
func NewRecoverySweeper(st RecoveryStore, interval time.Duration, thresholds Thresholds, logger *slog.Logger) *RecoverySweeper {
	return &RecoverySweeper{
		store:      st,
		interval:   interval,
		thresholds: thresholds,
		logger:     logger,
		stopChan:   make(chan struct{}),
	}
}

// Start begins the sweep loop. It runs one sweep immediately, then on
// every tick until Stop or context cancellation.
func (s *RecoverySweeper) Start(ctx context.Context) {
	s.logger.Info("recovery sweeper started", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunSweep(ctx)

	for {
		select {
		case <-ticker.C:
			s.RunSweep(ctx)
		case <-s.stopChan:
			s.logger.Info("recovery sweeper stopped")
			return
		case <-ctx.Done():
			s.logger.Info("recovery sweeper stopping, context cancelled")
			return
		}
	}
}

// Stop stops the sweep loop.
func (s *RecoverySweeper) Stop() {
	close(s.stopChan)
}

// RunSweep performs one pass over all three pipelines. A failure in one
// sweep never blocks the others.
func (s *RecoverySweeper) RunSweep(ctx context.Context) {
	if count, err := s.store.ResetStuckSources(ctx, s.thresholds.Source); err != nil {
		s.logger.Error("stuck source sweep failed", "error", err)
	} else if count > 0 {
		s.logger.Warn("stuck sources reset to idle", "count", count, "threshold", s.thresholds.Source)
	}

	if count, err := s.store.ErrorStuckItems(ctx, s.thresholds.Item); err != nil {
		s.logger.Error("stuck item sweep failed", "error", err)
	} else if count > 0 {
		s.logger.Warn("stuck items dead-lettered", "count", count, "threshold", s.thresholds.Item)
	}

	if count, err := s.store.ResetStuckBriefings(ctx, s.thresholds.Briefing); err != nil {
		s.logger.Error("stuck briefing sweep failed", "error", err)
	} else if count > 0 {
		s.logger.Warn("stuck briefings reset to active", "count", count, "threshold", s.thresholds.Briefing)
	}
}
