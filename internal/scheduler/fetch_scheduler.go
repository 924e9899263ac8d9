// Package scheduler hosts the periodic actors of the three pipelines:
// one scheduler per queue that claims eligible work and offers ids, and
// a recovery sweeper that heals entities stuck in transitional states.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/briefmill/briefmill/internal/models"
	"github.com/briefmill/briefmill/internal/queue"
)

// CreditGate resolves which users can still pay for pipeline work.
type CreditGate interface {
	FundedUsers(ctx context.Context) ([]string, error)
}

// FetchStore is the slice of persistence the fetch scheduler uses.
type FetchStore interface {
	ListSourcesEligibleForFetch(ctx context.Context, userIDs []string, limit int) ([]models.Source, error)
	MarkSourceQueued(ctx context.Context, id string) (bool, error)
	RequeueSourceIdle(ctx context.Context, id string) error
}

// FetchScheduler periodically claims sources due for a refresh and
// offers their ids to the fetch queue. Claims are CAS transitions; a
// refused queue offer is compensated by reverting the claim.
type FetchScheduler struct {
	store     FetchStore
	gate      CreditGate
	queue     *queue.Queue[string]
	batchSize int
	interval  time.Duration
	logger    *slog.Logger
	stopChan  chan struct{}
}

// NewFetchScheduler creates the fetch scheduler.
func NewFetchScheduler(store FetchStore, gate CreditGate, q *queue.Queue[string], batchSize int, interval time.Duration, logger *slog.Logger) *FetchScheduler {
	return &FetchScheduler{
		store:     store,
		gate:      gate,
		queue:     q,
		batchSize: batchSize,
		interval:  interval,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

// Start begins the scheduler loop. It runs one cycle immediately, then
// on every tick until Stop or context cancellation.
func (s *FetchScheduler) Start(ctx context.Context) {
	s.logger.Info("fetch scheduler started", "interval", s.interval, "batch_size", s.batchSize)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunCycle(ctx)

	for {
		select {
		case <-ticker.C:
			s.RunCycle(ctx)
		case <-s.stopChan:
			s.logger.Info("fetch scheduler stopped")
			return
		case <-ctx.Done():
			s.logger.Info("fetch scheduler stopping, context cancelled")
			return
		}
	}
}

// Stop stops the scheduler loop.
func (s *FetchScheduler) Stop() {
	close(s.stopChan)
}

// RunCycle performs one scheduling pass.
func (s *FetchScheduler) RunCycle(ctx context.Context) {
	free := s.queue.FreeCapacity()
	if free == 0 {
		s.logger.Debug("fetch queue full, skipping cycle")
		return
	}

	users, err := s.gate.FundedUsers(ctx)
	if err != nil {
		s.logger.Error("failed to resolve funded users", "error", err)
		return
	}
	if len(users) == 0 {
		s.logger.Debug("no funded users, skipping cycle")
		return
	}

	limit := s.batchSize
	if free < limit {
		limit = free
	}

	sources, err := s.store.ListSourcesEligibleForFetch(ctx, users, limit)
	if err != nil {
		s.logger.Error("failed to list eligible sources", "error", err)
		return
	}

	queued := 0
	for _, source := range sources {
		claimed, err := s.store.MarkSourceQueued(ctx, source.ID)
		if err != nil {
			s.logger.Error("failed to queue source", "source_id", source.ID, "error", err)
			continue
		}
		if !claimed {
			// Raced with a trigger or another transition since the query.
			continue
		}

		if !s.queue.Offer(source.ID) {
			// Capacity raced away; revert the claim and end the cycle.
			if err := s.store.RequeueSourceIdle(ctx, source.ID); err != nil {
				s.logger.Error("failed to revert queued source", "source_id", source.ID, "error", err)
			}
			s.logger.Warn("fetch queue refused offer, ending cycle", "queued", queued)
			return
		}
		queued++
	}

	if queued > 0 {
		s.logger.Info("sources queued for fetch", "count", queued)
	}
}
