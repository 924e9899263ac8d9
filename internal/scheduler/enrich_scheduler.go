package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/briefmill/briefmill/internal/queue"
	"github.com/briefmill/briefmill/internal/store"
)

// EnrichStore is the slice of persistence the enrich scheduler uses.
type EnrichStore interface {
	ListEnrichCandidates(ctx context.Context, userIDs []string, limit int) ([]store.EnrichCandidate, error)
	MarkItemPending(ctx context.Context, id string) (bool, error)
	RequeueItemNew(ctx context.Context, id string) error
}

// EnrichScheduler periodically claims NEW items owned by funded users
// and offers them to the enrich queue, oldest first.
type EnrichScheduler struct {
	store     EnrichStore
	gate      CreditGate
	queue     *queue.Queue[store.EnrichCandidate]
	batchSize int
	interval  time.Duration
	logger    *slog.Logger
	stopChan  chan struct{}
}

// NewEnrichScheduler creates the enrich scheduler.
func NewEnrichScheduler(st EnrichStore, gate CreditGate, q *queue.Queue[store.EnrichCandidate], batchSize int, interval time.Duration, logger *slog.Logger) *EnrichScheduler {
	return &EnrichScheduler{
		store:     st,
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
func (s *EnrichScheduler) Start(ctx context.Context) {
	s.logger.Info("enrich scheduler started", "interval", s.interval, "batch_size", s.batchSize)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunCycle(ctx)

	for {
		select {
		case <-ticker.C:
			s.RunCycle(ctx)
		case <-s.stopChan:
			s.logger.Info("enrich scheduler stopped")
			return
		case <-ctx.Done():
			s.logger.Info("enrich scheduler stopping, context cancelled")
			return
		}
	}
}

// Stop stops the scheduler loop.
func (s *EnrichScheduler) Stop() {
	close(s.stopChan)
}

// RunCycle performs one scheduling pass.
func (s *EnrichScheduler) RunCycle(ctx context.Context) {
	free := s.queue.FreeCapacity()
	if free == 0 {
		s.logger.Debug("enrich queue full, skipping cycle")
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

	candidates, err := s.store.ListEnrichCandidates(ctx, users, limit)
	if err != nil {
		s.logger.Error("failed to list enrich candidates", "error", err)
		return
	}

	queued := 0
	for _, candidate := range candidates {
		claimed, err := s.store.MarkItemPending(ctx, candidate.ItemID)
		if err != nil {
			s.logger.Error("failed to claim item", "item_id", candidate.ItemID, "error", err)
			continue
		}
		if !claimed {
			continue
		}

		if !s.queue.Offer(candidate) {
			if err := s.store.RequeueItemNew(ctx, candidate.ItemID); err != nil {
				s.logger.Error("failed to revert claimed item", "item_id", candidate.ItemID, "error", err)
			}
			s.logger.Warn("enrich queue refused offer, ending cycle", "queued", queued)
			return
		}
		queued++
	}

	if queued > 0 {
		s.logger.Info("items queued for enrichment", "count", queued)
	}
}
