package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/briefmill/briefmill/internal/briefing"
	"github.com/briefmill/briefmill/internal/models"
	"github.com/briefmill/briefmill/internal/queue"
)

// BriefStore is the slice of persistence the brief scheduler uses.
type BriefStore interface {
	ListActiveBriefings(ctx context.Context) ([]models.Briefing, error)
	MarkBriefingQueued(ctx context.Context, id string) (bool, error)
	RequeueBriefingActive(ctx context.Context, id string) error
}

// BriefScheduler periodically finds briefings whose local delivery time
// has passed today and offers them to the brief queue.
type BriefScheduler struct {
	store    BriefStore
	gate     CreditGate
	queue    *queue.Queue[string]
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
	stopChan chan struct{}
}

// NewBriefScheduler creates the brief scheduler. A nil now uses the
// wall clock.
func NewBriefScheduler(st BriefStore, gate CreditGate, q *queue.Queue[string], interval time.Duration, now func() time.Time, logger *slog.Logger) *BriefScheduler {
	if now == nil {
		now = time.Now
	}
	return &BriefScheduler{
		store:    st,
		gate:     gate,
		queue:    q,
		interval: interval,
		now:      now,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start begins the scheduler loop. It runs one cycle immediately, then
// on every tick until Stop or context cancellation.
func (s *BriefScheduler) Start(ctx context.Context) {
	s.logger.Info("brief scheduler started", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunCycle(ctx)

	for {
		select {
		case <-ticker.C:
			s.RunCycle(ctx)
		case <-s.stopChan:
			s.logger.Info("brief scheduler stopped")
			return
		case <-ctx.Done():
			s.logger.Info("brief scheduler stopping, context cancelled")
			return
		}
	}
}

// Stop stops the scheduler loop.
func (s *BriefScheduler) Stop() {
	close(s.stopChan)
}

// RunCycle performs one scheduling pass.
func (s *BriefScheduler) RunCycle(ctx context.Context) {
	if s.queue.FreeCapacity() == 0 {
		s.logger.Debug("brief queue full, skipping cycle")
		return
	}

	users, err := s.gate.FundedUsers(ctx)
	if err != nil {
		s.logger.Error("failed to resolve funded users", "error", err)
		return
	}
	funded := make(map[string]bool, len(users))
	for _, id := range users {
		funded[id] = true
	}

	briefings, err := s.store.ListActiveBriefings(ctx)
	if err != nil {
		s.logger.Error("failed to list active briefings", "error", err)
		return
	}

	now := s.now()
	queued := 0
	for _, b := range briefings {
		due, err := briefing.Due(b, now)
		if err != nil {
			s.logger.Warn("briefing has an unusable schedule, skipping",
				"briefing_id", b.ID, "error", err)
			continue
		}
		if !due || !funded[b.UserID] {
			continue
		}

		claimed, err := s.store.MarkBriefingQueued(ctx, b.ID)
		if err != nil {
			s.logger.Error("failed to queue briefing", "briefing_id", b.ID, "error", err)
			continue
		}
		if !claimed {
			continue
		}

		if !s.queue.Offer(b.ID) {
			if err := s.store.RequeueBriefingActive(ctx, b.ID); err != nil {
				s.logger.Error("failed to revert queued briefing", "briefing_id", b.ID, "error", err)
			}
			s.logger.Warn("brief queue refused offer, ending cycle", "queued", queued)
			return
		}
		queued++
	}

	if queued > 0 {
		s.logger.Info("briefings queued", "count", queued)
	}
}
