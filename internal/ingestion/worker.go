package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/briefmill/briefmill/internal/enrichment"
	"github.com/briefmill/briefmill/internal/models"
	"github.com/briefmill/briefmill/internal/store"
)

// Store is the slice of persistence the fetch worker uses.
type Store interface {
	MarkSourceFetching(ctx context.Context, id string) (bool, error)
	GetSource(ctx context.Context, id string) (*models.Source, error)
	GetBriefing(ctx context.Context, id string) (*models.Briefing, error)
	CompleteSourceFetch(ctx context.Context, result store.SourceFetchResult) (int, error)
	FailSourceFetch(ctx context.Context, id, message string) error
}

// Worker drives one fetch end to end: claim the source, dispatch to its
// type-specific fetcher, and persist the resulting delta in a single
// store call. The fetcher runs outside any transaction; only the claim
// and the final delta touch the store.
type Worker struct {
	store    Store
	registry *Registry
	logger   *slog.Logger
}

// NewWorker creates a fetch worker over the registry.
func NewWorker(st Store, registry *Registry, logger *slog.Logger) *Worker {
	return &Worker{
		store:    st,
		registry: registry,
		logger:   logger,
	}
}

// Process fetches one queued source.
func (w *Worker) Process(ctx context.Context, sourceID string) {
	logger := w.logger.With("source_id", sourceID)

	claimed, err := w.store.MarkSourceFetching(ctx, sourceID)
	if err != nil {
		logger.Error("failed to claim source", "error", err)
		return
	}
	if !claimed {
		// Healed by recovery, or the source left QUEUED since the offer.
		logger.Debug("source no longer queued, dropping")
		return
	}

	source, err := w.store.GetSource(ctx, sourceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			logger.Debug("source disappeared mid-fetch, dropping")
			return
		}
		logger.Error("failed to load source", "error", err)
		return
	}

	briefing, err := w.store.GetBriefing(ctx, source.BriefingID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			w.fail(ctx, logger, sourceID, "owning briefing no longer exists")
			return
		}
		w.fail(ctx, logger, sourceID, fmt.Sprintf("load briefing: %v", err))
		return
	}

	fetcher, err := w.registry.Lookup(source.Type)
	if err != nil {
		w.fail(ctx, logger, sourceID, err.Error())
		return
	}

	caller := enrichment.Caller{UserID: briefing.UserID, Trace: uuid.NewString()}
	started := time.Now()
	outcome, err := fetcher.Fetch(ctx, caller, *source)
	if err != nil {
		w.fail(ctx, logger, sourceID, fmt.Sprintf("fetch failed: %v", err))
		return
	}

	// A source's very first fetch imports its whole history; those items
	// land DONE and unscored so the backlog never reaches the enricher.
	status := models.ItemStatusNew
	if source.FirstImport() {
		status = models.ItemStatusDone
	}
	items := make([]models.Item, 0, len(outcome.Items))
	for _, item := range outcome.Items {
		item.SourceID = sourceID
		item.Status = status
		items = append(items, item)
	}

	inserted, err := w.store.CompleteSourceFetch(ctx, store.SourceFetchResult{
		SourceID:     sourceID,
		Items:        items,
		ETag:         outcome.ETag,
		LastModified: outcome.LastModified,
		FetchedAt:    time.Now(),
	})
	if err != nil {
		w.fail(ctx, logger, sourceID, fmt.Sprintf("persist fetch result: %v", err))
		return
	}

	logger.Info("source fetched",
		"type", source.Type,
		"fetched", len(items),
		"inserted", inserted,
		"first_import", source.FirstImport(),
		"duration_ms", time.Since(started).Milliseconds(),
		"trace", caller.Trace)
}

func (w *Worker) fail(ctx context.Context, logger *slog.Logger, sourceID, message string) {
	logger.Warn("source fetch failed", "reason", message)
	if err := w.store.FailSourceFetch(ctx, sourceID, store.TruncateError(message)); err != nil {
		logger.Error("failed to mark source errored", "error", err)
	}
}
