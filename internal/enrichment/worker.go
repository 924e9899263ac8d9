package enrichment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/briefmill/briefmill/internal/models"
	"github.com/briefmill/briefmill/internal/search"
	"github.com/briefmill/briefmill/internal/store"
)

// Store is the slice of persistence the enrich worker uses.
type Store interface {
	MarkItemProcessing(ctx context.Context, id string) (bool, error)
	GetItemContext(ctx context.Context, id string) (*store.ItemContext, error)
	SetItemWebContent(ctx context.Context, id, webContent string) error
	CompleteItemEnrichment(ctx context.Context, itemID, userID string, enrichment models.Enrichment) error
	FailItem(ctx context.Context, id, message string) error
}

// Worker enriches claimed items. One Process call handles one item end
// to end: claim, optional web-body fetch, model call, and the atomic
// write-plus-withdraw.
type Worker struct {
	store             Store
	enricher          Enricher
	webFetcher        *WebBodyFetcher
	searchSync        search.Sync
	webFetchThreshold int
	logger            *slog.Logger
}

// NewWorker creates an enrich worker. webFetcher and searchSync are
// optional collaborators; pass nil to disable them.
func NewWorker(st Store, enricher Enricher, webFetcher *WebBodyFetcher, searchSync search.Sync, webFetchThreshold int, logger *slog.Logger) *Worker {
	return &Worker{
		store:             st,
		enricher:          enricher,
		webFetcher:        webFetcher,
		searchSync:        searchSync,
		webFetchThreshold: webFetchThreshold,
		logger:            logger,
	}
}

// Process enriches one queued candidate.
func (w *Worker) Process(ctx context.Context, candidate store.EnrichCandidate) {
	logger := w.logger.With("item_id", candidate.ItemID)

	claimed, err := w.store.MarkItemProcessing(ctx, candidate.ItemID)
	if err != nil {
		logger.Error("failed to claim item", "error", err)
		return
	}
	if !claimed {
		// Someone else took it, or it left PENDING since queueing.
		logger.Debug("item no longer pending, dropping")
		return
	}

	itemCtx, err := w.store.GetItemContext(ctx, candidate.ItemID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			w.fail(ctx, logger, candidate.ItemID, "owning source or briefing no longer exists")
			return
		}
		w.fail(ctx, logger, candidate.ItemID, fmt.Sprintf("load item context: %v", err))
		return
	}

	item := itemCtx.Item
	caller := Caller{UserID: itemCtx.UserID, Trace: uuid.NewString()}

	effective := item.EffectiveContent()
	webContent := item.WebContent
	if webContent == "" && w.webFetcher != nil && w.shouldFetchBody(item.Link, effective) {
		text, err := w.webFetcher.Fetch(ctx, caller, item.Link)
		if err != nil {
			// Non-fatal: enrich on feed content alone.
			logger.Debug("web body fetch failed", "link", item.Link, "error", err)
		} else {
			webContent = text
			if err := w.store.SetItemWebContent(ctx, item.ID, text); err != nil {
				logger.Warn("failed to store web content", "error", err)
			}
		}
	}

	enrichment, err := w.enricher.EnrichAndScore(ctx, caller, EnrichInput{
		Title:            item.Title,
		Content:          effective,
		WebContent:       webContent,
		SourceName:       itemCtx.SourceName,
		BriefingCriteria: itemCtx.BriefingCriteria,
	})
	if err != nil {
		w.fail(ctx, logger, item.ID, fmt.Sprintf("enrichment failed: %v", err))
		return
	}

	if err := w.store.CompleteItemEnrichment(ctx, item.ID, caller.UserID, *enrichment); err != nil {
		if errors.Is(err, store.ErrInsufficientCredits) {
			w.fail(ctx, logger, item.ID, "insufficient credits")
			return
		}
		w.fail(ctx, logger, item.ID, fmt.Sprintf("store enrichment: %v", err))
		return
	}

	logger.Info("item enriched",
		"score", enrichment.Score,
		"user_id", caller.UserID,
		"trace", caller.Trace)

	if w.searchSync != nil {
		indexed := item
		indexed.Summary = enrichment.Summary
		indexed.Score = &enrichment.Score
		indexed.Status = models.ItemStatusDone
		if err := w.searchSync.Index(ctx, indexed); err != nil {
			logger.Debug("search index failed", "error", err)
		}
	}
}

func (w *Worker) shouldFetchBody(link, content string) bool {
	if !strings.HasPrefix(link, "http://") && !strings.HasPrefix(link, "https://") {
		return false
	}
	return len(content) < w.webFetchThreshold
}

func (w *Worker) fail(ctx context.Context, logger *slog.Logger, itemID, message string) {
	logger.Warn("item enrichment failed", "reason", message)
	if err := w.store.FailItem(ctx, itemID, message); err != nil {
		logger.Error("failed to mark item errored", "error", err)
	}
}
