// Package api is the minimal operational surface of the processing
// core: manual pipeline triggers, source validation, and the inbound
// email hook. Each trigger performs the same CAS-then-offer a scheduler
// would, so a triggered entity flows through the normal worker path.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/briefmill/briefmill/internal/briefing"
	"github.com/briefmill/briefmill/internal/ingestion"
	"github.com/briefmill/briefmill/internal/ingress"
	"github.com/briefmill/briefmill/internal/models"
	"github.com/briefmill/briefmill/internal/queue"
	"github.com/briefmill/briefmill/internal/store"
)

// Store is the slice of persistence the trigger handlers use.
type Store interface {
	GetSource(ctx context.Context, id string) (*models.Source, error)
	MarkSourceQueued(ctx context.Context, id string) (bool, error)
	RequeueSourceIdle(ctx context.Context, id string) error

	GetItemContext(ctx context.Context, id string) (*store.ItemContext, error)
	MarkItemPending(ctx context.Context, id string) (bool, error)
	RequeueItemNew(ctx context.Context, id string) error

	GetBriefing(ctx context.Context, id string) (*models.Briefing, error)
	MarkBriefingQueued(ctx context.Context, id string) (bool, error)
	RequeueBriefingActive(ctx context.Context, id string) error
}

// Handler hosts the trigger endpoints.
type Handler struct {
	store    Store
	fetchQ   *queue.Queue[string]
	enrichQ  *queue.Queue[store.EnrichCandidate]
	briefQ   *queue.Queue[string]
	registry *ingestion.Registry
	ingress  *ingress.Service
	logger   *slog.Logger
}

// NewHandler creates the handler. registry and ingressSvc are optional;
// without them the validate and email endpoints answer 404.
func NewHandler(st Store, fetchQ *queue.Queue[string], enrichQ *queue.Queue[store.EnrichCandidate], briefQ *queue.Queue[string], registry *ingestion.Registry, ingressSvc *ingress.Service, logger *slog.Logger) *Handler {
	return &Handler{
		store:    st,
		fetchQ:   fetchQ,
		enrichQ:  enrichQ,
		briefQ:   briefQ,
		registry: registry,
		ingress:  ingressSvc,
		logger:   logger,
	}
}

// TriggerFetch handles POST /api/fetch/{id}: queue one source now.
func (h *Handler) TriggerFetch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if _, err := h.store.GetSource(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "source not found", http.StatusNotFound)
			return
		}
		h.internalError(w, "load source", err)
		return
	}

	claimed, err := h.store.MarkSourceQueued(r.Context(), id)
	if err != nil {
		h.internalError(w, "queue source", err)
		return
	}
	if !claimed {
		http.Error(w, "source is not idle", http.StatusConflict)
		return
	}

	if !h.fetchQ.Offer(id) {
		if err := h.store.RequeueSourceIdle(r.Context(), id); err != nil {
			h.logger.Error("failed to revert triggered source", "source_id", id, "error", err)
		}
		http.Error(w, "fetch queue full", http.StatusServiceUnavailable)
		return
	}

	h.accepted(w, map[string]string{"source_id": id, "status": "queued"})
}

// TriggerEnrich handles POST /api/enrich/{id}: queue one NEW item now.
func (h *Handler) TriggerEnrich(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	itemCtx, err := h.store.GetItemContext(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "item not found", http.StatusNotFound)
			return
		}
		h.internalError(w, "load item", err)
		return
	}

	claimed, err := h.store.MarkItemPending(r.Context(), id)
	if err != nil {
		h.internalError(w, "queue item", err)
		return
	}
	if !claimed {
		http.Error(w, "item is not new", http.StatusConflict)
		return
	}

	candidate := store.EnrichCandidate{ItemID: id, UserID: itemCtx.UserID}
	if !h.enrichQ.Offer(candidate) {
		if err := h.store.RequeueItemNew(r.Context(), id); err != nil {
			h.logger.Error("failed to revert triggered item", "item_id", id, "error", err)
		}
		http.Error(w, "enrich queue full", http.StatusServiceUnavailable)
		return
	}

	h.accepted(w, map[string]string{"item_id": id, "status": "pending"})
}

// TriggerBrief handles POST /api/brief/{id}: run one briefing now.
func (h *Handler) TriggerBrief(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	b, err := h.store.GetBriefing(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "briefing not found", http.StatusNotFound)
			return
		}
		h.internalError(w, "load briefing", err)
		return
	}

	// One report per briefing per local day, manual trigger included.
	if briefing.RanToday(*b, time.Now()) {
		http.Error(w, "briefing already ran today", http.StatusConflict)
		return
	}

	claimed, err := h.store.MarkBriefingQueued(r.Context(), id)
	if err != nil {
		h.internalError(w, "queue briefing", err)
		return
	}
	if !claimed {
		http.Error(w, "briefing is not active", http.StatusConflict)
		return
	}

	if !h.briefQ.Offer(id) {
		if err := h.store.RequeueBriefingActive(r.Context(), id); err != nil {
			h.logger.Error("failed to revert triggered briefing", "briefing_id", id, "error", err)
		}
		http.Error(w, "brief queue full", http.StatusServiceUnavailable)
		return
	}

	h.accepted(w, map[string]string{"briefing_id": id, "status": "queued"})
}

// ValidateSource handles POST /api/sources/validate: pre-flight a URL
// before it is saved as a source.
func (h *Handler) ValidateSource(w http.ResponseWriter, r *http.Request) {
	if h.registry == nil {
		http.NotFound(w, r)
		return
	}

	var req struct {
		Type models.SourceType `json:"type"`
		URL  string            `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	fetcher, err := h.registry.Lookup(req.Type)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	validation := fetcher.Validate(r.Context(), req.URL)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]any{
		"ok":                   validation.OK,
		"detected_title":       validation.DetectedTitle,
		"detected_description": validation.DetectedDescription,
		"failure_reason":       validation.FailureReason,
	}); err != nil {
		h.logger.Error("failed to encode validation response", "error", err)
	}
}

// ReceiveEmail handles POST /api/ingress/email: one inbound mail from
// the mail receiver. The response is 202 even when routing or
// extraction fails; only a failed archive is an error.
func (h *Handler) ReceiveEmail(w http.ResponseWriter, r *http.Request) {
	if h.ingress == nil {
		http.NotFound(w, r)
		return
	}

	var mail ingress.Mail
	if err := json.NewDecoder(r.Body).Decode(&mail); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if mail.RoutingToken == "" || mail.MessageID == "" {
		http.Error(w, "routing_token and message_id are required", http.StatusBadRequest)
		return
	}

	if err := h.ingress.Receive(r.Context(), mail); err != nil {
		h.internalError(w, "archive inbound email", err)
		return
	}

	h.accepted(w, map[string]string{"status": "received"})
}

func (h *Handler) accepted(w http.ResponseWriter, payload map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) internalError(w http.ResponseWriter, action string, err error) {
	h.logger.Error("request failed", "action", action, "error", err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}
