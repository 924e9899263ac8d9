package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/briefmill/briefmill/internal/models"
	"github.com/briefmill/briefmill/internal/queue"
	"github.com/briefmill/briefmill/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fixture struct {
	store   *store.Memory
	fetchQ  *queue.Queue[string]
	enrichQ *queue.Queue[store.EnrichCandidate]
	briefQ  *queue.Queue[string]
	mux     *http.ServeMux
}

func newFixture(t *testing.T, queueCapacity int) *fixture {
	t.Helper()
	f := &fixture{
		store:   store.NewMemory(),
		fetchQ:  queue.New[string](queueCapacity),
		enrichQ: queue.New[store.EnrichCandidate](queueCapacity),
		briefQ:  queue.New[string](queueCapacity),
		mux:     http.NewServeMux(),
	}
	SetupRoutes(f.mux, NewHandler(f.store, f.fetchQ, f.enrichQ, f.briefQ, nil, nil, testLogger()))
	return f
}

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	if err := f.store.CreateBriefing(ctx, models.Briefing{
		ID:     "b1",
		UserID: "u1",
		Status: models.BriefingStatusActive,
	}); err != nil {
		t.Fatalf("CreateBriefing() error = %v", err)
	}
	if err := f.store.CreateSource(ctx, models.Source{
		ID:                     "s1",
		BriefingID:             "b1",
		Type:                   models.SourceTypeRSS,
		URL:                    "https://example.com/feed",
		RefreshIntervalMinutes: 60,
		Status:                 models.SourceStatusActive,
		FetchStatus:            models.FetchStatusIdle,
	}); err != nil {
		t.Fatalf("CreateSource() error = %v", err)
	}
	if _, err := f.store.InsertItem(ctx, models.Item{
		ID:       "i1",
		SourceID: "s1",
		GUID:     "g1",
		Status:   models.ItemStatusNew,
	}); err != nil {
		t.Fatalf("InsertItem() error = %v", err)
	}
}

func (f *fixture) post(path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, nil)
	f.mux.ServeHTTP(rr, req)
	return rr
}

func TestTriggerFetch(t *testing.T) {
	f := newFixture(t, 10)
	f.seed(t)

	rr := f.post("/api/fetch/s1")
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body=%s", rr.Code, rr.Body.String())
	}

	id, ok := f.fetchQ.Take(context.Background())
	if !ok || id != "s1" {
		t.Fatalf("queued = %q, %v, want s1", id, ok)
	}
	source, _ := f.store.GetSource(context.Background(), "s1")
	if source.FetchStatus != models.FetchStatusQueued {
		t.Errorf("FetchStatus = %q, want %q", source.FetchStatus, models.FetchStatusQueued)
	}
}

func TestTriggerFetchNotFound(t *testing.T) {
	f := newFixture(t, 10)

	rr := f.post("/api/fetch/ghost")
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestTriggerFetchConflictWhenNotIdle(t *testing.T) {
	f := newFixture(t, 10)
	f.seed(t)
	if _, err := f.store.MarkSourceQueued(context.Background(), "s1"); err != nil {
		t.Fatalf("MarkSourceQueued() error = %v", err)
	}

	rr := f.post("/api/fetch/s1")
	if rr.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409 for an already queued source", rr.Code)
	}
}

func TestTriggerFetchQueueFull(t *testing.T) {
	f := newFixture(t, 1)
	f.seed(t)
	if !f.fetchQ.Offer("other") {
		t.Fatal("failed to fill queue")
	}

	rr := f.post("/api/fetch/s1")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 when the queue is full", rr.Code)
	}

	// The claim must have been reverted so the scheduler retries later.
	source, _ := f.store.GetSource(context.Background(), "s1")
	if source.FetchStatus != models.FetchStatusIdle {
		t.Errorf("FetchStatus = %q, want reverted %q", source.FetchStatus, models.FetchStatusIdle)
	}
}

func TestTriggerEnrich(t *testing.T) {
	f := newFixture(t, 10)
	f.seed(t)

	rr := f.post("/api/enrich/i1")
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body=%s", rr.Code, rr.Body.String())
	}

	candidate, ok := f.enrichQ.Take(context.Background())
	if !ok {
		t.Fatal("no candidate queued")
	}
	if candidate.ItemID != "i1" || candidate.UserID != "u1" {
		t.Errorf("candidate = %+v, want item i1 for user u1", candidate)
	}
	item, _ := f.store.GetItem(context.Background(), "i1")
	if item.Status != models.ItemStatusPending {
		t.Errorf("Status = %q, want %q", item.Status, models.ItemStatusPending)
	}
}

func TestTriggerEnrichConflictWhenNotNew(t *testing.T) {
	f := newFixture(t, 10)
	f.seed(t)
	if _, err := f.store.MarkItemPending(context.Background(), "i1"); err != nil {
		t.Fatalf("MarkItemPending() error = %v", err)
	}

	rr := f.post("/api/enrich/i1")
	if rr.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409 for a non-NEW item", rr.Code)
	}
}

func TestTriggerBrief(t *testing.T) {
	f := newFixture(t, 10)
	f.seed(t)

	rr := f.post("/api/brief/b1")
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body=%s", rr.Code, rr.Body.String())
	}

	id, ok := f.briefQ.Take(context.Background())
	if !ok || id != "b1" {
		t.Fatalf("queued = %q, %v, want b1", id, ok)
	}
	b, _ := f.store.GetBriefing(context.Background(), "b1")
	if b.Status != models.BriefingStatusQueued {
		t.Errorf("Status = %q, want %q", b.Status, models.BriefingStatusQueued)
	}
}

func TestTriggerBriefConflictWhenAlreadyRanToday(t *testing.T) {
	f := newFixture(t, 10)
	now := time.Now().UTC()
	if err := f.store.CreateBriefing(context.Background(), models.Briefing{
		ID:             "b1",
		UserID:         "u1",
		Timezone:       "UTC",
		Status:         models.BriefingStatusActive,
		LastExecutedAt: &now,
	}); err != nil {
		t.Fatalf("CreateBriefing() error = %v", err)
	}

	rr := f.post("/api/brief/b1")
	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409 when the briefing already ran today", rr.Code)
	}

	// The trigger must not have claimed the briefing.
	if f.briefQ.Len() != 0 {
		t.Errorf("queued briefings = %d, want 0", f.briefQ.Len())
	}
	b, _ := f.store.GetBriefing(context.Background(), "b1")
	if b.Status != models.BriefingStatusActive {
		t.Errorf("Status = %q, want untouched %q", b.Status, models.BriefingStatusActive)
	}
}

func TestTriggerBriefQueueFullReverts(t *testing.T) {
	f := newFixture(t, 1)
	f.seed(t)
	if !f.briefQ.Offer("other") {
		t.Fatal("failed to fill queue")
	}

	rr := f.post("/api/brief/b1")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
	b, _ := f.store.GetBriefing(context.Background(), "b1")
	if b.Status != models.BriefingStatusActive {
		t.Errorf("Status = %q, want reverted %q", b.Status, models.BriefingStatusActive)
	}
}

func TestValidateSourceWithoutRegistry(t *testing.T) {
	f := newFixture(t, 10)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/sources/validate", strings.NewReader(`{"type":"RSS","url":"https://example.com"}`))
	f.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when no registry is wired", rr.Code)
	}
}

func TestReceiveEmailRequiresRoutingFields(t *testing.T) {
	f := newFixture(t, 10)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/ingress/email", strings.NewReader(`{"Subject":"hi"}`))
	f.mux.ServeHTTP(rr, req)
	// The ingress service is nil in this fixture, so the endpoint is off.
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when ingress is not wired", rr.Code)
	}
}
