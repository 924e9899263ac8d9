package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/briefmill/briefmill/internal/enrichment"
	"github.com/briefmill/briefmill/internal/models"
	"github.com/briefmill/briefmill/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type stubFetcher struct {
	sourceType models.SourceType
	outcome    *FetchOutcome
	err        error
	calls      int
	lastCaller enrichment.Caller
}

func (f *stubFetcher) Type() models.SourceType {
	return f.sourceType
}

func (f *stubFetcher) Validate(ctx context.Context, url string) Validation {
	return Validation{OK: true}
}

func (f *stubFetcher) Fetch(ctx context.Context, caller enrichment.Caller, source models.Source) (*FetchOutcome, error) {
	f.calls++
	f.lastCaller = caller
	return f.outcome, f.err
}

func seedQueuedSource(t *testing.T, m *store.Memory, lastFetchedAt *time.Time) {
	t.Helper()
	ctx := context.Background()
	err := m.CreateBriefing(ctx, models.Briefing{
		ID:     "b1",
		UserID: "u1",
		Status: models.BriefingStatusActive,
	})
	if err != nil {
		t.Fatalf("CreateBriefing() error = %v", err)
	}
	err = m.CreateSource(ctx, models.Source{
		ID:                     "s1",
		BriefingID:             "b1",
		Type:                   models.SourceTypeRSS,
		URL:                    "https://example.com/feed",
		RefreshIntervalMinutes: 60,
		Status:                 models.SourceStatusActive,
		FetchStatus:            models.FetchStatusQueued,
		LastFetchedAt:          lastFetchedAt,
	})
	if err != nil {
		t.Fatalf("CreateSource() error = %v", err)
	}
}

func feedItems() []models.Item {
	published := time.Now().Add(-time.Hour)
	return []models.Item{
		{GUID: "g1", Title: "First", PublishedAt: &published},
		{GUID: "g2", Title: "Second", PublishedAt: &published},
	}
}

func TestWorkerFirstImportSkipsEnrichment(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	seedQueuedSource(t, m, nil)

	fetcher := &stubFetcher{
		sourceType: models.SourceTypeRSS,
		outcome:    &FetchOutcome{Items: feedItems(), ETag: `"v1"`},
	}
	worker := NewWorker(m, NewRegistry(fetcher), testLogger())

	worker.Process(ctx, "s1")

	if fetcher.calls != 1 {
		t.Fatalf("fetcher calls = %d, want 1", fetcher.calls)
	}
	if fetcher.lastCaller.UserID != "u1" {
		t.Errorf("caller.UserID = %q, want %q", fetcher.lastCaller.UserID, "u1")
	}

	// A first import lands DONE and unscored so the backlog never
	// reaches the enricher.
	for _, guid := range []string{"g1", "g2"} {
		exists, _ := m.ItemExists(ctx, "s1", guid)
		if !exists {
			t.Fatalf("item %s not inserted", guid)
		}
	}
	candidates, _ := m.ListEnrichCandidates(ctx, []string{"u1"}, 10)
	if len(candidates) != 0 {
		t.Errorf("enrich candidates = %d, want 0 after first import", len(candidates))
	}

	source, _ := m.GetSource(ctx, "s1")
	if source.FetchStatus != models.FetchStatusIdle {
		t.Errorf("FetchStatus = %q, want %q", source.FetchStatus, models.FetchStatusIdle)
	}
	if source.Status != models.SourceStatusActive {
		t.Errorf("Status = %q, want %q", source.Status, models.SourceStatusActive)
	}
	if source.LastFetchedAt == nil {
		t.Error("LastFetchedAt not set")
	}
	if source.ETag != `"v1"` {
		t.Errorf("ETag = %q, want %q", source.ETag, `"v1"`)
	}
}

func TestWorkerSubsequentFetchInsertsNewItems(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	previous := time.Now().Add(-2 * time.Hour)
	seedQueuedSource(t, m, &previous)

	fetcher := &stubFetcher{
		sourceType: models.SourceTypeRSS,
		outcome:    &FetchOutcome{Items: feedItems()},
	}
	worker := NewWorker(m, NewRegistry(fetcher), testLogger())

	worker.Process(ctx, "s1")

	candidates, _ := m.ListEnrichCandidates(ctx, []string{"u1"}, 10)
	if len(candidates) != 2 {
		t.Errorf("enrich candidates = %d, want 2 NEW items", len(candidates))
	}
}

func TestWorkerEmptyHeadersPreserveCachedOnes(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	previous := time.Now().Add(-2 * time.Hour)
	seedQueuedSource(t, m, &previous)
	// Simulate headers cached from an earlier 200.
	_, err := m.CompleteSourceFetch(ctx, store.SourceFetchResult{
		SourceID: "s1", ETag: `"v1"`, LastModified: "Mon, 02 Mar 2026 08:00:00 GMT", FetchedAt: previous,
	})
	if err != nil {
		t.Fatalf("CompleteSourceFetch() error = %v", err)
	}
	if _, err := m.MarkSourceQueued(ctx, "s1"); err != nil {
		t.Fatalf("MarkSourceQueued() error = %v", err)
	}

	// A 304 outcome: no items, no header values.
	fetcher := &stubFetcher{sourceType: models.SourceTypeRSS, outcome: &FetchOutcome{}}
	worker := NewWorker(m, NewRegistry(fetcher), testLogger())

	worker.Process(ctx, "s1")

	source, _ := m.GetSource(ctx, "s1")
	if source.ETag != `"v1"` {
		t.Errorf("ETag = %q, want cached value preserved", source.ETag)
	}
	if source.LastModified != "Mon, 02 Mar 2026 08:00:00 GMT" {
		t.Errorf("LastModified = %q, want cached value preserved", source.LastModified)
	}
}

func TestWorkerFetchFailureMarksSourceErrored(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	seedQueuedSource(t, m, nil)

	fetcher := &stubFetcher{sourceType: models.SourceTypeRSS, err: errors.New("connection refused")}
	worker := NewWorker(m, NewRegistry(fetcher), testLogger())

	worker.Process(ctx, "s1")

	source, _ := m.GetSource(ctx, "s1")
	if source.Status != models.SourceStatusError {
		t.Errorf("Status = %q, want %q", source.Status, models.SourceStatusError)
	}
	if !strings.Contains(source.ErrorMessage, "connection refused") {
		t.Errorf("ErrorMessage = %q, want fetch error included", source.ErrorMessage)
	}
	// An errored source re-enters rotation at the normal cadence.
	if source.FetchStatus != models.FetchStatusIdle {
		t.Errorf("FetchStatus = %q, want %q", source.FetchStatus, models.FetchStatusIdle)
	}
}

func TestWorkerUnknownSourceTypeMarksSourceErrored(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	seedQueuedSource(t, m, nil)

	// Registry without an RSS fetcher, as when a type is disabled.
	worker := NewWorker(m, NewRegistry(), testLogger())

	worker.Process(ctx, "s1")

	source, _ := m.GetSource(ctx, "s1")
	if source.Status != models.SourceStatusError {
		t.Errorf("Status = %q, want %q", source.Status, models.SourceStatusError)
	}
	if !strings.Contains(source.ErrorMessage, "no fetcher registered") {
		t.Errorf("ErrorMessage = %q, want registry error included", source.ErrorMessage)
	}
}

func TestWorkerDropsUnqueuedSource(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	seedQueuedSource(t, m, nil)
	if err := m.RequeueSourceIdle(ctx, "s1"); err != nil {
		t.Fatalf("RequeueSourceIdle() error = %v", err)
	}

	fetcher := &stubFetcher{sourceType: models.SourceTypeRSS, outcome: &FetchOutcome{}}
	worker := NewWorker(m, NewRegistry(fetcher), testLogger())

	worker.Process(ctx, "s1")

	if fetcher.calls != 0 {
		t.Errorf("fetcher calls = %d, want 0 for a source no longer queued", fetcher.calls)
	}
}
