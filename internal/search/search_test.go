package search

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/briefmill/briefmill/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestHTTPSyncIndexPostsDocument(t *testing.T) {
	var gotMethod, gotPath, gotContentType string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	score := 88
	published := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	item := models.Item{
		ID:           "i1",
		SourceID:     "s1",
		Title:        "Postgres 18 released",
		Link:         "https://example.test/pg18",
		CleanContent: "Release notes in full.",
		Summary:      "A major release.",
		Topics:       models.StringList{"databases"},
		Score:        &score,
		PublishedAt:  &published,
	}

	sync := NewHTTPSync(server.URL, testLogger())
	if err := sync.Index(context.Background(), item); err != nil {
		t.Fatalf("Index() error = %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("method = %s, want POST", gotMethod)
	}
	if gotPath != "/v1/documents" {
		t.Errorf("path = %s, want /v1/documents", gotPath)
	}
	if gotContentType != "application/json" {
		t.Errorf("content type = %s, want application/json", gotContentType)
	}

	var doc document
	if err := json.Unmarshal(gotBody, &doc); err != nil {
		t.Fatalf("unmarshal document: %v", err)
	}
	if doc.ID != "i1" || doc.Title != "Postgres 18 released" {
		t.Errorf("document = %+v, want id i1 with title", doc)
	}
	if doc.Content != "Release notes in full." {
		t.Errorf("document content = %q, want clean content", doc.Content)
	}
	if doc.Score == nil || *doc.Score != 88 {
		t.Errorf("document score = %v, want 88", doc.Score)
	}
}

func TestHTTPSyncDeleteTargetsItem(t *testing.T) {
	var gotMethod, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	sync := NewHTTPSync(server.URL, testLogger())
	if err := sync.Delete(context.Background(), "item-42"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if gotMethod != http.MethodDelete {
		t.Errorf("method = %s, want DELETE", gotMethod)
	}
	if gotPath != "/v1/documents/item-42" {
		t.Errorf("path = %s, want /v1/documents/item-42", gotPath)
	}
}

func TestHTTPSyncDeleteByBriefing(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sync := NewHTTPSync(server.URL, testLogger())
	if err := sync.DeleteByBriefing(context.Background(), "b1"); err != nil {
		t.Fatalf("DeleteByBriefing() error = %v", err)
	}
	if gotPath != "/v1/briefings/b1/documents" {
		t.Errorf("path = %s, want /v1/briefings/b1/documents", gotPath)
	}
}

type parkedSync struct {
	release chan struct{}
	indexed chan models.Item
}

func (s *parkedSync) Index(ctx context.Context, item models.Item) error {
	<-s.release
	s.indexed <- item
	return nil
}

func (s *parkedSync) Update(ctx context.Context, item models.Item) error { return nil }
func (s *parkedSync) Delete(ctx context.Context, itemID string) error    { return nil }
func (s *parkedSync) DeleteByBriefing(ctx context.Context, briefingID string) error {
	return nil
}

func TestAsyncIndexDetachesFromCaller(t *testing.T) {
	inner := &parkedSync{release: make(chan struct{}), indexed: make(chan models.Item, 1)}
	async := NewAsync(inner, testLogger())

	// Returns while the inner call is still parked; a synchronous
	// dispatch would hang here.
	if err := async.Index(context.Background(), models.Item{ID: "i1"}); err != nil {
		t.Fatalf("Index() error = %v", err)
	}

	close(inner.release)
	async.Flush()

	select {
	case item := <-inner.indexed:
		if item.ID != "i1" {
			t.Errorf("indexed item = %q, want i1", item.ID)
		}
	default:
		t.Fatal("inner sync never received the item")
	}
}

type failingSync struct {
	calls int32
}

func (s *failingSync) Index(ctx context.Context, item models.Item) error {
	atomic.AddInt32(&s.calls, 1)
	return errors.New("indexer down")
}

func (s *failingSync) Update(ctx context.Context, item models.Item) error { return nil }
func (s *failingSync) Delete(ctx context.Context, itemID string) error    { return nil }
func (s *failingSync) DeleteByBriefing(ctx context.Context, briefingID string) error {
	return nil
}

func TestAsyncSwallowsIndexerErrors(t *testing.T) {
	inner := &failingSync{}
	async := NewAsync(inner, testLogger())

	if err := async.Index(context.Background(), models.Item{ID: "i1"}); err != nil {
		t.Fatalf("Index() error = %v, want nil despite indexer failure", err)
	}
	async.Flush()

	if got := atomic.LoadInt32(&inner.calls); got != 1 {
		t.Errorf("inner calls = %d, want 1", got)
	}
}

func TestHTTPSyncSurfacesErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "index full", http.StatusInternalServerError)
	}))
	defer server.Close()

	sync := NewHTTPSync(server.URL, testLogger())
	err := sync.Index(context.Background(), models.Item{ID: "i1", Title: "t"})
	if err == nil {
		t.Fatal("Index() error = nil, want error for 500 response")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error = %v, want mention of status 500", err)
	}
}
