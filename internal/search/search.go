// Package search keeps an external search index in step with enriched
// items. The sync is an optional collaborator: when no indexer URL is
// configured the pipelines hold a nil handle and skip the call.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/briefmill/briefmill/internal/models"
)

// Sync pushes item changes into a search index. Implementations must be
// cheap to call from workers; indexing failures are the caller's to
// ignore.
type Sync interface {
	Index(ctx context.Context, item models.Item) error
	Update(ctx context.Context, item models.Item) error
	Delete(ctx context.Context, itemID string) error
	DeleteByBriefing(ctx context.Context, briefingID string) error
}

// document is the indexer's wire representation of an item.
type document struct {
	ID          string     `json:"id"`
	SourceID    string     `json:"source_id"`
	Title       string     `json:"title"`
	Summary     string     `json:"summary,omitempty"`
	Content     string     `json:"content,omitempty"`
	Topics      []string   `json:"topics,omitempty"`
	Score       *int       `json:"score,omitempty"`
	Link        string     `json:"link,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// HTTPSync talks to a standalone search indexer service over its JSON
// API.
type HTTPSync struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPSync creates a sync against the indexer at baseURL.
func NewHTTPSync(baseURL string, logger *slog.Logger) *HTTPSync {
	return &HTTPSync{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Index creates or replaces the document for an item.
func (s *HTTPSync) Index(ctx context.Context, item models.Item) error {
	return s.send(ctx, http.MethodPost, "/v1/documents", toDocument(item))
}

// Update replaces the document for an already-indexed item.
func (s *HTTPSync) Update(ctx context.Context, item models.Item) error {
	return s.send(ctx, http.MethodPut, "/v1/documents/"+url.PathEscape(item.ID), toDocument(item))
}

// Delete removes one item from the index.
func (s *HTTPSync) Delete(ctx context.Context, itemID string) error {
	return s.send(ctx, http.MethodDelete, "/v1/documents/"+url.PathEscape(itemID), nil)
}

// DeleteByBriefing removes every document belonging to a briefing's
// sources. Used when a briefing is torn down.
func (s *HTTPSync) DeleteByBriefing(ctx context.Context, briefingID string) error {
	return s.send(ctx, http.MethodDelete, "/v1/briefings/"+url.PathEscape(briefingID)+"/documents", nil)
}

func (s *HTTPSync) send(ctx context.Context, method, path string, payload any) error {
	var body *bytes.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode search document: %w", err)
		}
		body = bytes.NewReader(encoded)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "briefmill/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("search indexer request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("search indexer returned status %d", resp.StatusCode)
	}

	s.logger.Debug("search index updated", "method", method, "path", path)
	return nil
}

func toDocument(item models.Item) document {
	return document{
		ID:          item.ID,
		SourceID:    item.SourceID,
		Title:       item.Title,
		Summary:     item.Summary,
		Content:     item.DisplayContent(),
		Topics:      item.Topics,
		Score:       item.Score,
		Link:        item.Link,
		PublishedAt: item.PublishedAt,
	}
}
