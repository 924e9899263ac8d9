package models

import (
	"time"
)

// Source represents an external content origin owned by a briefing
// (an RSS feed, a scraped web page, an inbound email address, or a subreddit).
type Source struct {
	ID                     string      `json:"id"`
	BriefingID             string      `json:"briefing_id"`
	Type                   SourceType  `json:"type"`
	URL                    string      `json:"url"` // for EMAIL sources this is the routing token
	Name                   string      `json:"name"`
	ExtractionPrompt       string      `json:"extraction_prompt,omitempty"` // WEB only
	RefreshIntervalMinutes int         `json:"refresh_interval_minutes"`    // 0 disables polling
	Status                 SourceStatus `json:"status"`
	FetchStatus            FetchStatus `json:"fetch_status"`
	LastFetchedAt          *time.Time  `json:"last_fetched_at,omitempty"`
	ETag                   string      `json:"etag,omitempty"`
	LastModified           string      `json:"last_modified,omitempty"`
	ErrorMessage           string      `json:"error_message,omitempty"`
	QueuedAt               *time.Time  `json:"queued_at,omitempty"`
	FetchStartedAt         *time.Time  `json:"fetch_started_at,omitempty"`
	CreatedAt              time.Time   `json:"created_at"`
	UpdatedAt              time.Time   `json:"updated_at"`
}

// SourceType identifies which fetcher handles a source.
type SourceType string

const (
	SourceTypeRSS    SourceType = "RSS"
	SourceTypeWeb    SourceType = "WEB"
	SourceTypeEmail  SourceType = "EMAIL" // push-only; the fetcher is a no-op
	SourceTypeReddit SourceType = "REDDIT"
)

// SourceStatus is the user-visible health of a source.
type SourceStatus string

const (
	SourceStatusActive SourceStatus = "ACTIVE"
	SourceStatusPaused SourceStatus = "PAUSED"
	SourceStatusError  SourceStatus = "ERROR" // last fetch failed; retried at the normal cadence
)

// FetchStatus tracks a source's position in the fetch pipeline.
type FetchStatus string

const (
	FetchStatusIdle     FetchStatus = "IDLE"
	FetchStatusQueued   FetchStatus = "QUEUED"
	FetchStatusFetching FetchStatus = "FETCHING"
)

// DueForFetch reports whether the source should be considered by the fetch
// scheduler at the given instant. A paused source is never due; an errored
// source stays in rotation so transient failures heal on their own.
func (s *Source) DueForFetch(now time.Time) bool {
	if s.Status == SourceStatusPaused {
		return false
	}
	if s.FetchStatus != FetchStatusIdle {
		return false
	}
	if s.RefreshIntervalMinutes <= 0 {
		return false
	}
	if s.LastFetchedAt == nil {
		return true
	}
	next := s.LastFetchedAt.Add(time.Duration(s.RefreshIntervalMinutes) * time.Minute)
	return !next.After(now)
}

// FirstImport reports whether the source has never completed a fetch.
// Items from a first import skip enrichment so that a freshly added feed
// does not replay its entire history through the language model.
func (s *Source) FirstImport() bool {
	return s.LastFetchedAt == nil
}

// DisplayName returns a human-readable identifier for logs.
func (s *Source) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return string(s.Type) + " " + s.URL
}
