package models

import (
	"testing"
	"time"
)

func TestSource_DueForFetch(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	hourAgo := now.Add(-1 * time.Hour)
	tenMinAgo := now.Add(-10 * time.Minute)

	tests := []struct {
		name     string
		source   Source
		expected bool
	}{
		{
			name: "never fetched is due",
			source: Source{
				Status:                 SourceStatusActive,
				FetchStatus:            FetchStatusIdle,
				RefreshIntervalMinutes: 60,
			},
			expected: true,
		},
		{
			name: "interval elapsed",
			source: Source{
				Status:                 SourceStatusActive,
				FetchStatus:            FetchStatusIdle,
				RefreshIntervalMinutes: 30,
				LastFetchedAt:          &hourAgo,
			},
			expected: true,
		},
		{
			name: "interval not elapsed",
			source: Source{
				Status:                 SourceStatusActive,
				FetchStatus:            FetchStatusIdle,
				RefreshIntervalMinutes: 60,
				LastFetchedAt:          &tenMinAgo,
			},
			expected: false,
		},
		{
			name: "zero interval never polled",
			source: Source{
				Status:                 SourceStatusActive,
				FetchStatus:            FetchStatusIdle,
				RefreshIntervalMinutes: 0,
			},
			expected: false,
		},
		{
			name: "paused source never due",
			source: Source{
				Status:                 SourceStatusPaused,
				FetchStatus:            FetchStatusIdle,
				RefreshIntervalMinutes: 60,
			},
			expected: false,
		},
		{
			name: "errored source stays in rotation",
			source: Source{
				Status:                 SourceStatusError,
				FetchStatus:            FetchStatusIdle,
				RefreshIntervalMinutes: 30,
				LastFetchedAt:          &hourAgo,
			},
			expected: true,
		},
		{
			name: "already queued",
			source: Source{
				Status:                 SourceStatusActive,
				FetchStatus:            FetchStatusQueued,
				RefreshIntervalMinutes: 60,
			},
			expected: false,
		},
		{
			name: "currently fetching",
			source: Source{
				Status:                 SourceStatusActive,
				FetchStatus:            FetchStatusFetching,
				RefreshIntervalMinutes: 60,
			},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.source.DueForFetch(now); got != tt.expected {
				t.Errorf("DueForFetch() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestSource_FirstImport(t *testing.T) {
	now := time.Now()

	s := Source{}
	if !s.FirstImport() {
		t.Error("source without LastFetchedAt should be a first import")
	}

	s.LastFetchedAt = &now
	if s.FirstImport() {
		t.Error("source with LastFetchedAt should not be a first import")
	}
}

func TestSource_DisplayName(t *testing.T) {
	tests := []struct {
		name     string
		source   Source
		expected string
	}{
		{
			name:     "name present",
			source:   Source{Name: "Hacker News", Type: SourceTypeRSS, URL: "https://news.ycombinator.com/rss"},
			expected: "Hacker News",
		},
		{
			name:     "fallback to type and url",
			source:   Source{Type: SourceTypeReddit, URL: "r/golang"},
			expected: "REDDIT r/golang",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.source.DisplayName(); got != tt.expected {
				t.Errorf("DisplayName() = %v, want %v", got, tt.expected)
			}
		})
	}
}
