package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Item is a single fetched article or post, optionally enriched and scored.
type Item struct {
	ID             string     `json:"id"`
	SourceID       string     `json:"source_id"`
	GUID           string     `json:"guid"` // unique within the source; dedup key
	Title          string     `json:"title"`
	Link           string     `json:"link,omitempty"`
	Author         string     `json:"author,omitempty"`
	PublishedAt    *time.Time `json:"published_at,omitempty"`
	RawContent     string     `json:"raw_content,omitempty"`
	CleanContent   string     `json:"clean_content,omitempty"` // markdown derived from raw_content
	WebContent     string     `json:"web_content,omitempty"`   // readability extraction of the linked page
	Summary        string     `json:"summary,omitempty"`
	Topics         StringList `json:"topics,omitempty"`
	People         StringList `json:"people,omitempty"`
	Companies      StringList `json:"companies,omitempty"`
	Technologies   StringList `json:"technologies,omitempty"`
	Sentiment      string     `json:"sentiment,omitempty"` // positive, neutral, negative
	Score          *int       `json:"score,omitempty"`     // 0..100; set iff status=DONE and enriched
	ScoreReasoning string     `json:"score_reasoning,omitempty"`
	Status         ItemStatus `json:"status"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	Saved          bool       `json:"saved"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ItemStatus tracks an item's position in the enrich pipeline.
type ItemStatus string

const (
	ItemStatusNew        ItemStatus = "NEW"        // awaiting enrichment
	ItemStatusPending    ItemStatus = "PENDING"    // claimed by the enrich scheduler
	ItemStatusProcessing ItemStatus = "PROCESSING" // held by an enrich worker
	ItemStatusDone       ItemStatus = "DONE"       // terminal
	ItemStatusError      ItemStatus = "ERROR"      // terminal
)

// DisplayContent returns the best available body for an item:
// web content when present, otherwise the markdown clean content,
// otherwise the raw feed payload.
func (i *Item) DisplayContent() string {
	if i.WebContent != "" {
		return i.WebContent
	}
	if i.CleanContent != "" {
		return i.CleanContent
	}
	return i.RawContent
}

// EffectiveContent is what the enricher sees before any web-body fetch:
// the markdown clean content when available, raw content otherwise.
func (i *Item) EffectiveContent() string {
	if i.CleanContent != "" {
		return i.CleanContent
	}
	return i.RawContent
}

// StringList is a string slice stored as a JSON column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = StringList{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, l)
}
