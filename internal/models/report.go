package models

import (
	"time"
)

// Report is the materialized output of one brief run: the top-scored items
// for a briefing since its previous run.
type Report struct {
	ID          string       `json:"id"`
	BriefingID  string       `json:"briefing_id"`
	GeneratedAt time.Time    `json:"generated_at"`
	Items       []ReportItem `json:"items"` // ordered by position ascending
}

// ReportItem references an enriched item by id; items outlive reports.
type ReportItem struct {
	ItemID   string `json:"item_id"`
	Score    int    `json:"score"`
	Position int    `json:"position"` // 1..N
}
