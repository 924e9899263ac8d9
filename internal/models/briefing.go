package models

import (
	"strings"
	"time"
)

// Briefing is a user-scoped digest configuration: a bundle of sources,
// free-text scoring criteria, and a delivery schedule.
type Briefing struct {
	ID                   string            `json:"id"`
	UserID               string            `json:"user_id"`
	Title                string            `json:"title"`
	BriefingCriteria     string            `json:"briefing_criteria"` // fed to the enricher for relevance scoring
	Frequency            BriefingFrequency `json:"frequency"`
	DayOfWeek            string            `json:"day_of_week,omitempty"` // WEEKLY only, e.g. "MONDAY"
	LocalTime            string            `json:"local_time"`            // "HH:MM" in the briefing's timezone
	Timezone             string            `json:"timezone"`              // IANA name
	Status               BriefingStatus    `json:"status"`
	LastExecutedAt       *time.Time        `json:"last_executed_at,omitempty"`
	EmailDeliveryEnabled bool              `json:"email_delivery_enabled"`
	Position             int               `json:"position"`
	QueuedAt             *time.Time        `json:"queued_at,omitempty"`
	ProcessingStartedAt  *time.Time        `json:"processing_started_at,omitempty"`
	ErrorMessage         string            `json:"error_message,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// BriefingFrequency is how often a briefing materializes a report.
type BriefingFrequency string

const (
	FrequencyDaily  BriefingFrequency = "DAILY"
	FrequencyWeekly BriefingFrequency = "WEEKLY"
)

// BriefingStatus tracks a briefing's position in the brief pipeline.
type BriefingStatus string

const (
	BriefingStatusActive     BriefingStatus = "ACTIVE"
	BriefingStatusPaused     BriefingStatus = "PAUSED"
	BriefingStatusQueued     BriefingStatus = "QUEUED"
	BriefingStatusProcessing BriefingStatus = "PROCESSING"
	BriefingStatusError      BriefingStatus = "ERROR"
)

// Weekday maps the stored day name to a time.Weekday.
// The second return is false when the name is missing or unknown.
func (b *Briefing) Weekday() (time.Weekday, bool) {
	switch strings.ToUpper(strings.TrimSpace(b.DayOfWeek)) {
	case "SUNDAY":
		return time.Sunday, true
	case "MONDAY":
		return time.Monday, true
	case "TUESDAY":
		return time.Tuesday, true
	case "WEDNESDAY":
		return time.Wednesday, true
	case "THURSDAY":
		return time.Thursday, true
	case "FRIDAY":
		return time.Friday, true
	case "SATURDAY":
		return time.Saturday, true
	}
	return time.Sunday, false
}
