package models

import "time"

// UsageRecord represents a single language-model API call attributed to a user.
type UsageRecord struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	Feature          string    `json:"feature"` // 'enrich_score', 'extract_web', 'extract_email', 'report_email'
	Model            string    `json:"model"`   // 'gpt-4o-mini', etc.
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	Success          bool      `json:"success"`
	ErrorMessage     *string   `json:"error_message,omitempty"`
	DurationMs       int64     `json:"duration_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// Feature names recorded in usage rows.
const (
	FeatureEnrichScore  = "enrich_score"
	FeatureExtractWeb   = "extract_web"
	FeatureExtractEmail = "extract_email"
	FeatureReportEmail  = "report_email"
)

// UsageStats represents aggregated usage for reporting.
type UsageStats struct {
	TotalCalls      int   `json:"total_calls"`
	TotalTokens     int64 `json:"total_tokens"`
	SuccessfulCalls int   `json:"successful_calls"`
	FailedCalls     int   `json:"failed_calls"`
}
