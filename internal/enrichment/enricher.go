// Package enrichment turns raw items into scored intelligence. A
// Provider is the raw language-model client; Tracked wraps one and
// records every call as a usage row. Pipelines only ever see the
// Enricher interface.
package enrichment

import (
	"context"

	"github.com/briefmill/briefmill/internal/models"
)

// Caller identifies the user a model call runs on behalf of. It is
// passed explicitly on every enricher and web-body call; attribution is
// never ambient state.
type Caller struct {
	UserID string
	Trace  string
}

// EnrichInput carries the material the scoring prompt is built from.
type EnrichInput struct {
	Title            string
	Content          string
	WebContent       string
	SourceName       string
	BriefingCriteria string
}

// WebItem is one entry the model pulled out of a monitored page.
type WebItem struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Link    string `json:"link"`
}

// EmailItem is one entry the model pulled out of an inbound mail.
type EmailItem struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	URL     string `json:"url"`
}

// ReportEmail is a generated subject line and intro for one report
// delivery.
type ReportEmail struct {
	Subject string `json:"subject"`
	Summary string `json:"summary"`
}

// Usage reports the token spend of one provider call.
type Usage struct {
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Provider is a raw language-model client. Every method reports its
// token usage so a wrapper can account for it.
type Provider interface {
	// EnrichAndScore summarizes, tags, and scores one item against the
	// owning briefing's criteria.
	EnrichAndScore(ctx context.Context, caller Caller, input EnrichInput) (*models.Enrichment, Usage, error)

	// ExtractFromWeb pulls up to maxItems discrete entries out of a
	// monitored page, following the source's extraction instructions.
	ExtractFromWeb(ctx context.Context, caller Caller, markdown, instructions string, maxItems int) ([]WebItem, Usage, error)

	// ExtractFromEmail pulls up to maxItems discrete entries out of an
	// inbound newsletter body.
	ExtractFromEmail(ctx context.Context, caller Caller, subject, body string, maxItems int) ([]EmailItem, Usage, error)

	// GenerateReportEmail writes the subject line and intro paragraph
	// for a report delivery mail.
	GenerateReportEmail(ctx context.Context, caller Caller, briefingTitle, briefingDescription, formattedItems string) (*ReportEmail, Usage, error)
}

// Enricher is the pipeline-facing surface: the same operations without
// usage plumbing.
type Enricher interface {
	EnrichAndScore(ctx context.Context, caller Caller, input EnrichInput) (*models.Enrichment, error)
	ExtractFromWeb(ctx context.Context, caller Caller, markdown, instructions string, maxItems int) ([]WebItem, error)
	ExtractFromEmail(ctx context.Context, caller Caller, subject, body string, maxItems int) ([]EmailItem, error)
	GenerateReportEmail(ctx context.Context, caller Caller, briefingTitle, briefingDescription, formattedItems string) (*ReportEmail, error)
}
