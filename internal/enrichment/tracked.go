package enrichment

import (
	"context"
	"time"

	"github.com/briefmill/briefmill/internal/inference"
	"github.com/briefmill/briefmill/internal/models"
)

// Tracked wraps a Provider and records every call as a usage row
// attributed to the caller. Recording is asynchronous and failure to
// record never fails the call itself.
type Tracked struct {
	provider Provider
	recorder *inference.Recorder
}

// NewTracked composes usage tracking around a provider.
func NewTracked(provider Provider, recorder *inference.Recorder) *Tracked {
	return &Tracked{provider: provider, recorder: recorder}
}

// EnrichAndScore delegates to the provider and records the spend.
func (t *Tracked) EnrichAndScore(ctx context.Context, caller Caller, input EnrichInput) (*models.Enrichment, error) {
	start := time.Now()
	result, usage, err := t.provider.EnrichAndScore(ctx, caller, input)
	t.record(ctx, caller, models.FeatureEnrichScore, usage, time.Since(start), err)
	return result, err
}

// ExtractFromWeb delegates to the provider and records the spend.
func (t *Tracked) ExtractFromWeb(ctx context.Context, caller Caller, markdown, instructions string, maxItems int) ([]WebItem, error) {
	start := time.Now()
	items, usage, err := t.provider.ExtractFromWeb(ctx, caller, markdown, instructions, maxItems)
	t.record(ctx, caller, models.FeatureExtractWeb, usage, time.Since(start), err)
	return items, err
}

// ExtractFromEmail delegates to the provider and records the spend.
func (t *Tracked) ExtractFromEmail(ctx context.Context, caller Caller, subject, body string, maxItems int) ([]EmailItem, error) {
	start := time.Now()
	items, usage, err := t.provider.ExtractFromEmail(ctx, caller, subject, body, maxItems)
	t.record(ctx, caller, models.FeatureExtractEmail, usage, time.Since(start), err)
	return items, err
}

// GenerateReportEmail delegates to the provider and records the spend.
func (t *Tracked) GenerateReportEmail(ctx context.Context, caller Caller, briefingTitle, briefingDescription, formattedItems string) (*ReportEmail, error) {
	start := time.Now()
	mail, usage, err := t.provider.GenerateReportEmail(ctx, caller, briefingTitle, briefingDescription, formattedItems)
	t.record(ctx, caller, models.FeatureReportEmail, usage, time.Since(start), err)
	return mail, err
}

func (t *Tracked) record(ctx context.Context, caller Caller, feature string, usage Usage, duration time.Duration, err error) {
	t.recorder.Record(ctx, inference.Call{
		UserID:           caller.UserID,
		Feature:          feature,
		Model:            usage.Model,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
		Duration:         duration,
		Err:              err,
	})
}
