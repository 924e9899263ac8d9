package ingestion

import (
	"context"

	"github.com/briefmill/briefmill/internal/enrichment"
	"github.com/briefmill/briefmill/internal/models"
)

// EmailFetcher is a placeholder for email sources, whose items arrive
// by push through the inbound-email ingress rather than by polling.
type EmailFetcher struct{}

// NewEmailFetcher creates the no-op fetcher.
func NewEmailFetcher() *EmailFetcher {
	return &EmailFetcher{}
}

// Type reports the source type this fetcher handles.
func (f *EmailFetcher) Type() models.SourceType {
	return models.SourceTypeEmail
}

// Validate accepts any routing token; there is nothing to probe.
func (f *EmailFetcher) Validate(ctx context.Context, url string) Validation {
	return Validation{OK: true}
}

// Fetch returns an empty outcome so the source still records a
// successful poll and clears any stale error.
func (f *EmailFetcher) Fetch(ctx context.Context, caller enrichment.Caller, source models.Source) (*FetchOutcome, error) {
	return &FetchOutcome{}, nil
}
