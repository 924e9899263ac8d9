// Package ingestion pulls new items out of external sources. A
// Registry dispatches each source to its type-specific Fetcher and the
// Worker drives one fetch end to end, persisting the resulting delta.
package ingestion

import (
	"context"
	"fmt"

	"github.com/briefmill/briefmill/internal/enrichment"
	"github.com/briefmill/briefmill/internal/models"
)

// FetchOutcome is what a fetcher hands back: the new items plus the
// caching headers the next conditional request should send. Empty
// header values leave the stored ones unchanged.
type FetchOutcome struct {
	Items        []models.Item
	ETag         string
	LastModified string
}

// Validation is the result of probing a URL before it is saved as a
// source.
type Validation struct {
	OK                  bool
	DetectedTitle       string
	DetectedDescription string
	FailureReason       string
}

// Fetcher pulls items out of one kind of external source. Fetch
// returns items without ids or source attribution; the worker fills
// those in when it persists the outcome.
type Fetcher interface {
	// Type names the source type this fetcher handles.
	Type() models.SourceType

	// Validate probes a URL for use as a new source.
	Validate(ctx context.Context, url string) Validation

	// Fetch pulls everything the source published since its last fetch.
	Fetch(ctx context.Context, caller enrichment.Caller, source models.Source) (*FetchOutcome, error)
}

// Registry resolves a source type to its fetcher.
type Registry struct {
	fetchers map[models.SourceType]Fetcher
}

// NewRegistry creates a registry over the given fetchers.
func NewRegistry(fetchers ...Fetcher) *Registry {
	r := &Registry{fetchers: make(map[models.SourceType]Fetcher, len(fetchers))}
	for _, f := range fetchers {
		r.fetchers[f.Type()] = f
	}
	return r
}

// Register adds or replaces the fetcher for a type.
func (r *Registry) Register(f Fetcher) {
	r.fetchers[f.Type()] = f
}

// Lookup returns the fetcher for a source type. Types without a
// registered fetcher (for example REDDIT without credentials) come back
// as an error the worker surfaces on the source.
func (r *Registry) Lookup(t models.SourceType) (Fetcher, error) {
	f, ok := r.fetchers[t]
	if !ok {
		return nil, fmt.Errorf("no fetcher registered for source type %s", t)
	}
	return f, nil
}
