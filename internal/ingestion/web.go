package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/briefmill/briefmill/internal/enrichment"
	"github.com/briefmill/briefmill/internal/models"
	"github.com/briefmill/briefmill/internal/urlutil"
)

// WebFetcher turns an arbitrary web page into items by extracting the
// page as markdown and asking the enricher to pull out the records the
// source's extraction prompt describes.
type WebFetcher struct {
	body     *enrichment.WebBodyFetcher
	client   *http.Client
	enricher enrichment.Enricher
	maxItems int
	logger   *slog.Logger
}

// NewWebFetcher creates a fetcher. A nil client gets a default with a
// 30 second timeout, shared between page downloads and validation.
func NewWebFetcher(client *http.Client, enricher enrichment.Enricher, maxItems int, logger *slog.Logger) *WebFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &WebFetcher{
		body:     enrichment.NewWebBodyFetcher(client, logger),
		client:   client,
		enricher: enricher,
		maxItems: maxItems,
		logger:   logger,
	}
}

// Type reports the source type this fetcher handles.
func (f *WebFetcher) Type() models.SourceType {
	return models.SourceTypeWeb
}

// Validate fetches the page and reports its <title> and meta
// description when it parses as HTML.
func (f *WebFetcher) Validate(ctx context.Context, pageURL string) Validation {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return Validation{FailureReason: fmt.Sprintf("invalid URL: %v", err)}
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; briefmill/1.0)")

	resp, err := f.client.Do(req)
	if err != nil {
		return Validation{FailureReason: fmt.Sprintf("fetch failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Validation{FailureReason: fmt.Sprintf("unexpected status code: %d", resp.StatusCode)}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return Validation{FailureReason: "not a parseable HTML page"}
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	description := strings.TrimSpace(doc.Find(`meta[name="description"]`).AttrOr("content", ""))
	if description == "" {
		description = strings.TrimSpace(doc.Find(`meta[property="og:description"]`).AttrOr("content", ""))
	}

	return Validation{
		OK:                  true,
		DetectedTitle:       title,
		DetectedDescription: description,
	}
}

// Fetch downloads the page, extracts it as markdown and hands the
// markdown plus the source's extraction prompt to the enricher. Records
// without a resolvable link are discarded; the normalized link doubles
// as the guid so re-extracted stories dedup naturally.
func (f *WebFetcher) Fetch(ctx context.Context, caller enrichment.Caller, source models.Source) (*FetchOutcome, error) {
	base, err := url.Parse(source.URL)
	if err != nil {
		return nil, fmt.Errorf("parse source URL: %w", err)
	}

	page, err := f.body.Fetch(ctx, caller, source.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}

	records, err := f.enricher.ExtractFromWeb(ctx, caller, page, source.ExtractionPrompt, f.maxItems)
	if err != nil {
		return nil, fmt.Errorf("extract items: %w", err)
	}

	now := time.Now()
	outcome := &FetchOutcome{}
	dropped := 0
	for _, rec := range records {
		link := urlutil.ResolveLink(base, rec.Link)
		if link == "" {
			dropped++
			continue
		}
		publishedAt := now
		outcome.Items = append(outcome.Items, models.Item{
			GUID:        urlutil.Normalize(link),
			Title:       strings.TrimSpace(rec.Title),
			Link:        link,
			PublishedAt: &publishedAt,
			RawContent:  rec.Content,
		})
	}

	f.logger.Debug("web page extracted",
		"url", source.URL,
		"records", len(records),
		"items", len(outcome.Items),
		"dropped", dropped,
		"trace", caller.Trace)
	return outcome, nil
}
