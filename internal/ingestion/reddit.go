package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/briefmill/briefmill/internal/config"
	"github.com/briefmill/briefmill/internal/enrichment"
	"github.com/briefmill/briefmill/internal/models"
)

const (
	redditTokenURL = "https://www.reddit.com/api/v1/access_token"
	redditAPIBase  = "https://oauth.reddit.com"

	redditListingLimit = 50

	// Tokens are refreshed this long before they actually expire.
	redditTokenBuffer = 60 * time.Second
)

// RedditFetcher pulls the hot listing of a subreddit through the OAuth
// API, keeping only link posts that point at external articles.
type RedditFetcher struct {
	cfg    config.RedditConfig
	client *http.Client
	logger *slog.Logger

	tokenURL string
	apiBase  string

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewRedditFetcher creates a fetcher. A nil client gets a default with
// a 30 second timeout.
func NewRedditFetcher(cfg config.RedditConfig, client *http.Client, logger *slog.Logger) *RedditFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &RedditFetcher{
		cfg:      cfg,
		client:   client,
		logger:   logger,
		tokenURL: redditTokenURL,
		apiBase:  redditAPIBase,
	}
}

// Type reports the source type this fetcher handles.
func (f *RedditFetcher) Type() models.SourceType {
	return models.SourceTypeReddit
}

type redditToken struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	Name       string  `json:"name"`
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Author     string  `json:"author"`
	Domain     string  `json:"domain"`
	IsSelf     bool    `json:"is_self"`
	Stickied   bool    `json:"stickied"`
	Over18     bool    `json:"over_18"`
	CreatedUTC float64 `json:"created_utc"`
}

type redditAbout struct {
	Data struct {
		Title             string `json:"title"`
		PublicDescription string `json:"public_description"`
	} `json:"data"`
}

// Validate resolves the subreddit and probes its about endpoint.
func (f *RedditFetcher) Validate(ctx context.Context, sourceURL string) Validation {
	sub, err := subredditFromURL(sourceURL)
	if err != nil {
		return Validation{FailureReason: err.Error()}
	}

	var about redditAbout
	status, err := f.apiGet(ctx, fmt.Sprintf("%s/r/%s/about", f.apiBase, sub), &about)
	if err != nil {
		if status == http.StatusNotFound {
			return Validation{FailureReason: fmt.Sprintf("subreddit r/%s not found", sub)}
		}
		return Validation{FailureReason: err.Error()}
	}

	title := strings.TrimSpace(about.Data.Title)
	if title == "" {
		title = "r/" + sub
	}
	return Validation{
		OK:                  true,
		DetectedTitle:       title,
		DetectedDescription: strings.TrimSpace(about.Data.PublicDescription),
	}
}

// Fetch pulls the subreddit's hot listing and converts qualifying link
// posts into items. Self, stickied, NSFW and Reddit-media posts are
// dropped, as is anything older than the cutoff.
func (f *RedditFetcher) Fetch(ctx context.Context, caller enrichment.Caller, source models.Source) (*FetchOutcome, error) {
	sub, err := subredditFromURL(source.URL)
	if err != nil {
		return nil, err
	}

	var listing redditListing
	listingURL := fmt.Sprintf("%s/r/%s/hot?limit=%d", f.apiBase, sub, redditListingLimit)
	if _, err := f.apiGet(ctx, listingURL, &listing); err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-time.Duration(f.cfg.MaxAgeHours) * time.Hour)
	if source.LastFetchedAt != nil && source.LastFetchedAt.After(cutoff) {
		cutoff = *source.LastFetchedAt
	}

	outcome := &FetchOutcome{}
	dropped := 0
	for _, child := range listing.Data.Children {
		post := child.Data
		if post.IsSelf || post.Stickied || post.Over18 || isRedditMediaHost(post.Domain) {
			dropped++
			continue
		}
		createdAt := time.Unix(int64(post.CreatedUTC), 0)
		if createdAt.Before(cutoff) {
			continue
		}
		outcome.Items = append(outcome.Items, models.Item{
			GUID:        "reddit:" + post.Name,
			Title:       strings.TrimSpace(post.Title),
			Link:        strings.TrimSpace(post.URL),
			Author:      redditAuthor(post.Author),
			PublishedAt: &createdAt,
		})
	}

	f.logger.Debug("subreddit fetched",
		"subreddit", sub,
		"posts", len(listing.Data.Children),
		"items", len(outcome.Items),
		"filtered", dropped,
		"trace", caller.Trace)
	return outcome, nil
}

// apiGet performs an authenticated GET and decodes the JSON body into
// out. The returned status is set whenever a response arrived.
func (f *RedditFetcher) apiGet(ctx context.Context, rawURL string, out any) (int, error) {
	token, err := f.accessToken(ctx)
	if err != nil {
		return 0, fmt.Errorf("reddit auth: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("reddit request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, fmt.Errorf("reddit API error: %d - %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode reddit response: %w", err)
	}
	return resp.StatusCode, nil
}

// accessToken returns a cached app-only token, requesting a fresh one
// when the cached token is missing or close to expiry.
func (f *RedditFetcher) accessToken(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.token != "" && time.Now().Before(f.tokenExpiry.Add(-redditTokenBuffer)) {
		return f.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.SetBasicAuth(f.cfg.ClientID, f.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("reddit token error: %d - %s", resp.StatusCode, string(body))
	}

	var token redditToken
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("reddit token response has no access token")
	}

	f.token = token.AccessToken
	f.tokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	f.logger.Debug("reddit token refreshed", "expires_in", token.ExpiresIn)
	return f.token, nil
}

// subredditFromURL accepts full reddit URLs, "r/name" shorthand and
// bare subreddit names.
func subredditFromURL(raw string) (string, error) {
	trimmed := strings.Trim(strings.TrimSpace(raw), "/")
	if trimmed == "" {
		return "", fmt.Errorf("empty subreddit URL")
	}
	if u, err := url.Parse(trimmed); err == nil && u.Host != "" {
		trimmed = strings.Trim(u.Path, "/")
	}
	trimmed = strings.TrimPrefix(trimmed, "r/")
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		trimmed = trimmed[:i]
	}
	if trimmed == "" {
		return "", fmt.Errorf("cannot determine subreddit from %q", raw)
	}
	return trimmed, nil
}

// isRedditMediaHost reports whether a post's domain is one of the
// Reddit-owned media hosts whose posts carry no article to read.
func isRedditMediaHost(domain string) bool {
	domain = strings.ToLower(strings.TrimSpace(domain))
	switch domain {
	case "i.redd.it", "v.redd.it", "reddit.com", "imgur.com":
		return true
	}
	return strings.HasSuffix(domain, ".reddit.com") || strings.HasSuffix(domain, ".imgur.com")
}

func redditAuthor(author string) string {
	author = strings.TrimSpace(author)
	if author == "" {
		return ""
	}
	return "u/" + author
}
