package enrichment

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "codeberg.org/readeck/go-readability/v2"
	"github.com/PuerkitoBio/goquery"

	"github.com/briefmill/briefmill/internal/markdown"
)

const (
	webBodyTimeout     = 5 * time.Second
	webBodyMaxDownload = 5 << 20 // page download cap
	webBodyMinChars    = 200     // shorter extractions count as failed
	webBodyMaxChars    = 100000

	webBodyUserAgent = "Mozilla/5.0 (compatible; briefmill/1.0)"
)

// WebBodyFetcher downloads an item's linked page and extracts the
// readable article as markdown. Failures are expected and non-fatal:
// the enrichment proceeds on feed content alone.
type WebBodyFetcher struct {
	client *http.Client
	conv   *markdown.Converter
	logger *slog.Logger

	// AllowPrivateHosts disables the private-address guard. Tests
	// only; production fetches must never reach internal networks.
	AllowPrivateHosts bool
}

// NewWebBodyFetcher creates a fetcher. A nil client gets a default with
// a short timeout; link fetches are an optimization, not worth waiting on.
func NewWebBodyFetcher(client *http.Client, logger *slog.Logger) *WebBodyFetcher {
	if client == nil {
		client = &http.Client{Timeout: webBodyTimeout}
	}
	return &WebBodyFetcher{
		client: client,
		conv:   markdown.NewConverter(webBodyMaxChars),
		logger: logger,
	}
}

// Fetch downloads the link and returns the readable article as markdown.
func (f *WebBodyFetcher) Fetch(ctx context.Context, caller Caller, link string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return "", fmt.Errorf("parse link: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("link is not fetchable: %q", link)
	}
	if !f.AllowPrivateHosts {
		if err := checkPublicHost(ctx, u.Hostname()); err != nil {
			return "", err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", webBodyUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, webBodyMaxDownload))
	if err != nil {
		return "", fmt.Errorf("read page body: %w", err)
	}

	text, err := f.extractReadable(string(body), u)
	if err != nil {
		return "", err
	}

	f.logger.Debug("fetched web body",
		"url", u.String(),
		"chars", len(text),
		"trace", caller.Trace)
	return text, nil
}

// extractReadable runs readability over a pre-cleaned document and
// renders the article as markdown, falling back to block-element text
// when readability finds too little.
func (f *WebBodyFetcher) extractReadable(raw string, u *url.URL) (string, error) {
	cleaned := raw
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw)); err == nil {
		doc.Find("script, style, noscript, nav, header, footer, aside, iframe").Remove()
		if out, err := doc.Html(); err == nil && out != "" {
			cleaned = out
		}
	}

	article, err := readability.FromReader(strings.NewReader(cleaned), u)
	if err == nil {
		var buf strings.Builder
		if err := article.RenderHTML(&buf); err == nil {
			if md, err := f.conv.FromHTML(buf.String()); err == nil && len(md) >= webBodyMinChars {
				return md, nil
			}
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}

	var paragraphs []string
	doc.Find("h1, h2, h3, p, li").Each(func(i int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	text := strings.Join(paragraphs, "\n\n")
	if len(text) < webBodyMinChars {
		return "", fmt.Errorf("no readable content found")
	}
	return markdown.Truncate(text, webBodyMaxChars), nil
}

func checkPublicHost(ctx context.Context, host string) error {
	if host == "" {
		return fmt.Errorf("link has no host")
	}
	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("refusing to fetch private host %q", host)
	}

	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return fmt.Errorf("refusing to fetch private host %q", host)
		}
		return nil
	}

	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return fmt.Errorf("resolve host %q: %w", host, err)
	}
	for _, addr := range addrs {
		if isPrivateIP(addr.IP) {
			return fmt.Errorf("refusing to fetch private host %q", host)
		}
	}
	return nil
}

func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}
