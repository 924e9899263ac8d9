package enrichment

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func articlePage() string {
	var b strings.Builder
	b.WriteString("<html><head><title>Test Article</title><script>var tracking=1;</script></head><body>")
	b.WriteString("<nav>Home | About</nav><article><h1>Test Article</h1>")
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&b, "<p>Paragraph %d of the article body, long enough that the readability extraction treats this page as real content worth keeping.</p>", i)
	}
	b.WriteString("</article><footer>Copyright</footer></body></html>")
	return b.String()
}

func TestWebBodyFetcherExtractsArticle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, articlePage())
	}))
	defer server.Close()

	fetcher := NewWebBodyFetcher(server.Client(), testLogger())
	fetcher.AllowPrivateHosts = true

	text, err := fetcher.Fetch(context.Background(), Caller{UserID: "u1"}, server.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !strings.Contains(text, "article body") {
		t.Errorf("Fetch() = %q, want article text extracted", text)
	}
	if strings.Contains(text, "tracking") {
		t.Errorf("Fetch() = %q, want script content removed", text)
	}
}

func TestWebBodyFetcherBlocksPrivateHosts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, articlePage())
	}))
	defer server.Close()

	fetcher := NewWebBodyFetcher(server.Client(), testLogger())
	// AllowPrivateHosts deliberately left false.

	_, err := fetcher.Fetch(context.Background(), Caller{}, server.URL)
	if err == nil {
		t.Fatal("Fetch() error = nil, want private host refused")
	}
	if !strings.Contains(err.Error(), "private") {
		t.Errorf("Fetch() error = %v, want private host refusal", err)
	}
}

func TestWebBodyFetcherRejectsNonHTTPLinks(t *testing.T) {
	fetcher := NewWebBodyFetcher(nil, testLogger())
	fetcher.AllowPrivateHosts = true

	for _, link := range []string{"ftp://example.com/file", "mailto:a@example.com", "not a url at all"} {
		if _, err := fetcher.Fetch(context.Background(), Caller{}, link); err == nil {
			t.Errorf("Fetch(%q) error = nil, want error", link)
		}
	}
}

func TestWebBodyFetcherRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	fetcher := NewWebBodyFetcher(server.Client(), testLogger())
	fetcher.AllowPrivateHosts = true

	_, err := fetcher.Fetch(context.Background(), Caller{}, server.URL)
	if err == nil {
		t.Fatal("Fetch() error = nil, want status error")
	}
	if !strings.Contains(err.Error(), "unexpected status code") {
		t.Errorf("Fetch() error = %v, want status code error", err)
	}
}

func TestWebBodyFetcherRejectsThinPages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body><p>tiny</p></body></html>")
	}))
	defer server.Close()

	fetcher := NewWebBodyFetcher(server.Client(), testLogger())
	fetcher.AllowPrivateHosts = true

	if _, err := fetcher.Fetch(context.Background(), Caller{}, server.URL); err == nil {
		t.Fatal("Fetch() error = nil, want error for page with no real content")
	}
}
