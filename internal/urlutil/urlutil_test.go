package urlutil

import (
	"net/url"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "lowercases host",
			raw:  "https://Example.COM/Articles/One",
			want: "https://example.com/Articles/One",
		},
		{
			name: "strips trailing slash",
			raw:  "https://example.com/articles/",
			want: "https://example.com/articles",
		},
		{
			name: "keeps root slash",
			raw:  "https://example.com/",
			want: "https://example.com/",
		},
		{
			name: "drops utm parameters",
			raw:  "https://example.com/a?utm_source=mail&utm_medium=x&id=7",
			want: "https://example.com/a?id=7",
		},
		{
			name: "drops known trackers",
			raw:  "https://example.com/a?fbclid=xyz&gclid=abc&ref=hn&page=2",
			want: "https://example.com/a?page=2",
		},
		{
			name: "drops mailchimp trackers",
			raw:  "https://example.com/a?mc_cid=1&mc_eid=2&msclkid=3",
			want: "https://example.com/a",
		},
		{
			name: "preserves fragment",
			raw:  "https://example.com/docs?utm_campaign=n#section-2",
			want: "https://example.com/docs#section-2",
		},
		{
			name: "preserves other parameters",
			raw:  "https://example.com/search?q=go&sort=new",
			want: "https://example.com/search?q=go&sort=new",
		},
		{
			name: "trims whitespace",
			raw:  "  https://example.com/a  ",
			want: "https://example.com/a",
		},
		{
			name: "unparseable input returned trimmed",
			raw:  " ht tp://bad url ",
			want: "ht tp://bad url",
		},
		{
			name: "empty input",
			raw:  "   ",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.raw); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeIsStable(t *testing.T) {
	raw := "https://Example.com/a/?utm_source=x&b=2&a=1"
	first := Normalize(raw)
	second := Normalize(first)
	if first != second {
		t.Errorf("Normalize not idempotent: %q then %q", first, second)
	}
}

func TestResolveLink(t *testing.T) {
	base, err := url.Parse("https://news.example.com/section/index.html")
	if err != nil {
		t.Fatalf("url.Parse() error = %v", err)
	}

	tests := []struct {
		name string
		href string
		want string
	}{
		{
			name: "absolute stays as-is",
			href: "https://other.example.org/story",
			want: "https://other.example.org/story",
		},
		{
			name: "protocol-relative inherits scheme",
			href: "//cdn.example.com/story",
			want: "https://cdn.example.com/story",
		},
		{
			name: "root-relative resolves against host",
			href: "/2026/story",
			want: "https://news.example.com/2026/story",
		},
		{
			name: "relative resolves against directory",
			href: "story.html",
			want: "https://news.example.com/section/story.html",
		},
		{
			name: "empty href",
			href: "   ",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveLink(base, tt.href); got != tt.want {
				t.Errorf("ResolveLink(%q) = %q, want %q", tt.href, got, tt.want)
			}
		})
	}
}
