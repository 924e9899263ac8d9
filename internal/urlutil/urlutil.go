// Package urlutil canonicalizes links so the same article discovered
// twice resolves to the same item identity.
package urlutil

import (
	"net/url"
	"strings"
)

var trackingParams = map[string]bool{
	"ref":     true,
	"fbclid":  true,
	"gclid":   true,
	"msclkid": true,
	"mc_cid":  true,
	"mc_eid":  true,
}

// Normalize canonicalizes a URL: lowercases scheme and host, strips a
// trailing slash (except for the bare root path), and removes tracking
// query parameters. Remaining parameters and the fragment survive. An
// unparseable input comes back trimmed but otherwise untouched.
func Normalize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return trimmed
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if len(u.Path) > 1 {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			if isTrackingParam(key) {
				q.Del(key)
			}
		}
		u.RawQuery = q.Encode()
	}

	return u.String()
}

// ResolveLink resolves href against base, handling absolute,
// protocol-relative, and relative references. It returns "" when href
// is empty or unparseable.
func ResolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

func isTrackingParam(key string) bool {
	lower := strings.ToLower(key)
	return trackingParams[lower] || strings.HasPrefix(lower, "utm_")
}
