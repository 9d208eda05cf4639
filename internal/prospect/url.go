package prospect

import (
	"net/url"
	"strings"
)

// DefaultBase resolves relative profile links scraped from result pages.
const DefaultBase = "https://www.linkedin.com"

// NormalizeURL returns the natural key of a profile link: absolute, without
// query string or fragment, without trailing slash. It is idempotent.
func NormalizeURL(raw, base string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	if strings.HasPrefix(raw, "/") {
		if base == "" {
			base = DefaultBase
		}
		raw = strings.TrimRight(base, "/") + raw
	}
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		u.Host = strings.ToLower(u.Host)
		u.RawQuery = ""
		u.Fragment = ""
		u.RawFragment = ""
		raw = u.String()
	}
	return strings.TrimRight(raw, "/")
}

// IsProfileURL reports whether a link points at a member profile.
func IsProfileURL(u string) bool {
	return strings.Contains(u, "/in/")
}
