// Package citations assembles the per-article citation lists that back every
// claim in the newsletter.
package citations

import (
	"fmt"
	"net/url"
	"strings"
)

// Query parameters that identify content rather than track it. Everything
// else is dropped during normalization.
var keepParams = map[string]bool{
	"id":         true,
	"post_id":    true,
	"article_id": true,
	"p":          true,
	"postid":     true,
}

// NormalizeURL canonicalizes a citation URL: scheme and host lowercased, the
// trailing slash removed, fragment dropped, and all query parameters except
// the content-identifying ones stripped. Normalizing twice is a no-op.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("failed to parse URL %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("URL %q has no scheme or host", raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")

	query := u.Query()
	kept := url.Values{}
	for key, values := range query {
		if keepParams[strings.ToLower(key)] {
			kept[strings.ToLower(key)] = values
		}
	}
	u.RawQuery = kept.Encode()
	return u.String(), nil
}
