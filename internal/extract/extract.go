// Package extract turns a fetched document body into at most one article.
// Two extractor variants exist, selected by the shape of the source URL:
// a feed extractor for RSS/Atom documents and an HTML listing extractor that
// tries a fixed sequence of markup heuristics. Extraction is pure: no I/O,
// and "nothing found" is a nil article, not an error.
package extract

import (
	"net/url"
	"strings"

	"bylinewatch/internal/article"
)

// Extractor produces the top article from a document body, or nil when the
// document contains no recognizable article.
type Extractor interface {
	Extract(body []byte) (*article.Article, error)
}

// ForURL selects the extractor variant for a source URL: feed-like URLs get
// the feed extractor, everything else the HTML listing extractor bound to
// the URL as base for resolving relative links.
func ForURL(sourceURL string) (Extractor, error) {
	if IsFeedURL(sourceURL) {
		return NewFeed(), nil
	}
	return NewHTML(sourceURL)
}

// IsFeedURL reports whether a source URL looks like an RSS/Atom feed rather
// than an HTML listing page.
func IsFeedURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	path := strings.ToLower(u.Path)

	if strings.Contains(path, "/rss/") {
		return true
	}
	for _, suffix := range []string{".rss", ".xml", ".atom", "/feed", "/feed/"} {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

// normalizeText collapses runs of whitespace into single spaces.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
