// Package article defines the entities tracked across check runs: the top
// article seen on a source, and the per-source cursor that carries it between
// runs together with HTTP caching tokens.
package article

import (
	"strings"
	"time"
)

// Article is the normalized "most recent item" extracted from a source.
type Article struct {
	Title string // display title, whitespace-normalized
	URL   string // absolute canonical URL, sole identity key
	// PublishedTime is an RFC 3339 timestamp string, empty when the source
	// does not expose one. It is never inferred.
	PublishedTime string
}

// Equal reports whether two articles are the same item. Identity is the URL
// alone: a retitled article at the same URL is not a new item.
func (a Article) Equal(other Article) bool {
	return a.URL == other.URL
}

// Valid reports whether the article carries the required fields.
func (a Article) Valid() bool {
	return strings.TrimSpace(a.Title) != "" && strings.TrimSpace(a.URL) != ""
}

// Cursor is the persisted per-source state. It is loaded before a check,
// mutated exactly once by the change detector, and saved back whole.
type Cursor struct {
	SourceID      string
	LastArticle   *Article // nil until the first successful extraction
	LastCheckedAt time.Time
	ETag          string // opaque caching token from the prior fetch
	LastModified  string // Last-Modified token from the prior fetch
	ErrorCount    int    // consecutive failures; reset to 0 on any success
	LastError     string // last failure detail; cleared on success
}

// NewCursor returns a fresh empty cursor for a source never checked before.
func NewCursor(sourceID string) Cursor {
	return Cursor{SourceID: sourceID}
}
