// Package monitor implements the change-detection engine: a conditional
// fetch, extraction of the top article, and comparison against the prior
// cursor. One check produces one outcome and the cursor to persist; a
// failing source never affects any other source.
package monitor

import (
	"context"
	"time"

	"bylinewatch/internal/article"
	"bylinewatch/internal/extract"
	"bylinewatch/internal/fetch"
)

// Source is one configured location to watch.
type Source struct {
	ID  string
	URL string
}

// Status is the result class of a single check.
type Status int

const (
	// StatusBaseline is the first successful observation for a source.
	// It is never reported as a new item.
	StatusBaseline Status = iota
	// StatusUnchanged means the top article is the same as last time,
	// either confirmed by the HTTP cache or by URL equality.
	StatusUnchanged
	// StatusNewItem means the top article's URL differs from the prior one.
	StatusNewItem
	// StatusNoItemFound means the document was fetched but no article could
	// be extracted. This is a normal outcome, not a failure.
	StatusNoItemFound
	// StatusCheckFailed means the fetch (or parse) failed. The prior article
	// and caching tokens survive untouched.
	StatusCheckFailed
)

func (s Status) String() string {
	switch s {
	case StatusBaseline:
		return "baseline"
	case StatusUnchanged:
		return "unchanged"
	case StatusNewItem:
		return "new-item"
	case StatusNoItemFound:
		return "no-item-found"
	case StatusCheckFailed:
		return "check-failed"
	default:
		return "unknown"
	}
}

// Reasons attached to StatusUnchanged outcomes.
const (
	ReasonCache   = "cache"    // server answered 304 Not Modified
	ReasonSameURL = "same-url" // extracted article has the prior URL
)

// Outcome describes what a check concluded.
type Outcome struct {
	Status   Status
	Reason   string           // set for StatusUnchanged
	Previous *article.Article // prior article, for StatusNewItem and same-url
	Current  *article.Article // extracted article, when one was found
	Detail   string           // failure description for StatusCheckFailed
}

// Fetcher performs the conditional retrieval. Satisfied by *fetch.Client.
type Fetcher interface {
	Fetch(ctx context.Context, url, etag, lastModified string) (fetch.Result, error)
}

// Detector runs checks against sources.
type Detector struct {
	fetcher Fetcher

	// Seams for tests.
	now          func() time.Time
	extractorFor func(string) (extract.Extractor, error)
}

// New creates a detector using the given fetcher.
func New(f Fetcher) *Detector {
	return &Detector{
		fetcher:      f,
		now:          time.Now,
		extractorFor: extract.ForURL,
	}
}

// Check fetches the source, extracts its top article and compares it with
// the prior cursor. It returns the outcome together with the cursor to
// persist. The returned cursor is always fully populated; the caller saves
// it regardless of the outcome.
func (d *Detector) Check(ctx context.Context, src Source, prior article.Cursor) (Outcome, article.Cursor) {
	next := prior
	next.SourceID = src.ID
	next.LastCheckedAt = d.now().UTC()

	extractor, err := d.extractorFor(src.URL)
	if err != nil {
		return d.failed(next, "select extractor: "+err.Error())
	}

	res, err := d.fetcher.Fetch(ctx, src.URL, prior.ETag, prior.LastModified)
	if err != nil {
		return d.failed(next, err.Error())
	}

	if res.NotModified {
		// Tokens stay as they were; the server confirmed no change.
		next.ErrorCount = 0
		next.LastError = ""
		return Outcome{Status: StatusUnchanged, Reason: ReasonCache, Previous: prior.LastArticle}, next
	}

	next.ETag = res.ETag
	next.LastModified = res.LastModified

	found, err := extractor.Extract(res.Body)
	if err != nil {
		return d.failed(next, "extract: "+err.Error())
	}

	if found == nil {
		next.ErrorCount = 0
		next.LastError = ""
		return Outcome{Status: StatusNoItemFound, Previous: prior.LastArticle}, next
	}

	current := *found
	next.LastArticle = &current
	next.ErrorCount = 0
	next.LastError = ""

	switch {
	case prior.LastArticle == nil:
		return Outcome{Status: StatusBaseline, Current: &current}, next

	case prior.LastArticle.Equal(current):
		return Outcome{
			Status:   StatusUnchanged,
			Reason:   ReasonSameURL,
			Previous: prior.LastArticle,
			Current:  &current,
		}, next

	default:
		return Outcome{
			Status:   StatusNewItem,
			Previous: prior.LastArticle,
			Current:  &current,
		}, next
	}
}

// failed records one more consecutive failure. LastArticle and the caching
// tokens are preserved so the next run can still attempt a conditional
// request.
func (d *Detector) failed(next article.Cursor, detail string) (Outcome, article.Cursor) {
	next.ErrorCount++
	next.LastError = detail
	return Outcome{Status: StatusCheckFailed, Detail: detail, Previous: next.LastArticle}, next
}
