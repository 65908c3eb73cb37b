package extract

import (
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"bylinewatch/internal/article"
)

// FeedExtractor extracts the top article from an RSS 2.0 or Atom document.
// The first entry in document order is the top item, regardless of any
// timestamps among entries.
type FeedExtractor struct {
	parser *gofeed.Parser
}

// NewFeed creates a feed extractor.
func NewFeed() *FeedExtractor {
	return &FeedExtractor{parser: gofeed.NewParser()}
}

func (e *FeedExtractor) Extract(body []byte) (*article.Article, error) {
	feed, err := e.parser.ParseString(string(body))
	if err != nil || feed == nil || len(feed.Items) == 0 {
		// A structurally unusable document is "no item", not a failure.
		return nil, nil
	}

	item := feed.Items[0]

	title := normalizeText(item.Title)
	link := strings.TrimSpace(item.Link)
	if title == "" || link == "" {
		return nil, nil
	}

	return &article.Article{
		Title:         title,
		URL:           link,
		PublishedTime: entryPublishedTime(item),
	}, nil
}

// entryPublishedTime prefers the published field over updated, falling back
// to the raw strings when gofeed could not parse them. Empty when the entry
// carries no timestamp at all.
func entryPublishedTime(item *gofeed.Item) string {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC().Format(time.RFC3339)
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC().Format(time.RFC3339)
	}
	if s := strings.TrimSpace(item.Published); s != "" {
		return s
	}
	return strings.TrimSpace(item.Updated)
}
