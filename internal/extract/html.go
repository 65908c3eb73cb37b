package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"bylinewatch/internal/article"
)

// minTitleLen filters out navigation labels and section links that match the
// article URL pattern but are not headlines.
const minTitleLen = 10

// yearPathRe matches hrefs with a 4-digit-year path segment, the common
// shape of dated article URLs (/2025/08/30/...).
var yearPathRe = regexp.MustCompile(`/20\d{2}/`)

// HTMLExtractor extracts the top article from an author/listing page by
// trying strategies in fixed priority order: ordered lists first, generic
// containers second, any matching anchor last. The first strategy that
// yields an article wins.
type HTMLExtractor struct {
	base *url.URL
}

// NewHTML creates an HTML listing extractor. sourceURL is used as the base
// for resolving relative article links.
func NewHTML(sourceURL string) (*HTMLExtractor, error) {
	base, err := url.Parse(sourceURL)
	if err != nil {
		return nil, fmt.Errorf("parse source url: %w", err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("source url %q is not absolute", sourceURL)
	}
	return &HTMLExtractor{base: base}, nil
}

func (e *HTMLExtractor) Extract(body []byte) (*article.Article, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	strategies := []func(*goquery.Document) *article.Article{
		e.fromOrderedLists,
		e.fromContainers,
		e.fromAnyAnchor,
	}
	for _, strategy := range strategies {
		if a := strategy(doc); a != nil {
			return a, nil
		}
	}
	return nil, nil
}

// fromOrderedLists looks for <ol> article listings. Within each list the
// first anchor with a dated href wins; the title comes from a heading inside
// the anchor and the timestamp from a <time> element in the enclosing <li>.
func (e *HTMLExtractor) fromOrderedLists(doc *goquery.Document) *article.Article {
	var found *article.Article

	doc.Find("ol").EachWithBreak(func(_ int, list *goquery.Selection) bool {
		list.Find("a[href]").EachWithBreak(func(_ int, link *goquery.Selection) bool {
			href := link.AttrOr("href", "")
			if !yearPathRe.MatchString(href) {
				return true
			}

			title := normalizeText(link.Find("h1, h2, h3, h4").First().Text())
			if title == "" {
				return true
			}

			absURL := e.resolve(href)
			if absURL == "" {
				return true
			}

			published := link.Closest("li").Find("time").First().AttrOr("datetime", "")

			found = &article.Article{Title: title, URL: absURL, PublishedTime: published}
			return false
		})
		return found == nil
	})

	return found
}

// fromContainers applies the same extraction over generic block containers
// when no ordered list qualifies.
func (e *HTMLExtractor) fromContainers(doc *goquery.Document) *article.Article {
	var found *article.Article

	doc.Find("div, section, article").EachWithBreak(func(_ int, container *goquery.Selection) bool {
		container.Find("a[href]").EachWithBreak(func(_ int, link *goquery.Selection) bool {
			href := link.AttrOr("href", "")
			if !yearPathRe.MatchString(href) {
				return true
			}

			title := normalizeText(link.Find("h1, h2, h3, h4, h5").First().Text())
			if len(title) <= minTitleLen {
				return true
			}

			absURL := e.resolve(href)
			if absURL == "" {
				return true
			}

			published := container.Find("time").First().AttrOr("datetime", "")

			found = &article.Article{Title: title, URL: absURL, PublishedTime: published}
			return false
		})
		return found == nil
	})

	return found
}

// fromAnyAnchor is the last resort: any dated anchor anywhere in the
// document. The title comes from the anchor text or an ancestor heading.
// The timestamp is always omitted here, never guessed.
func (e *HTMLExtractor) fromAnyAnchor(doc *goquery.Document) *article.Article {
	var found *article.Article

	doc.Find("a[href]").EachWithBreak(func(_ int, link *goquery.Selection) bool {
		href := link.AttrOr("href", "")
		if !yearPathRe.MatchString(href) {
			return true
		}

		title := normalizeText(link.Text())
		if len(title) <= minTitleLen {
			parent := link.Closest("li, div, article")
			title = normalizeText(parent.Find("h1, h2, h3, h4, h5").First().Text())
		}
		if len(title) <= minTitleLen {
			return true
		}

		absURL := e.resolve(href)
		if absURL == "" {
			return true
		}

		found = &article.Article{Title: title, URL: absURL}
		return false
	})

	return found
}

// resolve makes href absolute against the source URL. Unparseable and
// non-article schemes yield "".
func (e *HTMLExtractor) resolve(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := e.base.ResolveReference(u)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	return abs.String()
}
