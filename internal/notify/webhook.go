// Package notify delivers new-article notifications to an incoming-webhook
// endpoint (Discord-compatible payload). Delivery failures are reported to
// the caller for logging only; they never influence detection outcomes or
// the cursor that gets persisted.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"bylinewatch/internal/article"
)

const sendTimeout = 10 * time.Second

// Webhook posts notifications to a single webhook URL. An empty URL means
// notifications are disabled; Send becomes a no-op.
type Webhook struct {
	url        string
	httpClient *http.Client
}

// New creates a webhook notifier. url may be empty to disable delivery.
func New(url string) *Webhook {
	return &Webhook{
		url:        url,
		httpClient: &http.Client{Timeout: sendTimeout},
	}
}

// Enabled reports whether a webhook URL is configured.
func (w *Webhook) Enabled() bool {
	return w != nil && w.url != ""
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embedFooter struct {
	Text string `json:"text"`
}

type embed struct {
	Title  string       `json:"title"`
	Color  int          `json:"color"`
	Fields []embedField `json:"fields"`
	Footer *embedFooter `json:"footer,omitempty"`
}

type message struct {
	Content string  `json:"content"`
	Embeds  []embed `json:"embeds"`
}

// Send posts a new-article notification. previous may be nil on sources
// that produced their first item after the baseline was lost.
func (w *Webhook) Send(ctx context.Context, runID, sourceID string, current article.Article, previous *article.Article) error {
	if !w.Enabled() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	payload, err := json.Marshal(buildMessage(runID, sourceID, current, previous))
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Discord answers 204 on success; accept any 2xx for compatible endpoints.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: HTTP %d", resp.StatusCode)
	}
	return nil
}

func buildMessage(runID, sourceID string, current article.Article, previous *article.Article) message {
	fields := []embedField{
		{Name: "Title", Value: current.Title},
		{Name: "URL", Value: fmt.Sprintf("[View Article](%s)", current.URL)},
	}
	if current.PublishedTime != "" {
		fields = append(fields, embedField{Name: "Published", Value: current.PublishedTime})
	}

	e := embed{
		Title:  fmt.Sprintf("New Article: %s", sourceID),
		Color:  0x5865F2,
		Fields: fields,
	}

	footer := fmt.Sprintf("run %s", runID)
	if previous != nil {
		footer = fmt.Sprintf("Previous: %s · run %s", previous.Title, runID)
	}
	e.Footer = &embedFooter{Text: footer}

	return message{
		Content: fmt.Sprintf("New article from %s", sourceID),
		Embeds:  []embed{e},
	}
}
