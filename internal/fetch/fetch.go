// Package fetch retrieves source documents over HTTP with conditional
// request semantics. A fetch makes exactly one attempt, honors the caching
// tokens from the previous run, and pauses briefly before returning so that
// back-to-back checks stay polite to the remote server.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultTimeout bounds a single request.
	DefaultTimeout = 15 * time.Second
	// DefaultDelay is the politeness pause after every completed request.
	DefaultDelay = 2 * time.Second

	defaultUserAgent = "bylinewatch/1.0 (article-change-detection; +https://github.com/bylinewatch)"
	maxBodyBytes     = 10 << 20 // 10 MiB cap on fetched documents
)

// sleepFunc is the function used for the inter-request delay.
// It defaults to time.Sleep but can be overridden in tests.
var sleepFunc = time.Sleep

// ErrorKind classifies a fetch failure.
type ErrorKind int

const (
	// Transient failures (timeouts, connection errors, 5xx) are expected to
	// resolve on a later run.
	Transient ErrorKind = iota
	// Permanent failures (4xx other than 304) will not resolve by retrying.
	Permanent
)

// Error is a classified fetch failure.
type Error struct {
	Kind   ErrorKind
	Status int // HTTP status when the server answered, 0 otherwise
	Detail string
}

func (e *Error) Error() string {
	return e.Detail
}

// Result is the outcome of a successful fetch.
type Result struct {
	// NotModified is true when the server answered 304; Body and the new
	// tokens are empty and the caller keeps its previous tokens.
	NotModified bool

	Body         []byte
	ETag         string // ETag header of the response, if any
	LastModified string // Last-Modified header of the response, if any
}

// Options configures a Client. A zero Timeout or Delay falls back to the
// default; a negative Delay disables the politeness pause entirely.
type Options struct {
	Timeout   time.Duration
	Delay     time.Duration
	UserAgent string
}

// Client performs conditional GETs. It holds no per-source state; caching
// tokens are passed explicitly on every call.
type Client struct {
	httpClient *http.Client
	delay      time.Duration
	userAgent  string
}

// NewClient creates a fetch client with the given options.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	delay := opts.Delay
	if delay < 0 {
		delay = 0
	} else if delay == 0 {
		delay = DefaultDelay
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		delay:      delay,
		userAgent:  ua,
	}
}

// Fetch retrieves url, replaying etag and lastModified as conditional
// headers when present. Exactly one attempt is made; no retry.
func (c *Client) Fetch(ctx context.Context, url, etag, lastModified string) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, &Error{Kind: Permanent, Detail: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/rss+xml,application/atom+xml,application/xml;q=0.9,*/*;q=0.8")
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastModified != "" {
		req.Header.Set("If-Modified-Since", lastModified)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		defer c.pause()
		return Result{}, c.classifyTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()
	defer c.pause()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return Result{NotModified: true}, nil

	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return Result{}, &Error{Kind: Transient, Detail: fmt.Sprintf("read body: %v", err)}
		}
		return Result{
			Body:         body,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}, nil

	case resp.StatusCode >= 500:
		return Result{}, &Error{
			Kind:   Transient,
			Status: resp.StatusCode,
			Detail: fmt.Sprintf("HTTP %d", resp.StatusCode),
		}

	default:
		return Result{}, &Error{
			Kind:   Permanent,
			Status: resp.StatusCode,
			Detail: fmt.Sprintf("HTTP %d", resp.StatusCode),
		}
	}
}

func (c *Client) pause() {
	if c.delay > 0 {
		sleepFunc(c.delay)
	}
}

func (c *Client) classifyTransportError(err error) *Error {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: Transient, Detail: fmt.Sprintf("request timeout after %s", c.httpClient.Timeout)}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: Transient, Detail: "request timeout"}
	}
	// Connection refused, DNS failures and the like are transient.
	return &Error{Kind: Transient, Detail: fmt.Sprintf("request failed: %v", err)}
}
