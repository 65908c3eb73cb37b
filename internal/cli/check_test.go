package cli

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"bylinewatch/internal/config"
	"bylinewatch/internal/fetch"
	"bylinewatch/internal/monitor"
	"bylinewatch/internal/notify"
	"bylinewatch/internal/store"
)

func feedBody(link string) string {
	return fmt.Sprintf(`<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Politics</title>
    <item>
      <title>A Sufficiently Long Headline</title>
      <link>%s</link>
      <pubDate>Sat, 30 Aug 2025 10:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`, link)
}

func testConfig(t *testing.T, sourceURL, webhookURL string) (*config.Config, *store.Store) {
	t.Helper()

	cfg := &config.Config{
		Sources: []config.SourceEntry{{URL: sourceURL}},
		Storage: config.StorageConfig{Path: filepath.Join(t.TempDir(), "state.db")},
		Notify:  config.NotifyConfig{WebhookURL: webhookURL},
	}

	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return cfg, db
}

func testDetector() *monitor.Detector {
	return monitor.New(fetch.NewClient(fetch.Options{Delay: time.Nanosecond}))
}

func TestRunChecks_BaselineThenNewItem(t *testing.T) {
	var link atomic.Value
	link.Store("https://example.com/2025/08/29/first")

	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, feedBody(link.Load().(string)))
	}))
	defer feed.Close()

	var notifications atomic.Int32
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		notifications.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	sourceURL := feed.URL + "/rss/politics.xml"
	cfg, db := testConfig(t, sourceURL, hook.URL)
	detector := testDetector()
	notifier := notify.New(hook.URL)
	ctx := context.Background()

	// First run establishes the baseline; no notification.
	if failed := runChecks(ctx, cfg, db, detector, notifier, "run-1"); failed != 0 {
		t.Fatalf("first run: %d failed", failed)
	}
	if n := notifications.Load(); n != 0 {
		t.Fatalf("baseline run sent %d notifications, want 0", n)
	}

	cursor, err := db.LoadCursor(ctx, config.SourceID(sourceURL))
	if err != nil {
		t.Fatalf("load cursor: %v", err)
	}
	if cursor.LastArticle == nil || cursor.LastArticle.URL != "https://example.com/2025/08/29/first" {
		t.Fatalf("cursor after baseline = %+v", cursor.LastArticle)
	}

	// Unchanged run: same top item, still no notification.
	if failed := runChecks(ctx, cfg, db, detector, notifier, "run-2"); failed != 0 {
		t.Fatalf("second run: %d failed", failed)
	}
	if n := notifications.Load(); n != 0 {
		t.Fatalf("unchanged run sent %d notifications, want 0", n)
	}

	// New top item: exactly one notification.
	link.Store("https://example.com/2025/08/30/second")
	if failed := runChecks(ctx, cfg, db, detector, notifier, "run-3"); failed != 0 {
		t.Fatalf("third run: %d failed", failed)
	}
	if n := notifications.Load(); n != 1 {
		t.Fatalf("new-item run sent %d notifications, want 1", n)
	}

	cursor, err = db.LoadCursor(ctx, config.SourceID(sourceURL))
	if err != nil {
		t.Fatalf("load cursor: %v", err)
	}
	if cursor.LastArticle.URL != "https://example.com/2025/08/30/second" {
		t.Errorf("cursor not advanced: %+v", cursor.LastArticle)
	}
}

func TestRunChecks_NotifierFailureDoesNotFailSource(t *testing.T) {
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, feedBody("https://example.com/2025/08/30/only"))
	}))
	defer feed.Close()

	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer hook.Close()

	sourceURL := feed.URL + "/feed"
	cfg, db := testConfig(t, sourceURL, hook.URL)
	detector := testDetector()
	notifier := notify.New(hook.URL)
	ctx := context.Background()

	// Seed a baseline with a different article so the next run is NewItem.
	if failed := runChecks(ctx, cfg, db, detector, notifier, "run-1"); failed != 0 {
		t.Fatalf("baseline run: %d failed", failed)
	}
	prior, _ := db.LoadCursor(ctx, config.SourceID(sourceURL))
	prior.LastArticle.URL = "https://example.com/2025/08/29/older"
	if err := db.SaveCursor(ctx, prior); err != nil {
		t.Fatalf("seed cursor: %v", err)
	}

	if failed := runChecks(ctx, cfg, db, detector, notifier, "run-2"); failed != 0 {
		t.Fatalf("notifier failure counted as source failure: %d", failed)
	}

	// The cursor advanced despite the failed notification.
	cursor, _ := db.LoadCursor(ctx, config.SourceID(sourceURL))
	if cursor.LastArticle.URL != "https://example.com/2025/08/30/only" {
		t.Errorf("cursor = %+v", cursor.LastArticle)
	}
}

func TestRunChecks_FailureIsLocalToSource(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, feedBody("https://example.com/2025/08/30/good"))
	}))
	defer good.Close()

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer bad.Close()

	badURL := bad.URL + "/rss/broken.xml"
	goodURL := good.URL + "/rss/politics.xml"

	cfg := &config.Config{
		Sources: []config.SourceEntry{{URL: badURL}, {URL: goodURL}},
		Storage: config.StorageConfig{Path: filepath.Join(t.TempDir(), "state.db")},
	}
	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() { _ = db.Close() }()

	ctx := context.Background()
	failed := runChecks(ctx, cfg, db, testDetector(), notify.New(""), "run-1")
	if failed != 1 {
		t.Fatalf("failed = %d, want 1 (only the broken source)", failed)
	}

	// The healthy source still recorded its baseline.
	cursor, _ := db.LoadCursor(ctx, config.SourceID(goodURL))
	if cursor.LastArticle == nil {
		t.Error("good source cursor missing after a sibling failure")
	}

	// The broken source recorded the failure.
	cursor, _ = db.LoadCursor(ctx, config.SourceID(badURL))
	if cursor.ErrorCount != 1 {
		t.Errorf("bad source error count = %d, want 1", cursor.ErrorCount)
	}
}

func TestSourceIDsDistinctInConfig(t *testing.T) {
	// Two different feeds on the same host keep distinct cursors.
	a := config.SourceID("https://example.com/rss/politics.xml")
	b := config.SourceID("https://example.com/rss/sports.xml")
	if a == b {
		t.Errorf("source ids collide: %q", a)
	}
}
