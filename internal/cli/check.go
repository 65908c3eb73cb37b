package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"bylinewatch/internal/config"
	"bylinewatch/internal/fetch"
	"bylinewatch/internal/monitor"
	"bylinewatch/internal/notify"
	"bylinewatch/internal/store"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check all enabled sources for new articles",
	RunE:  checkAction,
}

func checkAction(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	sources := cfg.EnabledSources()
	if len(sources) == 0 {
		fmt.Println("No enabled sources configured.")
		return nil
	}

	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = db.Close() }()

	fetcher := fetch.NewClient(fetch.Options{
		Timeout:   cfg.Fetch.Timeout.Duration,
		Delay:     cfg.Fetch.Delay.Duration,
		UserAgent: cfg.Fetch.UserAgent,
	})
	detector := monitor.New(fetcher)
	notifier := notify.New(cfg.Notify.WebhookURL)

	runID := uuid.NewString()
	fmt.Printf("bylinewatch check %s — %d source(s)\n", runID, len(sources))
	if !notifier.Enabled() {
		fmt.Println("notifications disabled (no webhook URL configured)")
	}

	failed := runChecks(cmd.Context(), cfg, db, detector, notifier, runID)

	fmt.Printf("\nChecked %d source(s), %d failed\n", len(sources), failed)
	if failed == len(sources) {
		return fmt.Errorf("all %d sources failed", failed)
	}
	return nil
}

// runChecks processes every enabled source strictly in order, one at a time.
// Sequential execution is intentional: the per-request politeness delay is a
// rate limit, not a bottleneck to parallelize away. A source's failure is
// recorded and never stops the remaining sources. Returns the failure count.
func runChecks(ctx context.Context, cfg *config.Config, db *store.Store, detector *monitor.Detector, notifier *notify.Webhook, runID string) int {
	failed := 0

	for _, entry := range cfg.EnabledSources() {
		src := monitor.Source{ID: config.SourceID(entry.URL), URL: entry.URL}
		fmt.Printf("\n%s (%s)\n", src.ID, src.URL)

		cursor, err := db.LoadCursor(ctx, src.ID)
		if err != nil {
			fmt.Printf("  warning: load cursor: %v\n", err)
			failed++
			continue
		}

		outcome, next := detector.Check(ctx, src, cursor)

		if err := db.SaveCursor(ctx, next); err != nil {
			fmt.Printf("  warning: save cursor: %v\n", err)
			failed++
			continue
		}

		reportOutcome(outcome)

		if outcome.Status == monitor.StatusCheckFailed {
			failed++
			continue
		}

		if outcome.Status == monitor.StatusNewItem && notifier.Enabled() {
			if err := notifier.Send(ctx, runID, src.ID, *outcome.Current, outcome.Previous); err != nil {
				// Notification failures never affect the check result.
				fmt.Printf("  warning: notify: %v\n", err)
			}
		}
	}

	return failed
}

func reportOutcome(out monitor.Outcome) {
	switch out.Status {
	case monitor.StatusBaseline:
		fmt.Printf("  baseline recorded: %s\n", out.Current.Title)
	case monitor.StatusUnchanged:
		fmt.Printf("  unchanged (%s)\n", out.Reason)
	case monitor.StatusNewItem:
		fmt.Printf("  NEW ARTICLE: %s\n", out.Current.Title)
		fmt.Printf("    %s\n", out.Current.URL)
		if out.Previous != nil {
			fmt.Printf("    previous: %s\n", out.Previous.URL)
		}
	case monitor.StatusNoItemFound:
		fmt.Println("  no article found on page")
	case monitor.StatusCheckFailed:
		fmt.Printf("  check failed: %s\n", out.Detail)
	}
}
