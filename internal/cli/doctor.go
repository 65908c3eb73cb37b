package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"bylinewatch/internal/config"
	"bylinewatch/internal/extract"
	"bylinewatch/internal/store"
)

// staleDays is the age after which a source with no successful check is
// flagged by doctor.
const staleDays = 7

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration and stored state health",
	RunE:  doctorAction,
}

func doctorAction(cmd *cobra.Command, _ []string) error {
	ok := true

	// Config dir
	if info, err := os.Stat(configDir); err != nil || !info.IsDir() {
		printCheck(false, "config directory %s", configDir)
		ok = false
	} else {
		printCheck(true, "config directory %s", configDir)
	}

	// Config file
	cfg, err := config.Load(configDir)
	if err != nil {
		printCheck(false, "config.yaml: %v", err)
		ok = false
	} else {
		feeds, pages := 0, 0
		for _, s := range cfg.EnabledSources() {
			if extract.IsFeedURL(s.URL) {
				feeds++
			} else {
				pages++
			}
		}
		printCheck(true, "config.yaml (%d html pages, %d feeds enabled)", pages, feeds)
	}

	// Database
	var db *store.Store
	if cfg != nil {
		db, err = store.Open(cfg.Storage.Path)
		if err != nil {
			printCheck(false, "database: %v", err)
			ok = false
		} else {
			defer func() { _ = db.Close() }()
			printCheck(true, "database %s", cfg.Storage.Path)
		}
	}

	// Webhook
	if cfg != nil {
		switch {
		case cfg.Notify.WebhookURLEnv == "":
			printInfo("notifications not configured (notify.webhook_url_env unset)")
		case cfg.Notify.WebhookURL == "":
			printCheck(false, "webhook env %s is set in config but empty in the environment", cfg.Notify.WebhookURLEnv)
			ok = false
		default:
			printCheck(true, "webhook URL resolved from %s", cfg.Notify.WebhookURLEnv)
		}
	}

	// Cursor health (info-level, non-fatal)
	if db != nil {
		checkCursorHealth(cmd, db)
	}

	if !ok {
		return fmt.Errorf("some checks failed")
	}
	fmt.Println("\nAll checks passed.")
	return nil
}

func checkCursorHealth(cmd *cobra.Command, db *store.Store) {
	cursors, err := db.ListCursors(cmd.Context())
	if err != nil || len(cursors) == 0 {
		return // no data yet, skip
	}

	staleThreshold := time.Now().AddDate(0, 0, -staleDays)
	for _, c := range cursors {
		if c.ErrorCount > 0 {
			printInfo("failing: %s — %d consecutive errors (last: %s)", c.SourceID, c.ErrorCount, c.LastError)
		}
		if !c.LastCheckedAt.IsZero() && c.LastCheckedAt.Before(staleThreshold) {
			daysAgo := int(time.Since(c.LastCheckedAt).Hours() / 24)
			printInfo("stale: %s — last checked %d days ago", c.SourceID, daysAgo)
		}
	}
}

func printCheck(pass bool, format string, args ...any) {
	mark := "FAIL"
	if pass {
		mark = " OK "
	}
	fmt.Printf("[%s] %s\n", mark, fmt.Sprintf(format, args...))
}

func printInfo(format string, args ...any) {
	fmt.Printf("[INFO] %s\n", fmt.Sprintf(format, args...))
}
