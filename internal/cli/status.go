package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"bylinewatch/internal/config"
	"bylinewatch/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored cursor for every source",
	RunE:  statusAction,
}

func statusAction(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = db.Close() }()

	cursors, err := db.ListCursors(cmd.Context())
	if err != nil {
		return fmt.Errorf("list cursors: %w", err)
	}

	if len(cursors) == 0 {
		fmt.Println("No sources checked yet. Run `bylinewatch check` first.")
		return nil
	}

	for _, c := range cursors {
		fmt.Printf("%s\n", c.SourceID)
		if c.LastArticle != nil {
			fmt.Printf("  last article: %s\n", c.LastArticle.Title)
			fmt.Printf("                %s\n", c.LastArticle.URL)
			if c.LastArticle.PublishedTime != "" {
				fmt.Printf("  published:    %s\n", c.LastArticle.PublishedTime)
			}
		} else {
			fmt.Println("  last article: (none yet)")
		}
		if !c.LastCheckedAt.IsZero() {
			fmt.Printf("  last checked: %s\n", humanize.Time(c.LastCheckedAt))
		}
		if c.ErrorCount > 0 {
			fmt.Printf("  errors:       %d consecutive (last: %s)\n", c.ErrorCount, c.LastError)
		}
		fmt.Println()
	}

	return nil
}
