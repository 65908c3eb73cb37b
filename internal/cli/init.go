package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"bylinewatch/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config directory with an example config file",
	RunE:  initAction,
}

func initAction(_ *cobra.Command, _ []string) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	configPath := filepath.Join(configDir, config.DefaultConfigFile)
	wrote, err := writeIfNotExists(configPath, []byte(exampleConfig))
	if err != nil {
		return err
	}

	if !wrote {
		fmt.Printf("Config directory %s already initialized.\n", configDir)
	} else {
		fmt.Printf("Initialized %s.\n", configDir)
	}
	return nil
}

// writeIfNotExists writes data to path if the file does not exist.
// Returns true if the file was created.
func writeIfNotExists(path string, data []byte) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("  exists: %s\n", path)
		return false, nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("  created: %s\n", path)
	return true, nil
}

const exampleConfig = `# bylinewatch configuration

sources:
  # Author listing pages and RSS/Atom feeds. Feed-like URLs (/rss/, .xml,
  # .rss, .atom, /feed) are parsed as feeds; everything else as HTML.
  - url: https://www.nytimes.com/by/jane-doe
    enabled: true
  # - url: https://www.washingtonpost.com/arcio/rss/category/politics/
  # - url: https://gijn.org/articles/
  #   enabled: false

storage:
  path: .bylinewatch/bylinewatch.db

fetch:
  timeout: 15s
  delay: 2s
  # user_agent: ""

notify:
  # Name of the environment variable holding the webhook URL.
  webhook_url_env: DISCORD_WEBHOOK_URL
`
