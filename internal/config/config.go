// Package config loads and validates the watcher configuration: the list of
// monitored sources plus storage, fetch and notification settings.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigFile  = "config.yaml"
	DefaultStoragePath = ".bylinewatch/bylinewatch.db"
	DefaultTimeout     = 15 * time.Second
	DefaultDelay       = 2 * time.Second
)

// Duration wraps time.Duration for YAML unmarshaling from strings like "15s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

type Config struct {
	Sources []SourceEntry `yaml:"sources"`
	Storage StorageConfig `yaml:"storage"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Notify  NotifyConfig  `yaml:"notify"`
}

// SourceEntry is one monitored location. A source without an explicit
// enabled flag is enabled.
type SourceEntry struct {
	URL     string `yaml:"url"`
	Enabled *bool  `yaml:"enabled"`
}

// IsEnabled reports whether the source should be checked.
func (s SourceEntry) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

type StorageConfig struct {
	Path string `yaml:"path"`
}

type FetchConfig struct {
	Timeout   Duration `yaml:"timeout"`
	Delay     Duration `yaml:"delay"`
	UserAgent string   `yaml:"user_agent"`
}

type NotifyConfig struct {
	WebhookURLEnv string `yaml:"webhook_url_env"`

	// Resolved from the env var at load time.
	WebhookURL string `yaml:"-"`
}

// Load reads config.yaml from dir, applies defaults, resolves env vars, and
// validates.
func Load(dir string) (*Config, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("config dir is required")
	}

	path := filepath.Join(dir, DefaultConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)
	resolveEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// EnabledSources returns the enabled entries in configuration order.
func (c *Config) EnabledSources() []SourceEntry {
	var enabled []SourceEntry
	for _, s := range c.Sources {
		if s.IsEnabled() {
			enabled = append(enabled, s)
		}
	}
	return enabled
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultStoragePath
	}
	if cfg.Fetch.Timeout.Duration == 0 {
		cfg.Fetch.Timeout.Duration = DefaultTimeout
	}
	if cfg.Fetch.Delay.Duration == 0 {
		cfg.Fetch.Delay.Duration = DefaultDelay
	}
}

func resolveEnv(cfg *Config) {
	if cfg.Notify.WebhookURLEnv != "" {
		cfg.Notify.WebhookURL = os.Getenv(cfg.Notify.WebhookURLEnv)
	}
}

func validate(cfg *Config) error {
	for i, s := range cfg.Sources {
		u, err := url.Parse(s.URL)
		if err != nil {
			return fmt.Errorf("sources[%d]: %w", i, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
			return fmt.Errorf("sources[%d]: %q is not an absolute http(s) URL", i, s.URL)
		}
	}

	if cfg.Fetch.Timeout.Duration < 0 {
		return errors.New("fetch.timeout: must not be negative")
	}
	if cfg.Fetch.Delay.Duration < 0 {
		return errors.New("fetch.delay: must not be negative")
	}

	return nil
}

// SourceID derives a stable, filesystem-safe identifier from a source URL:
// the last non-empty path segment, lowercased, with disallowed characters
// stripped. The host is used when the path is empty.
func SourceID(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return sanitizeID(rawURL)
	}

	path := strings.Trim(u.Path, "/")
	if path != "" {
		segments := strings.Split(path, "/")
		for i := len(segments) - 1; i >= 0; i-- {
			if id := sanitizeID(segments[i]); id != "" {
				return id
			}
		}
	}
	if id := sanitizeID(u.Host); id != "" {
		return id
	}
	return "unknown"
}

func sanitizeID(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		}
	}
	return b.String()
}
