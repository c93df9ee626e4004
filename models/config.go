// Package models defines data structures shared across the harvester:
// configuration, listing rows, and persisted articles.
package models

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full crawl profile: network identity, wait budgets, local
// paths, and the selector set describing the listing site. Defaults target the
// Saudi Exchange announcement pages; a YAML file overrides fields selectively.
type Config struct {
	UserAgent           string    `yaml:"user_agent"`
	WaitSecs            int       `yaml:"wait_secs"`
	DownloadTimeoutSecs int       `yaml:"download_timeout_secs"`
	DatabasePath        string    `yaml:"database"`
	DownloadDir         string    `yaml:"download_dir"`
	SnapshotPath        string    `yaml:"snapshot"`
	FilterID            string    `yaml:"filter_id"`
	Selectors           Selectors `yaml:"selectors"`
}

// Selectors names every DOM hook the traversal and harvest layers touch.
// Item-level selectors are relative to ListItem; Company is looked up on the
// detail page and may be empty to disable company capture.
type Selectors struct {
	ListContainer      string `yaml:"list_container"`
	ListItem           string `yaml:"list_item"`
	ItemTitle          string `yaml:"item_title"`
	ItemDate           string `yaml:"item_date"`
	Company            string `yaml:"company"`
	NextControl        string `yaml:"next_control"`
	NextLink           string `yaml:"next_link"`
	PageIndicator      string `yaml:"page_indicator"`
	PageIndicatorAttr  string `yaml:"page_indicator_attr"`
	DetailReady        string `yaml:"detail_ready"`
	Paragraphs         string `yaml:"paragraphs"`
	FallbackParagraphs string `yaml:"fallback_paragraphs"`
}

// Wait is the bounded-wait budget for every browser operation.
func (c *Config) Wait() time.Duration {
	return time.Duration(c.WaitSecs) * time.Second
}

// DownloadTimeout bounds one attachment download.
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.DownloadTimeoutSecs) * time.Second
}

// DefaultConfig returns the built-in Saudi Exchange profile.
func DefaultConfig() *Config {
	return &Config{
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
			"AppleWebKit/537.36 (KHTML, like Gecko) " +
			"Chrome/125.0.0.0 Safari/537.36",
		WaitSecs:            25,
		DownloadTimeoutSecs: 45,
		DatabasePath:        "stock_news.db",
		DownloadDir:         "downloads",
		SnapshotPath:        "debug_screenshot.png",
		FilterID:            "1D",
		Selectors: Selectors{
			ListContainer:      "#announcementResultsDivId",
			ListItem:           "li",
			ItemTitle:          "h2",
			ItemDate:           "div.date",
			Company:            ".comp-name",
			NextControl:        "#next-toggle-id",
			NextLink:           "a",
			PageIndicator:      "#pagination-ul .px-btn-page.select",
			PageIndicatorAttr:  "data-page",
			DetailReady:        "main, body",
			Paragraphs:         "main p",
			FallbackParagraphs: "p",
		},
	}
}

// LoadConfig reads a YAML profile and overlays it on the defaults, so a file
// only needs the fields it changes.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.WaitSecs <= 0 {
		return nil, fmt.Errorf("invalid wait_secs: %d", cfg.WaitSecs)
	}
	if cfg.DownloadTimeoutSecs <= 0 {
		return nil, fmt.Errorf("invalid download_timeout_secs: %d", cfg.DownloadTimeoutSecs)
	}
	return cfg, nil
}
