package crawl

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/tadawul-harvest/models"
	"github.com/dtnitsch/tadawul-harvest/pkg/attach"
	"github.com/dtnitsch/tadawul-harvest/pkg/browser"
	"github.com/dtnitsch/tadawul-harvest/pkg/db"
	"github.com/dtnitsch/tadawul-harvest/pkg/harvest"
	"github.com/dtnitsch/tadawul-harvest/pkg/lang"
	"github.com/dtnitsch/tadawul-harvest/pkg/listing"
)

func CrawlAction(c *cli.Context) error {
	logLevel := slog.LevelInfo
	if c.Bool("quiet") {
		logLevel = slog.LevelError
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	startURL := c.Args().First()
	if startURL == "" {
		fmt.Fprintln(os.Stderr, "Error: No listing URL provided")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, `  tadawul-harvest crawl "https://www.saudiexchange.sa/...announcements"`)
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Need help? Run: tadawul-harvest crawl --help")
		os.Exit(1)
	}

	cfg, err := loadRunConfig(c)
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(2)
	}

	store, err := db.Open(cfg.DatabasePath)
	if err != nil {
		if errors.Is(err, db.ErrNotProvisioned) {
			logger.Error("Database not provisioned, run 'tadawul-harvest setup' first", "path", cfg.DatabasePath)
		} else {
			logger.Error("Failed to open database", "error", err)
		}
		os.Exit(2)
	}
	defer store.Close()

	ctx := c.Context
	chrome, err := browser.Start(ctx, browser.Options{
		Headless:  !c.Bool("show"),
		UserAgent: cfg.UserAgent,
		Wait:      cfg.Wait(),
	})
	if err != nil {
		logger.Error("Failed to start browser", "error", err)
		os.Exit(2)
	}
	defer chrome.Close()

	logger.Info("Navigating to listing", "url", startURL)
	if err := chrome.Navigate(ctx, startURL); err != nil {
		return fmt.Errorf("failed to open listing page: %w", err)
	}
	if err := chrome.Poll(ctx, "document.readyState === 'complete'"); err != nil {
		return fmt.Errorf("failed waiting for listing page load: %w", err)
	}
	title, err := chrome.Title(ctx)
	if err != nil {
		return fmt.Errorf("failed to read page title: %w", err)
	}
	if strings.Contains(strings.ToLower(title), "access denied") {
		return fmt.Errorf("listing refused automated access (title %q)", title)
	}

	controller, err := listing.NewController(chrome, cfg, startURL, logger)
	if err != nil {
		return err
	}
	fetcher := attach.NewFetcher(cfg.DownloadDir, cfg.UserAgent, cfg.DownloadTimeout(), logger)
	harvester := harvest.NewHarvester(chrome, fetcher, lang.NewDetector(), cfg.Selectors, logger)
	pipeline := NewPipeline(controller, harvester, store, cfg.FilterID, logger)

	stats, runErr := pipeline.Run(ctx)

	if c.Bool("keep") {
		fmt.Println("Browser held open; press Enter to finish.")
		bufio.NewReader(os.Stdin).ReadString('\n')
	}

	if runErr != nil {
		var navErr *browser.NavigationError
		if errors.As(runErr, &navErr) && navErr.Snapshot != "" {
			logger.Error("Run aborted", "step", navErr.Step, "snapshot", navErr.Snapshot, "error", navErr.Err)
		}
		return runErr
	}

	fmt.Printf("Run complete: %d pages, %d items, %d inserted, %d duplicates, %d failures\n",
		stats.Pages, stats.Items, stats.Inserted, stats.Duplicates, stats.Failures)
	return nil
}

// loadRunConfig assembles the run profile: defaults, then the optional YAML
// file, then individual flag overrides.
func loadRunConfig(c *cli.Context) (*models.Config, error) {
	cfg := models.DefaultConfig()
	if path := c.String("config"); path != "" {
		loaded, err := models.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if c.IsSet("db") {
		cfg.DatabasePath = c.String("db")
	}
	if c.IsSet("downloads") {
		cfg.DownloadDir = c.String("downloads")
	}
	if c.IsSet("filter") {
		cfg.FilterID = c.String("filter")
	}
	return cfg, nil
}
