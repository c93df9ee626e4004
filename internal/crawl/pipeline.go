// Package crawl orchestrates one harvest run: apply the time-window filter,
// walk the listing pages, harvest unseen items, record them.
package crawl

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dtnitsch/tadawul-harvest/models"
	"github.com/dtnitsch/tadawul-harvest/pkg/db"
)

// lister walks the announcement index.
type lister interface {
	ApplyTimeWindowFilter(ctx context.Context, windowID string) error
	CurrentPageItems(ctx context.Context) ([]models.ListingItem, error)
	AdvancePage(ctx context.Context) (bool, error)
}

// harvester turns one listing row into a persist-ready article.
type harvester interface {
	Harvest(ctx context.Context, item models.ListingItem) (*models.Article, error)
}

// ledger is the dedup surface the run needs from the store.
type ledger interface {
	HasURL(url string) (bool, error)
	InsertIfAbsent(a *models.Article) (db.InsertOutcome, error)
}

// Stats summarizes one run for the completion log line.
type Stats struct {
	Pages      int
	Items      int
	Inserted   int
	Duplicates int
	Failures   int
}

type Pipeline struct {
	lister    lister
	harvester harvester
	ledger    ledger
	filterID  string
	logger    *slog.Logger
}

func NewPipeline(l lister, h harvester, store ledger, filterID string, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		lister:    l,
		harvester: h,
		ledger:    store,
		filterID:  filterID,
		logger:    logger,
	}
}

// Run drives the listing end to end. Per-item failures are absorbed into the
// stats; only filter activation and traversal breakage abort the run. A run
// over an unchanged listing harvests nothing and inserts nothing.
func (p *Pipeline) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	if err := p.lister.ApplyTimeWindowFilter(ctx, p.filterID); err != nil {
		return stats, err
	}

	for page := 1; ; page++ {
		p.logger.Info("Scanning listing page", "page", page)

		items, err := p.lister.CurrentPageItems(ctx)
		if err != nil {
			return stats, fmt.Errorf("failed to read listing page %d: %w", page, err)
		}
		stats.Pages++
		if len(items) == 0 {
			p.logger.Info("Listing page empty, stopping", "page", page)
			break
		}

		for _, item := range items {
			stats.Items++
			p.processItem(ctx, item, &stats)
		}

		ok, err := p.lister.AdvancePage(ctx)
		if err != nil {
			return stats, fmt.Errorf("failed to advance past page %d: %w", page, err)
		}
		if !ok {
			break
		}
	}

	p.logger.Info("Run complete",
		"pages", stats.Pages,
		"items", stats.Items,
		"inserted", stats.Inserted,
		"duplicates", stats.Duplicates,
		"failures", stats.Failures)
	return stats, nil
}

// processItem handles one listing row. The ledger check runs before any
// browser work, so known items cost one query and no tab.
func (p *Pipeline) processItem(ctx context.Context, item models.ListingItem, stats *Stats) {
	seen, err := p.ledger.HasURL(item.URL)
	if err != nil {
		p.logger.Error("Failed to check ledger", "url", item.URL, "error", err)
		stats.Failures++
		return
	}
	if seen {
		p.logger.Info("Skipping known item", "url", item.URL)
		stats.Duplicates++
		return
	}

	article, err := p.harvester.Harvest(ctx, item)
	if err != nil {
		p.logger.Warn("Failed to harvest item", "url", item.URL, "error", err)
		stats.Failures++
		return
	}

	outcome, err := p.ledger.InsertIfAbsent(article)
	if err != nil {
		p.logger.Error("Failed to record article", "url", item.URL, "error", err)
		stats.Failures++
		return
	}
	if outcome == db.Duplicate {
		p.logger.Info("Item already recorded", "url", item.URL)
		stats.Duplicates++
		return
	}

	stats.Inserted++
	p.logger.Info("Recorded new article",
		"id", article.ID,
		"url", item.URL,
		"company", article.CompanyName,
		"language", article.Language)
}
