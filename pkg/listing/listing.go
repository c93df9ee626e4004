// Package listing drives the paginated announcement index: time-window
// filtering, per-page item extraction, and pagination with end-of-list
// detection.
package listing

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/dtnitsch/tadawul-harvest/models"
	"github.com/dtnitsch/tadawul-harvest/pkg/browser"
)

// Controller walks the listing through its states: filter applied, then one
// page after another until the next control dies or a wait expires.
type Controller struct {
	sess     browser.Session
	sel      models.Selectors
	base     *url.URL
	snapshot string
	logger   *slog.Logger
}

func NewController(sess browser.Session, cfg *models.Config, listingURL string, logger *slog.Logger) (*Controller, error) {
	base, err := url.Parse(listingURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing URL: %w", err)
	}
	return &Controller{
		sess:     sess,
		sel:      cfg.Selectors,
		base:     base,
		snapshot: cfg.SnapshotPath,
		logger:   logger,
	}, nil
}

// ApplyTimeWindowFilter activates the period control (e.g. "1D"). The control
// never appearing is fatal to the run: without the filter the listing shows
// the wrong window, so the failure surfaces as a NavigationError with a
// diagnostic screenshot for the operator.
func (c *Controller) ApplyTimeWindowFilter(ctx context.Context, windowID string) error {
	selector := "#" + windowID
	c.logger.Info("Activating time window filter", "filter_id", windowID)

	if err := c.sess.WaitReady(ctx, selector); err != nil {
		return &browser.NavigationError{
			Step:     "filter activation",
			Snapshot: c.captureSnapshot(ctx),
			Err:      err,
		}
	}
	if err := c.sess.Click(ctx, selector); err != nil {
		return &browser.NavigationError{Step: "filter activation", Err: err}
	}
	return nil
}

// CurrentPageItems returns the rendered page's rows in DOM order. A container
// that never populates within the wait budget means the end of the list, so
// the result is empty rather than an error.
func (c *Controller) CurrentPageItems(ctx context.Context) ([]models.ListingItem, error) {
	if err := c.sess.WaitReady(ctx, c.sel.ListContainer+" "+c.sel.ListItem); err != nil {
		if browser.IsTimeout(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed waiting for listing rows: %w", err)
	}

	html, err := c.sess.HTML(ctx, c.sel.ListContainer)
	if err != nil {
		return nil, fmt.Errorf("failed to read listing container: %w", err)
	}
	return c.parseItems(html)
}

// parseItems pulls rows out of the container HTML. Each row's detail link is
// the anchor wrapping the item element; rows missing a title, a date, or the
// anchor are skipped.
func (c *Controller) parseItems(html string) ([]models.ListingItem, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing HTML: %w", err)
	}

	var items []models.ListingItem
	doc.Find(c.sel.ListItem).Each(func(_ int, li *goquery.Selection) {
		title := li.Find(c.sel.ItemTitle).First()
		date := li.Find(c.sel.ItemDate).First()
		href, ok := li.Parent().Attr("href")
		if title.Length() == 0 || date.Length() == 0 || !ok {
			return
		}
		items = append(items, models.ListingItem{
			Date:  strings.TrimSpace(date.Text()),
			Title: strings.TrimSpace(title.Text()),
			URL:   c.resolve(href),
		})
	})
	return items, nil
}

func (c *Controller) resolve(href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return c.base.ResolveReference(ref).String()
}

// nextProbe is what the advance decision needs to know about the next control.
type nextProbe struct {
	Found bool   `json:"found"`
	Class string `json:"class"`
}

// AdvancePage clicks through to the next listing page. It returns false with
// no error for every shape of "there is no next page": control absent,
// control disabled, or the post-click waits expiring.
func (c *Controller) AdvancePage(ctx context.Context) (bool, error) {
	probeJS := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return {found: false, class: ""};
		return {found: true, class: el.className || ""};
	})()`, c.sel.NextControl)

	var probe nextProbe
	if err := c.sess.Eval(ctx, probeJS, &probe); err != nil {
		return false, fmt.Errorf("failed to probe next control: %w", err)
	}
	if !probe.Found || strings.Contains(probe.Class, "disable") {
		return false, nil
	}

	oldPage, err := c.pageIndicator(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read page indicator: %w", err)
	}
	if err := c.markContainer(ctx); err != nil {
		return false, fmt.Errorf("failed to mark listing container: %w", err)
	}
	if err := c.sess.Click(ctx, c.sel.NextControl+" "+c.sel.NextLink); err != nil {
		return false, fmt.Errorf("failed to click next control: %w", err)
	}

	// Rendered when the marked container is replaced AND the active page
	// indicator moves. Either wait expiring is read as the end of the list,
	// which conflates a slow final page with exhaustion; the site offers no
	// better termination signal.
	if err := c.sess.Poll(ctx, c.staleJS()); err != nil {
		if browser.IsTimeout(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed waiting for listing refresh: %w", err)
	}
	if err := c.sess.Poll(ctx, c.indicatorChangedJS(oldPage)); err != nil {
		if browser.IsTimeout(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed waiting for page indicator: %w", err)
	}
	return true, nil
}

func (c *Controller) pageIndicator(ctx context.Context) (string, error) {
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		return el ? (el.getAttribute(%q) || "") : "";
	})()`, c.sel.PageIndicator, c.sel.PageIndicatorAttr)

	var page string
	if err := c.sess.Eval(ctx, js, &page); err != nil {
		return "", err
	}
	return page, nil
}

// markContainer tags the live container node so staleJS can tell when the
// page swap replaced it. The property lives on the JS wrapper, so a fresh
// node after re-render comes up unmarked.
func (c *Controller) markContainer(ctx context.Context) error {
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (el) el.__harvestMark = true;
		return true;
	})()`, c.sel.ListContainer)
	return c.sess.Eval(ctx, js, nil)
}

func (c *Controller) staleJS() string {
	return fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		return !el || el.__harvestMark !== true;
	})()`, c.sel.ListContainer)
}

func (c *Controller) indicatorChangedJS(oldPage string) string {
	return fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		return !!el && (el.getAttribute(%q) || "") !== %q;
	})()`, c.sel.PageIndicator, c.sel.PageIndicatorAttr, oldPage)
}

// captureSnapshot best-effort writes the diagnostic screenshot, returning its
// path or "" when capture failed.
func (c *Controller) captureSnapshot(ctx context.Context) string {
	img, err := c.sess.Screenshot(ctx)
	if err != nil {
		c.logger.Warn("Failed to capture diagnostic screenshot", "error", err)
		return ""
	}
	if err := os.WriteFile(c.snapshot, img, 0o644); err != nil {
		c.logger.Warn("Failed to write diagnostic screenshot", "path", c.snapshot, "error", err)
		return ""
	}
	return c.snapshot
}
