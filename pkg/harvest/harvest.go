// Package harvest turns one listing row into a persist-ready article by
// visiting its detail page in an isolated tab.
package harvest

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"github.com/dtnitsch/tadawul-harvest/models"
	"github.com/dtnitsch/tadawul-harvest/pkg/attach"
	"github.com/dtnitsch/tadawul-harvest/pkg/browser"
	"github.com/dtnitsch/tadawul-harvest/pkg/lang"
)

type Harvester struct {
	sess     browser.Session
	fetcher  *attach.Fetcher
	detector *lang.Detector
	sel      models.Selectors
	logger   *slog.Logger
}

func NewHarvester(sess browser.Session, fetcher *attach.Fetcher, detector *lang.Detector, sel models.Selectors, logger *slog.Logger) *Harvester {
	return &Harvester{
		sess:     sess,
		fetcher:  fetcher,
		detector: detector,
		sel:      sel,
		logger:   logger,
	}
}

// Harvest opens the item's detail page in a fresh tab and assembles the
// article: body text, company name, attachment content, language tag. The
// listing tab is never touched, and the detail tab closes on every path out.
// Errors here cost one item, not the run; the caller logs and moves on.
func (h *Harvester) Harvest(ctx context.Context, item models.ListingItem) (*models.Article, error) {
	tab, err := h.sess.NewTab(ctx, item.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open detail page: %w", err)
	}
	defer tab.Close()

	if err := tab.WaitReady(ctx, h.sel.DetailReady); err != nil {
		return nil, fmt.Errorf("failed waiting for detail content: %w", err)
	}

	html, err := tab.HTML(ctx, "html")
	if err != nil {
		return nil, fmt.Errorf("failed to read detail page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse detail page: %w", err)
	}

	body := h.bodyText(doc, html, item.URL)
	company := strings.TrimSpace(doc.Find(h.sel.Company).First().Text())

	var hrefs []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		if href, ok := a.Attr("href"); ok {
			hrefs = append(hrefs, href)
		}
	})

	return &models.Article{
		Title:           item.Title,
		URL:             item.URL,
		CompanyName:     company,
		PublicationDate: item.Date,
		BodyText:        body,
		AttachmentsText: h.fetcher.Fetch(ctx, item.URL, item.Title, hrefs),
		Language:        h.detector.Detect(body),
	}, nil
}

// bodyText prefers the page's own paragraph structure and falls back to
// readability's distilled content when the selectors come up empty.
func (h *Harvester) bodyText(doc *goquery.Document, html, pageURL string) string {
	if text := paragraphText(doc, h.sel.Paragraphs); text != "" {
		return text
	}
	if text := paragraphText(doc, h.sel.FallbackParagraphs); text != "" {
		return text
	}
	return h.readableText(html, pageURL)
}

// paragraphText joins the non-blank matches of selector in document order.
func paragraphText(doc *goquery.Document, selector string) string {
	var parts []string
	doc.Find(selector).Each(func(_ int, p *goquery.Selection) {
		if text := strings.TrimSpace(p.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n")
}

func (h *Harvester) readableText(html, pageURL string) string {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	readabilityParser := readability.NewParser()
	article, err := readabilityParser.Parse(strings.NewReader(html), parsed)
	if err != nil {
		h.logger.Warn("Readability fallback found no content", "url", pageURL, "error", err)
		return ""
	}
	return strings.TrimSpace(article.TextContent)
}
