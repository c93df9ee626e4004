// Package attach downloads the documents linked from an announcement page
// and folds their extracted text into content blocks for the parent record.
// The files themselves stay on disk under a dated, per-item directory.
package attach

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dtnitsch/tadawul-harvest/pkg/extract"
)

// downloadWorkers bounds the fan-out within one item.
const downloadWorkers = 3

// maxNameBytes caps a sanitized path component.
const maxNameBytes = 120

// attachmentPattern matches the URL path, not the raw URL, so querystringed
// document links still classify.
var attachmentPattern = regexp.MustCompile(`(?i)\.(pdf|docx?|xlsx?|pptx?|zip)$`)

// Fetcher retrieves attachments with a bounded per-download timeout and a
// fixed identity. The download directory is constructor state, so concurrent
// runs with different targets never collide.
type Fetcher struct {
	client    *http.Client
	dir       string
	userAgent string
	timeout   time.Duration
	logger    *slog.Logger
}

func NewFetcher(dir, userAgent string, timeout time.Duration, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		client:    &http.Client{},
		dir:       dir,
		userAgent: userAgent,
		timeout:   timeout,
		logger:    logger,
	}
}

// Fetch classifies hrefs from an announcement page, downloads the document
// links, and returns the assembled content blocks. Block order follows link
// order. A failed download drops its block and nothing else; there is never
// an error to return.
func (f *Fetcher) Fetch(ctx context.Context, baseURL, title string, hrefs []string) string {
	base, err := url.Parse(baseURL)
	if err != nil {
		f.logger.Warn("Failed to parse attachment base URL", "url", baseURL, "error", err)
		return ""
	}
	links := documentLinks(base, hrefs)
	if len(links) == 0 {
		return ""
	}
	names := uniqueNames(links)

	destDir := filepath.Join(f.dir, time.Now().Format("2006-01-02"), SanitizeName(title))
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		f.logger.Warn("Failed to create download directory", "dir", destDir, "error", err)
		return ""
	}

	blocks := make([]string, len(links))
	jobs := make(chan int)
	var wg sync.WaitGroup

	workers := downloadWorkers
	if len(links) < workers {
		workers = len(links)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				blocks[idx] = f.fetchOne(ctx, links[idx], destDir, names[idx])
			}
		}()
	}
	for idx := range links {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	kept := blocks[:0]
	for _, b := range blocks {
		if b != "" {
			kept = append(kept, b)
		}
	}
	return strings.Join(kept, "\n\n")
}

// fetchOne downloads one document and returns its content block, or "" when
// the download failed. Extraction failures still produce a block; the
// extractor embeds its own placeholder text.
func (f *Fetcher) fetchOne(ctx context.Context, link, destDir, name string) string {
	dest := filepath.Join(destDir, name)

	if err := f.download(ctx, link, dest); err != nil {
		f.logger.Warn("Failed to download attachment", "url", link, "error", err)
		return ""
	}
	f.logger.Info("Downloaded attachment", "file", name)

	return fmt.Sprintf("--- CONTENT FROM %s ---\n%s", name, extract.File(dest))
}

func (f *Fetcher) download(ctx context.Context, link, dest string) error {
	dlCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(dlCtx, http.MethodGet, link, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// documentLinks resolves hrefs against base and keeps the ones whose path
// names a downloadable document. A page often links the same file twice
// (icon and title anchor), so duplicates collapse to one.
func documentLinks(base *url.URL, hrefs []string) []string {
	seen := make(map[string]bool)
	var links []string
	for _, href := range hrefs {
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			continue
		}
		abs := base.ResolveReference(ref)
		if !attachmentPattern.MatchString(abs.Path) {
			continue
		}
		link := abs.String()
		if seen[link] {
			continue
		}
		seen[link] = true
		links = append(links, link)
	}
	return links
}

// uniqueNames derives the on-disk name for every link up front. Distinct
// URLs can sanitize to the same basename; collided names take a numeric
// suffix so no two workers ever share a destination file.
func uniqueNames(links []string) []string {
	names := make([]string, len(links))
	taken := make(map[string]bool, len(links))
	for i, link := range links {
		name := fileName(link)
		if taken[name] {
			ext := filepath.Ext(name)
			stem := strings.TrimSuffix(name, ext)
			for n := 2; taken[name]; n++ {
				name = fmt.Sprintf("%s_%d%s", stem, n, ext)
			}
		}
		taken[name] = true
		names[i] = name
	}
	return names
}

// fileName derives the on-disk name from a document URL: last path segment,
// percent-decoded, sanitized.
func fileName(rawURL string) string {
	name := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		name = path.Base(u.Path)
	}
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}
	return SanitizeName(name)
}

// SanitizeName makes s safe as a single path component: filesystem-hostile
// characters dropped, whitespace runs collapsed, length capped at
// maxNameBytes with the extension preserved.
func SanitizeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\', '/', '*', '?', ':', '"', '<', '>', '|':
		default:
			b.WriteRune(r)
		}
	}
	name := strings.Join(strings.Fields(b.String()), " ")
	if name == "" || name == "." || name == ".." {
		return "attachment"
	}
	if len(name) > maxNameBytes {
		ext := filepath.Ext(name)
		if len(ext) >= maxNameBytes {
			ext = ""
		}
		stem := strings.TrimSuffix(name, ext)
		for len(stem)+len(ext) > maxNameBytes {
			_, size := utf8.DecodeLastRuneInString(stem)
			stem = stem[:len(stem)-size]
		}
		name = strings.TrimSpace(stem) + ext
	}
	return name
}
