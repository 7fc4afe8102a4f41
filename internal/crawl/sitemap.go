package crawl

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kestrel-ai/kestrel/internal/fetch"
	"github.com/kestrel-ai/kestrel/internal/ingest"
	"github.com/kestrel-ai/kestrel/internal/parse"
)

// ErrNoSitemapURL is returned when neither a sitemap URL nor a base URL to
// derive one from is configured.
var ErrNoSitemapURL = errors.New("sitemap url or base url is required")

// maxSitemapDepth bounds nested index expansion. Combined with the
// per-level child cap this keeps total sitemap fetches finite even for a
// pathological index chain.
const maxSitemapDepth = 5

// SitemapConfig drives sitemap-based discovery. When SitemapURL is empty it
// is derived as {BaseURL}/sitemap.xml.
type SitemapConfig struct {
	BaseURL    string
	SitemapURL string

	// Include keeps only URLs containing at least one of these substrings.
	// Empty means keep everything.
	Include []string

	// Exclude drops URLs containing any of these substrings.
	Exclude []string

	// MaxPages truncates the discovered list when positive.
	MaxPages int

	Crawl Config
}

func (c SitemapConfig) resolveURL() (string, error) {
	if c.SitemapURL != "" {
		return c.SitemapURL, nil
	}
	if c.BaseURL == "" {
		return "", ErrNoSitemapURL
	}
	return strings.TrimRight(c.BaseURL, "/") + "/sitemap.xml", nil
}

// CrawlSitemap discovers page URLs from a sitemap (expanding sitemap
// indexes recursively) and crawls them. URLs removed by the include/exclude
// filters or by MaxPages truncation count as skipped, not failed.
func (c *Crawler) CrawlSitemap(ctx context.Context, cfg SitemapConfig, opts ingest.Options) (*Result, error) {
	sitemapURL, err := cfg.resolveURL()
	if err != nil {
		return nil, err
	}

	walk := &sitemapWalk{visited: map[string]bool{}}
	urls, err := c.collectSitemap(ctx, sitemapURL, cfg.Crawl, walk, 0)
	if err != nil {
		return nil, fmt.Errorf("resolving sitemap %s: %w", sitemapURL, err)
	}

	kept, skipped := filterURLs(urls, cfg.Include, cfg.Exclude, cfg.MaxPages)
	c.logger.Info("sitemap resolved", "sitemap", sitemapURL,
		"discovered", len(urls), "kept", len(kept),
		"skipped", skipped+walk.dropped)

	result := c.Crawl(ctx, kept, cfg.Crawl, opts)
	result.URLsSkipped = skipped + walk.dropped
	return result, nil
}

// sitemapWalk tracks state across one index expansion. The visited set
// breaks cycles (an index that lists itself or an ancestor); dropped counts
// child sitemaps skipped for revisits or depth.
type sitemapWalk struct {
	visited map[string]bool
	dropped int
}

// collectSitemap fetches one sitemap and returns its page URLs, descending
// into child sitemaps when it is an index. A child that fails to fetch or
// parse is logged and dropped; its siblings still contribute. A child
// already visited in this walk, or nested past maxSitemapDepth, is dropped
// without a fetch.
func (c *Crawler) collectSitemap(ctx context.Context, sitemapURL string, cfg Config, walk *sitemapWalk, depth int) ([]string, error) {
	walk.visited[sitemapURL] = true

	resp, err := c.client.Get(ctx, sitemapURL, fetch.Options{
		Timeout: cfg.timeout(),
		Auth:    cfg.Auth,
	})
	if err != nil {
		return nil, err
	}

	sm, err := parse.ParseSitemap(resp.Body)
	if err != nil {
		return nil, err
	}

	if !sm.Index {
		return sm.URLs, nil
	}

	if depth >= maxSitemapDepth {
		c.logger.Warn("sitemap index nested too deep", "url", sitemapURL, "depth", depth)
		walk.dropped += len(sm.URLs)
		return nil, nil
	}

	// sm.URLs is already capped at parse.MaxChildSitemaps.
	var urls []string
	for _, childURL := range sm.URLs {
		if walk.visited[childURL] {
			c.logger.Warn("child sitemap already visited", "url", childURL)
			walk.dropped++
			continue
		}
		childURLs, err := c.collectSitemap(ctx, childURL, cfg, walk, depth+1)
		if err != nil {
			c.logger.Warn("child sitemap failed", "url", childURL, "error", err)
			continue
		}
		urls = append(urls, childURLs...)
	}
	return urls, nil
}

func filterURLs(urls, include, exclude []string, maxPages int) (kept []string, skipped int) {
	for _, u := range urls {
		if !matchesInclude(u, include) || matchesAny(u, exclude) {
			skipped++
			continue
		}
		kept = append(kept, u)
	}
	if maxPages > 0 && len(kept) > maxPages {
		skipped += len(kept) - maxPages
		kept = kept[:maxPages]
	}
	return kept, skipped
}

func matchesInclude(u string, include []string) bool {
	if len(include) == 0 {
		return true
	}
	return matchesAny(u, include)
}

func matchesAny(u string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(u, p) {
			return true
		}
	}
	return false
}
