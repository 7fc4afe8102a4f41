// Package crawl turns URL lists, sitemaps, and feeds into indexed documents.
//
// Fetching runs in fixed-size concurrent batches with a delay between
// batches, which bounds both in-flight connections and aggregate request
// rate against a single host. Every per-URL failure is recorded in the
// result and never stops the crawl.
package crawl

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kestrel-ai/kestrel/internal/document"
	"github.com/kestrel-ai/kestrel/internal/fetch"
	"github.com/kestrel-ai/kestrel/internal/ingest"
	"github.com/kestrel-ai/kestrel/internal/log"
	"github.com/kestrel-ai/kestrel/internal/parse"
)

const (
	// DefaultConcurrency is the number of URLs fetched in parallel per batch.
	DefaultConcurrency = 3

	// DefaultDelay separates consecutive batches.
	DefaultDelay = 500 * time.Millisecond

	// DefaultTimeout bounds a single page fetch.
	DefaultTimeout = 30 * time.Second
)

var errNotHTML = errors.New("response is not HTML")

// TypeRule assigns a content type to URLs containing Substring. Rules are
// evaluated in order; the first match wins.
type TypeRule struct {
	Substring string
	Type      string
}

// Config tunes a crawl run.
type Config struct {
	Concurrency     int
	Delay           time.Duration
	Timeout         time.Duration
	ContentSelector string
	TitleSelector   string
	TypeRules       []TypeRule
	DefaultType     string
	Auth            fetch.Auth
}

func (c Config) concurrency() int {
	if c.Concurrency > 0 {
		return c.Concurrency
	}
	return DefaultConcurrency
}

func (c Config) delay() time.Duration {
	if c.Delay > 0 {
		return c.Delay
	}
	return DefaultDelay
}

func (c Config) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

func (c Config) typeFor(url string) string {
	for _, rule := range c.TypeRules {
		if rule.Substring != "" && strings.Contains(url, rule.Substring) {
			return rule.Type
		}
	}
	if c.DefaultType != "" {
		return c.DefaultType
	}
	return document.DefaultType
}

// URLError records one URL that could not be fetched or extracted.
type URLError struct {
	URL string
	Err string
}

// Result aggregates one crawl run.
type Result struct {
	RunID       string
	Pages       int // pages successfully extracted
	Indexed     int
	Failed      int // documents the pipeline could not index
	URLsFailed  []URLError
	URLsSkipped int // removed by filtering or truncation before fetching
	Errors      []ingest.ItemError
}

// Ingester is the slice of the ingestion pipeline the crawler feeds.
type Ingester interface {
	Ingest(ctx context.Context, docs []document.Document, opts ingest.Options) *ingest.Result
}

// Crawler fetches pages and hands extracted documents to the pipeline.
type Crawler struct {
	client   *fetch.Client
	pipeline Ingester
	logger   log.Logger

	// sleep is swappable in tests so batch delays do not slow the suite.
	sleep func(ctx context.Context, d time.Duration)
}

// New creates a Crawler around a fetch client and an ingestion pipeline.
func New(client *fetch.Client, pipeline Ingester, logger log.Logger) *Crawler {
	return &Crawler{
		client:   client,
		pipeline: pipeline,
		logger:   logger,
		sleep:    sleepCtx,
	}
}

// Crawl fetches urls in batches of cfg.Concurrency, extracts their main
// content, and indexes the results. Per-URL failures are collected; the
// crawl itself only fails on invalid input.
func (c *Crawler) Crawl(ctx context.Context, urls []string, cfg Config, opts ingest.Options) *Result {
	result := &Result{RunID: uuid.NewString()}

	c.logger.Info("crawl started", "run", result.RunID,
		"urls", len(urls), "concurrency", cfg.concurrency())

	for start := 0; start < len(urls); start += cfg.concurrency() {
		if start > 0 {
			c.sleep(ctx, cfg.delay())
		}
		end := min(start+cfg.concurrency(), len(urls))
		docs := c.crawlBatch(ctx, urls[start:end], cfg, result)
		if len(docs) == 0 {
			continue
		}
		ingested := c.pipeline.Ingest(ctx, docs, opts)
		result.Indexed += ingested.Indexed
		result.Failed += ingested.Failed
		result.Errors = append(result.Errors, ingested.Errors...)
	}

	c.logger.Info("crawl finished", "run", result.RunID,
		"pages", result.Pages, "indexed", result.Indexed,
		"urls_failed", len(result.URLsFailed))
	return result
}

// crawlBatch fetches one batch concurrently and waits for every URL,
// including the failed ones, before returning.
func (c *Crawler) crawlBatch(ctx context.Context, urls []string, cfg Config, result *Result) []document.Document {
	type outcome struct {
		doc document.Document
		err error
	}

	outcomes := make([]outcome, len(urls))
	var wg sync.WaitGroup
	for i, pageURL := range urls {
		wg.Add(1)
		go func() {
			defer wg.Done()
			doc, err := c.fetchPage(ctx, pageURL, cfg)
			outcomes[i] = outcome{doc: doc, err: err}
		}()
	}
	wg.Wait()

	var docs []document.Document
	for i, out := range outcomes {
		if out.err != nil {
			c.logger.Warn("page failed", "url", urls[i], "error", out.err)
			result.URLsFailed = append(result.URLsFailed, URLError{URL: urls[i], Err: out.err.Error()})
			continue
		}
		result.Pages++
		docs = append(docs, out.doc)
	}
	return docs
}

func (c *Crawler) fetchPage(ctx context.Context, pageURL string, cfg Config) (document.Document, error) {
	resp, err := c.client.Get(ctx, pageURL, fetch.Options{
		Timeout: cfg.timeout(),
		Auth:    cfg.Auth,
	})
	if err != nil {
		return document.Document{}, err
	}
	if !resp.IsHTML() {
		return document.Document{}, errNotHTML
	}

	page, err := parse.ExtractPage(resp.Body, pageURL, parse.PageOptions{
		ContentSelector: cfg.ContentSelector,
		TitleSelector:   cfg.TitleSelector,
	})
	if err != nil {
		return document.Document{}, err
	}

	meta := document.NewMetadata()
	meta.Set(document.FieldType, document.String(cfg.typeFor(pageURL)))
	meta.Set(document.FieldTitle, document.String(page.TitleOrFallback()))
	meta.Set(document.FieldURL, document.String(pageURL))

	return document.Document{
		ID:       urlID(pageURL),
		Content:  page.Content,
		Metadata: meta,
	}, nil
}

// urlID derives a stable document id from a page URL, so re-crawling a page
// updates its document instead of duplicating it.
func urlID(pageURL string) string {
	sum := sha256.Sum256([]byte(pageURL))
	return hex.EncodeToString(sum[:16])
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
