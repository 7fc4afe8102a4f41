// Package engine wires the ingestion and retrieval components into one
// façade for the orchestration layer. An Engine is constructed per tenant
// and owns all mutable state (embedding cache included); there are no
// package-level singletons.
package engine

import (
	"context"
	"time"

	"github.com/kestrel-ai/kestrel/internal/crawl"
	"github.com/kestrel-ai/kestrel/internal/document"
	"github.com/kestrel-ai/kestrel/internal/embed"
	"github.com/kestrel-ai/kestrel/internal/fetch"
	"github.com/kestrel-ai/kestrel/internal/ingest"
	"github.com/kestrel-ai/kestrel/internal/log"
	"github.com/kestrel-ai/kestrel/internal/retrieve"
	"github.com/kestrel-ai/kestrel/internal/source"
	"github.com/kestrel-ai/kestrel/internal/store"
)

// Engine is the per-tenant entry point for ingestion and retrieval.
type Engine struct {
	tenantID  string
	store     *store.Store
	embedder  *embed.Cached
	pipeline  *ingest.Pipeline
	crawler   *crawl.Crawler
	retriever *retrieve.Retriever
	fetcher   *source.Fetcher
	defaults  Defaults
	logger    log.Logger
}

// Defaults are engine-level fallbacks applied when a call's options leave
// the corresponding field zero. A zero Defaults field in turn falls through
// to the owning package's default.
type Defaults struct {
	// Retrieval cutoff and result count for Retrieve.
	MinScore      float64
	RetrieveLimit int

	// Crawl batch shape for the crawl-based ingestion paths.
	CrawlConcurrency int
	CrawlDelay       time.Duration
	CrawlTimeout     time.Duration
}

// Params collects the dependencies an Engine needs. Store, Embedder, and
// Logger are required; Client defaults to a plain fetch client.
type Params struct {
	TenantID string
	Store    *store.Store
	Embedder embed.Embedder
	Client   *fetch.Client
	Logger   log.Logger

	// Cache configures the embedding cache shared by ingestion and
	// retrieval. Nil fields fall back to package defaults.
	CacheOptions []embed.CacheOption

	// Defaults tune retrieval and crawling for calls that do not set
	// their own options.
	Defaults Defaults
}

// New builds an Engine for one tenant. The embedding cache sits between
// both the ingestion and retrieval paths and the inner embedder, so a
// query repeating ingested text is a cache hit.
func New(p Params) *Engine {
	logger := p.Logger
	client := p.Client
	if client == nil {
		client = fetch.New(logger)
	}

	cache := embed.NewCache(logger, p.CacheOptions...)
	cached := embed.NewCached(p.Embedder, cache)

	pipeline := ingest.New(p.TenantID, p.Store, cached, logger)

	return &Engine{
		tenantID:  p.TenantID,
		store:     p.Store,
		embedder:  cached,
		pipeline:  pipeline,
		crawler:   crawl.New(client, pipeline, logger),
		retriever: retrieve.New(p.TenantID, p.Store, cached, logger),
		fetcher:   source.NewFetcher(client, logger),
		defaults:  p.Defaults,
		logger:    logger,
	}
}

func (e *Engine) crawlConfig(cfg crawl.Config) crawl.Config {
	if cfg.Concurrency == 0 {
		cfg.Concurrency = e.defaults.CrawlConcurrency
	}
	if cfg.Delay == 0 {
		cfg.Delay = e.defaults.CrawlDelay
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = e.defaults.CrawlTimeout
	}
	return cfg
}

// TenantID returns the tenant this engine serves.
func (e *Engine) TenantID() string { return e.tenantID }

// IngestDocuments indexes raw documents.
func (e *Engine) IngestDocuments(ctx context.Context, docs []document.Document, opts ingest.Options) *ingest.Result {
	return e.pipeline.Ingest(ctx, docs, opts)
}

// IngestFromURL fetches one endpoint, maps its records through mapping, and
// indexes the results. Format selects the decoder (json or csv).
func (e *Engine) IngestFromURL(ctx context.Context, rawURL string, format source.Format, mapping source.Mapping, documentPath string, auth fetch.Auth, opts ingest.Options) (*ingest.Result, error) {
	docs, skipped, err := e.fetcher.FetchDocuments(ctx, rawURL, format, mapping, documentPath, auth)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		e.logger.Debug("records skipped", "url", rawURL, "skipped", skipped)
	}
	return e.pipeline.Ingest(ctx, docs, opts), nil
}

// IngestFromPreset ingests a CMS endpoint using a named preset's mapping
// and pagination rule.
func (e *Engine) IngestFromPreset(ctx context.Context, presetName, baseURL string, auth fetch.Auth, opts ingest.Options) (*ingest.Result, error) {
	preset, err := source.LookupPreset(presetName)
	if err != nil {
		return nil, err
	}
	docs, skipped, err := e.fetcher.FetchPreset(ctx, baseURL, preset, auth)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		e.logger.Debug("records skipped", "preset", presetName, "skipped", skipped)
	}
	return e.pipeline.Ingest(ctx, docs, opts), nil
}

// IngestFromSitemap discovers URLs via a sitemap and crawls them.
func (e *Engine) IngestFromSitemap(ctx context.Context, cfg crawl.SitemapConfig, opts ingest.Options) (*crawl.Result, error) {
	cfg.Crawl = e.crawlConfig(cfg.Crawl)
	return e.crawler.CrawlSitemap(ctx, cfg, opts)
}

// IngestFromURLs crawls an explicit URL list.
func (e *Engine) IngestFromURLs(ctx context.Context, urls []string, cfg crawl.Config, opts ingest.Options) *crawl.Result {
	return e.crawler.Crawl(ctx, urls, e.crawlConfig(cfg), opts)
}

// IngestFromFeed indexes the items of an RSS or Atom feed.
func (e *Engine) IngestFromFeed(ctx context.Context, cfg crawl.FeedConfig, opts ingest.Options) (*crawl.Result, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = e.defaults.CrawlTimeout
	}
	return e.crawler.CrawlFeed(ctx, cfg, opts)
}

// Bulk applies a mixed list of index, update, and delete operations.
func (e *Engine) Bulk(ctx context.Context, ops []ingest.BulkOp, opts ingest.Options) *ingest.BulkResult {
	return e.pipeline.Bulk(ctx, ops, opts)
}

// Update applies a partial change to one document.
func (e *Engine) Update(ctx context.Context, id string, patch ingest.Patch, opts ingest.Options) error {
	return e.pipeline.Update(ctx, id, patch, opts)
}

// Delete removes documents by id within the scope.
func (e *Engine) Delete(ctx context.Context, ids []string, opts ingest.Options) (int, error) {
	return e.pipeline.Delete(ctx, ids, opts)
}

// Retrieve answers a semantic query with a rendered context block.
func (e *Engine) Retrieve(ctx context.Context, query string, opts retrieve.Options) (*retrieve.Response, error) {
	if opts.MinScore == 0 {
		opts.MinScore = e.defaults.MinScore
	}
	if opts.Limit == 0 {
		opts.Limit = e.defaults.RetrieveLimit
	}
	return e.retriever.Retrieve(ctx, query, opts)
}

// Count reports the tenant's total indexed documents.
func (e *Engine) Count(ctx context.Context) (int64, error) {
	return e.store.Count(ctx, e.tenantID)
}

// CacheStats exposes embedding cache hit/miss counters.
func (e *Engine) CacheStats() embed.CacheStats {
	return e.embedder.Stats()
}
