package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"

	"github.com/kestrel-ai/kestrel/db"
	"github.com/kestrel-ai/kestrel/internal/config"
	"github.com/kestrel-ai/kestrel/internal/embed"
	"github.com/kestrel-ai/kestrel/internal/log"
	"github.com/kestrel-ai/kestrel/internal/store"
)

// NewFromConfig assembles a ready-to-use Engine from loaded configuration:
// it runs pending migrations, opens the connection pool, selects the
// configured embedding provider, and applies the rate-limit, cache,
// retrieval, and crawl settings. The returned cleanup closes the pool.
func NewFromConfig(ctx context.Context, tenantID string, cfg *config.Config, logger log.Logger) (*Engine, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("validating configuration: %w", err)
	}

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, err := store.NewPool(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("opening connection pool: %w", err)
	}

	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	if cfg.EmbedRateLimit > 0 {
		embedder = embed.NewRateLimited(embedder, cfg.EmbedRateLimit, rateBurst(cfg.EmbedRateLimit))
	}

	eng := New(Params{
		TenantID: tenantID,
		Store:    store.New(store.NewPG(pool), logger),
		Embedder: embedder,
		Logger:   logger,
		CacheOptions: []embed.CacheOption{
			embed.WithTTL(cfg.CacheTTL),
			embed.WithMaxSize(cfg.CacheMaxSize),
		},
		Defaults: Defaults{
			MinScore:         cfg.RetrievalMinScore,
			RetrieveLimit:    cfg.RetrievalLimit,
			CrawlConcurrency: cfg.CrawlConcurrency,
			CrawlDelay:       cfg.CrawlDelay,
			CrawlTimeout:     cfg.CrawlTimeout,
		},
	})
	return eng, pool.Close, nil
}

// newEmbedder builds the configured embedding provider. The gemini provider
// talks to the Gemini API directly; the genkit provider goes through a
// Genkit instance with the Google AI plugin, where an empty API key falls
// back to the GEMINI_API_KEY environment variable.
func newEmbedder(ctx context.Context, cfg *config.Config) (embed.Embedder, error) {
	switch cfg.EmbedderProvider {
	case config.ProviderGemini:
		return embed.NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbedderModel, store.VectorDimension)
	case config.ProviderGenkit:
		g := genkit.Init(ctx,
			genkit.WithPlugins(&googlegenai.GoogleAI{APIKey: cfg.GeminiAPIKey}),
		)
		if g == nil {
			return nil, errors.New("initializing genkit")
		}
		return embed.NewGenkitEmbedder(googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)), nil
	default:
		return nil, fmt.Errorf("%w: %s", config.ErrInvalidProvider, cfg.EmbedderProvider)
	}
}

// rateBurst sizes the limiter burst to roughly one second of requests.
func rateBurst(limit float64) int {
	burst := int(limit)
	if burst < 1 {
		burst = 1
	}
	return burst
}
