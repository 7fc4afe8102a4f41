package config

import "fmt"

// Validate checks configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	// PostgreSQL
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	// Embedding
	switch c.EmbedderProvider {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("%w: set KESTREL_GEMINI_API_KEY for the gemini provider", ErrMissingAPIKey)
		}
	case ProviderGenkit:
	default:
		return fmt.Errorf("%w: %q (supported: gemini, genkit)", ErrInvalidProvider, c.EmbedderProvider)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	// Embedding cache
	if c.CacheMaxSize < 1 {
		return fmt.Errorf("%w: must be positive, got %d", ErrInvalidCacheSize, c.CacheMaxSize)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("%w: must be positive, got %s", ErrInvalidCacheTTL, c.CacheTTL)
	}

	// Retrieval
	if c.RetrievalMinScore <= 0 || c.RetrievalMinScore > 1 {
		return fmt.Errorf("%w: must be in (0, 1], got %.2f", ErrInvalidMinScore, c.RetrievalMinScore)
	}

	// Crawler
	if c.CrawlConcurrency < 1 {
		return fmt.Errorf("%w: must be positive, got %d", ErrInvalidConcurrency, c.CrawlConcurrency)
	}

	return nil
}
