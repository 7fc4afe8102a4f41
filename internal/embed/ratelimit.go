package embed

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited wraps an Embedder with a token-bucket limiter so bursts of
// ingestion cannot exhaust a provider's request quota. Waits respect the
// caller's context.
type RateLimited struct {
	inner   Embedder
	limiter *rate.Limiter
}

// NewRateLimited bounds inner to r requests per second with the given burst.
func NewRateLimited(inner Embedder, r float64, burst int) *RateLimited {
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(r), burst),
	}
}

// Embed waits for limiter clearance, then delegates.
func (rl *RateLimited) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := rl.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embed rate limit wait: %w", err)
	}
	return rl.inner.Embed(ctx, text)
}
