// Package embed provides text embedding for ingestion and retrieval: a small
// consumer-side Embedder interface, adapters for Genkit and the Gemini API, a
// rate-limited wrapper for metered providers, and a TTL/FIFO memoization
// cache shared by both paths.
package embed

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
)

// Embedder turns text into a fixed-dimensionality vector. Implementations
// wrap external embedding services; the engine treats every call as metered
// and caches aggressively.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// GenkitEmbedder adapts a Genkit ai.Embedder to the engine's Embedder
// interface.
type GenkitEmbedder struct {
	embedder ai.Embedder
}

// NewGenkitEmbedder wraps a Genkit embedder.
func NewGenkitEmbedder(embedder ai.Embedder) *GenkitEmbedder {
	return &GenkitEmbedder{embedder: embedder}
}

// Embed generates an embedding for text via the wrapped Genkit embedder.
func (g *GenkitEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := g.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			ai.DocumentFromText(text, nil),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("embed failed: %w", err)
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}

	return resp.Embeddings[0].Embedding, nil
}

// Func adapts a plain function to the Embedder interface. Used in tests and
// for lightweight custom providers.
type Func func(ctx context.Context, text string) ([]float32, error)

// Embed implements Embedder.
func (f Func) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}
