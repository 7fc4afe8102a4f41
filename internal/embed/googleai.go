package embed

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// DefaultGeminiModel is the default Gemini embedding model.
// gemini-embedding-001 supports truncation to 768 dimensions via
// OutputDimensionality; 768 matches the store's vector column.
const DefaultGeminiModel = "gemini-embedding-001"

// GeminiEmbedder produces embeddings through the Gemini API.
type GeminiEmbedder struct {
	client    *genai.Client
	model     string
	dimension int32
}

// NewGeminiEmbedder creates a Gemini-backed embedder. Model defaults to
// DefaultGeminiModel when empty; dimension must match the store schema.
func NewGeminiEmbedder(ctx context.Context, apiKey, model string, dimension int32) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &GeminiEmbedder{client: client, model: model, dimension: dimension}, nil
}

// Embed generates an embedding for text.
func (g *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	cfg := &genai.EmbedContentConfig{}
	if g.dimension > 0 {
		dim := g.dimension
		cfg.OutputDimensionality = &dim
	}

	resp, err := g.client.Models.EmbedContent(ctx, g.model,
		genai.Text(text), cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini embed failed: %w", err)
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("gemini returned no embeddings")
	}

	return resp.Embeddings[0].Values, nil
}
