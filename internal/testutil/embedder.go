// Package testutil provides shared testing utilities: a deterministic
// embedder, an in-memory document store, and a PostgreSQL container harness.
package testutil

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"

	"github.com/kestrel-ai/kestrel/internal/store"
)

// MockEmbedder produces deterministic bag-of-words embeddings: each
// lowercased token hashes to one dimension. Texts sharing tokens get
// proportionally similar vectors, so similarity assertions behave like a
// crude real embedder. Safe for concurrent use.
type MockEmbedder struct {
	mu    sync.Mutex
	calls int

	// FailOn maps exact input text to an error, for failure-injection tests.
	FailOn map[string]error
}

// NewMockEmbedder creates a MockEmbedder.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{FailOn: make(map[string]error)}
}

// Embed returns a normalized vector of store.VectorDimension.
func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	err := m.FailOn[text]
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return EmbedText(text), nil
}

// Calls reports how many times Embed ran, including failed calls. Useful
// for asserting cache hit behavior.
func (m *MockEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// EmbedText is the deterministic embedding function behind MockEmbedder,
// exported so tests can compute expected vectors directly.
func EmbedText(text string) []float32 {
	v := make([]float32, store.VectorDimension)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(word))
		v[h.Sum32()%store.VectorDimension]++
	}
	return normalize(v)
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		v[0] = 1
		return v
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}

// Cosine computes cosine similarity between two equal-length vectors.
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
