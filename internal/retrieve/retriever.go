// Package retrieve answers semantic queries against the document index and
// renders the survivors as a context block for an LLM prompt.
package retrieve

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/kestrel-ai/kestrel/internal/document"
	"github.com/kestrel-ai/kestrel/internal/embed"
	"github.com/kestrel-ai/kestrel/internal/log"
	"github.com/kestrel-ai/kestrel/internal/store"
)

const (
	// DefaultMinScore discards candidates below this cosine similarity.
	DefaultMinScore = 0.7

	// DefaultLimit is the result count when the caller does not set one.
	DefaultLimit = 5

	// NoContentMessage is returned when no candidate survives the cutoff.
	NoContentMessage = "No relevant content found in the knowledge base."
)

// RecencyBoost favors recently published documents. Freshness decays
// linearly from 1 at age zero to 0 at DecayDays; the score multiplier is
// 1 + (MaxBoost-1)*freshness. Documents without DateField stay unboosted.
type RecencyBoost struct {
	DateField string
	DecayDays int
	MaxBoost  float64
}

func (b RecencyBoost) enabled() bool {
	return b.DateField != "" && b.DecayDays > 0 && b.MaxBoost > 1
}

// Options scope and tune a single retrieval.
type Options struct {
	// AgentID restricts results to shared documents plus that agent's own.
	// Empty retrieves tenant-wide.
	AgentID string

	// Filters are ANDed into the search as metadata equality constraints.
	Filters map[string]string

	Limit      int
	MinScore   float64 // zero means DefaultMinScore
	TypeBoosts map[string]float64
	Recency    RecencyBoost
}

func (o Options) limit() int {
	if o.Limit > 0 {
		return o.Limit
	}
	return DefaultLimit
}

func (o Options) minScore() float64 {
	if o.MinScore > 0 {
		return o.MinScore
	}
	return DefaultMinScore
}

// Scored is one surviving result with its boosted score.
type Scored struct {
	Document   document.StoredDocument
	Similarity float64 // raw similarity from the index
	Score      float64 // similarity after boosts
}

// Response is the outcome of one retrieval.
type Response struct {
	// Context is the rendered prompt block, or NoContentMessage when
	// Results is empty.
	Context string
	Results []Scored

	// Types lists the distinct document types among Results, sorted.
	Types []string
}

// Searcher is the slice of the store the retriever consumes.
type Searcher interface {
	Search(ctx context.Context, q store.SearchQuery) ([]store.Match, error)
}

// Retriever runs scored similarity search for one tenant.
type Retriever struct {
	tenantID string
	searcher Searcher
	embedder embed.Embedder
	logger   log.Logger
	now      func() time.Time
}

// New creates a Retriever. The embedder should be cache-wrapped so repeated
// queries skip the embedding service.
func New(tenantID string, searcher Searcher, embedder embed.Embedder, logger log.Logger) *Retriever {
	return &Retriever{
		tenantID: tenantID,
		searcher: searcher,
		embedder: embedder,
		logger:   logger,
		now:      time.Now,
	}
}

// Retrieve embeds the query, searches with a hard tenant/agent filter, then
// applies the cutoff, boosts, and rendering. Embedding and search failures
// propagate to the caller.
func (r *Retriever) Retrieve(ctx context.Context, query string, opts Options) (*Response, error) {
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	// Over-fetch so the cutoff still leaves enough candidates.
	matches, err := r.searcher.Search(ctx, store.SearchQuery{
		TenantID: r.tenantID,
		AgentID:  opts.AgentID,
		Filters:  opts.Filters,
		Vector:   vector,
		Limit:    opts.limit() * 2,
	})
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	results := r.score(matches, opts)
	r.logger.Debug("retrieval scored", "tenant", r.tenantID,
		"candidates", len(matches), "survivors", len(results))

	if len(results) == 0 {
		return &Response{Context: NoContentMessage}, nil
	}
	return &Response{
		Context: renderContext(results),
		Results: results,
		Types:   resultTypes(results),
	}, nil
}

func resultTypes(results []Scored) []string {
	seen := make(map[string]bool, len(results))
	var types []string
	for _, res := range results {
		if t := res.Document.Type(); !seen[t] {
			seen[t] = true
			types = append(types, t)
		}
	}
	sort.Strings(types)
	return types
}

// score applies the cutoff first, so boosts can never rescue a candidate
// below the minimum similarity.
func (r *Retriever) score(matches []store.Match, opts Options) []Scored {
	minScore := opts.minScore()

	var results []Scored
	for _, m := range matches {
		if m.Similarity < minScore {
			continue
		}
		score := m.Similarity
		score *= typeBoost(m.Document, opts.TypeBoosts)
		score *= r.recencyBoost(m.Document, opts.Recency)
		results = append(results, Scored{
			Document:   m.Document,
			Similarity: m.Similarity,
			Score:      score,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > opts.limit() {
		results = results[:opts.limit()]
	}
	return results
}

func typeBoost(doc document.StoredDocument, boosts map[string]float64) float64 {
	if boost, ok := boosts[doc.Type()]; ok && boost > 0 {
		return boost
	}
	return 1
}

func (r *Retriever) recencyBoost(doc document.StoredDocument, b RecencyBoost) float64 {
	if !b.enabled() {
		return 1
	}
	val, ok := doc.Metadata.Get(b.DateField)
	if !ok {
		return 1
	}
	when, ok := val.AsTime()
	if !ok {
		return 1
	}

	age := r.now().Sub(when)
	window := time.Duration(b.DecayDays) * 24 * time.Hour
	freshness := math.Max(0, 1-float64(age)/float64(window))
	return 1 + (b.MaxBoost-1)*freshness
}
