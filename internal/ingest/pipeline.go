// Package ingest implements the ingestion pipeline: batching documents,
// requesting (cached) embeddings, and upserting into the store scoped by
// tenant and optional agent.
//
// The pipeline is best-effort per item: one document's failure is recorded in
// the result and never aborts the rest of its batch or subsequent batches.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kestrel-ai/kestrel/internal/document"
	"github.com/kestrel-ai/kestrel/internal/embed"
	"github.com/kestrel-ai/kestrel/internal/log"
	"github.com/kestrel-ai/kestrel/internal/store"
)

// DefaultBatchSize is the number of documents embedded and upserted per
// batch when the caller does not override it.
const DefaultBatchSize = 10

// ErrNotFound mirrors store.ErrNotFound for callers of Update.
var ErrNotFound = store.ErrNotFound

// Options scope a pipeline call.
type Options struct {
	// AgentID, when set, writes documents as private to that agent.
	// Empty writes shared (tenant-wide) documents.
	AgentID string

	// BatchSize overrides DefaultBatchSize when positive.
	BatchSize int
}

func (o Options) batchSize() int {
	if o.BatchSize > 0 {
		return o.BatchSize
	}
	return DefaultBatchSize
}

// ItemError records one document's failure.
type ItemError struct {
	ID  string
	Err string
}

// Result aggregates a single ingestion call.
type Result struct {
	Indexed int
	Failed  int
	Errors  []ItemError
}

// Success reports whether every document indexed.
func (r *Result) Success() bool { return r.Failed == 0 }

func (r *Result) recordFailure(id string, err error) {
	r.Failed++
	r.Errors = append(r.Errors, ItemError{ID: id, Err: err.Error()})
}

// Patch is a partial document update. Nil fields are left unchanged.
type Patch struct {
	Content  *string
	Metadata document.Metadata // merged key by key; empty merges nothing
}

// DocStore is the persistence surface the pipeline writes through.
type DocStore interface {
	Upsert(ctx context.Context, doc document.StoredDocument) error
	Get(ctx context.Context, scope store.Scope, id string) (document.StoredDocument, error)
	Delete(ctx context.Context, scope store.Scope, ids []string) (int, error)
}

// Pipeline ingests documents for one tenant.
type Pipeline struct {
	tenantID string
	store    DocStore
	embedder embed.Embedder
	logger   log.Logger
	now      func() time.Time
}

// New creates a Pipeline. The embedder is expected to be cache-wrapped; the
// pipeline itself embeds documents one at a time so every piece of content
// passes through the cache.
func New(tenantID string, docs DocStore, embedder embed.Embedder, logger log.Logger) *Pipeline {
	return &Pipeline{
		tenantID: tenantID,
		store:    docs,
		embedder: embedder,
		logger:   logger,
		now:      time.Now,
	}
}

// Ingest embeds and upserts docs in fixed-size batches. Every document's
// outcome lands in the Result; the error return is reserved for invalid
// input (nothing to ingest is not an error).
func (p *Pipeline) Ingest(ctx context.Context, docs []document.Document, opts Options) *Result {
	result := &Result{}
	size := opts.batchSize()

	for start := 0; start < len(docs); start += size {
		end := min(start+size, len(docs))
		p.ingestBatch(ctx, docs[start:end], opts, result)
	}

	p.logger.Info("ingestion finished",
		"tenant", p.tenantID, "agent", opts.AgentID,
		"indexed", result.Indexed, "failed", result.Failed)
	return result
}

func (p *Pipeline) ingestBatch(ctx context.Context, batch []document.Document, opts Options, result *Result) {
	for _, doc := range batch {
		if err := p.ingestOne(ctx, doc, opts.AgentID); err != nil {
			p.logger.Warn("document failed", "id", doc.ID, "error", err)
			result.recordFailure(doc.ID, err)
			continue
		}
		result.Indexed++
	}
}

func (p *Pipeline) ingestOne(ctx context.Context, doc document.Document, agentID string) error {
	if doc.ID == "" {
		return errors.New("document id is required")
	}
	if doc.Content == "" {
		return errors.New("document content is empty")
	}

	vector, err := p.embedder.Embed(ctx, doc.Content)
	if err != nil {
		return fmt.Errorf("embedding: %w", err)
	}

	if doc.Metadata.Len() == 0 {
		doc.Metadata = document.NewMetadata()
	}
	if _, ok := doc.Metadata.Get(document.FieldType); !ok {
		doc.Metadata.Set(document.FieldType, document.String(document.DefaultType))
	}

	return p.store.Upsert(ctx, document.StoredDocument{
		Document:  doc,
		TenantID:  p.tenantID,
		AgentID:   agentID,
		Embedding: vector,
		CreatedAt: p.now(),
	})
}

// Update applies a partial change to one document. Content changes trigger
// re-embedding; metadata is merged at the leaf level (each provided key
// overwrites only that key). The document's scope never changes.
func (p *Pipeline) Update(ctx context.Context, id string, patch Patch, opts Options) error {
	scope := store.Scope{TenantID: p.tenantID, AgentID: opts.AgentID}

	existing, err := p.store.Get(ctx, scope, id)
	if err != nil {
		return err
	}

	if patch.Content != nil && *patch.Content != existing.Content {
		existing.Content = *patch.Content
		vector, err := p.embedder.Embed(ctx, existing.Content)
		if err != nil {
			return fmt.Errorf("re-embedding %q: %w", id, err)
		}
		existing.Embedding = vector
	}

	existing.Metadata.Merge(patch.Metadata)

	if err := p.store.Upsert(ctx, existing); err != nil {
		return err
	}

	p.logger.Debug("updated document", "id", id,
		"re_embedded", patch.Content != nil)
	return nil
}

// Delete removes documents by id within the call's scope. Returns the number
// actually removed.
func (p *Pipeline) Delete(ctx context.Context, ids []string, opts Options) (int, error) {
	scope := store.Scope{TenantID: p.tenantID, AgentID: opts.AgentID}
	return p.store.Delete(ctx, scope, ids)
}
