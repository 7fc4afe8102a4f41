// Package store persists scoped, embedded documents and serves filtered
// vector similarity search over them.
//
// Documents are owned by tenants; a document with an agent ID is private to
// that agent, one without is shared across the tenant. The composite key
// (tenant, agent-or-shared, id) identifies a document for upsert and delete.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/kestrel-ai/kestrel/internal/document"
	"github.com/kestrel-ai/kestrel/internal/log"
)

// VectorDimension is the embedding width of the documents table. The
// configured embedding model must produce vectors of exactly this size.
const VectorDimension = 768

// ErrNotFound is returned when a document does not exist in the given scope.
var ErrNotFound = errors.New("document not found")

// Scope identifies a document's ownership: tenant plus optional agent.
// An empty AgentID addresses shared documents.
type Scope struct {
	TenantID string
	AgentID  string
}

// SearchQuery is a filtered similarity search request.
type SearchQuery struct {
	TenantID string

	// AgentID, when set, restricts results to shared documents plus that
	// agent's private documents. Empty searches tenant-wide.
	AgentID string

	// Filters are metadata equality constraints ANDed into the hard filter.
	Filters map[string]string

	Vector []float32

	// Limit is the candidate count requested from the index.
	Limit int
}

// Match is a search candidate with its cosine similarity in [0,1].
type Match struct {
	Document   document.StoredDocument
	Similarity float64
}

// Querier is the persistence interface the Store depends on. Defined here,
// on the consumer side, so tests can swap the Postgres implementation for an
// in-memory one.
type Querier interface {
	// UpsertDocument inserts or updates a document by its scope key.
	UpsertDocument(ctx context.Context, doc document.StoredDocument) error

	// GetDocument fetches one document by scope and id.
	GetDocument(ctx context.Context, scope Scope, id string) (document.StoredDocument, error)

	// DeleteDocuments removes documents by id within scope, returning the
	// number actually deleted.
	DeleteDocuments(ctx context.Context, scope Scope, ids []string) (int, error)

	// SearchDocuments runs a filtered vector similarity search.
	SearchDocuments(ctx context.Context, q SearchQuery) ([]Match, error)

	// CountDocuments counts a tenant's documents.
	CountDocuments(ctx context.Context, tenantID string) (int64, error)
}

// Store validates and logs document persistence on top of a Querier.
// Safe for concurrent use when the underlying Querier is.
type Store struct {
	queries Querier
	logger  log.Logger
}

// New creates a Store.
func New(queries Querier, logger log.Logger) *Store {
	return &Store{queries: queries, logger: logger}
}

// Upsert writes doc under its scope key. The embedding must match
// VectorDimension; a mismatch indicates a misconfigured embedder and is
// rejected before it can corrupt the index.
func (s *Store) Upsert(ctx context.Context, doc document.StoredDocument) error {
	if doc.TenantID == "" {
		return fmt.Errorf("upserting document %q: tenant is required", doc.ID)
	}
	if doc.ID == "" {
		return fmt.Errorf("upserting document: id is required")
	}
	if len(doc.Embedding) != VectorDimension {
		return fmt.Errorf("upserting document %q: embedding dimension %d, want %d",
			doc.ID, len(doc.Embedding), VectorDimension)
	}

	if err := s.queries.UpsertDocument(ctx, doc); err != nil {
		return fmt.Errorf("upserting document %q: %w", doc.ID, err)
	}

	s.logger.Debug("upserted document",
		"tenant", doc.TenantID, "agent", doc.AgentID, "id", doc.ID,
		"content_length", len(doc.Content))
	return nil
}

// Get fetches one document by scope and id.
func (s *Store) Get(ctx context.Context, scope Scope, id string) (document.StoredDocument, error) {
	doc, err := s.queries.GetDocument(ctx, scope, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return document.StoredDocument{}, err
		}
		return document.StoredDocument{}, fmt.Errorf("getting document %q: %w", id, err)
	}
	return doc, nil
}

// Delete removes the given ids within scope and returns how many existed.
func (s *Store) Delete(ctx context.Context, scope Scope, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	n, err := s.queries.DeleteDocuments(ctx, scope, ids)
	if err != nil {
		return 0, fmt.Errorf("deleting %d documents: %w", len(ids), err)
	}

	s.logger.Debug("deleted documents", "tenant", scope.TenantID, "agent", scope.AgentID,
		"requested", len(ids), "deleted", n)
	return n, nil
}

// Search runs a filtered similarity search. The tenant filter is mandatory.
func (s *Store) Search(ctx context.Context, q SearchQuery) ([]Match, error) {
	if q.TenantID == "" {
		return nil, fmt.Errorf("search: tenant is required")
	}
	if q.Limit <= 0 {
		return nil, fmt.Errorf("search: limit must be positive, got %d", q.Limit)
	}

	matches, err := s.queries.SearchDocuments(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return matches, nil
}

// Count returns the tenant's document count.
func (s *Store) Count(ctx context.Context, tenantID string) (int64, error) {
	n, err := s.queries.CountDocuments(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}
	return n, nil
}
