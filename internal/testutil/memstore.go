package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kestrel-ai/kestrel/internal/document"
	"github.com/kestrel-ai/kestrel/internal/store"
)

type memKey struct {
	tenant string
	agent  string
	id     string
}

// MemQuerier is an in-memory store.Querier with real cosine search. It
// mirrors the Postgres implementation's scope semantics so unit tests can
// exercise the scope invariant without a database. Safe for concurrent use.
type MemQuerier struct {
	mu   sync.Mutex
	docs map[memKey]document.StoredDocument

	// FailWith, when set, makes every operation return this error.
	FailWith error
}

// NewMemQuerier creates an empty MemQuerier.
func NewMemQuerier() *MemQuerier {
	return &MemQuerier{docs: make(map[memKey]document.StoredDocument)}
}

func (m *MemQuerier) UpsertDocument(_ context.Context, doc document.StoredDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}

	key := memKey{tenant: doc.TenantID, agent: doc.AgentID, id: doc.ID}
	if existing, ok := m.docs[key]; ok {
		doc.CreatedAt = existing.CreatedAt
	} else if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	doc.UpdatedAt = time.Now()
	m.docs[key] = doc
	return nil
}

func (m *MemQuerier) GetDocument(_ context.Context, scope store.Scope, id string) (document.StoredDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return document.StoredDocument{}, m.FailWith
	}

	doc, ok := m.docs[memKey{tenant: scope.TenantID, agent: scope.AgentID, id: id}]
	if !ok {
		return document.StoredDocument{}, store.ErrNotFound
	}
	return doc, nil
}

func (m *MemQuerier) DeleteDocuments(_ context.Context, scope store.Scope, ids []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return 0, m.FailWith
	}

	deleted := 0
	for _, id := range ids {
		key := memKey{tenant: scope.TenantID, agent: scope.AgentID, id: id}
		if _, ok := m.docs[key]; ok {
			delete(m.docs, key)
			deleted++
		}
	}
	return deleted, nil
}

func (m *MemQuerier) SearchDocuments(_ context.Context, q store.SearchQuery) ([]store.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}

	var matches []store.Match
	for key, doc := range m.docs {
		if key.tenant != q.TenantID {
			continue
		}
		// Shared documents are visible to everyone in the tenant; private
		// ones only to their own agent.
		if q.AgentID != "" && key.agent != "" && key.agent != q.AgentID {
			continue
		}
		if !matchesFilters(doc, q.Filters) {
			continue
		}
		matches = append(matches, store.Match{
			Document:   doc,
			Similarity: Cosine(q.Vector, doc.Embedding),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if q.Limit > 0 && len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}
	return matches, nil
}

func (m *MemQuerier) CountDocuments(_ context.Context, tenantID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return 0, m.FailWith
	}

	var n int64
	for key := range m.docs {
		if key.tenant == tenantID {
			n++
		}
	}
	return n, nil
}

// Len reports the total stored document count across all tenants.
func (m *MemQuerier) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

func matchesFilters(doc document.StoredDocument, filters map[string]string) bool {
	for key, want := range filters {
		val, ok := doc.Metadata.Get(key)
		if !ok || val.Text() != want {
			return false
		}
	}
	return true
}
