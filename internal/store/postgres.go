package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"

	"github.com/kestrel-ai/kestrel/internal/document"
)

// PG implements Querier against PostgreSQL with the pgvector extension.
// All queries are parameterized; metadata filters pass through json.Marshal
// before reaching the jsonb containment operator.
type PG struct {
	pool *pgxpool.Pool
}

// NewPG wraps an existing connection pool. The pool must have pgvector types
// registered; see NewPool.
func NewPG(pool *pgxpool.Pool) *PG {
	return &PG{pool: pool}
}

// NewPool creates a pgx connection pool with pgvector type support and
// settings tuned for a long-lived engine process.
func NewPool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = time.Minute
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// UpsertDocument inserts or updates by the (tenant, agent-or-shared, id) key.
// Insert stamps created_at; a conflicting write keeps created_at and bumps
// updated_at. The scope columns are part of the conflict target, so an update
// can never move a document between scopes.
func (p *PG) UpsertDocument(ctx context.Context, doc document.StoredDocument) error {
	metadata, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO documents (tenant_id, agent_id, id, content, metadata, embedding, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, now(), now())
		ON CONFLICT (tenant_id, (COALESCE(agent_id, '')), id)
		DO UPDATE SET
			content    = EXCLUDED.content,
			metadata   = EXCLUDED.metadata,
			embedding  = EXCLUDED.embedding,
			updated_at = now()`,
		doc.TenantID, doc.AgentID, doc.ID, doc.Content, metadata,
		pgvector.NewVector(doc.Embedding))
	if err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

// GetDocument fetches one document by scope and id.
func (p *PG) GetDocument(ctx context.Context, scope Scope, id string) (document.StoredDocument, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT content, metadata, embedding, created_at, COALESCE(updated_at, created_at)
		FROM documents
		WHERE tenant_id = $1 AND COALESCE(agent_id, '') = $2 AND id = $3`,
		scope.TenantID, scope.AgentID, id)

	var (
		doc      document.StoredDocument
		metadata []byte
		vec      pgvector.Vector
	)
	err := row.Scan(&doc.Content, &metadata, &vec, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return document.StoredDocument{}, ErrNotFound
	}
	if err != nil {
		return document.StoredDocument{}, fmt.Errorf("get: %w", err)
	}

	doc.ID = id
	doc.TenantID = scope.TenantID
	doc.AgentID = scope.AgentID
	doc.Embedding = vec.Slice()
	if err := json.Unmarshal(metadata, &doc.Metadata); err != nil {
		return document.StoredDocument{}, fmt.Errorf("decoding metadata for %q: %w", id, err)
	}
	return doc, nil
}

// DeleteDocuments removes documents by id within scope.
func (p *PG) DeleteDocuments(ctx context.Context, scope Scope, ids []string) (int, error) {
	tag, err := p.pool.Exec(ctx, `
		DELETE FROM documents
		WHERE tenant_id = $1 AND COALESCE(agent_id, '') = $2 AND id = ANY($3)`,
		scope.TenantID, scope.AgentID, ids)
	if err != nil {
		return 0, fmt.Errorf("delete: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// SearchDocuments runs cosine similarity search restricted by the hard
// filter: tenant always, shared-or-agent when an agent is given, metadata
// containment for caller filters.
func (p *PG) SearchDocuments(ctx context.Context, q SearchQuery) ([]Match, error) {
	var filterJSON []byte
	if len(q.Filters) > 0 {
		var err error
		filterJSON, err = json.Marshal(q.Filters)
		if err != nil {
			return nil, fmt.Errorf("marshaling filters: %w", err)
		}
	}

	rows, err := p.pool.Query(ctx, `
		SELECT id, COALESCE(agent_id, ''), content, metadata, created_at,
		       COALESCE(updated_at, created_at),
		       1 - (embedding <=> $1) AS similarity
		FROM documents
		WHERE tenant_id = $2
		  AND ($3 = '' OR agent_id IS NULL OR agent_id = $3)
		  AND ($4::jsonb IS NULL OR metadata @> $4::jsonb)
		ORDER BY embedding <=> $1
		LIMIT $5`,
		pgvector.NewVector(q.Vector), q.TenantID, q.AgentID, filterJSON, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var (
			m        Match
			metadata []byte
		)
		if err := rows.Scan(&m.Document.ID, &m.Document.AgentID, &m.Document.Content,
			&metadata, &m.Document.CreatedAt, &m.Document.UpdatedAt, &m.Similarity); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		m.Document.TenantID = q.TenantID
		if err := json.Unmarshal(metadata, &m.Document.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata for %q: %w", m.Document.ID, err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search rows: %w", err)
	}
	return matches, nil
}

// CountDocuments counts a tenant's documents.
func (p *PG) CountDocuments(ctx context.Context, tenantID string) (int64, error) {
	var n int64
	err := p.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM documents WHERE tenant_id = $1`, tenantID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}
