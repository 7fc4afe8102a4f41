package engine

import (
	"context"
	"testing"

	"github.com/kestrel-ai/kestrel/internal/document"
	"github.com/kestrel-ai/kestrel/internal/ingest"
	"github.com/kestrel-ai/kestrel/internal/log"
	"github.com/kestrel-ai/kestrel/internal/retrieve"
	"github.com/kestrel-ai/kestrel/internal/store"
	"github.com/kestrel-ai/kestrel/internal/testutil"
)

func newTestEngine(t *testing.T) (*Engine, *testutil.MockEmbedder) {
	t.Helper()
	logger := log.NewNop()
	embedder := testutil.NewMockEmbedder()
	eng := New(Params{
		TenantID: "tenant-1",
		Store:    store.New(testutil.NewMemQuerier(), logger),
		Embedder: embedder,
		Logger:   logger,
	})
	return eng, embedder
}

func docWith(id, content, docType string) document.Document {
	meta := document.NewMetadata()
	meta.Set(document.FieldType, document.String(docType))
	return document.Document{ID: id, Content: content, Metadata: meta}
}

func TestIngestRetrieveDelete(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	result := eng.IngestDocuments(ctx, []document.Document{
		docWith("a", "hello world", "blog"),
	}, ingest.Options{})
	if result.Indexed != 1 {
		t.Fatalf("indexed = %d", result.Indexed)
	}

	resp, err := eng.Retrieve(ctx, "hello", retrieve.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Document.ID != "a" {
		t.Fatalf("results = %+v", resp.Results)
	}
	if resp.Context == retrieve.NoContentMessage {
		t.Fatal("expected rendered context")
	}

	if _, err := eng.Delete(ctx, []string{"a"}, ingest.Options{}); err != nil {
		t.Fatal(err)
	}

	resp, err = eng.Retrieve(ctx, "hello", retrieve.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Context != retrieve.NoContentMessage {
		t.Fatalf("context after delete = %q", resp.Context)
	}
}

func TestScopeInvariant(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	// One shared document, one private to agent-a.
	eng.IngestDocuments(ctx, []document.Document{
		docWith("shared", "tenant knowledge base article", "blog"),
	}, ingest.Options{})
	eng.IngestDocuments(ctx, []document.Document{
		docWith("private", "tenant knowledge base article", "blog"),
	}, ingest.Options{AgentID: "agent-a"})

	// agent-a sees both.
	resp, err := eng.Retrieve(ctx, "tenant knowledge base article", retrieve.Options{AgentID: "agent-a"})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("agent-a results = %v", idsOf(resp))
	}

	// agent-b sees only the shared document.
	resp, err = eng.Retrieve(ctx, "tenant knowledge base article", retrieve.Options{AgentID: "agent-b"})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Document.ID != "shared" {
		t.Fatalf("agent-b results = %v", idsOf(resp))
	}

	// No agent scope retrieves tenant-wide.
	resp, err = eng.Retrieve(ctx, "tenant knowledge base article", retrieve.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("tenant-wide results = %v", idsOf(resp))
	}
}

func idsOf(resp *retrieve.Response) []string {
	out := make([]string, len(resp.Results))
	for i, r := range resp.Results {
		out[i] = r.Document.ID
	}
	return out
}

func TestQueryEmbeddingIsCached(t *testing.T) {
	eng, embedder := newTestEngine(t)
	ctx := context.Background()

	eng.IngestDocuments(ctx, []document.Document{docWith("a", "hello world", "blog")}, ingest.Options{})

	if _, err := eng.Retrieve(ctx, "hello", retrieve.Options{}); err != nil {
		t.Fatal(err)
	}
	callsAfterFirst := embedder.Calls()
	if _, err := eng.Retrieve(ctx, "hello", retrieve.Options{}); err != nil {
		t.Fatal(err)
	}
	if embedder.Calls() != callsAfterFirst {
		t.Fatal("repeated query must hit the embedding cache")
	}

	stats := eng.CacheStats()
	if stats.Hits == 0 {
		t.Fatalf("cache stats = %+v", stats)
	}
}

func TestCount(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	eng.IngestDocuments(ctx, []document.Document{
		docWith("a", "first document body", "blog"),
		docWith("b", "second document body", "blog"),
	}, ingest.Options{})

	n, err := eng.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
}
