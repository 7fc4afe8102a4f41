package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kestrel-ai/kestrel/internal/document"
	"github.com/kestrel-ai/kestrel/internal/log"
)

// fakeQuerier counts calls so validation tests can assert short-circuits.
type fakeQuerier struct {
	Querier
	upserts int
	deletes int
}

func (f *fakeQuerier) UpsertDocument(context.Context, document.StoredDocument) error {
	f.upserts++
	return nil
}

func (f *fakeQuerier) DeleteDocuments(_ context.Context, _ Scope, ids []string) (int, error) {
	f.deletes++
	return len(ids), nil
}

func validDoc() document.StoredDocument {
	return document.StoredDocument{
		Document:  document.Document{ID: "d1", Content: "body"},
		TenantID:  "t1",
		Embedding: make([]float32, VectorDimension),
	}
}

func TestUpsertValidation(t *testing.T) {
	fake := &fakeQuerier{}
	s := New(fake, log.NewNop())
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(*document.StoredDocument)
		wantErr string
	}{
		{"missing tenant", func(d *document.StoredDocument) { d.TenantID = "" }, "tenant is required"},
		{"missing id", func(d *document.StoredDocument) { d.ID = "" }, "id is required"},
		{"wrong dimension", func(d *document.StoredDocument) { d.Embedding = make([]float32, 3) }, "dimension"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := validDoc()
			tt.mutate(&doc)
			err := s.Upsert(ctx, doc)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}

	if fake.upserts != 0 {
		t.Fatalf("querier reached %d times despite validation errors", fake.upserts)
	}

	if err := s.Upsert(ctx, validDoc()); err != nil {
		t.Fatal(err)
	}
	if fake.upserts != 1 {
		t.Fatalf("upserts = %d", fake.upserts)
	}
}

func TestDeleteEmptyIDs(t *testing.T) {
	fake := &fakeQuerier{}
	s := New(fake, log.NewNop())

	n, err := s.Delete(context.Background(), Scope{TenantID: "t1"}, nil)
	if err != nil || n != 0 {
		t.Fatalf("n = %d, err = %v", n, err)
	}
	if fake.deletes != 0 {
		t.Fatal("empty delete must not reach the querier")
	}
}

func TestSearchValidation(t *testing.T) {
	s := New(&fakeQuerier{}, log.NewNop())
	ctx := context.Background()

	if _, err := s.Search(ctx, SearchQuery{Limit: 5}); err == nil {
		t.Fatal("expected error without tenant")
	}
	if _, err := s.Search(ctx, SearchQuery{TenantID: "t1"}); err == nil {
		t.Fatal("expected error without positive limit")
	}
}

func TestGetNotFoundPassthrough(t *testing.T) {
	q := &errQuerier{err: ErrNotFound}
	s := New(q, log.NewNop())

	_, err := s.Get(context.Background(), Scope{TenantID: "t1"}, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound unwrapped", err)
	}
}

type errQuerier struct {
	Querier
	err error
}

func (e *errQuerier) GetDocument(context.Context, Scope, string) (document.StoredDocument, error) {
	return document.StoredDocument{}, e.err
}
