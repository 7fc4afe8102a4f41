package retrieve

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/kestrel-ai/kestrel/internal/document"
	"github.com/kestrel-ai/kestrel/internal/embed"
	"github.com/kestrel-ai/kestrel/internal/log"
	"github.com/kestrel-ai/kestrel/internal/store"
)

// stubSearcher returns canned matches and records the query it saw.
type stubSearcher struct {
	matches []store.Match
	err     error
	lastQ   store.SearchQuery
}

func (s *stubSearcher) Search(_ context.Context, q store.SearchQuery) ([]store.Match, error) {
	s.lastQ = q
	return s.matches, s.err
}

func stubEmbedder() embed.Embedder {
	return embed.Func(func(context.Context, string) ([]float32, error) {
		return make([]float32, store.VectorDimension), nil
	})
}

func matchOf(id, docType string, similarity float64) store.Match {
	meta := document.NewMetadata()
	meta.Set(document.FieldType, document.String(docType))
	return store.Match{
		Document: document.StoredDocument{
			Document: document.Document{ID: id, Content: "body of " + id, Metadata: meta},
			TenantID: "tenant-1",
		},
		Similarity: similarity,
	}
}

func newTestRetriever(s Searcher) *Retriever {
	return New("tenant-1", s, stubEmbedder(), log.NewNop())
}

func TestRetrieveCutoff(t *testing.T) {
	searcher := &stubSearcher{matches: []store.Match{
		matchOf("high", "blog", 0.91),
		matchOf("edge", "blog", 0.70),
		matchOf("low", "blog", 0.69),
	}}

	resp, err := newTestRetriever(searcher).Retrieve(context.Background(), "query", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("results = %d, want 2 at or above the cutoff", len(resp.Results))
	}
	for _, r := range resp.Results {
		if r.Document.ID == "low" {
			t.Fatal("sub-cutoff result leaked through")
		}
	}
}

func TestRetrieveBoostCannotRescueBelowCutoff(t *testing.T) {
	searcher := &stubSearcher{matches: []store.Match{
		matchOf("boosted-low", "blog", 0.5),
	}}

	// Even a 10x type boost applies only after the cutoff.
	resp, err := newTestRetriever(searcher).Retrieve(context.Background(), "query", Options{
		TypeBoosts: map[string]float64{"blog": 10},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 0 {
		t.Fatal("boost rescued a below-cutoff result")
	}
	if resp.Context != NoContentMessage {
		t.Fatalf("context = %q", resp.Context)
	}
}

func TestRetrieveTypeBoostReorders(t *testing.T) {
	searcher := &stubSearcher{matches: []store.Match{
		matchOf("plain", "page", 0.90),
		matchOf("boosted", "faq", 0.80),
	}}

	resp, err := newTestRetriever(searcher).Retrieve(context.Background(), "query", Options{
		TypeBoosts: map[string]float64{"faq": 1.5},
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Results[0].Document.ID != "boosted" {
		t.Fatalf("first result = %s, want the boosted faq", resp.Results[0].Document.ID)
	}
	// The raw similarity is preserved alongside the boosted score.
	if resp.Results[0].Similarity != 0.80 || resp.Results[0].Score < 1.19 {
		t.Fatalf("scored = %+v", resp.Results[0])
	}
}

func TestRetrieveRecencyBoost(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	fresh := matchOf("fresh", "article", 0.80)
	fresh.Document.Metadata.Set("publishedDate", document.Time(now.AddDate(0, 0, -1)))

	stale := matchOf("stale", "article", 0.85)
	stale.Document.Metadata.Set("publishedDate", document.Time(now.AddDate(0, 0, -90)))

	undated := matchOf("undated", "article", 0.82)

	searcher := &stubSearcher{matches: []store.Match{stale, undated, fresh}}
	r := newTestRetriever(searcher)
	r.now = func() time.Time { return now }

	resp, err := r.Retrieve(context.Background(), "query", Options{
		Recency: RecencyBoost{DateField: "publishedDate", DecayDays: 30, MaxBoost: 1.5},
	})
	if err != nil {
		t.Fatal(err)
	}

	// fresh: one day into a 30-day window, so nearly the full 1.5x boost.
	// stale: past the window, freshness clamps to 0, no boost.
	// undated: no date field, left unboosted.
	if resp.Results[0].Document.ID != "fresh" {
		t.Fatalf("order = %v", ids(resp.Results))
	}
	for _, res := range resp.Results {
		switch res.Document.ID {
		case "stale":
			if res.Score != res.Similarity {
				t.Fatalf("stale score = %v, want unboosted", res.Score)
			}
		case "undated":
			if res.Score != res.Similarity {
				t.Fatalf("undated score = %v, want unboosted", res.Score)
			}
		}
	}
}

func ids(results []Scored) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Document.ID
	}
	return out
}

func TestRetrieveLimitAndOverfetch(t *testing.T) {
	var matches []store.Match
	for _, id := range []string{"a", "b", "c", "d"} {
		matches = append(matches, matchOf(id, "page", 0.9))
	}
	searcher := &stubSearcher{matches: matches}

	resp, err := newTestRetriever(searcher).Retrieve(context.Background(), "query", Options{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("results = %d, want limit 2", len(resp.Results))
	}
	// The index is asked for twice the limit to survive post-filtering.
	if searcher.lastQ.Limit != 4 {
		t.Fatalf("search limit = %d, want 4", searcher.lastQ.Limit)
	}
}

func TestRetrieveScopeAndFiltersForwarded(t *testing.T) {
	searcher := &stubSearcher{}
	_, err := newTestRetriever(searcher).Retrieve(context.Background(), "query", Options{
		AgentID: "agent-9",
		Filters: map[string]string{"type": "faq"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if searcher.lastQ.TenantID != "tenant-1" || searcher.lastQ.AgentID != "agent-9" {
		t.Fatalf("query scope = %+v", searcher.lastQ)
	}
	if searcher.lastQ.Filters["type"] != "faq" {
		t.Fatalf("filters = %v", searcher.lastQ.Filters)
	}
}

func TestRetrieveErrorsPropagate(t *testing.T) {
	searchErr := errors.New("index down")
	searcher := &stubSearcher{err: searchErr}
	if _, err := newTestRetriever(searcher).Retrieve(context.Background(), "query", Options{}); !errors.Is(err, searchErr) {
		t.Fatalf("err = %v, want search error", err)
	}

	embedErr := errors.New("embedder down")
	r := New("tenant-1", &stubSearcher{}, embed.Func(func(context.Context, string) ([]float32, error) {
		return nil, embedErr
	}), log.NewNop())
	if _, err := r.Retrieve(context.Background(), "query", Options{}); !errors.Is(err, embedErr) {
		t.Fatalf("err = %v, want embed error", err)
	}
}

func TestRenderContext(t *testing.T) {
	meta := document.NewMetadata()
	meta.Set(document.FieldType, document.String("article"))
	meta.Set(document.FieldTitle, document.String("Release Notes"))
	meta.Set(document.FieldURL, document.String("https://x/notes"))
	meta.Set("publishedDate", document.String("2026-03-01"))
	meta.Set("viewCount", document.Number(12))

	withTitle := Scored{Document: document.StoredDocument{
		Document: document.Document{ID: "n1", Content: "The notes body.", Metadata: meta},
	}}

	bare := Scored{Document: document.StoredDocument{
		Document: document.Document{ID: "n2", Content: "Untitled body."},
	}}

	out := renderContext([]Scored{withTitle, bare})

	for _, want := range []string{
		"## Release Notes",
		"Type: article",
		"URL: https://x/notes",
		"Published Date: 2026-03-01", // humanized label
		"View Count: 12",
		"The notes body.",
		"## content:n2", // type:id fallback heading
		"\n---\n",       // section separator
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("rendered context missing %q:\n%s", want, out)
		}
	}
	// Well-known fields must not be repeated as generic labels.
	if strings.Contains(out, "Title: Release Notes") {
		t.Fatalf("title leaked as generic field:\n%s", out)
	}
}

func TestHumanize(t *testing.T) {
	tests := []struct{ in, want string }{
		{"publishedDate", "Published Date"},
		{"url", "Url"},
		{"viewCountTotal", "View Count Total"},
		{"already", "Already"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Humanize(tt.in); got != tt.want {
			t.Fatalf("Humanize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRetrieveResponseTypes(t *testing.T) {
	searcher := &stubSearcher{matches: []store.Match{
		matchOf("p1", "page", 0.95),
		matchOf("f1", "faq", 0.90),
		matchOf("p2", "page", 0.85),
	}}

	resp, err := newTestRetriever(searcher).Retrieve(context.Background(), "query", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"faq", "page"}; !reflect.DeepEqual(resp.Types, want) {
		t.Fatalf("types = %v, want %v", resp.Types, want)
	}

	// No survivors means no types.
	searcher.matches = []store.Match{matchOf("low", "page", 0.1)}
	resp, err = newTestRetriever(searcher).Retrieve(context.Background(), "query", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Types) != 0 {
		t.Fatalf("types = %v, want none", resp.Types)
	}
}
