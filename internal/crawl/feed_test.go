package crawl

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kestrel-ai/kestrel/internal/ingest"
)

const feedFixture = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Example Feed</title>
    <item>
      <title>Announcement</title>
      <link>https://x/y</link>
      <guid>item-1</guid>
      <pubDate>Mon, 02 Mar 2026 10:00:00 +0000</pubDate>
      <category>news</category>
      <description><![CDATA[<p>Plain <b>description</b> text</p>]]></description>
    </item>
    <item>
      <title>No GUID</title>
      <link>https://x/z</link>
      <description>second item body</description>
    </item>
  </channel>
</rss>`

func TestCrawlFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, feedFixture)
	}))
	defer srv.Close()

	sink := &recordingIngester{}
	c := newTestCrawler(sink)

	result, err := c.CrawlFeed(context.Background(), FeedConfig{URL: srv.URL}, ingest.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if result.Indexed != 2 {
		t.Fatalf("indexed = %d, want 2", result.Indexed)
	}

	docs := sink.all()
	first := docs[0]

	// The item link lands in metadata and the description is the stripped body.
	if first.URL() != "https://x/y" {
		t.Fatalf("url = %q, want https://x/y", first.URL())
	}
	if first.Content != "Plain description text" {
		t.Fatalf("content = %q", first.Content)
	}
	if first.Type() != DefaultFeedType || first.Title() != "Announcement" {
		t.Fatalf("metadata = %v", first.Metadata.Keys())
	}
	if first.ID != urlID("item-1") {
		t.Fatalf("id = %q, want derived from guid", first.ID)
	}
	if v, ok := first.Metadata.Get("publishedDate"); !ok {
		t.Fatal("publishedDate missing")
	} else if ts, ok := v.AsTime(); !ok || ts.IsZero() {
		t.Fatalf("publishedDate = %v", v.Text())
	}

	// Without a guid the link identifies the item.
	if docs[1].ID != urlID("https://x/z") {
		t.Fatalf("second id = %q", docs[1].ID)
	}
	if _, ok := docs[1].Metadata.Get("publishedDate"); ok {
		t.Fatal("item without pubDate must not carry a publishedDate")
	}
}

func TestCrawlFeedBadPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"not": "a feed"}`)
	}))
	defer srv.Close()

	c := newTestCrawler(&recordingIngester{})
	if _, err := c.CrawlFeed(context.Background(), FeedConfig{URL: srv.URL}, ingest.Options{}); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestCrawlFeedTypeOverride(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feedFixture)
	}))
	defer srv.Close()

	sink := &recordingIngester{}
	c := newTestCrawler(sink)

	if _, err := c.CrawlFeed(context.Background(), FeedConfig{URL: srv.URL, Type: "release-note"}, ingest.Options{}); err != nil {
		t.Fatal(err)
	}
	if got := sink.all()[0].Type(); got != "release-note" {
		t.Fatalf("type = %q", got)
	}
}
