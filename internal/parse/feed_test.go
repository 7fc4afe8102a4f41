package parse

import (
	"testing"
	"time"
)

const rssFixture = `<?xml version="1.0"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:dc="http://purl.org/dc/elements/1.1/">
  <channel>
    <title>Example Blog</title>
    <item>
      <title><![CDATA[First Post]]></title>
      <link>https://x/y</link>
      <guid>post-1</guid>
      <pubDate>Mon, 02 Mar 2026 10:00:00 +0000</pubDate>
      <dc:creator>alice</dc:creator>
      <category>go</category>
      <category><![CDATA[rag]]></category>
      <description><![CDATA[<p>Summary with <b>markup</b></p>]]></description>
    </item>
    <item>
      <title>Second</title>
      <link>https://x/z</link>
      <description>Short summary</description>
      <content:encoded><![CDATA[<p>Full body</p>]]></content:encoded>
    </item>
  </channel>
</rss>`

func TestParseRSS(t *testing.T) {
	feed, err := ParseFeed([]byte(rssFixture))
	if err != nil {
		t.Fatal(err)
	}
	if feed.Title != "Example Blog" {
		t.Fatalf("feed title = %q", feed.Title)
	}
	if len(feed.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(feed.Items))
	}

	first := feed.Items[0]
	if first.Title != "First Post" || first.Link != "https://x/y" || first.GUID != "post-1" {
		t.Fatalf("first item = %+v", first)
	}
	if !first.HasDate {
		t.Fatal("pubDate not parsed")
	}
	if want := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC); !first.Published.Equal(want) {
		t.Fatalf("published = %v, want %v", first.Published, want)
	}
	if first.Author != "alice" {
		t.Fatalf("author = %q, want dc:creator fallback", first.Author)
	}
	if len(first.Categories) != 2 || first.Categories[1] != "rag" {
		t.Fatalf("categories = %v", first.Categories)
	}
	// No content:encoded, so description is the body.
	if first.Content != "<p>Summary with <b>markup</b></p>" {
		t.Fatalf("content = %q", first.Content)
	}

	// content:encoded beats description.
	if feed.Items[1].Content != "<p>Full body</p>" {
		t.Fatalf("second content = %q", feed.Items[1].Content)
	}
	if feed.Items[1].HasDate {
		t.Fatal("item without pubDate must not report a date")
	}
}

const atomFixture = `<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Feed</title>
  <entry>
    <title>Entry One</title>
    <id>urn:entry-1</id>
    <published>2026-02-01T08:00:00Z</published>
    <author><name>bob</name></author>
    <link rel="self" href="https://feed/self"/>
    <link rel="alternate" href="https://site/entry-1"/>
    <category term="news"/>
    <summary>summary text</summary>
    <content>full content text</content>
  </entry>
  <entry>
    <title>Entry Two</title>
    <id>urn:entry-2</id>
    <updated>2026-02-05T08:00:00Z</updated>
    <link href="https://site/entry-2"/>
    <summary>only summary</summary>
  </entry>
</feed>`

func TestParseAtom(t *testing.T) {
	feed, err := ParseFeed([]byte(atomFixture))
	if err != nil {
		t.Fatal(err)
	}
	if feed.Title != "Atom Feed" {
		t.Fatalf("feed title = %q", feed.Title)
	}

	first := feed.Items[0]
	if first.Link != "https://site/entry-1" {
		t.Fatalf("link = %q, want rel=alternate preference", first.Link)
	}
	if first.Content != "full content text" {
		t.Fatalf("content = %q, want <content> over <summary>", first.Content)
	}
	if first.Author != "bob" || len(first.Categories) != 1 || first.Categories[0] != "news" {
		t.Fatalf("item = %+v", first)
	}

	second := feed.Items[1]
	if second.Link != "https://site/entry-2" {
		t.Fatalf("link = %q, want first link fallback", second.Link)
	}
	if !second.HasDate {
		t.Fatal("updated should back-fill a missing published date")
	}
	if second.Content != "only summary" {
		t.Fatalf("content = %q", second.Content)
	}
}

func TestParseFeedUnrecognized(t *testing.T) {
	if _, err := ParseFeed([]byte(`<urlset></urlset>`)); err == nil {
		t.Fatal("expected error for non-feed XML")
	}
}

func TestParseFeedDateLayouts(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{"Mon, 02 Mar 2026 10:00:00 +0000", true},
		{"Mon, 2 Mar 2026 10:00:00 +0000", true},
		{"2026-03-02T10:00:00Z", true},
		{"2026-03-02", true},
		{"", false},
		{"not a date", false},
	}
	for _, tt := range tests {
		if _, ok := parseFeedDate(tt.in); ok != tt.ok {
			t.Fatalf("parseFeedDate(%q) ok = %v, want %v", tt.in, ok, tt.ok)
		}
	}
}
