package parse

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

// FeedItem is a normalized entry from an RSS 2.0 or Atom feed.
type FeedItem struct {
	Title      string
	Link       string
	GUID       string
	Published  time.Time
	HasDate    bool
	Author     string
	Categories []string

	// Content holds the richest body available: content:encoded (RSS) or
	// <content> (Atom) when present, else description/summary. Markup is
	// preserved; callers strip it as needed.
	Content string
}

// Feed is a parsed feed with its channel-level title.
type Feed struct {
	Title string
	Items []FeedItem
}

type rssXML struct {
	Channel struct {
		Title string       `xml:"title"`
		Items []rssItemXML `xml:"item"`
	} `xml:"channel"`
}

type rssItemXML struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	GUID        string   `xml:"guid"`
	PubDate     string   `xml:"pubDate"`
	Author      string   `xml:"author"`
	Creator     string   `xml:"http://purl.org/dc/elements/1.1/ creator"`
	Categories  []string `xml:"category"`
	Description string   `xml:"description"`
	Encoded     string   `xml:"http://purl.org/rss/1.0/modules/content/ encoded"`
}

type atomXML struct {
	Title   string         `xml:"title"`
	Entries []atomEntryXML `xml:"entry"`
}

type atomEntryXML struct {
	Title     string `xml:"title"`
	ID        string `xml:"id"`
	Published string `xml:"published"`
	Updated   string `xml:"updated"`
	Author    struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Links []struct {
		Rel  string `xml:"rel,attr"`
		Href string `xml:"href,attr"`
	} `xml:"link"`
	Categories []struct {
		Term string `xml:"term,attr"`
	} `xml:"category"`
	Content string `xml:"content"`
	Summary string `xml:"summary"`
}

// ParseFeed detects the feed dialect (RSS 2.0 vs Atom) by document signature
// and extracts its entries. Fields that a lenient feed omits are simply left
// zero-valued; a missing tag is not an error.
func ParseFeed(data []byte) (*Feed, error) {
	doc := string(data)
	switch {
	case strings.Contains(doc, "<rss"):
		return parseRSS(data)
	case strings.Contains(doc, "<feed"):
		return parseAtom(data)
	default:
		return nil, fmt.Errorf("unrecognized feed format")
	}
}

func parseRSS(data []byte) (*Feed, error) {
	var rss rssXML
	if err := xml.Unmarshal(data, &rss); err != nil {
		return nil, fmt.Errorf("parsing RSS feed: %w", err)
	}

	feed := &Feed{Title: UnwrapCDATA(rss.Channel.Title)}
	for _, it := range rss.Channel.Items {
		item := FeedItem{
			Title: UnwrapCDATA(it.Title),
			Link:  strings.TrimSpace(it.Link),
			GUID:  strings.TrimSpace(it.GUID),
		}

		if t, ok := parseFeedDate(it.PubDate); ok {
			item.Published = t
			item.HasDate = true
		}

		item.Author = strings.TrimSpace(it.Author)
		if item.Author == "" {
			item.Author = strings.TrimSpace(it.Creator)
		}

		for _, c := range it.Categories {
			if c = UnwrapCDATA(c); c != "" {
				item.Categories = append(item.Categories, c)
			}
		}

		// Prefer the full-content field over the summary.
		if body := UnwrapCDATA(it.Encoded); body != "" {
			item.Content = body
		} else {
			item.Content = UnwrapCDATA(it.Description)
		}

		feed.Items = append(feed.Items, item)
	}
	return feed, nil
}

func parseAtom(data []byte) (*Feed, error) {
	var atom atomXML
	if err := xml.Unmarshal(data, &atom); err != nil {
		return nil, fmt.Errorf("parsing Atom feed: %w", err)
	}

	feed := &Feed{Title: UnwrapCDATA(atom.Title)}
	for _, e := range atom.Entries {
		item := FeedItem{
			Title:  UnwrapCDATA(e.Title),
			GUID:   strings.TrimSpace(e.ID),
			Author: strings.TrimSpace(e.Author.Name),
		}

		// Prefer rel="alternate", else the first link.
		for _, l := range e.Links {
			if l.Rel == "alternate" {
				item.Link = l.Href
				break
			}
		}
		if item.Link == "" && len(e.Links) > 0 {
			item.Link = e.Links[0].Href
		}

		dateStr := e.Published
		if dateStr == "" {
			dateStr = e.Updated
		}
		if t, ok := parseFeedDate(dateStr); ok {
			item.Published = t
			item.HasDate = true
		}

		for _, c := range e.Categories {
			if term := strings.TrimSpace(c.Term); term != "" {
				item.Categories = append(item.Categories, term)
			}
		}

		if body := UnwrapCDATA(e.Content); body != "" {
			item.Content = body
		} else {
			item.Content = UnwrapCDATA(e.Summary)
		}

		feed.Items = append(feed.Items, item)
	}
	return feed, nil
}

// feedDateLayouts covers the date formats seen in real-world feeds.
var feedDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2006-01-02",
}

func parseFeedDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range feedDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
