package parse

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// MaxChildSitemaps bounds the fan-out when expanding a sitemap index.
const MaxChildSitemaps = 10

// Sitemap is a parsed sitemap document: either a leaf urlset with page URLs,
// or an index whose entries are child sitemap URLs.
type Sitemap struct {
	// Index reports whether the document was a <sitemapindex>.
	Index bool

	// URLs holds page locations for a leaf sitemap, or child sitemap
	// locations for an index. Index entries are capped at MaxChildSitemaps.
	URLs []string
}

type urlsetXML struct {
	URLs []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

type sitemapIndexXML struct {
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// ParseSitemap detects whether data is a sitemap index or a leaf urlset and
// extracts its locations. Entries with empty <loc> values are skipped.
func ParseSitemap(data []byte) (*Sitemap, error) {
	trimmed := strings.TrimSpace(string(data))

	switch {
	case strings.Contains(trimmed, "<sitemapindex"):
		var idx sitemapIndexXML
		if err := xml.Unmarshal(data, &idx); err != nil {
			return nil, fmt.Errorf("parsing sitemap index: %w", err)
		}
		sm := &Sitemap{Index: true}
		for _, entry := range idx.Sitemaps {
			if len(sm.URLs) >= MaxChildSitemaps {
				break
			}
			if loc := strings.TrimSpace(entry.Loc); loc != "" {
				sm.URLs = append(sm.URLs, loc)
			}
		}
		return sm, nil

	case strings.Contains(trimmed, "<urlset"):
		var set urlsetXML
		if err := xml.Unmarshal(data, &set); err != nil {
			return nil, fmt.Errorf("parsing sitemap: %w", err)
		}
		sm := &Sitemap{}
		for _, entry := range set.URLs {
			if loc := strings.TrimSpace(entry.Loc); loc != "" {
				sm.URLs = append(sm.URLs, loc)
			}
		}
		return sm, nil

	default:
		return nil, fmt.Errorf("not a sitemap document")
	}
}
