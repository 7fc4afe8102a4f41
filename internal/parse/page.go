package parse

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// MinPageContent is the minimum cleaned-content length for a crawled page to
// produce a document. Shorter pages are treated as boilerplate-only.
const MinPageContent = 50

// ErrPageTooShort is returned when a page yields less than MinPageContent
// characters of content after cleanup.
var ErrPageTooShort = errors.New("page content too short")

// DefaultRemoveSelectors are the boilerplate elements stripped before
// content selection.
var DefaultRemoveSelectors = []string{
	"script", "style", "noscript", "nav", "header", "footer", "aside",
	"form", "iframe",
}

// DefaultContentSelectors are tried in order when no content selector is
// configured. The document body is the final fallback.
var DefaultContentSelectors = []string{
	"main", "article", "[role=main]", "#content", ".content", ".post", ".entry-content",
}

// PageOptions configures HTML page extraction.
type PageOptions struct {
	// ContentSelector overrides DefaultContentSelectors when set.
	ContentSelector string

	// TitleSelector overrides the default title lookup (first h1, then
	// the document title) when set.
	TitleSelector string

	// RemoveSelectors overrides DefaultRemoveSelectors when non-nil.
	RemoveSelectors []string
}

// Page is the extracted content of a single crawled HTML page.
type Page struct {
	Title   string
	Content string
}

// ExtractPage pulls the main content out of a rendered HTML page.
//
// Boilerplate elements are removed first, then the title and body are
// selected. When the configured selectors yield less than MinPageContent
// characters, readability-based extraction is attempted before giving up
// with ErrPageTooShort.
func ExtractPage(htmlData []byte, pageURL string, opts PageOptions) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(htmlData))
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}

	remove := opts.RemoveSelectors
	if remove == nil {
		remove = DefaultRemoveSelectors
	}
	for _, sel := range remove {
		doc.Find(sel).Remove()
	}

	title := extractTitle(doc, opts.TitleSelector)
	content := extractContent(doc, opts.ContentSelector)

	if len(content) < MinPageContent {
		if page, ok := extractReadable(htmlData, pageURL); ok {
			if title == "" {
				title = page.Title
			}
			content = page.Content
		}
	}

	if len(content) < MinPageContent {
		return nil, ErrPageTooShort
	}

	return &Page{Title: title, Content: content}, nil
}

func extractTitle(doc *goquery.Document, selector string) string {
	if selector != "" {
		if s := CollapseWhitespace(doc.Find(selector).First().Text()); s != "" {
			return s
		}
	}
	if s := CollapseWhitespace(doc.Find("h1").First().Text()); s != "" {
		return s
	}
	return CollapseWhitespace(doc.Find("title").First().Text())
}

func extractContent(doc *goquery.Document, selector string) string {
	selectors := DefaultContentSelectors
	if selector != "" {
		selectors = []string{selector}
	}

	for _, sel := range selectors {
		if s := CollapseWhitespace(doc.Find(sel).First().Text()); len(s) >= MinPageContent {
			return s
		}
	}

	return CollapseWhitespace(doc.Find("body").Text())
}

// extractReadable runs go-readability as a fallback for pages whose layout
// defeats selector-based extraction.
func extractReadable(htmlData []byte, pageURL string) (*Page, bool) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, false
	}

	article, err := readability.FromReader(bytes.NewReader(htmlData), u)
	if err != nil {
		return nil, false
	}

	content := CollapseWhitespace(article.TextContent)
	if content == "" {
		return nil, false
	}
	return &Page{
		Title:   CollapseWhitespace(article.Title),
		Content: content,
	}, true
}

// TitleOrFallback returns the page title, or a trimmed leading fragment of
// the content when no title was found.
func (p *Page) TitleOrFallback() string {
	if p.Title != "" {
		return p.Title
	}
	const max = 60
	if len(p.Content) <= max {
		return p.Content
	}
	cut := strings.LastIndexByte(p.Content[:max], ' ')
	if cut <= 0 {
		cut = max
	}
	return p.Content[:cut]
}
