package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/kestrel-ai/kestrel/internal/document"
	"github.com/kestrel-ai/kestrel/internal/fetch"
	"github.com/kestrel-ai/kestrel/internal/log"
	"github.com/kestrel-ai/kestrel/internal/parse"
)

// Format declares how a fetched payload is decoded into source records.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// Fetcher retrieves source payloads and runs them through the adapter.
type Fetcher struct {
	client *fetch.Client
	logger log.Logger
}

// NewFetcher creates a source fetcher on top of the shared HTTP client.
func NewFetcher(client *fetch.Client, logger log.Logger) *Fetcher {
	return &Fetcher{client: client, logger: logger}
}

// FetchDocuments ingests a single URL with a declared format and mapping.
// Returns the mapped documents and the count of records skipped for missing
// content.
func (f *Fetcher) FetchDocuments(ctx context.Context, rawURL string, format Format, mapping Mapping, documentPath string, auth fetch.Auth) ([]document.Document, int, error) {
	resp, err := f.client.Get(ctx, rawURL, fetch.Options{Auth: auth})
	if err != nil {
		return nil, 0, err
	}

	var root any
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(resp.Body, &root); err != nil {
			return nil, 0, fmt.Errorf("decoding JSON from %s: %w", rawURL, err)
		}
	case FormatCSV:
		root = parse.CSV(string(resp.Body))
	default:
		return nil, 0, fmt.Errorf("unsupported source format %q", format)
	}

	return Documents(root, mapping, documentPath)
}

// FetchPreset ingests a paginated CMS collection. Pages are followed while
// each page returns exactly preset.Pagination.PageSize records, up to the
// preset's page cap; presets without pagination fetch once.
func (f *Fetcher) FetchPreset(ctx context.Context, baseURL string, preset Preset, auth fetch.Auth) ([]document.Document, int, error) {
	if preset.Pagination == nil {
		return f.FetchDocuments(ctx, baseURL, FormatJSON, preset.Mapping, preset.DocumentPath, auth)
	}

	var (
		all     []document.Document
		skipped int
		p       = preset.Pagination
	)

	for page := 0; page < p.MaxPages; page++ {
		pageURL, err := paginatedURL(baseURL, p, page)
		if err != nil {
			return nil, 0, err
		}

		docs, pageSkipped, err := f.FetchDocuments(ctx, pageURL, FormatJSON, preset.Mapping, preset.DocumentPath, auth)
		if err != nil {
			return nil, 0, fmt.Errorf("preset %s page %d: %w", preset.Name, page, err)
		}

		all = append(all, docs...)
		skipped += pageSkipped
		f.logger.Debug("fetched preset page",
			"preset", preset.Name, "page", page, "records", len(docs)+pageSkipped)

		// A short page means the collection is exhausted.
		if len(docs)+pageSkipped < p.PageSize {
			break
		}
	}

	return all, skipped, nil
}

// paginatedURL appends the pagination parameters for the given zero-based
// page index.
func paginatedURL(baseURL string, p *Pagination, page int) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL %q: %w", baseURL, err)
	}

	q := u.Query()
	if p.Offset {
		q.Set(p.PageParam, strconv.Itoa(page*p.PageSize))
	} else {
		q.Set(p.PageParam, strconv.Itoa(p.StartPage+page))
	}
	q.Set(p.SizeParam, strconv.Itoa(p.PageSize))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
