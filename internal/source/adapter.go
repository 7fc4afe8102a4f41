package source

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/kestrel-ai/kestrel/internal/document"
	"github.com/kestrel-ai/kestrel/internal/fieldpath"
)

var (
	// ErrNoRecords is returned when the document path does not resolve to a
	// record array in the response envelope.
	ErrNoRecords = errors.New("document path did not resolve to records")

	// ErrEmptyContent marks a record whose content field resolved empty.
	ErrEmptyContent = errors.New("record produced no content")
)

// Documents extracts the record array at documentPath from root (empty path
// means root itself is the array, or a single record) and maps each record to
// a Document.
//
// Records whose content cannot be resolved are skipped; the skipped count is
// returned so callers can report them. A record without a resolvable id gets
// a generated one.
func Documents(root any, mapping Mapping, documentPath string) ([]document.Document, int, error) {
	records, err := recordsAt(root, documentPath)
	if err != nil {
		return nil, 0, err
	}

	docs := make([]document.Document, 0, len(records))
	skipped := 0
	for _, record := range records {
		doc, err := mapRecord(record, mapping)
		if err != nil {
			skipped++
			continue
		}
		docs = append(docs, doc)
	}
	return docs, skipped, nil
}

// recordsAt locates the array of source records in a response envelope.
func recordsAt(root any, documentPath string) ([]any, error) {
	target := root
	if documentPath != "" {
		v, ok := fieldpath.Extract(root, documentPath)
		if !ok {
			return nil, fmt.Errorf("%w: path %q", ErrNoRecords, documentPath)
		}
		target = v
	}

	switch t := target.(type) {
	case []any:
		return t, nil
	case []map[string]any:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = m
		}
		return out, nil
	case []map[string]string:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = m
		}
		return out, nil
	case map[string]any, map[string]string:
		// A single record rather than a collection.
		return []any{t}, nil
	default:
		return nil, fmt.Errorf("%w: path %q resolved to %T", ErrNoRecords, documentPath, target)
	}
}

// mapRecord builds a Document from one record. Metadata fields are emitted in
// a stable order (sorted target names) so repeated ingestions of the same
// record serialize identically.
func mapRecord(record any, mapping Mapping) (document.Document, error) {
	doc := document.Document{Metadata: document.NewMetadata()}

	if src, ok := mapping[TargetID]; ok {
		if v, resolved := src.resolve(record); resolved && v.Text() != "" {
			doc.ID = v.Text()
		}
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}

	if src, ok := mapping[TargetContent]; ok {
		if v, resolved := src.resolve(record); resolved {
			doc.Content = v.Text()
		}
	}
	if doc.Content == "" {
		return document.Document{}, ErrEmptyContent
	}

	targets := make([]string, 0, len(mapping))
	for target := range mapping {
		if target == TargetID || target == TargetContent {
			continue
		}
		targets = append(targets, target)
	}
	sort.Strings(targets)

	for _, target := range targets {
		if v, resolved := mapping[target].resolve(record); resolved {
			doc.Metadata.Set(target, v)
		}
	}

	if _, ok := doc.Metadata.Get(document.FieldType); !ok {
		doc.Metadata.Set(document.FieldType, document.String(document.DefaultType))
	}

	return doc, nil
}
