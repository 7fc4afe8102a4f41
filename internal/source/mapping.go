// Package source turns heterogeneous source records into canonical documents.
//
// A Mapping declares how to build each document field from a source record:
// either a path resolved by the field path extractor, or a constant-producing
// function. CMS presets (Drupal JSON:API, WordPress REST, Sanity GROQ, Strapi
// collections) are pure Mapping + pagination configuration over the same
// generic adapter.
package source

import (
	"github.com/kestrel-ai/kestrel/internal/document"
	"github.com/kestrel-ai/kestrel/internal/fieldpath"
)

// FieldSource is a tagged variant describing where a document field comes
// from: a path into the source record, or a zero-argument value producer.
type FieldSource struct {
	path string
	fn   func() document.Value
}

// FromPath builds a FieldSource that resolves a dotted path against each
// record.
func FromPath(path string) FieldSource {
	return FieldSource{path: path}
}

// FromFunc builds a FieldSource that produces a constant (or computed) value
// independent of the record.
func FromFunc(fn func() document.Value) FieldSource {
	return FieldSource{fn: fn}
}

// Constant builds a FieldSource that always yields the given string.
func Constant(s string) FieldSource {
	return FromFunc(func() document.Value { return document.String(s) })
}

// resolve evaluates the field source against record.
func (f FieldSource) resolve(record any) (document.Value, bool) {
	if f.fn != nil {
		return f.fn(), true
	}
	raw, ok := fieldpath.Extract(record, f.path)
	if !ok {
		return document.Value{}, false
	}
	return document.Infer(raw)
}

// Mapping maps document target fields to their sources. The "id" and
// "content" targets populate the document identity and body; every other
// target becomes a metadata field. A missing "type" target defaults to
// document.DefaultType.
type Mapping map[string]FieldSource

// Reserved target names handled outside the metadata bag.
const (
	TargetID      = "id"
	TargetContent = "content"
)
