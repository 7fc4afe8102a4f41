// Package document defines the canonical document model shared by ingestion,
// storage, and retrieval.
//
// A Document is the unit of searchable content: caller-assigned ID, the text
// that gets embedded, and a metadata bag. A StoredDocument adds the scope
// (tenant, optional agent), the embedding vector, and timestamps; it is
// written only by the ingestion pipeline and read by the retrieval engine.
package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Well-known metadata fields. Every document carries a type; title and url
// are optional but drive context rendering when present.
const (
	FieldType  = "type"
	FieldTitle = "title"
	FieldURL   = "url"

	// DefaultType is assigned when a source mapping does not produce a type.
	DefaultType = "content"
)

// Document is a unit of content to index. ID is unique within its
// (tenant, agent-or-shared) scope.
type Document struct {
	ID       string
	Content  string
	Metadata Metadata
}

// Type returns the document's classification, falling back to DefaultType.
func (d Document) Type() string {
	if v, ok := d.Metadata.Get(FieldType); ok && v.Text() != "" {
		return v.Text()
	}
	return DefaultType
}

// Title returns the document's title metadata, or "".
func (d Document) Title() string {
	v, _ := d.Metadata.Get(FieldTitle)
	return v.Text()
}

// URL returns the document's url metadata, or "".
func (d Document) URL() string {
	v, _ := d.Metadata.Get(FieldURL)
	return v.Text()
}

// StoredDocument is a Document owned by the store, scoped and embedded.
// AgentID empty means the document is shared across all agents of the tenant.
type StoredDocument struct {
	Document
	TenantID  string
	AgentID   string
	Embedding []float32
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Shared reports whether the document is visible to every agent of its tenant.
func (d StoredDocument) Shared() bool { return d.AgentID == "" }

// Metadata is an insertion-ordered mapping from field name to Value.
// Order matters for deterministic context rendering; two documents with the
// same fields always render their labels in the same sequence.
type Metadata struct {
	keys   []string
	values map[string]Value
}

// NewMetadata returns empty metadata.
func NewMetadata() Metadata {
	return Metadata{values: make(map[string]Value)}
}

// Set stores a field, preserving the position of an existing key.
func (m *Metadata) Set(key string, v Value) {
	if m.values == nil {
		m.values = make(map[string]Value)
	}
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// Get returns the value for key.
func (m Metadata) Get(key string) (Value, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Keys returns field names in insertion order.
func (m Metadata) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of fields.
func (m Metadata) Len() int { return len(m.keys) }

// Merge overwrites, key by key, the fields present in other. Keys absent from
// other are left untouched (leaf-level merge).
func (m *Metadata) Merge(other Metadata) {
	for _, k := range other.keys {
		m.Set(k, other.values[k])
	}
}

// Clone returns an independent copy.
func (m Metadata) Clone() Metadata {
	out := NewMetadata()
	for _, k := range m.keys {
		out.Set(k, m.values[k])
	}
	return out
}

// MarshalJSON renders metadata as a plain JSON object. Go's encoder sorts
// nothing for us here: we emit keys in insertion order.
func (m Metadata) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, k := range m.keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf = append(buf, name...)
		buf = append(buf, ':')
		buf = append(buf, val...)
	}
	return append(buf, '}'), nil
}

// UnmarshalJSON decodes a plain JSON object, inferring each value's Kind.
// Fields with unsupported shapes (nested objects) are dropped rather than
// failing the whole document. Key order follows the wire order.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("metadata must be a JSON object, got %v", tok)
	}

	*m = NewMetadata()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key := keyTok.(string)

		var raw any
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		if v, ok := Infer(raw); ok {
			m.Set(key, v)
		}
	}
	_, err = dec.Token() // closing brace
	return err
}
