package source

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/kestrel-ai/kestrel/internal/document"
)

func jsonRoot(t *testing.T, s string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	return v
}

func TestDocumentsMapsRecords(t *testing.T) {
	root := jsonRoot(t, `{
		"data": [
			{"id": "d1", "attributes": {"title": "One", "body": {"value": "first body"}}},
			{"id": "d2", "attributes": {"title": "Two", "body": {"value": "second body"}}}
		]
	}`)

	mapping := Mapping{
		TargetID:            FromPath("id"),
		TargetContent:       FromPath("attributes.body.value"),
		document.FieldTitle: FromPath("attributes.title"),
		document.FieldType:  Constant("article"),
	}

	docs, skipped, err := Documents(root, mapping, "data")
	if err != nil {
		t.Fatal(err)
	}
	if skipped != 0 || len(docs) != 2 {
		t.Fatalf("docs = %d, skipped = %d", len(docs), skipped)
	}
	if docs[0].ID != "d1" || docs[0].Content != "first body" {
		t.Fatalf("doc[0] = %+v", docs[0])
	}
	if docs[0].Title() != "One" || docs[0].Type() != "article" {
		t.Fatalf("metadata = %v", docs[0].Metadata.Keys())
	}
}

func TestDocumentsSkipsEmptyContent(t *testing.T) {
	root := jsonRoot(t, `[
		{"id": "keep", "body": "has a body"},
		{"id": "drop", "body": ""},
		{"id": "also-drop"}
	]`)

	docs, skipped, err := Documents(root, Mapping{
		TargetID:      FromPath("id"),
		TargetContent: FromPath("body"),
	}, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].ID != "keep" {
		t.Fatalf("docs = %+v", docs)
	}
	if skipped != 2 {
		t.Fatalf("skipped = %d, want 2", skipped)
	}
}

func TestDocumentsGeneratesMissingID(t *testing.T) {
	root := jsonRoot(t, `[{"body": "content without id"}]`)

	docs, _, err := Documents(root, Mapping{
		TargetContent: FromPath("body"),
	}, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := uuid.Parse(docs[0].ID); err != nil {
		t.Fatalf("generated id %q is not a uuid: %v", docs[0].ID, err)
	}
}

func TestDocumentsSingleRecordEnvelope(t *testing.T) {
	root := jsonRoot(t, `{"id": "solo", "body": "a single record, not a collection"}`)

	docs, _, err := Documents(root, Mapping{
		TargetID:      FromPath("id"),
		TargetContent: FromPath("body"),
	}, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].ID != "solo" {
		t.Fatalf("docs = %+v", docs)
	}
}

func TestDocumentsDefaultsType(t *testing.T) {
	root := jsonRoot(t, `[{"id": "x", "body": "typed by default"}]`)

	docs, _, err := Documents(root, Mapping{
		TargetID:      FromPath("id"),
		TargetContent: FromPath("body"),
	}, "")
	if err != nil {
		t.Fatal(err)
	}
	if docs[0].Type() != document.DefaultType {
		t.Fatalf("type = %q", docs[0].Type())
	}
}

func TestDocumentsBadPath(t *testing.T) {
	root := jsonRoot(t, `{"items": "not an array"}`)

	_, _, err := Documents(root, Mapping{TargetContent: FromPath("body")}, "items")
	if !errors.Is(err, ErrNoRecords) {
		t.Fatalf("err = %v, want ErrNoRecords", err)
	}

	_, _, err = Documents(root, Mapping{TargetContent: FromPath("body")}, "missing")
	if !errors.Is(err, ErrNoRecords) {
		t.Fatalf("err = %v, want ErrNoRecords", err)
	}
}

func TestFieldSourceConstantIgnoresRecord(t *testing.T) {
	src := Constant("fixed")
	v, ok := src.resolve(nil)
	if !ok || v.Text() != "fixed" {
		t.Fatalf("resolve = %q, %v", v.Text(), ok)
	}
}

func TestCSVRecordsThroughAdapter(t *testing.T) {
	rows := []map[string]string{
		{"id": "r1", "text": "row one content", "category": "faq"},
	}

	docs, _, err := Documents(rows, Mapping{
		TargetID:      FromPath("id"),
		TargetContent: FromPath("text"),
		"category":    FromPath("category"),
	}, "")
	if err != nil {
		t.Fatal(err)
	}
	if docs[0].Content != "row one content" {
		t.Fatalf("content = %q", docs[0].Content)
	}
	if v, _ := docs[0].Metadata.Get("category"); v.Text() != "faq" {
		t.Fatalf("category = %q", v.Text())
	}
}
