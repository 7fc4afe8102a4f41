package retrieve

import (
	"strings"
	"unicode"

	"github.com/kestrel-ai/kestrel/internal/document"
)

// renderContext formats survivors as one section per document: a title
// heading, type and URL lines, the remaining metadata as labeled fields,
// then the content body.
func renderContext(results []Scored) string {
	var b strings.Builder
	for i, res := range results {
		if i > 0 {
			b.WriteString("\n---\n\n")
		}
		renderDocument(&b, res.Document)
	}
	return b.String()
}

func renderDocument(b *strings.Builder, doc document.StoredDocument) {
	b.WriteString("## ")
	b.WriteString(headingFor(doc))
	b.WriteString("\n")

	b.WriteString("Type: ")
	b.WriteString(doc.Type())
	b.WriteString("\n")

	if url := doc.URL(); url != "" {
		b.WriteString("URL: ")
		b.WriteString(url)
		b.WriteString("\n")
	}

	for _, key := range doc.Metadata.Keys() {
		switch key {
		case document.FieldType, document.FieldTitle, document.FieldURL:
			continue
		}
		val, _ := doc.Metadata.Get(key)
		b.WriteString(Humanize(key))
		b.WriteString(": ")
		b.WriteString(val.Text())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(doc.Content)
	b.WriteString("\n")
}

func headingFor(doc document.StoredDocument) string {
	if title := doc.Title(); title != "" {
		return title
	}
	return doc.Type() + ":" + doc.ID
}

// Humanize renders a camelCase metadata key as a Title Case label:
// "publishedDate" becomes "Published Date".
func Humanize(key string) string {
	var b strings.Builder
	for i, r := range key {
		switch {
		case i == 0:
			b.WriteRune(unicode.ToUpper(r))
		case unicode.IsUpper(r):
			b.WriteRune(' ')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
