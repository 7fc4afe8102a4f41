package source

import (
	"fmt"

	"github.com/kestrel-ai/kestrel/internal/document"
)

// Pagination is a page-size continuation rule for collection endpoints:
// follow pages while a page returns exactly PageSize records, up to MaxPages.
type Pagination struct {
	// PageParam is the query parameter carrying the page number, or the
	// record offset when Offset is true.
	PageParam string

	// SizeParam is the query parameter carrying the page size.
	SizeParam string

	PageSize  int
	MaxPages  int
	StartPage int

	// Offset switches PageParam to record-offset semantics
	// (page[offset]=N*pageSize instead of page=N).
	Offset bool
}

// DefaultMaxPages caps preset pagination when a preset does not set its own.
const DefaultMaxPages = 20

// Preset is a named CMS configuration: a document path into the response
// envelope, a field mapping, and an optional pagination rule. Presets carry
// no logic of their own; they parameterize the generic adapter.
type Preset struct {
	Name         string
	DocumentPath string
	Mapping      Mapping
	Pagination   *Pagination
}

// Preset names accepted by the ingestion entry points.
const (
	PresetDrupal    = "drupal"
	PresetWordPress = "wordpress"
	PresetSanity    = "sanity"
	PresetStrapiV3  = "strapi-v3"
	PresetStrapiV4  = "strapi-v4"
)

// LookupPreset returns the named CMS preset.
func LookupPreset(name string) (Preset, error) {
	switch name {
	case PresetDrupal:
		return drupalPreset(), nil
	case PresetWordPress:
		return wordPressPreset(), nil
	case PresetSanity:
		return sanityPreset(), nil
	case PresetStrapiV3:
		return strapiV3Preset(), nil
	case PresetStrapiV4:
		return strapiV4Preset(), nil
	default:
		return Preset{}, fmt.Errorf("unknown CMS preset %q", name)
	}
}

// drupalPreset reads a Drupal JSON:API collection: records under "data",
// fields under "attributes", offset-based paging.
func drupalPreset() Preset {
	return Preset{
		Name:         PresetDrupal,
		DocumentPath: "data",
		Mapping: Mapping{
			TargetID:            FromPath("id"),
			TargetContent:       FromPath("attributes.body.value"),
			document.FieldTitle: FromPath("attributes.title"),
			document.FieldType:  FromPath("type"),
			"createdAt":         FromPath("attributes.created"),
			"updatedAt":         FromPath("attributes.changed"),
		},
		Pagination: &Pagination{
			PageParam: "page[offset]",
			SizeParam: "page[limit]",
			PageSize:  50,
			MaxPages:  DefaultMaxPages,
			Offset:    true,
		},
	}
}

// wordPressPreset reads the WordPress REST posts collection: a bare array of
// posts with rendered HTML fields, 1-based page numbers.
func wordPressPreset() Preset {
	return Preset{
		Name: PresetWordPress,
		Mapping: Mapping{
			TargetID:            FromPath("id"),
			TargetContent:       FromPath("content.rendered"),
			document.FieldTitle: FromPath("title.rendered"),
			document.FieldURL:   FromPath("link"),
			document.FieldType:  Constant("post"),
			"publishedAt":       FromPath("date"),
			"excerpt":           FromPath("excerpt.rendered"),
		},
		Pagination: &Pagination{
			PageParam: "page",
			SizeParam: "per_page",
			PageSize:  100,
			MaxPages:  DefaultMaxPages,
			StartPage: 1,
		},
	}
}

// sanityPreset reads a Sanity GROQ query response: records under "result".
// GROQ queries express their own limits, so no pagination rule applies.
func sanityPreset() Preset {
	return Preset{
		Name:         PresetSanity,
		DocumentPath: "result",
		Mapping: Mapping{
			TargetID:            FromPath("_id"),
			TargetContent:       FromPath("body"),
			document.FieldTitle: FromPath("title"),
			document.FieldType:  FromPath("_type"),
			"updatedAt":         FromPath("_updatedAt"),
		},
	}
}

// strapiV3Preset reads a Strapi v3 collection: a bare array with flat fields,
// offset-based paging via _start/_limit.
func strapiV3Preset() Preset {
	return Preset{
		Name: PresetStrapiV3,
		Mapping: Mapping{
			TargetID:            FromPath("id"),
			TargetContent:       FromPath("content"),
			document.FieldTitle: FromPath("title"),
			document.FieldType:  Constant("content"),
			"publishedAt":       FromPath("published_at"),
		},
		Pagination: &Pagination{
			PageParam: "_start",
			SizeParam: "_limit",
			PageSize:  100,
			MaxPages:  DefaultMaxPages,
			Offset:    true,
		},
	}
}

// strapiV4Preset reads a Strapi v4 collection: records under "data", fields
// under "attributes", page-number paging.
func strapiV4Preset() Preset {
	return Preset{
		Name:         PresetStrapiV4,
		DocumentPath: "data",
		Mapping: Mapping{
			TargetID:            FromPath("id"),
			TargetContent:       FromPath("attributes.content"),
			document.FieldTitle: FromPath("attributes.title"),
			document.FieldType:  Constant("content"),
			"publishedAt":       FromPath("attributes.publishedAt"),
		},
		Pagination: &Pagination{
			PageParam: "pagination[page]",
			SizeParam: "pagination[pageSize]",
			PageSize:  100,
			MaxPages:  DefaultMaxPages,
			StartPage: 1,
		},
	}
}
