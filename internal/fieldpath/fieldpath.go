// Package fieldpath resolves dotted paths against arbitrary nested values.
//
// Source records arrive as untyped JSON trees (map[string]any / []any), CSV
// rows (map[string]string), or parsed feed items. A path such as
// "attributes.body[0].value" walks the tree one segment at a time; a segment
// may carry a single numeric index in brackets ("items[2]").
//
// Traversal is total: the moment an intermediate value is missing, nil, or an
// index is out of range, Extract reports not-found. It never panics.
package fieldpath

import (
	"strconv"
	"strings"
)

// Extract resolves path against root and returns the value it points at.
// The second return value reports whether the full path resolved.
//
// An empty path resolves to root itself.
func Extract(root any, path string) (any, bool) {
	if path == "" {
		return root, root != nil
	}

	current := root
	for _, segment := range strings.Split(path, ".") {
		if current == nil {
			return nil, false
		}

		key, index, hasIndex := splitIndex(segment)

		if key != "" {
			next, ok := lookupKey(current, key)
			if !ok {
				return nil, false
			}
			current = next
		}

		if hasIndex {
			next, ok := lookupIndex(current, index)
			if !ok {
				return nil, false
			}
			current = next
		}
	}

	if current == nil {
		return nil, false
	}
	return current, true
}

// ExtractString resolves path and coerces the result to a string.
// Numbers and booleans are formatted; structured values report not-found.
func ExtractString(root any, path string) (string, bool) {
	v, ok := Extract(root, path)
	if !ok {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case int:
		return strconv.Itoa(s), true
	case int64:
		return strconv.FormatInt(s, 10), true
	case bool:
		return strconv.FormatBool(s), true
	default:
		return "", false
	}
}

// splitIndex separates "items[2]" into ("items", 2, true).
// A bare segment returns (segment, 0, false). A malformed bracket pair is
// treated as part of the key, matching the leniency of the rest of the
// extraction pipeline.
func splitIndex(segment string) (key string, index int, hasIndex bool) {
	open := strings.IndexByte(segment, '[')
	if open < 0 || !strings.HasSuffix(segment, "]") {
		return segment, 0, false
	}

	idx, err := strconv.Atoi(segment[open+1 : len(segment)-1])
	if err != nil || idx < 0 {
		return segment, 0, false
	}
	return segment[:open], idx, true
}

func lookupKey(v any, key string) (any, bool) {
	switch m := v.(type) {
	case map[string]any:
		val, ok := m[key]
		return val, ok
	case map[string]string:
		val, ok := m[key]
		return val, ok
	default:
		return nil, false
	}
}

func lookupIndex(v any, index int) (any, bool) {
	switch s := v.(type) {
	case []any:
		if index >= len(s) {
			return nil, false
		}
		return s[index], true
	case []string:
		if index >= len(s) {
			return nil, false
		}
		return s[index], true
	case []map[string]any:
		if index >= len(s) {
			return nil, false
		}
		return s[index], true
	default:
		return nil, false
	}
}
