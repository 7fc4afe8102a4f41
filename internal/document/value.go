package document

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Kind identifies the concrete type held by a Value.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindBool
	KindTime
	KindStringList
)

// Value is a small tagged union over the metadata types the engine stores:
// string, number, boolean, timestamp, and string list. Modeling metadata as a
// closed union (rather than any) keeps jsonb serialization and context
// rendering deterministic.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	t    time.Time
	list []string
}

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number returns a numeric Value.
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Time returns a timestamp Value.
func Time(t time.Time) Value { return Value{kind: KindTime, t: t} }

// StringList returns a string-list Value.
func StringList(items ...string) Value {
	return Value{kind: KindStringList, list: items}
}

// Kind reports the concrete type held by v.
func (v Value) Kind() Kind { return v.kind }

// Text renders v for display and for embedding into context blocks.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		// Trim a trailing ".0" style fraction for whole numbers.
		if v.num == float64(int64(v.num)) {
			return fmt.Sprintf("%d", int64(v.num))
		}
		return fmt.Sprintf("%g", v.num)
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindTime:
		return v.t.Format(time.RFC3339)
	case KindStringList:
		return strings.Join(v.list, ", ")
	default:
		return ""
	}
}

// Num returns the numeric content of v; zero for non-numbers.
func (v Value) Num() float64 { return v.num }

// BoolVal returns the boolean content of v; false for non-booleans.
func (v Value) BoolVal() bool { return v.b }

// List returns the string-list content of v; nil for other kinds.
func (v Value) List() []string { return v.list }

// AsTime interprets v as a timestamp. Time values return directly; string
// values are parsed with a small set of common layouts. Used by the recency
// boost, which must tolerate dates that round-tripped through jsonb as text.
func (v Value) AsTime() (time.Time, bool) {
	switch v.kind {
	case KindTime:
		return v.t, true
	case KindString:
		for _, layout := range []string{
			time.RFC3339,
			"2006-01-02T15:04:05",
			"2006-01-02",
			time.RFC1123Z,
			time.RFC1123,
		} {
			if t, err := time.Parse(layout, v.str); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// MarshalJSON serializes the underlying value without a type wrapper, so the
// jsonb column stays a plain object readable by external tooling.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindTime:
		return json.Marshal(v.t.Format(time.RFC3339))
	case KindStringList:
		return json.Marshal(v.list)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON infers the Kind from the JSON shape. Timestamps come back as
// strings; AsTime handles re-parsing where a time is actually needed.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	inferred, ok := Infer(raw)
	if !ok {
		return fmt.Errorf("unsupported metadata value: %s", data)
	}
	*v = inferred
	return nil
}

// Infer converts an untyped JSON value into a Value. Unsupported shapes
// (nested objects, mixed arrays) report false.
func Infer(raw any) (Value, bool) {
	switch x := raw.(type) {
	case string:
		return String(x), true
	case float64:
		return Number(x), true
	case int:
		return Number(float64(x)), true
	case int64:
		return Number(float64(x)), true
	case bool:
		return Bool(x), true
	case time.Time:
		return Time(x), true
	case []string:
		return StringList(x...), true
	case []any:
		items := make([]string, 0, len(x))
		for _, item := range x {
			s, ok := item.(string)
			if !ok {
				return Value{}, false
			}
			items = append(items, s)
		}
		return StringList(items...), true
	case nil:
		return Value{}, false
	default:
		return Value{}, false
	}
}
