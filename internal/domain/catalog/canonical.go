package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/shopspring/decimal"
)

// ErrTrailingData is returned when a payload holds more than one JSON value.
var ErrTrailingData = errors.New("catalog: trailing data after payload")

// Canonicalize decodes a JSON payload into generic values where every number
// is normalized: integral decimals become int64, fractional ones float64.
// Stored and freshly computed payloads therefore compare equal regardless of
// how their numbers were written ("10", 10, 10.0).
func Canonicalize(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("catalog: canonicalize payload: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, ErrTrailingData
	}
	return canonicalValue(v), nil
}

func canonicalValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = canonicalValue(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = canonicalValue(item)
		}
		return t
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			return t.String()
		}
		if d.IsInteger() {
			return d.IntPart()
		}
		f, _ := d.Float64()
		return f
	default:
		return v
	}
}

// sortMembers orders a list by the canonical JSON encoding of its members so
// that lists with set semantics compare independent of order.
func sortMembers(list []any) {
	keys := make([]string, len(list))
	for i, item := range list {
		b, _ := json.Marshal(item)
		keys[i] = string(b)
	}
	idx := make([]int, len(list))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return keys[idx[a]] < keys[idx[b]] })
	sorted := make([]any, len(list))
	for i, j := range idx {
		sorted[i] = list[j]
	}
	copy(list, sorted)
}

// normalizeSets sorts the list members that carry set semantics for a kind:
// gallery entries and each custom option's values.
func normalizeSets(kind DataType, v any) {
	switch kind {
	case DataTypeImageGallery:
		if m, ok := v.(map[string]any); ok {
			if list, ok := m["media_gallery"].([]any); ok {
				sortMembers(list)
			}
		}
	case DataTypeCustomOption:
		if list, ok := v.([]any); ok {
			for _, item := range list {
				if opt, ok := item.(map[string]any); ok {
					if values, ok := opt["option_values"].([]any); ok {
						sortMembers(values)
					}
				}
			}
		}
	}
}
