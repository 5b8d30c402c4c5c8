package catalog

import (
	"encoding/json"
	"strings"
)

// ListSeparator splits a feed cell into several values.
const ListSeparator = "|"

// Value is a normalized feed cell. It holds one segment for plain cells and
// several when the cell was a pipe-delimited list.
type Value []string

// Text wraps a single string as a Value.
func Text(s string) Value {
	return Value{s}
}

// List wraps several strings as a list Value.
func List(items ...string) Value {
	return Value(items)
}

// ParseCell trims a raw cell and splits it on the list separator when more
// than one segment results.
func ParseCell(raw string) Value {
	trimmed := strings.TrimSpace(raw)
	if !strings.Contains(raw, ListSeparator) {
		return Value{trimmed}
	}
	return Value(strings.Split(trimmed, ListSeparator))
}

// IsList reports whether the cell held more than one segment.
func (v Value) IsList() bool {
	return len(v) > 1
}

// IsEmpty reports whether the value carries no text.
func (v Value) IsEmpty() bool {
	return len(v) == 0 || (len(v) == 1 && v[0] == "")
}

// String joins list segments back with the separator.
func (v Value) String() string {
	return strings.Join(v, ListSeparator)
}

// MarshalJSON encodes a single segment as a JSON string and a list as an array.
func (v Value) MarshalJSON() ([]byte, error) {
	if len(v) == 1 {
		return json.Marshal(v[0])
	}
	if v == nil {
		return []byte("null"), nil
	}
	return json.Marshal([]string(v))
}

// UnmarshalJSON accepts either a JSON string or an array of strings.
func (v *Value) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = Value{s}
		return nil
	}
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*v = Value(items)
	return nil
}
