package catalog

import (
	"strings"
)

// NoSKUMarker is the sku cell value feeds use for placeholder lines.
const NoSKUMarker = "---"

// ColumnSKU is the business key column present in every feed.
const ColumnSKU = "sku"

var headerReplacer = strings.NewReplacer(" ", "_", "/", "_", "(", "", ")", "")

// NormalizeHeader lower-cases and trims a header, replaces spaces and slashes
// with underscores and strips parentheses.
func NormalizeHeader(header string) string {
	return headerReplacer.Replace(strings.TrimSpace(strings.ToLower(header)))
}

// Row is one feed line keyed by normalized header. Column order is preserved
// so that order-sensitive payloads (gallery entries) follow the sheet layout.
type Row struct {
	columns []string
	values  map[string]Value
}

// NewRow creates an empty row.
func NewRow() *Row {
	return &Row{values: make(map[string]Value)}
}

// RowOf builds a row from alternating column/value strings. It is a
// convenience for callers that already hold clean cells.
func RowOf(pairs ...string) *Row {
	r := NewRow()
	for i := 0; i+1 < len(pairs); i += 2 {
		r.Set(pairs[i], Text(pairs[i+1]))
	}
	return r
}

// BuildRow turns a raw record into a Row using the raw header line. Headers
// are normalized, cells are parsed and empty cells are dropped.
func BuildRow(headers, fields []string) *Row {
	r := NewRow()
	for i, h := range headers {
		if i >= len(fields) {
			break
		}
		if strings.TrimSpace(fields[i]) == "" {
			continue
		}
		name := NormalizeHeader(h)
		if name == "" {
			continue
		}
		r.Set(name, ParseCell(fields[i]))
	}
	return r
}

// Set assigns a column value, appending the column if it is new.
func (r *Row) Set(column string, v Value) {
	if _, ok := r.values[column]; !ok {
		r.columns = append(r.columns, column)
	}
	r.values[column] = v
}

// Get returns the value of a column.
func (r *Row) Get(column string) (Value, bool) {
	v, ok := r.values[column]
	return v, ok
}

// Text returns a column's value as text, or "" when absent.
func (r *Row) Text(column string) string {
	v, ok := r.values[column]
	if !ok {
		return ""
	}
	return v.String()
}

// TextOr returns a column's text, or def when the column is absent.
func (r *Row) TextOr(column, def string) string {
	if v, ok := r.values[column]; ok && !v.IsEmpty() {
		return v.String()
	}
	return def
}

// Has reports whether the column is present.
func (r *Row) Has(column string) bool {
	_, ok := r.values[column]
	return ok
}

// Delete removes a column.
func (r *Row) Delete(column string) {
	if _, ok := r.values[column]; !ok {
		return
	}
	delete(r.values, column)
	for i, c := range r.columns {
		if c == column {
			r.columns = append(r.columns[:i], r.columns[i+1:]...)
			break
		}
	}
}

// Columns returns the column names in order.
func (r *Row) Columns() []string {
	out := make([]string, len(r.columns))
	copy(out, r.columns)
	return out
}

// Len returns the number of columns.
func (r *Row) Len() int {
	return len(r.columns)
}

// SKU returns the row's business key.
func (r *Row) SKU() string {
	return r.Text(ColumnSKU)
}

// Clone returns a copy that can be mutated independently.
func (r *Row) Clone() *Row {
	c := NewRow()
	for _, col := range r.columns {
		c.Set(col, r.values[col])
	}
	return c
}
