package catalog

import "strings"

const (
	attributeNameMarker  = "attribute_name"
	attributeValueMarker = "attribute_value"
)

// AttributePair declares which column names an attribute and which column
// holds its value.
type AttributePair struct {
	NameColumn  string `json:"name_column"`
	ValueColumn string `json:"value_column"`
}

// AttributeSchema is the ordered list of attribute pairs a product feed uses.
// Earlier pairs win when two pairs resolve to the same attribute code.
type AttributeSchema []AttributePair

// DiscoverAttributeSchema derives a schema from feed columns. Any column
// containing attribute_name pairs with the column that has attribute_value in
// its place, so custom_attribute_name_1 pairs with custom_attribute_value_1.
// Value columns without a name column are still paired so they are consumed
// rather than passed through.
func DiscoverAttributeSchema(columns []string) AttributeSchema {
	var schema AttributeSchema
	seen := make(map[string]bool)
	add := func(nameColumn string) {
		if seen[nameColumn] {
			return
		}
		seen[nameColumn] = true
		schema = append(schema, AttributePair{
			NameColumn:  nameColumn,
			ValueColumn: strings.Replace(nameColumn, attributeNameMarker, attributeValueMarker, 1),
		})
	}
	for _, col := range columns {
		switch {
		case strings.Contains(col, attributeNameMarker):
			add(col)
		case strings.Contains(col, attributeValueMarker):
			add(strings.Replace(col, attributeValueMarker, attributeNameMarker, 1))
		}
	}
	return schema
}

// Columns returns every column the schema consumes.
func (s AttributeSchema) Columns() map[string]bool {
	out := make(map[string]bool, len(s)*2)
	for _, p := range s {
		out[p.NameColumn] = true
		out[p.ValueColumn] = true
	}
	return out
}

// Normalized returns a copy with header normalization applied to both
// columns of every pair, so declared schemas match cleaned feed headers.
func (s AttributeSchema) Normalized() AttributeSchema {
	out := make(AttributeSchema, 0, len(s))
	for _, p := range s {
		out = append(out, AttributePair{
			NameColumn:  NormalizeHeader(p.NameColumn),
			ValueColumn: NormalizeHeader(p.ValueColumn),
		})
	}
	return out
}
