package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// DefaultAttributeSet is the destination attribute set for products.
	DefaultAttributeSet = "Default"
	// DefaultTypeID is the destination product type when the feed has none.
	DefaultTypeID = "simple"

	fieldTypeID  = "type_id"
	fieldStoreID = "store_id"
)

// FieldMapping resolves one destination field from a staged product field.
// Default is used when the source field is absent; a nil default omits the
// destination field.
type FieldMapping struct {
	Key     string `json:"key"`
	Default any    `json:"default"`
}

// TranslationTable maps destination field names to their source.
type TranslationTable map[string]FieldMapping

// DefaultTranslationTable returns the built-in product field mapping.
func DefaultTranslationTable() TranslationTable {
	return TranslationTable{
		"short_description": {Key: "short_description"},
		"color":             {Key: "color"},
		"description":       {Key: "long_description"},
		"price":             {Key: "price", Default: "0"},
		"msrp":              {Key: "msrp", Default: "0"},
		"name":              {Key: "product_name"},
		"status":            {Key: "status", Default: "1"},
	}
}

// Apply resolves every destination field against data.
func (t TranslationTable) Apply(data map[string]any) map[string]any {
	out := make(map[string]any, len(t))
	for dest, m := range t {
		if v, ok := data[m.Key]; ok && v != nil {
			out[dest] = v
			continue
		}
		if m.Default != nil {
			out[dest] = m.Default
		}
	}
	return out
}

// ProductPayload is a staged product shaped for the destination connector.
type ProductPayload struct {
	SKU          string
	AttributeSet string
	TypeID       string
	StoreID      string
	Data         map[string]any
}

// BuildProductPayload decodes staged product data, pops type_id and store_id,
// and translates the remaining fields through the table.
func BuildProductPayload(sku string, raw []byte, table TranslationTable, attributeSet string) (ProductPayload, error) {
	var data map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		return ProductPayload{}, fmt.Errorf("catalog: decode product %s: %w", sku, err)
	}
	if data == nil {
		data = map[string]any{}
	}
	if len(table) == 0 {
		table = DefaultTranslationTable()
	}
	if attributeSet == "" {
		attributeSet = DefaultAttributeSet
	}

	typeID := popText(data, fieldTypeID, DefaultTypeID)
	storeID := popText(data, fieldStoreID, DefaultStoreID)

	return ProductPayload{
		SKU:          sku,
		AttributeSet: attributeSet,
		TypeID:       typeID,
		StoreID:      storeID,
		Data:         table.Apply(data),
	}, nil
}

func popText(data map[string]any, key, def string) string {
	v, ok := data[key]
	delete(data, key)
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			parts = append(parts, fmt.Sprint(p))
		}
		return strings.Join(parts, ListSeparator)
	default:
		return fmt.Sprint(t)
	}
}
