package catalog

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Candidate is a normalized payload for one SKU.
type Candidate struct {
	SKU  string
	Data any
}

// Payload encodes the candidate's data as stored JSON.
func (c Candidate) Payload() ([]byte, error) {
	b, err := json.Marshal(c.Data)
	if err != nil {
		return nil, fmt.Errorf("catalog: encode payload for %s: %w", c.SKU, err)
	}
	return b, nil
}

// NormalizeOptions tunes normalization per feed.
type NormalizeOptions struct {
	// AttributeSchema declares the product attribute pairs. When empty the
	// schema is derived from the feed columns.
	AttributeSchema AttributeSchema
}

// Normalize converts ingested rows into one candidate per SKU for the given
// kind. Candidates come back in first-seen SKU order; use SortBySKU for the
// processing order.
func Normalize(kind DataType, rows []*Row, opts NormalizeOptions) ([]Candidate, error) {
	switch kind {
	case DataTypeProducts:
		schema := opts.AttributeSchema.Normalized()
		if len(schema) == 0 {
			schema = DiscoverAttributeSchema(unionColumns(rows))
		}
		return normalizeProducts(rows, schema), nil
	case DataTypeInventory:
		return normalizeInventory(rows), nil
	case DataTypeImageGallery:
		return normalizeImageGallery(rows), nil
	case DataTypeVariants:
		return normalizeVariants(rows), nil
	case DataTypeCustomOption:
		return normalizeCustomOptions(rows), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDataType, kind)
	}
}

// SortBySKU orders candidates by ascending SKU, keeping input order for ties.
func SortBySKU(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].SKU < candidates[j].SKU
	})
}

// groupBySKU buckets rows by SKU, keeping first-seen SKU order and source
// row order inside each bucket.
func groupBySKU(rows []*Row) ([]string, map[string][]*Row) {
	var order []string
	groups := make(map[string][]*Row)
	for _, row := range rows {
		sku := row.SKU()
		if _, ok := groups[sku]; !ok {
			order = append(order, sku)
		}
		groups[sku] = append(groups[sku], row)
	}
	return order, groups
}

func unionColumns(rows []*Row) []string {
	var cols []string
	seen := make(map[string]bool)
	for _, row := range rows {
		for _, c := range row.Columns() {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}
	return cols
}
