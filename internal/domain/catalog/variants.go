package catalog

const (
	columnVariantSKU        = "variant_sku"
	columnVariantVisibility = "variant_visibility"
)

// Variant is one child SKU with its distinguishing attributes.
type Variant struct {
	VariantSKU string           `json:"variant_sku"`
	Attributes map[string]Value `json:"attributes"`
}

// VariantSet is the variants payload of a parent SKU.
type VariantSet struct {
	StoreID           string    `json:"store_id,omitempty"`
	VariantVisibility *bool     `json:"variant_visibility,omitempty"`
	Variants          []Variant `json:"variants"`
}

// normalizeVariants builds one VariantSet per SKU. store_id and
// variant_visibility are hoisted from the first row that supplies them.
// Rows without a variant_sku are skipped.
func normalizeVariants(rows []*Row) []Candidate {
	order, groups := groupBySKU(rows)
	out := make([]Candidate, 0, len(order))
	for _, sku := range order {
		set := VariantSet{Variants: []Variant{}}
		for _, row := range groups[sku] {
			variantSKU := row.Text(columnVariantSKU)
			if variantSKU == "" {
				continue
			}
			if set.StoreID == "" && row.Has(columnStoreID) {
				set.StoreID = row.Text(columnStoreID)
			}
			if set.VariantVisibility == nil && row.Has(columnVariantVisibility) {
				visible := row.Text(columnVariantVisibility) == literalTrue
				set.VariantVisibility = &visible
			}
			attrs := make(map[string]Value)
			for _, col := range row.Columns() {
				switch col {
				case ColumnSKU, columnStoreID, columnVariantVisibility, columnVariantSKU:
					continue
				}
				if v, _ := row.Get(col); !v.IsEmpty() {
					attrs[col] = v
				}
			}
			set.Variants = append(set.Variants, Variant{VariantSKU: variantSKU, Attributes: attrs})
		}
		out = append(out, Candidate{SKU: sku, Data: set})
	}
	return out
}
