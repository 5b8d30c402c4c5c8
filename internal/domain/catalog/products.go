package catalog

// ProductData is a flat attribute-code to value mapping.
type ProductData map[string]Value

func normalizeProducts(rows []*Row, schema AttributeSchema) []Candidate {
	consumed := schema.Columns()
	out := make([]Candidate, 0, len(rows))
	for _, row := range rows {
		data := make(ProductData)
		for _, col := range row.Columns() {
			if col == ColumnSKU || consumed[col] {
				continue
			}
			v, _ := row.Get(col)
			data[col] = v
		}

		resolved := make(map[string]bool)
		for _, pair := range schema {
			name, ok := row.Get(pair.NameColumn)
			if !ok || name.IsEmpty() {
				continue
			}
			code := NormalizeHeader(name.String())
			if code == "" || resolved[code] {
				continue
			}
			resolved[code] = true
			if v, ok := row.Get(pair.ValueColumn); ok && !v.IsEmpty() {
				data[code] = v
			} else {
				delete(data, code)
			}
		}
		out = append(out, Candidate{SKU: row.SKU(), Data: data})
	}
	return out
}
