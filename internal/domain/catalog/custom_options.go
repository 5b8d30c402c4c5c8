package catalog

const (
	defaultIsRequire       = "0"
	defaultSortOrder       = "1"
	defaultValueStoreID    = "0"
	defaultValueSortOrder  = "1"
	columnTitle            = "title"
	columnOptionValueStore = "option_value_store_id"
)

// OptionValue is one selectable value of a custom option.
type OptionValue struct {
	Title     string `json:"option_value_title,omitempty"`
	TitleAlt  string `json:"option_value_title_alt,omitempty"`
	StoreID   string `json:"store_id"`
	SKU       string `json:"option_value_sku,omitempty"`
	Price     string `json:"option_value_price,omitempty"`
	PriceType string `json:"option_value_price_type,omitempty"`
	SortOrder string `json:"option_value_sort_order"`
}

// CustomOption is one product option with its values.
type CustomOption struct {
	Title           string        `json:"title,omitempty"`
	TitleAlt        string        `json:"title_alt,omitempty"`
	StoreID         string        `json:"store_id"`
	Type            string        `json:"type,omitempty"`
	IsRequire       string        `json:"is_require"`
	SortOrder       string        `json:"sort_order"`
	OptionSKU       string        `json:"option_sku,omitempty"`
	OptionPrice     string        `json:"option_price,omitempty"`
	OptionPriceType string        `json:"option_price_type,omitempty"`
	OptionValues    []OptionValue `json:"option_values"`
}

// firstText fills dst with the row's column text unless dst is already set.
func firstText(dst *string, row *Row, column string) {
	if *dst != "" {
		return
	}
	if v, ok := row.Get(column); ok && !v.IsEmpty() {
		*dst = v.String()
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// normalizeCustomOptions groups rows by (sku, title). Scalar option fields are
// taken from the first row in source order that supplies them; every row adds
// one option value.
func normalizeCustomOptions(rows []*Row) []Candidate {
	order, groups := groupBySKU(rows)
	out := make([]Candidate, 0, len(order))
	for _, sku := range order {
		var titles []string
		byTitle := make(map[string][]*Row)
		for _, row := range groups[sku] {
			title := row.Text(columnTitle)
			if _, ok := byTitle[title]; !ok {
				titles = append(titles, title)
			}
			byTitle[title] = append(byTitle[title], row)
		}

		options := make([]CustomOption, 0, len(titles))
		for _, title := range titles {
			var opt CustomOption
			for _, row := range byTitle[title] {
				firstText(&opt.Title, row, columnTitle)
				firstText(&opt.TitleAlt, row, "title_alt")
				firstText(&opt.StoreID, row, columnStoreID)
				firstText(&opt.Type, row, columnType)
				firstText(&opt.IsRequire, row, "is_require")
				firstText(&opt.SortOrder, row, "sort_order")
				firstText(&opt.OptionSKU, row, "option_sku")
				firstText(&opt.OptionPrice, row, "option_price")
				firstText(&opt.OptionPriceType, row, "option_price_type")

				opt.OptionValues = append(opt.OptionValues, OptionValue{
					Title:     row.Text("option_value_title"),
					TitleAlt:  row.Text("option_value_title_alt"),
					StoreID:   row.TextOr(columnOptionValueStore, defaultValueStoreID),
					SKU:       row.Text("option_value_sku"),
					Price:     row.Text("option_value_price"),
					PriceType: row.Text("option_value_price_type"),
					SortOrder: row.TextOr("option_value_sort_order", defaultValueSortOrder),
				})
			}
			opt.StoreID = orDefault(opt.StoreID, DefaultStoreID)
			opt.IsRequire = orDefault(opt.IsRequire, defaultIsRequire)
			opt.SortOrder = orDefault(opt.SortOrder, defaultSortOrder)
			options = append(options, opt)
		}
		out = append(out, Candidate{SKU: sku, Data: options})
	}
	return out
}
