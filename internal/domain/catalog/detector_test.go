package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeedsRestage_NoExistingRecord(t *testing.T) {
	for _, kind := range AllDataTypes() {
		assert.True(t, NeedsRestage(kind, nil, []byte(`{}`)), kind)
	}
}

func TestNeedsRestage_UndecodableExisting(t *testing.T) {
	assert.True(t, NeedsRestage(DataTypeProducts, []byte(`{not json`), []byte(`{}`)))
}

func TestNeedsRestage_TrailingData(t *testing.T) {
	assert.True(t, NeedsRestage(DataTypeProducts, []byte(`{"a":1}garbage`), []byte(`{"a":1}`)))
	assert.True(t, NeedsRestage(DataTypeProducts, []byte(`{"a":1}`), []byte(`{"a":1} {"a":1}`)))
	assert.False(t, NeedsRestage(DataTypeProducts, []byte("{\"a\":1}\n"), []byte(`{"a":1}`)))
}

func TestCanonicalize_TrailingData(t *testing.T) {
	for _, raw := range []string{`{"a":1}garbage`, `{"a":1} {"b":2}`, `[1] 2`, `{"a":1}}`} {
		_, err := Canonicalize([]byte(raw))
		assert.ErrorIs(t, err, ErrTrailingData, raw)
	}

	v, err := Canonicalize([]byte(" {\"a\":1}\n\t"))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": int64(1)}, v)
}

func TestNeedsRestage_Products(t *testing.T) {
	tests := []struct {
		name      string
		existing  string
		candidate string
		want      bool
	}{
		{"identical", `{"color":"red","size":["S","M"]}`, `{"size":["S","M"],"color":"red"}`, false},
		{"changed value", `{"color":"red"}`, `{"color":"blue"}`, true},
		{"added key", `{"color":"red"}`, `{"color":"red","size":"M"}`, true},
		{"integral number drift", `{"price":10.0}`, `{"price":10}`, false},
		{"fractional number drift", `{"price":10.50}`, `{"price":10.5}`, false},
		{"list order matters", `{"size":["S","M"]}`, `{"size":["M","S"]}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NeedsRestage(DataTypeProducts, []byte(tt.existing), []byte(tt.candidate)))
		})
	}
}

func TestNeedsRestage_Inventory(t *testing.T) {
	existing := `[
		{"store_id":"0","warehouse":"east","qty":5,"on_hand":5,"past_on_hand":0,"full":true,"in_stock":true},
		{"store_id":"0","warehouse":"admin","qty":2,"on_hand":0,"past_on_hand":0,"full":false,"in_stock":true}
	]`

	tests := []struct {
		name      string
		candidate string
		want      bool
	}{
		{
			name: "same entries reordered, other fields differ",
			candidate: `[
				{"store_id":"0","warehouse":"admin","qty":2.0,"on_hand":2,"past_on_hand":0,"full":true,"in_stock":true},
				{"store_id":"0","warehouse":"east","qty":5,"on_hand":0,"past_on_hand":0,"full":false,"in_stock":true}
			]`,
			want: false,
		},
		{
			name: "extra warehouse entry",
			candidate: `[
				{"store_id":"0","warehouse":"east","qty":5,"on_hand":5,"past_on_hand":0,"full":true,"in_stock":true},
				{"store_id":"0","warehouse":"admin","qty":2,"on_hand":0,"past_on_hand":0,"full":false,"in_stock":true},
				{"store_id":"0","warehouse":"west","qty":1,"on_hand":0,"past_on_hand":0,"full":false,"in_stock":true}
			]`,
			want: true,
		},
		{
			name: "qty changed",
			candidate: `[
				{"store_id":"0","warehouse":"east","qty":4,"on_hand":4,"past_on_hand":0,"full":true,"in_stock":true},
				{"store_id":"0","warehouse":"admin","qty":2,"on_hand":0,"past_on_hand":0,"full":false,"in_stock":true}
			]`,
			want: true,
		},
		{
			name: "store changed",
			candidate: `[
				{"store_id":"1","warehouse":"east","qty":5,"on_hand":5,"past_on_hand":0,"full":true,"in_stock":true},
				{"store_id":"0","warehouse":"admin","qty":2,"on_hand":0,"past_on_hand":0,"full":false,"in_stock":true}
			]`,
			want: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NeedsRestage(DataTypeInventory, []byte(existing), []byte(tt.candidate)))
		})
	}
}

func TestNeedsRestage_CustomOptionSets(t *testing.T) {
	existing := `[
		{"title":"Size","store_id":"0","is_require":"0","sort_order":"1","option_values":[
			{"option_value_title":"S","store_id":"0","option_value_sort_order":"1"},
			{"option_value_title":"M","store_id":"0","option_value_sort_order":"2"}
		]},
		{"title":"Color","store_id":"0","is_require":"0","sort_order":"1","option_values":[
			{"option_value_title":"Red","store_id":"0","option_value_sort_order":"1"}
		]}
	]`

	t.Run("options and values reordered", func(t *testing.T) {
		candidate := `[
			{"title":"Color","store_id":"0","is_require":"0","sort_order":"1","option_values":[
				{"option_value_title":"Red","store_id":"0","option_value_sort_order":"1"}
			]},
			{"title":"Size","store_id":"0","is_require":"0","sort_order":"1","option_values":[
				{"option_value_title":"M","store_id":"0","option_value_sort_order":"2"},
				{"option_value_title":"S","store_id":"0","option_value_sort_order":"1"}
			]}
		]`
		assert.False(t, NeedsRestage(DataTypeCustomOption, []byte(existing), []byte(candidate)))
	})

	t.Run("value changed", func(t *testing.T) {
		candidate := `[
			{"title":"Size","store_id":"0","is_require":"0","sort_order":"1","option_values":[
				{"option_value_title":"S","store_id":"0","option_value_sort_order":"1"},
				{"option_value_title":"L","store_id":"0","option_value_sort_order":"2"}
			]},
			{"title":"Color","store_id":"0","is_require":"0","sort_order":"1","option_values":[
				{"option_value_title":"Red","store_id":"0","option_value_sort_order":"1"}
			]}
		]`
		assert.True(t, NeedsRestage(DataTypeCustomOption, []byte(existing), []byte(candidate)))
	})

	t.Run("option removed", func(t *testing.T) {
		candidate := `[
			{"title":"Color","store_id":"0","is_require":"0","sort_order":"1","option_values":[
				{"option_value_title":"Red","store_id":"0","option_value_sort_order":"1"}
			]}
		]`
		assert.True(t, NeedsRestage(DataTypeCustomOption, []byte(existing), []byte(candidate)))
	})
}

func TestNeedsRestage_ImageGallerySets(t *testing.T) {
	existing := `{"media_gallery":[
		{"value":"a.jpg","store_id":"0","position":"1","media_source":"CSV","media_type":"image"},
		{"value":"b.jpg","store_id":"0","position":"1","media_source":"CSV","media_type":"image"}
	],"image":"a.jpg","small_image":"a.jpg","thumbnail":"a.jpg","swatch_image":"a.jpg"}`

	reordered := `{"media_gallery":[
		{"value":"b.jpg","store_id":"0","position":"1","media_source":"CSV","media_type":"image"},
		{"value":"a.jpg","store_id":"0","position":"1","media_source":"CSV","media_type":"image"}
	],"image":"a.jpg","small_image":"a.jpg","thumbnail":"a.jpg","swatch_image":"a.jpg"}`
	assert.False(t, NeedsRestage(DataTypeImageGallery, []byte(existing), []byte(reordered)))

	roleChanged := `{"media_gallery":[
		{"value":"a.jpg","store_id":"0","position":"1","media_source":"CSV","media_type":"image"},
		{"value":"b.jpg","store_id":"0","position":"1","media_source":"CSV","media_type":"image"}
	],"image":"b.jpg","small_image":"a.jpg","thumbnail":"a.jpg","swatch_image":"a.jpg"}`
	assert.True(t, NeedsRestage(DataTypeImageGallery, []byte(existing), []byte(roleChanged)))
}

func TestNeedsRestage_VariantsDeepEquality(t *testing.T) {
	existing := `{"store_id":"1","variants":[{"variant_sku":"a","attributes":{}},{"variant_sku":"b","attributes":{}}]}`
	same := `{"variants":[{"variant_sku":"a","attributes":{}},{"variant_sku":"b","attributes":{}}],"store_id":"1"}`
	reordered := `{"store_id":"1","variants":[{"variant_sku":"b","attributes":{}},{"variant_sku":"a","attributes":{}}]}`

	assert.False(t, NeedsRestage(DataTypeVariants, []byte(existing), []byte(same)))
	assert.True(t, NeedsRestage(DataTypeVariants, []byte(existing), []byte(reordered)))
}

func TestNeedsRestage_NormalizedPayloadsAreStable(t *testing.T) {
	rowsByKind := map[DataType][]*Row{
		DataTypeProducts:     {RowOf("sku", "A1", "attribute_name_1", "color", "attribute_value_1", "red", "price", "9.90")},
		DataTypeInventory:    {RowOf("sku", "A1", "qty", "4.50", "full", "TRUE")},
		DataTypeImageGallery: {RowOf("sku", "A1", "image", "a.jpg", "image_2", "b.jpg")},
		DataTypeVariants:     {RowOf("sku", "A1", "variant_sku", "A1-S", "size", "S")},
		DataTypeCustomOption: {RowOf("sku", "A1", "title", "Size", "option_value_title", "S")},
	}
	for kind, rows := range rowsByKind {
		t.Run(string(kind), func(t *testing.T) {
			first, err := Normalize(kind, Ingest(kind, rows), NormalizeOptions{})
			require.NoError(t, err)
			second, err := Normalize(kind, Ingest(kind, rows), NormalizeOptions{})
			require.NoError(t, err)

			stored, err := first[0].Payload()
			require.NoError(t, err)
			fresh, err := second[0].Payload()
			require.NoError(t, err)
			assert.False(t, NeedsRestage(kind, stored, fresh))
		})
	}
}
