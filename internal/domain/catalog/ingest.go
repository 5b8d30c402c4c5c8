package catalog

import "strings"

const (
	// DefaultWarehouse is assumed for inventory rows without a warehouse column.
	DefaultWarehouse = "admin"

	columnWarehouse = "warehouse"
	columnStock     = "stock"
	columnQty       = "qty"
	columnType      = "type"
	columnValue     = "value"

	imageColumnPrefix = "image"
	mediaGalleryType  = "media_gallery"
)

// ImageRoles are the gallery role slots resolved per SKU.
var ImageRoles = []string{"image", "small_image", "thumbnail", "swatch_image"}

// galleryCarryColumns are row-level cells copied onto every exploded image row.
var galleryCarryColumns = []string{"store_id", "position", "label", "media_source", "media_type"}

// Ingest drops placeholder rows and applies the per-kind ingestion rules:
// inventory gets a default warehouse and the stock alias, image galleries are
// exploded into one {sku, type, value} row per image cell. The input rows are
// not modified.
func Ingest(kind DataType, rows []*Row) []*Row {
	out := make([]*Row, 0, len(rows))
	for _, row := range rows {
		sku := row.SKU()
		if sku == "" || sku == NoSKUMarker {
			continue
		}
		switch kind {
		case DataTypeInventory:
			r := row.Clone()
			if !r.Has(columnWarehouse) {
				r.Set(columnWarehouse, Text(DefaultWarehouse))
			}
			if stock, ok := r.Get(columnStock); ok {
				r.Set(columnQty, stock)
			}
			out = append(out, r)
		case DataTypeImageGallery:
			out = append(out, explodeImages(row)...)
		default:
			out = append(out, row.Clone())
		}
	}
	return out
}

func explodeImages(row *Row) []*Row {
	var out []*Row
	for _, col := range row.Columns() {
		role, ok := imageRole(col)
		if !ok {
			continue
		}
		v, _ := row.Get(col)
		for _, item := range v {
			if item == "" {
				continue
			}
			r := NewRow()
			r.Set(ColumnSKU, Text(row.SKU()))
			r.Set(columnType, Text(role))
			r.Set(columnValue, Text(item))
			for _, carry := range galleryCarryColumns {
				if cv, ok := row.Get(carry); ok {
					r.Set(carry, cv)
				}
			}
			out = append(out, r)
		}
	}
	return out
}

// imageRole reports whether a column carries images and which role it fills.
func imageRole(column string) (string, bool) {
	for _, role := range ImageRoles {
		if column == role {
			return role, true
		}
	}
	if strings.HasPrefix(column, imageColumnPrefix) {
		return mediaGalleryType, true
	}
	return "", false
}
