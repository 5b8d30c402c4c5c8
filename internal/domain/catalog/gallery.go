package catalog

const (
	defaultPosition    = "1"
	defaultMediaSource = "CSV"
	defaultMediaType   = "image"
)

// MediaEntry is one image in a SKU's gallery.
type MediaEntry struct {
	Value       string `json:"value"`
	StoreID     string `json:"store_id"`
	Position    string `json:"position"`
	Label       string `json:"label,omitempty"`
	MediaSource string `json:"media_source"`
	MediaType   string `json:"media_type"`
}

// ImageGallery is the gallery payload: entries plus the four role slots.
type ImageGallery struct {
	MediaGallery []MediaEntry `json:"media_gallery"`
	Image        string       `json:"image"`
	SmallImage   string       `json:"small_image"`
	Thumbnail    string       `json:"thumbnail"`
	SwatchImage  string       `json:"swatch_image"`
}

// Role returns the value of a role slot.
func (g *ImageGallery) Role(role string) string {
	switch role {
	case "image":
		return g.Image
	case "small_image":
		return g.SmallImage
	case "thumbnail":
		return g.Thumbnail
	case "swatch_image":
		return g.SwatchImage
	}
	return ""
}

func (g *ImageGallery) setRole(role, value string) {
	switch role {
	case "image":
		g.Image = value
	case "small_image":
		g.SmallImage = value
	case "thumbnail":
		g.Thumbnail = value
	case "swatch_image":
		g.SwatchImage = value
	}
}

// normalizeImageGallery expects rows exploded by Ingest into {sku, type, value}.
func normalizeImageGallery(rows []*Row) []Candidate {
	order, groups := groupBySKU(rows)
	out := make([]Candidate, 0, len(order))
	for _, sku := range order {
		group := groups[sku]
		gallery := ImageGallery{MediaGallery: make([]MediaEntry, 0, len(group))}
		for _, row := range group {
			gallery.MediaGallery = append(gallery.MediaGallery, MediaEntry{
				Value:       row.Text(columnValue),
				StoreID:     row.TextOr(columnStoreID, DefaultStoreID),
				Position:    row.TextOr("position", defaultPosition),
				Label:       row.Text("label"),
				MediaSource: row.TextOr("media_source", defaultMediaSource),
				MediaType:   row.TextOr("media_type", defaultMediaType),
			})
		}
		for _, role := range ImageRoles {
			value := gallery.MediaGallery[0].Value
			for _, row := range group {
				if row.Text(columnType) == role {
					value = row.Text(columnValue)
					break
				}
			}
			gallery.setRole(role, value)
		}
		out = append(out, Candidate{SKU: sku, Data: gallery})
	}
	return out
}
