package catalog

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

const (
	columnStoreID = "store_id"
	columnFull    = "full"

	// DefaultStoreID is used when a row carries no store_id.
	DefaultStoreID = "0"

	literalTrue = "TRUE"
)

// InventoryEntry is one warehouse's stock for a SKU.
type InventoryEntry struct {
	StoreID    string
	Warehouse  string
	Qty        decimal.Decimal
	OnHand     decimal.Decimal
	PastOnHand decimal.Decimal
	Full       bool
	InStock    bool
}

type inventoryEntryJSON struct {
	StoreID    string      `json:"store_id"`
	Warehouse  string      `json:"warehouse"`
	Qty        json.Number `json:"qty"`
	OnHand     json.Number `json:"on_hand"`
	PastOnHand json.Number `json:"past_on_hand"`
	Full       bool        `json:"full"`
	InStock    bool        `json:"in_stock"`
}

// MarshalJSON writes quantities as JSON numbers.
func (e InventoryEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(inventoryEntryJSON{
		StoreID:    e.StoreID,
		Warehouse:  e.Warehouse,
		Qty:        json.Number(e.Qty.String()),
		OnHand:     json.Number(e.OnHand.String()),
		PastOnHand: json.Number(e.PastOnHand.String()),
		Full:       e.Full,
		InStock:    e.InStock,
	})
}

// UnmarshalJSON reads quantities written by MarshalJSON.
func (e *InventoryEntry) UnmarshalJSON(data []byte) error {
	var raw inventoryEntryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.StoreID = raw.StoreID
	e.Warehouse = raw.Warehouse
	e.Qty = parseQty(raw.Qty.String())
	e.OnHand = parseQty(raw.OnHand.String())
	e.PastOnHand = parseQty(raw.PastOnHand.String())
	e.Full = raw.Full
	e.InStock = raw.InStock
	return nil
}

// parseQty parses a decimal, degrading to zero on malformed input.
func parseQty(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func newInventoryEntry(row *Row) InventoryEntry {
	qty := parseQty(row.Text(columnQty))
	full := row.Text(columnFull) == literalTrue
	onHand := decimal.Zero
	if full {
		onHand = qty
	}
	return InventoryEntry{
		StoreID:    row.TextOr(columnStoreID, DefaultStoreID),
		Warehouse:  row.Text(columnWarehouse),
		Qty:        qty,
		OnHand:     onHand,
		PastOnHand: decimal.Zero,
		Full:       full,
		InStock:    qty.IsPositive(),
	}
}

// normalizeInventory keeps the last row per (sku, warehouse) pair. Entries
// follow the first-seen warehouse order of each SKU.
func normalizeInventory(rows []*Row) []Candidate {
	type key struct{ sku, warehouse string }
	var skus []string
	warehouses := make(map[string][]string)
	last := make(map[key]*Row)

	for _, row := range rows {
		k := key{sku: row.SKU(), warehouse: row.Text(columnWarehouse)}
		if _, ok := warehouses[k.sku]; !ok {
			skus = append(skus, k.sku)
		}
		if _, ok := last[k]; !ok {
			warehouses[k.sku] = append(warehouses[k.sku], k.warehouse)
		}
		last[k] = row
	}

	out := make([]Candidate, 0, len(skus))
	for _, sku := range skus {
		entries := make([]InventoryEntry, 0, len(warehouses[sku]))
		for _, wh := range warehouses[sku] {
			entries = append(entries, newInventoryEntry(last[key{sku: sku, warehouse: wh}]))
		}
		out = append(out, Candidate{SKU: sku, Data: entries})
	}
	return out
}
