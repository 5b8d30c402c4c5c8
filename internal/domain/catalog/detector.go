package catalog

import "reflect"

// inventoryMatchFields identify an inventory entry for change detection.
var inventoryMatchFields = []string{"store_id", "warehouse", "qty"}

// NeedsRestage reports whether a candidate payload must be written over the
// staged one. A missing or undecodable stored payload always needs a restage.
//
// Inventory entries match on (store_id, warehouse, qty) only; custom options
// match as a set of whole options; every other kind requires deep equality.
// Gallery entries and option values are compared as sets.
func NeedsRestage(kind DataType, existing, candidate []byte) bool {
	if existing == nil {
		return true
	}
	cur, err := Canonicalize(existing)
	if err != nil {
		return true
	}
	next, err := Canonicalize(candidate)
	if err != nil {
		return true
	}
	normalizeSets(kind, cur)
	normalizeSets(kind, next)

	switch kind {
	case DataTypeInventory:
		return !everyEntryMatches(cur, next, matchInventoryEntry)
	case DataTypeCustomOption:
		return !everyEntryMatches(cur, next, reflect.DeepEqual)
	default:
		return !reflect.DeepEqual(cur, next)
	}
}

// everyEntryMatches requires equal list lengths and a match in cur for every
// member of next. Non-list payloads fall back to deep equality.
func everyEntryMatches(cur, next any, match func(a, b any) bool) bool {
	curList, ok1 := cur.([]any)
	nextList, ok2 := next.([]any)
	if !ok1 || !ok2 {
		return reflect.DeepEqual(cur, next)
	}
	if len(curList) != len(nextList) {
		return false
	}
	for _, want := range nextList {
		found := false
		for _, have := range curList {
			if match(have, want) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func matchInventoryEntry(a, b any) bool {
	am, ok1 := a.(map[string]any)
	bm, ok2 := b.(map[string]any)
	if !ok1 || !ok2 {
		return false
	}
	for _, f := range inventoryMatchFields {
		if !reflect.DeepEqual(am[f], bm[f]) {
			return false
		}
	}
	return true
}
