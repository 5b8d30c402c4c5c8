// Package catalog contains the catalog feed bounded context.
// It turns flat feed rows into typed per-SKU payloads and decides whether a
// freshly computed payload differs from the staged one.
//
// Key concepts:
//   - Row: one feed line keyed by normalized header, in column order
//   - DataType: the entity kind a feed carries (products, inventory, imagegallery, variants, customoption)
//   - Candidate: a normalized payload for one SKU, ready to be diffed and staged
//   - NeedsRestage: kind-aware structural comparison over canonicalized JSON
//
// Everything in this package is pure: no I/O, no clocks.
package catalog
