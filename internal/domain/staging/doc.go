// Package staging contains the Staging bounded context.
// It owns the intermediate store between the catalog feed and the destination:
// one StagedRecord per (source, sku) carrying the normalized payload and its
// forwarding state.
//
// Key concepts:
//   - StagedRecord: Entity holding a kind-specific JSON payload and tx status
//   - Repository: Port for staged record persistence, implemented in infrastructure
package staging
