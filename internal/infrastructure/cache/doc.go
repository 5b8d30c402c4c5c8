// Package cache provides the invocation token stores that guard against
// redelivered triggers: Redis for shared deployments and an in-memory set for
// tests and local runs. The database-backed store lives in persistence.
package cache
