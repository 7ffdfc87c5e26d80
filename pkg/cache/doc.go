// Package cache provides a small typed cache abstraction with in-memory and
// Redis implementations.
//
// It exists to keep hot template lookups out of the database during batch
// sends: the template layer wraps its storage source in a caching decorator
// backed by either implementation. Values are generic; the Redis
// implementation serializes through a Marshaler (JSON by default).
package cache
