// Package store keeps the latest report per board in memory for the
// schedule mode API. Reports older than the TTL are hidden from List and
// evicted by Run. The outcome of the last scheduled run is kept alongside.
package store
