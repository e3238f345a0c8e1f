// Package auth protects the schedule mode HTTP endpoints with an optional
// shared API key.
package auth
