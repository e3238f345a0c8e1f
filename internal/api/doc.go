// Package api implements the read-only HTTP API served in schedule mode.
//
// New(store, alerts) returns an http.Handler that serves:
//
//	GET /api/v1/health           last run outcome, live board and alert counts
//	GET /api/v1/reports          all live board reports ([]ReportResponse)
//	GET /api/v1/reports/{board}  single board report; 404 if unknown or stale
//	GET /api/v1/alerts           firing and recently resolved alerts
//	GET /api/v1/snapshot         all live reports plus generated_at
//
// All endpoints respond with Content-Type: application/json and return 405
// for non-GET methods. Stale store entries are excluded from every listing.
package api
