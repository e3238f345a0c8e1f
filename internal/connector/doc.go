// Package connector provides HTTP clients for the upstream services the jobs
// read from.
//
// Jira (jira.go) exposes one method per REST resource: BoardsPage,
// SprintsPage and IssuesPage return a single *paginate.Page and are meant to
// be driven by paginate.All; VelocityStats returns the non-paginated
// greenhopper velocity chart payload. Codecov (codecov.go) reads a branch's
// head-commit coverage.
//
// Authentication (basic, token, bearer) is applied by the shared
// authRoundTripper in base.go. Every response is checked for a 2xx status
// (*StatusError otherwise) and for valid JSON before it is handed back.
package connector
