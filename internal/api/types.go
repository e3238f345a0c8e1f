package api

import "github.com/sprintpulse/sprintpulse/internal/store"

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	// State is "ok" after a successful run, "failed" when the last run
	// errored and "unknown" before the first run.
	State      string           `json:"state"`
	BoardCount int              `json:"board_count"`
	AlertCount int              `json:"alert_count"`
	LastRun    *store.RunStatus `json:"last_run,omitempty"`
}

// ReportResponse is one board entry in GET /api/v1/reports or
// GET /api/v1/reports/{board}.
type ReportResponse struct {
	Board             string             `json:"board"`
	BoardID           int64              `json:"board_id"`
	DisplayName       string             `json:"display_name"`
	RunID             string             `json:"run_id"`
	GeneratedAt       string             `json:"generated_at"` // RFC3339
	UpdatedAt         string             `json:"updated_at"`   // RFC3339
	AverageAttainment *float64           `json:"average_attainment"`
	ActivePoints      float64            `json:"active_points"`
	OrphanEntries     int                `json:"orphan_entries"`
	Velocities        []VelocityResponse `json:"velocities"`
	Active            []ActiveResponse   `json:"active"`
}

// VelocityResponse is one sprint row of a board report. Sprint fields are
// empty for entries that matched no sprint.
type VelocityResponse struct {
	SprintKey  string  `json:"sprint_key"`
	SprintName string  `json:"sprint_name,omitempty"`
	State      string  `json:"state,omitempty"`
	StartDate  string  `json:"start_date,omitempty"`
	EndDate    string  `json:"end_date,omitempty"`
	Committed  float64 `json:"committed"`
	Delivered  float64 `json:"delivered"`
	Diff       float64 `json:"diff"`
	Attainment float64 `json:"attainment"`
}

// ActiveResponse is one in-progress sprint of a board report.
type ActiveResponse struct {
	SprintID   int64   `json:"sprint_id"`
	SprintName string  `json:"sprint_name"`
	StartDate  string  `json:"start_date"`
	Points     float64 `json:"points"`
}

// SnapshotResponse is the payload for GET /api/v1/snapshot and the data of
// every websocket broadcast.
type SnapshotResponse struct {
	Reports     []ReportResponse `json:"reports"`
	GeneratedAt string           `json:"generated_at"` // RFC3339
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
