package compute

import (
	"context"
	"time"

	"github.com/tidwall/gjson"

	"github.com/sprintpulse/sprintpulse/internal/config"
	"github.com/sprintpulse/sprintpulse/internal/paginate"
)

// Sprint lifecycle states as reported upstream. Other values are kept verbatim.
const (
	StateActive = "active"
	StateClosed = "closed"
	StateFuture = "future"
)

// Tracker is the issue-tracker capability the computations read from.
// connector.Jira implements it.
type Tracker interface {
	SprintsPage(ctx context.Context, boardID int64, req paginate.Request) (*paginate.Page[gjson.Result], error)
	IssuesPage(ctx context.Context, boardID int64, sprintID *int64, req paginate.Request) (*paginate.Page[gjson.Result], error)
	VelocityStats(ctx context.Context, boardID int64) (gjson.Result, error)
}

// Sprint is a board sprint with its dates parsed. Only sprints carrying a
// name and both planned dates are ever constructed.
type Sprint struct {
	ID           int64      `json:"id"`
	Self         string     `json:"self"`
	Name         string     `json:"name"`
	State        string     `json:"state"`
	StartDate    time.Time  `json:"startDate"`
	EndDate      time.Time  `json:"endDate"`
	CompleteDate *time.Time `json:"completeDate,omitempty"`
	Goal         string     `json:"goal,omitempty"`

	// Raw holds the dates exactly as the tracker sent them.
	Raw RawDates `json:"-"`
}

// RawDates are upstream sprint date strings. Complete is empty when the
// sprint has no complete date.
type RawDates struct {
	Start    string
	End      string
	Complete string
}

// Measure is a numeric value with its display text.
type Measure struct {
	Value float64 `json:"value"`
	Text  string  `json:"text"`
}

// Velocity is the committed/completed pair for one sprint plus the derived
// diff and attainment.
type Velocity struct {
	Estimated  Measure `json:"estimated"`
	Completed  Measure `json:"completed"`
	Diff       Measure `json:"diff"`
	Attainment Measure `json:"attainment"`
}

// VelocityRecord joins one velocity entry to its sprint. Sprint is nil when
// the entry's key matches no listed sprint.
type VelocityRecord struct {
	SprintKey string   `json:"sprint_key"`
	Sprint    *Sprint  `json:"sprint"`
	Velocity  Velocity `json:"velocity"`
}

// ActiveSprintPoints is the committed story points of an in-progress sprint.
type ActiveSprintPoints struct {
	Sprint Sprint  `json:"sprint"`
	Points float64 `json:"points"`
}

// Metrics are board-level aggregates.
type Metrics struct {
	// AverageAttainment is the mean attainment over sprints with a positive
	// commitment. Nil when no sprint qualifies.
	AverageAttainment *float64 `json:"average_attainment"`
}

// BoardVelocity is the computed content of one board's report.
type BoardVelocity struct {
	Velocities []VelocityRecord     `json:"velocities"`
	Active     []ActiveSprintPoints `json:"active"`
	Metrics    Metrics              `json:"metrics"`

	// Orphans counts velocity entries that matched no sprint.
	Orphans int `json:"orphans"`
}

// BoardReport is the output record for one board in one run.
type BoardReport struct {
	RunID       string       `json:"run_id"`
	GeneratedAt time.Time    `json:"generated_at"`
	Board       config.Board `json:"board"`
	BoardVelocity
}

// ClosedVelocities returns the records whose sprint is closed, in report order.
func (r *BoardReport) ClosedVelocities() []VelocityRecord {
	var out []VelocityRecord
	for _, v := range r.Velocities {
		if v.Sprint != nil && v.Sprint.State == StateClosed {
			out = append(out, v)
		}
	}
	return out
}

// LastClosed returns the closed record with the latest start date, or nil.
func (r *BoardReport) LastClosed() *VelocityRecord {
	closed := r.ClosedVelocities()
	if len(closed) == 0 {
		return nil
	}
	return &closed[len(closed)-1]
}

// ActivePoints sums the points of every active sprint.
func (r *BoardReport) ActivePoints() float64 {
	var total float64
	for _, a := range r.Active {
		total += a.Points
	}
	return total
}
