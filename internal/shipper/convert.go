package shipper

import (
	"bytes"
	"encoding/json"

	"github.com/sprintpulse/sprintpulse/internal/compute"
)

// ClosedSprint is one exported row: a closed sprint with its velocity.
type ClosedSprint struct {
	SprintName         string  `json:"sprint_name"`
	SprintURL          string  `json:"sprint_url"`
	SprintStartDate    string  `json:"sprint_start_date"`
	SprintEndDate      string  `json:"sprint_end_date"`
	SprintCompleteDate *string `json:"sprint_complete_date"`
	Committed          float64 `json:"committed"`
	Delivered          float64 `json:"delivered"`
	Diff               float64 `json:"diff"`
	Attainment         float64 `json:"attainment"`
}

// Export maps board names to their closed sprints. Boards marshal in the
// order the reports were built.
type Export struct {
	order  []string
	boards map[string][]ClosedSprint
}

// Boards returns the board names in export order.
func (e *Export) Boards() []string { return e.order }

// Sprints returns the exported rows for board.
func (e *Export) Sprints(board string) []ClosedSprint { return e.boards[board] }

// MarshalJSON renders {"BOARD": [...], ...} keeping board order.
func (e *Export) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range e.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		rows := e.boards[name]
		if rows == nil {
			rows = []ClosedSprint{}
		}
		v, err := json.Marshal(rows)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ToExport keeps only closed sprints of each report, in report order.
// Velocity entries that matched no sprint are never exported.
func ToExport(reports []*compute.BoardReport) *Export {
	e := &Export{boards: make(map[string][]ClosedSprint, len(reports))}
	for _, r := range reports {
		name := r.Board.Name
		if _, seen := e.boards[name]; !seen {
			e.order = append(e.order, name)
		}
		rows := make([]ClosedSprint, 0, len(r.Velocities))
		for _, v := range r.ClosedVelocities() {
			rows = append(rows, toClosedSprint(v))
		}
		e.boards[name] = rows
	}
	return e
}

// toClosedSprint exports dates as the tracker sent them.
func toClosedSprint(v compute.VelocityRecord) ClosedSprint {
	s := v.Sprint
	row := ClosedSprint{
		SprintName:      s.Name,
		SprintURL:       s.Self,
		SprintStartDate: s.Raw.Start,
		SprintEndDate:   s.Raw.End,
		Committed:       v.Velocity.Estimated.Value,
		Delivered:       v.Velocity.Completed.Value,
		Diff:            v.Velocity.Diff.Value,
		Attainment:      v.Velocity.Attainment.Value,
	}
	if s.Raw.Complete != "" {
		c := s.Raw.Complete
		row.SprintCompleteDate = &c
	}
	return row
}
