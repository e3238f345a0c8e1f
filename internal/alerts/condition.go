package alerts

import (
	"strconv"
	"strings"

	"github.com/sprintpulse/sprintpulse/internal/compute"
)

// evalCondition evaluates a rule condition string against a board report.
//
// Supported expressions (field operator value):
//
//	average_attainment < 80
//	last_attainment < 70
//	last_committed > 40
//	last_delivered < 10
//	active_points > 60
//	active_sprints == 0
//	orphan_entries > 0
//
// Returns (fires bool, triggering value float64). A field the report has no
// value for, an unknown field or an unparseable expression never fires.
func evalCondition(cond string, r *compute.BoardReport) (bool, float64) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return false, 0
	}
	field, op, rhs := parts[0], parts[1], parts[2]

	threshold, err := strconv.ParseFloat(rhs, 64)
	if err != nil {
		return false, 0
	}
	v, ok := numericField(field, r)
	if !ok {
		return false, 0
	}
	return compareFloat(v, op, threshold), v
}

// numericField maps a field name to its value in the report.
func numericField(field string, r *compute.BoardReport) (float64, bool) {
	switch field {
	case "average_attainment":
		if r.Metrics.AverageAttainment == nil {
			return 0, false
		}
		return *r.Metrics.AverageAttainment, true
	case "last_attainment", "last_committed", "last_delivered":
		last := r.LastClosed()
		if last == nil {
			return 0, false
		}
		switch field {
		case "last_attainment":
			return last.Velocity.Attainment.Value, true
		case "last_committed":
			return last.Velocity.Estimated.Value, true
		default:
			return last.Velocity.Completed.Value, true
		}
	case "active_points":
		return r.ActivePoints(), true
	case "active_sprints":
		return float64(len(r.Active)), true
	case "orphan_entries":
		return float64(r.Orphans), true
	default:
		return 0, false
	}
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	case "!=":
		return v != threshold
	default:
		return false
	}
}
