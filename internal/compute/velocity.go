package compute

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/sprintpulse/sprintpulse/internal/paginate"
)

// Aggregator computes a board's velocity history and active commitments.
type Aggregator struct {
	tracker     Tracker
	resolver    *Resolver
	pointsField string
	opts        paginate.Options
}

// NewAggregator returns an Aggregator summing pointsField on active issues.
func NewAggregator(tracker Tracker, pointsField string, opts paginate.Options) *Aggregator {
	return &Aggregator{
		tracker:     tracker,
		resolver:    NewResolver(tracker, opts),
		pointsField: pointsField,
		opts:        opts,
	}
}

// Resolver exposes the sprint resolver sharing this aggregator's tracker.
func (a *Aggregator) Resolver() *Resolver { return a.resolver }

// ComputeBoardVelocity lists the board's sprints, joins them to the velocity
// chart entries and sums story points for every active sprint.
func (a *Aggregator) ComputeBoardVelocity(ctx context.Context, boardID int64) (*BoardVelocity, error) {
	sprints, err := a.resolver.ListSprints(ctx, boardID)
	if err != nil {
		return nil, err
	}

	stats, err := a.tracker.VelocityStats(ctx, boardID)
	if err != nil {
		return nil, fmt.Errorf("compute: velocity stats board %d: %w", boardID, err)
	}

	records, orphans := joinVelocities(sprints, stats.Get("velocityStatEntries"))
	if orphans > 0 {
		slog.Warn("compute: velocity entries without a matching sprint",
			"board", boardID, "orphans", orphans)
	}
	sortRecords(records)

	active := filterState(sprints, StateActive)
	points := make([]ActiveSprintPoints, 0, len(active))
	for _, s := range active {
		p, err := a.sprintPoints(ctx, boardID, s.ID)
		if err != nil {
			return nil, err
		}
		points = append(points, ActiveSprintPoints{Sprint: s, Points: p})
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Sprint.StartDate.Before(points[j].Sprint.StartDate)
	})

	return &BoardVelocity{
		Velocities: records,
		Active:     points,
		Metrics:    Metrics{AverageAttainment: AverageAttainment(records)},
		Orphans:    orphans,
	}, nil
}

func (a *Aggregator) sprintPoints(ctx context.Context, boardID, sprintID int64) (float64, error) {
	fetch := func(ctx context.Context, req paginate.Request) (*paginate.Page[gjson.Result], error) {
		return a.tracker.IssuesPage(ctx, boardID, &sprintID, req)
	}
	issues, err := paginate.All(ctx, fetch, a.opts)
	if err != nil {
		return 0, fmt.Errorf("compute: issues board %d sprint %d: %w", boardID, sprintID, err)
	}
	return SumPoints(issues, a.pointsField), nil
}

// SumPoints adds up field across issues. A missing, null or non-numeric
// value counts as zero.
func SumPoints(issues []gjson.Result, field string) float64 {
	var total float64
	for _, is := range issues {
		// Map lookup so field names are never interpreted as gjson paths.
		v, ok := is.Get("fields").Map()[field]
		if ok && v.Type == gjson.Number {
			total += v.Float()
		}
	}
	return total
}

// joinVelocities pairs each entry with the first listed sprint whose id
// matches its key, in document order.
func joinVelocities(sprints []Sprint, entries gjson.Result) ([]VelocityRecord, int) {
	byKey := make(map[string]*Sprint, len(sprints))
	for i := range sprints {
		k := strconv.FormatInt(sprints[i].ID, 10)
		if _, dup := byKey[k]; !dup {
			byKey[k] = &sprints[i]
		}
	}

	var (
		records []VelocityRecord
		orphans int
	)
	entries.ForEach(func(key, entry gjson.Result) bool {
		k := normalizeKey(key.String())
		rec := VelocityRecord{
			SprintKey: k,
			Velocity:  NewVelocity(measure(entry.Get("estimated")), measure(entry.Get("completed"))),
		}
		if s, ok := byKey[k]; ok {
			sc := *s
			rec.Sprint = &sc
		} else {
			orphans++
		}
		records = append(records, rec)
		return true
	})
	return records, orphans
}

// normalizeKey renders integral keys in canonical decimal form so "042" and
// "42" join the same sprint.
func normalizeKey(k string) string {
	k = strings.TrimSpace(k)
	if n, err := strconv.ParseInt(k, 10, 64); err == nil {
		return strconv.FormatInt(n, 10)
	}
	return k
}

func measure(v gjson.Result) Measure {
	m := Measure{Value: v.Get("value").Float(), Text: v.Get("text").String()}
	if m.Text == "" {
		m.Text = formatNumber(m.Value)
	}
	return m
}

// sortRecords orders records by sprint start date. Records without a sprint
// go last, keeping their relative order.
func sortRecords(records []VelocityRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i].Sprint, records[j].Sprint
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.StartDate.Before(b.StartDate)
		}
	})
}

// NewVelocity derives diff and attainment from the committed and completed
// measures.
func NewVelocity(estimated, completed Measure) Velocity {
	diff := completed.Value - estimated.Value
	att := Attainment(estimated.Value, completed.Value)
	return Velocity{
		Estimated:  estimated,
		Completed:  completed,
		Diff:       Measure{Value: diff, Text: formatNumber(diff)},
		Attainment: Measure{Value: att, Text: fmt.Sprintf("%.1f%%", att)},
	}
}

// Attainment is completed as a percentage of estimated. A sprint with no
// commitment counts as fully attained.
func Attainment(estimated, completed float64) float64 {
	if estimated == 0 {
		return 100.0
	}
	return completed / estimated * 100
}

// AverageAttainment is the mean attainment over records with a positive
// commitment, or nil when there are none.
func AverageAttainment(records []VelocityRecord) *float64 {
	var (
		sum float64
		n   int
	)
	for _, r := range records {
		if r.Velocity.Estimated.Value > 0 {
			sum += r.Velocity.Attainment.Value
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
