package compute

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tidwall/gjson"

	"github.com/sprintpulse/sprintpulse/internal/paginate"
)

// sprintDateLayouts are tried in order when parsing upstream sprint dates.
var sprintDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02",
}

// Resolver lists and classifies a board's sprints.
type Resolver struct {
	tracker Tracker
	opts    paginate.Options
}

// NewResolver returns a Resolver that pages through tracker with opts.
func NewResolver(tracker Tracker, opts paginate.Options) *Resolver {
	return &Resolver{tracker: tracker, opts: opts}
}

// ListSprints returns every sprint of the board that has a name, a start
// date and an end date, in upstream order.
func (r *Resolver) ListSprints(ctx context.Context, boardID int64) ([]Sprint, error) {
	fetch := func(ctx context.Context, req paginate.Request) (*paginate.Page[gjson.Result], error) {
		return r.tracker.SprintsPage(ctx, boardID, req)
	}
	items, err := paginate.All(ctx, fetch, r.opts)
	if err != nil {
		return nil, fmt.Errorf("compute: list sprints board %d: %w", boardID, err)
	}

	sprints := make([]Sprint, 0, len(items))
	for _, it := range items {
		s, ok := parseSprint(it)
		if !ok {
			continue
		}
		sprints = append(sprints, s)
	}
	slog.Debug("compute: sprints listed",
		"board", boardID, "listed", len(items), "kept", len(sprints))
	return sprints, nil
}

// FindActiveSprints returns the board's sprints in the active state.
func (r *Resolver) FindActiveSprints(ctx context.Context, boardID int64) ([]Sprint, error) {
	sprints, err := r.ListSprints(ctx, boardID)
	if err != nil {
		return nil, err
	}
	return filterState(sprints, StateActive), nil
}

// FindLastClosedSprint returns the closed sprint with the latest end date.
// Ties go to the sprint listed last. It returns nil, nil when the board has
// no closed sprint.
func (r *Resolver) FindLastClosedSprint(ctx context.Context, boardID int64) (*Sprint, error) {
	sprints, err := r.ListSprints(ctx, boardID)
	if err != nil {
		return nil, err
	}
	return lastClosed(sprints), nil
}

func lastClosed(sprints []Sprint) *Sprint {
	var last *Sprint
	for i := range sprints {
		s := &sprints[i]
		if s.State != StateClosed {
			continue
		}
		if last == nil || !s.EndDate.Before(last.EndDate) {
			last = s
		}
	}
	if last == nil {
		return nil
	}
	out := *last
	return &out
}

func filterState(sprints []Sprint, state string) []Sprint {
	var out []Sprint
	for _, s := range sprints {
		if s.State == state {
			out = append(out, s)
		}
	}
	return out
}

// parseSprint decodes a sprint listing item. It reports false for items
// without a name, a start date or an end date. An empty name still counts
// as present; a null one does not.
func parseSprint(it gjson.Result) (Sprint, bool) {
	name := it.Get("name")
	start := it.Get("startDate")
	end := it.Get("endDate")
	if !present(name) || !present(start) || !present(end) {
		return Sprint{}, false
	}

	s := Sprint{
		ID:    it.Get("id").Int(),
		Self:  it.Get("self").String(),
		Name:  name.String(),
		State: it.Get("state").String(),
		Goal:  it.Get("goal").String(),
		Raw:   RawDates{Start: start.String(), End: end.String()},
	}

	var err error
	if s.StartDate, err = parseSprintDate(start.String()); err != nil {
		slog.Warn("compute: dropping sprint with unparseable start date",
			"sprint", s.ID, "startDate", start.String(), "err", err)
		return Sprint{}, false
	}
	if s.EndDate, err = parseSprintDate(end.String()); err != nil {
		slog.Warn("compute: dropping sprint with unparseable end date",
			"sprint", s.ID, "endDate", end.String(), "err", err)
		return Sprint{}, false
	}
	if c := it.Get("completeDate"); present(c) {
		s.Raw.Complete = c.String()
		if t, err := parseSprintDate(c.String()); err == nil {
			s.CompleteDate = &t
		}
	}
	return s, true
}

func present(v gjson.Result) bool {
	return v.Exists() && v.Type != gjson.Null
}

func parseSprintDate(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range sprintDateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}
