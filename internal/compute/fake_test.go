package compute

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/sprintpulse/sprintpulse/internal/paginate"
)

// fakeTracker serves canned JSON per board. Sprint and issue listings are
// paginated by the requested window; sprints report isLast, issues total.
type fakeTracker struct {
	mu sync.Mutex

	sprints  map[int64][]string
	velocity map[int64]string
	issues   map[int64][]string // keyed by sprint id

	failSprints map[int64]error
	calls       map[string]int
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{
		sprints:     map[int64][]string{},
		velocity:    map[int64]string{},
		issues:      map[int64][]string{},
		failSprints: map[int64]error{},
		calls:       map[string]int{},
	}
}

func (f *fakeTracker) count(kind string) {
	f.mu.Lock()
	f.calls[kind]++
	f.mu.Unlock()
}

func window(items []string, req paginate.Request) []string {
	start := req.StartAt()
	if start >= len(items) {
		return nil
	}
	end := start + req.PageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func (f *fakeTracker) SprintsPage(_ context.Context, boardID int64, req paginate.Request) (*paginate.Page[gjson.Result], error) {
	f.count("sprints")
	if err := f.failSprints[boardID]; err != nil {
		return nil, err
	}
	all := f.sprints[boardID]
	page := window(all, req)
	last := req.StartAt()+len(page) >= len(all)
	body := fmt.Sprintf(`{"maxResults":%d,"startAt":%d,"isLast":%t,"values":[%s]}`,
		req.PageSize, req.StartAt(), last, strings.Join(page, ","))
	return paginate.ParsePage([]byte(body))
}

func (f *fakeTracker) IssuesPage(_ context.Context, _ int64, sprintID *int64, req paginate.Request) (*paginate.Page[gjson.Result], error) {
	f.count("issues")
	all := f.issues[*sprintID]
	page := window(all, req)
	body := fmt.Sprintf(`{"maxResults":%d,"startAt":%d,"total":%d,"issues":[%s]}`,
		req.PageSize, req.StartAt(), len(all), strings.Join(page, ","))
	return paginate.ParsePage([]byte(body))
}

func (f *fakeTracker) VelocityStats(_ context.Context, boardID int64) (gjson.Result, error) {
	f.count("velocity")
	body, ok := f.velocity[boardID]
	if !ok {
		body = `{"velocityStatEntries":{}}`
	}
	return gjson.Parse(body), nil
}

func sprintJSON(id int64, name, state, start, end string) string {
	return fmt.Sprintf(`{"id":%d,"self":"https://acme.atlassian.net/rest/agile/1.0/sprint/%d","name":%q,"state":%q,"startDate":%q,"endDate":%q}`,
		id, id, name, state, start, end)
}

func issueJSON(key string, points string) string {
	if points == "" {
		return fmt.Sprintf(`{"key":%q,"fields":{"summary":"x"}}`, key)
	}
	return fmt.Sprintf(`{"key":%q,"fields":{"customfield_10014":%s}}`, key, points)
}
