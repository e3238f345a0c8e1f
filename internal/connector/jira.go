package connector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/sprintpulse/sprintpulse/internal/paginate"
)

// Jira resource paths.
const (
	routeBoards          = "/rest/agile/1.0/board"
	routeSprintsForBoard = "/rest/agile/1.0/board/%d/sprint"
	routeIssuesForBoard  = "/rest/agile/1.0/board/%d/issue"
	routeIssuesForSprint = "/rest/agile/1.0/board/%d/sprint/%d/issue"
	routeVelocity        = "/rest/greenhopper/1.0/rapid/charts/velocity"
)

// JiraOptions configures a Jira client.
type JiraOptions struct {
	// BaseURL is the site root, e.g. https://acme.atlassian.net.
	BaseURL string

	Username string
	APIKey   string
	Timeout  time.Duration

	// Transport overrides the underlying RoundTripper. Tests pass the
	// httptest server's transport here.
	Transport http.RoundTripper
}

// Jira talks to the agile and greenhopper REST APIs with basic auth.
type Jira struct {
	base   string
	client *http.Client
}

// NewJira validates opts and builds the HTTP client once.
func NewJira(opts JiraOptions) (*Jira, error) {
	base := strings.TrimRight(opts.BaseURL, "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("connector: invalid jira base url %q", opts.BaseURL)
	}
	auth := Auth{Mode: "basic", Username: opts.Username, Secret: opts.APIKey}
	return &Jira{
		base:   base,
		client: buildHTTPClient(opts.Transport, auth, opts.Timeout),
	}, nil
}

// BaseURL returns the site root requests are sent to.
func (j *Jira) BaseURL() string { return j.base }

// VelocityChartURL links to the board's velocity chart in the web UI.
func (j *Jira) VelocityChartURL(boardID int64) string {
	return fmt.Sprintf("%s/secure/RapidBoard.jspa?rapidView=%d&view=reporting&chart=velocityChart", j.base, boardID)
}

// BoardURL links to the board itself in the web UI.
func (j *Jira) BoardURL(boardID int64) string {
	return fmt.Sprintf("%s/secure/RapidBoard.jspa?rapidView=%d", j.base, boardID)
}

// BoardsPage fetches one page of the boards visible to the credentials.
func (j *Jira) BoardsPage(ctx context.Context, req paginate.Request) (*paginate.Page[gjson.Result], error) {
	return j.page(ctx, routeBoards, req)
}

// SprintsPage fetches one page of a board's sprints.
func (j *Jira) SprintsPage(ctx context.Context, boardID int64, req paginate.Request) (*paginate.Page[gjson.Result], error) {
	return j.page(ctx, fmt.Sprintf(routeSprintsForBoard, boardID), req)
}

// IssuesPage fetches one page of issues for a board, or for one of its
// sprints when sprintID is non-nil.
func (j *Jira) IssuesPage(ctx context.Context, boardID int64, sprintID *int64, req paginate.Request) (*paginate.Page[gjson.Result], error) {
	path := fmt.Sprintf(routeIssuesForBoard, boardID)
	if sprintID != nil {
		path = fmt.Sprintf(routeIssuesForSprint, boardID, *sprintID)
	}
	return j.page(ctx, path, req)
}

// VelocityStats fetches the board's velocity chart payload. The resource is
// not paginated; callers read velocityStatEntries from the result.
func (j *Jira) VelocityStats(ctx context.Context, boardID int64) (gjson.Result, error) {
	q := url.Values{}
	q.Set("rapidViewId", strconv.FormatInt(boardID, 10))

	body, err := getJSON(ctx, j.client, j.base+routeVelocity+"?"+q.Encode())
	if err != nil {
		return gjson.Result{}, fmt.Errorf("connector: jira velocity board %d: %w", boardID, err)
	}
	return gjson.ParseBytes(body), nil
}

// Board is a board listing entry.
type Board struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// ListBoards walks every page of the boards resource.
func (j *Jira) ListBoards(ctx context.Context, opts paginate.Options) ([]Board, error) {
	items, err := paginate.All(ctx, j.BoardsPage, opts)
	if err != nil {
		return nil, fmt.Errorf("connector: list boards: %w", err)
	}
	boards := make([]Board, 0, len(items))
	for _, it := range items {
		boards = append(boards, Board{
			ID:   it.Get("id").Int(),
			Name: it.Get("name").String(),
			Type: it.Get("type").String(),
		})
	}
	return boards, nil
}

func (j *Jira) page(ctx context.Context, path string, req paginate.Request) (*paginate.Page[gjson.Result], error) {
	q := url.Values{}
	q.Set("startAt", strconv.Itoa(req.StartAt()))
	q.Set("maxResults", strconv.Itoa(req.PageSize))

	body, err := getJSON(ctx, j.client, j.base+path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("connector: jira %s: %w", path, err)
	}
	p, err := paginate.ParsePage(body)
	if err != nil {
		return nil, fmt.Errorf("connector: jira %s: %w", path, err)
	}
	return p, nil
}
