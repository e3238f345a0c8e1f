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
)

// CodecovOptions configures a Codecov client.
type CodecovOptions struct {
	// BaseURL is the service root; https://codecov.io when empty.
	BaseURL string

	Owner   string
	Token   string
	Timeout time.Duration

	Transport http.RoundTripper
}

// Codecov reads branch coverage from the Codecov v2 GitHub API.
type Codecov struct {
	base   string
	owner  string
	client *http.Client
}

// Coverage is the head-commit coverage of one branch.
type Coverage struct {
	Repo    string  `json:"repo"`
	Branch  string  `json:"branch"`
	Commit  string  `json:"commit"`
	Percent float64 `json:"percent"`
}

// NewCodecov builds a client that authenticates with "Authorization: token".
func NewCodecov(opts CodecovOptions) (*Codecov, error) {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "https://codecov.io"
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("connector: invalid codecov base url %q: %w", opts.BaseURL, err)
	}
	if opts.Owner == "" {
		return nil, fmt.Errorf("connector: codecov owner is required")
	}
	auth := Auth{Mode: "token", Secret: opts.Token}
	return &Codecov{
		base:   base,
		owner:  opts.Owner,
		client: buildHTTPClient(opts.Transport, auth, opts.Timeout),
	}, nil
}

// BranchCoverage returns commit.totals.c for the branch head.
func (c *Codecov) BranchCoverage(ctx context.Context, repo, branch string) (*Coverage, error) {
	u := fmt.Sprintf("%s/api/gh/%s/%s/branch/%s", c.base,
		url.PathEscape(c.owner), url.PathEscape(repo), url.PathEscape(branch))

	body, err := getJSON(ctx, c.client, u)
	if err != nil {
		return nil, fmt.Errorf("connector: codecov %s@%s: %w", repo, branch, err)
	}

	doc := gjson.ParseBytes(body)
	totals := doc.Get("commit.totals.c")
	if !totals.Exists() {
		return nil, fmt.Errorf("connector: codecov %s@%s: commit.totals.c missing", repo, branch)
	}
	pct := totals.Float()
	if totals.Type == gjson.String {
		// The API has served the percentage as a decimal string.
		v, err := strconv.ParseFloat(strings.TrimSpace(totals.String()), 64)
		if err != nil {
			return nil, fmt.Errorf("connector: codecov %s@%s: coverage %q: %w", repo, branch, totals.String(), err)
		}
		pct = v
	}
	return &Coverage{
		Repo:    repo,
		Branch:  branch,
		Commit:  doc.Get("commit.commitid").String(),
		Percent: pct,
	}, nil
}
