package alerts

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sprintpulse/sprintpulse/internal/compute"
	"github.com/sprintpulse/sprintpulse/internal/config"
)

var baseTime = time.Date(2024, 3, 8, 10, 0, 0, 0, time.UTC)

func report(board string, avg *float64, activePoints float64) *compute.BoardReport {
	r := &compute.BoardReport{
		RunID: "run-1",
		Board: config.Board{ID: 1, Name: board},
		BoardVelocity: compute.BoardVelocity{
			Metrics: compute.Metrics{AverageAttainment: avg},
		},
	}
	if activePoints > 0 {
		r.Active = []compute.ActiveSprintPoints{{Points: activePoints}}
	}
	return r
}

func f64(v float64) *float64 { return &v }

func newTestEngine(cfg config.AlertsConfig, clock *time.Time) *Engine {
	e := New(cfg)
	e.now = func() time.Time { return *clock }
	return e
}

func TestEvalCondition(t *testing.T) {
	closed := &compute.Sprint{State: compute.StateClosed}
	r := report("CARD", f64(75), 42)
	r.Velocities = []compute.VelocityRecord{
		{Sprint: closed, Velocity: compute.NewVelocity(compute.Measure{Value: 10}, compute.Measure{Value: 6})},
	}
	r.Orphans = 2

	cases := []struct {
		cond  string
		fires bool
		value float64
	}{
		{"average_attainment < 80", true, 75},
		{"average_attainment >= 80", false, 75},
		{"active_points > 40", true, 42},
		{"active_sprints == 1", true, 1},
		{"last_attainment < 70", true, 60},
		{"last_committed == 10", true, 10},
		{"last_delivered != 6", false, 6},
		{"orphan_entries > 0", true, 2},
		{"unknown_field > 0", false, 0},
		{"average_attainment <", false, 0},
		{"average_attainment < lots", false, 0},
		{"average_attainment ~ 3", false, 75},
	}
	for _, tc := range cases {
		fires, v := evalCondition(tc.cond, r)
		if fires != tc.fires || v != tc.value {
			t.Errorf("%q: got (%v, %v), want (%v, %v)", tc.cond, fires, v, tc.fires, tc.value)
		}
	}
}

func TestEvalCondition_AbsentValuesNeverFire(t *testing.T) {
	r := report("EMPTY", nil, 0)
	for _, cond := range []string{"average_attainment < 1000", "last_attainment < 1000"} {
		if fires, _ := evalCondition(cond, r); fires {
			t.Errorf("%q fired on a report without a value", cond)
		}
	}
}

func TestEngine_FireCooldownResolve(t *testing.T) {
	clock := baseTime
	e := newTestEngine(config.AlertsConfig{Rules: []config.AlertRule{
		{Name: "low-attainment", Condition: "average_attainment < 80", Severity: "critical", Cooldown: time.Hour},
	}}, &clock)
	ctx := context.Background()

	got := e.Evaluate(ctx, []*compute.BoardReport{report("CARD", f64(70), 0)})
	if len(got) != 1 || got[0].State != StateFiring || got[0].Severity != "critical" || got[0].Board != "CARD" {
		t.Fatalf("first evaluation = %+v", got)
	}
	if len(e.Active()) != 1 {
		t.Errorf("active = %d, want 1", len(e.Active()))
	}

	clock = clock.Add(30 * time.Minute)
	if got := e.Evaluate(ctx, []*compute.BoardReport{report("CARD", f64(65), 0)}); len(got) != 0 {
		t.Errorf("within cooldown: got %d transitions, want 0", len(got))
	}

	clock = clock.Add(time.Hour)
	got = e.Evaluate(ctx, []*compute.BoardReport{report("CARD", f64(95), 0)})
	if len(got) != 1 || got[0].State != StateResolved || got[0].ResolvedAt == nil {
		t.Fatalf("resolve = %+v", got)
	}

	active := e.Active()
	if len(active) != 1 || active[0].State != StateResolved {
		t.Errorf("recently resolved should still be listed: %+v", active)
	}

	clock = clock.Add(48 * time.Hour)
	if len(e.Active()) != 0 {
		t.Errorf("resolved alert should age out of Active")
	}
}

func TestEngine_KeysPerBoard(t *testing.T) {
	clock := baseTime
	e := newTestEngine(config.AlertsConfig{Rules: []config.AlertRule{
		{Name: "overcommitted", Condition: "active_points > 60"},
	}}, &clock)

	got := e.Evaluate(context.Background(), []*compute.BoardReport{
		report("CARD", nil, 80),
		report("BILL_PAY", nil, 10),
		report("REPORTING", nil, 61),
	})
	if len(got) != 2 {
		t.Fatalf("transitions = %d, want 2", len(got))
	}
	if got[0].Board != "CARD" || got[1].Board != "REPORTING" {
		t.Errorf("boards = %s, %s", got[0].Board, got[1].Board)
	}
	if got[0].Severity != "warning" {
		t.Errorf("default severity = %q, want warning", got[0].Severity)
	}
}

func TestEngine_NoRules(t *testing.T) {
	e := New(config.AlertsConfig{})
	if got := e.Evaluate(context.Background(), []*compute.BoardReport{report("X", f64(1), 0)}); got != nil {
		t.Errorf("got %v, want nil", got)
	}
}

func TestEngine_Reconfigure(t *testing.T) {
	clock := baseTime
	e := newTestEngine(config.AlertsConfig{Rules: []config.AlertRule{
		{Name: "a", Condition: "active_points > 1"},
	}}, &clock)
	e.Evaluate(context.Background(), []*compute.BoardReport{report("CARD", nil, 5)})

	e.Reconfigure(config.AlertsConfig{Rules: []config.AlertRule{
		{Name: "b", Condition: "active_points > 100"},
	}})
	if n := len(e.Active()); n != 0 {
		t.Errorf("alerts of removed rules should be dropped, got %d", n)
	}
}

func TestEngine_DeliversWebhooks(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies = map[string]string{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies[r.URL.Path] = string(b)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	t.Setenv("TEST_SLACK_URL", srv.URL+"/slack")
	t.Setenv("TEST_TEAMS_URL", srv.URL+"/teams")
	t.Setenv("TEST_HTTP_URL", srv.URL+"/http")

	clock := baseTime
	e := newTestEngine(config.AlertsConfig{
		Rules: []config.AlertRule{{Name: "low", Condition: "average_attainment < 80", Severity: "critical"}},
		Webhooks: []config.WebhookConfig{
			{Type: "slack", URLEnv: "TEST_SLACK_URL"},
			{Type: "teams", URLEnv: "TEST_TEAMS_URL"},
			{Type: "http", URLEnv: "TEST_HTTP_URL"},
			{Type: "http", URLEnv: "TEST_UNSET_URL"},
		},
	}, &clock)

	e.Evaluate(context.Background(), []*compute.BoardReport{report("CARD", f64(50), 0)})

	mu.Lock()
	defer mu.Unlock()
	if !strings.Contains(bodies["/slack"], "[CRITICAL]") {
		t.Errorf("slack body = %s", bodies["/slack"])
	}
	if !strings.Contains(bodies["/teams"], "MessageCard") {
		t.Errorf("teams body = %s", bodies["/teams"])
	}
	var generic struct {
		Alert Alert `json:"alert"`
	}
	if err := json.Unmarshal([]byte(bodies["/http"]), &generic); err != nil {
		t.Fatalf("http body: %v", err)
	}
	if generic.Alert.RuleName != "low" || generic.Alert.Value != 50 {
		t.Errorf("http alert = %+v", generic.Alert)
	}
}

func TestEngine_MutedSkipsWebhooks(t *testing.T) {
	var hits int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	t.Setenv("TEST_HTTP_URL", srv.URL)

	clock := baseTime
	e := newTestEngine(config.AlertsConfig{
		Rules:    []config.AlertRule{{Name: "idle", Condition: "active_sprints == 0"}},
		Webhooks: []config.WebhookConfig{{Type: "http", URLEnv: "TEST_HTTP_URL"}},
	}, &clock)
	e.Mute()

	got := e.Evaluate(context.Background(), []*compute.BoardReport{report("CARD", nil, 0)})
	if len(got) != 1 || got[0].State != StateFiring {
		t.Fatalf("transitions = %+v, want one firing alert", got)
	}
	if n := len(e.Active()); n != 1 {
		t.Errorf("active = %d, want 1", n)
	}

	clock = clock.Add(time.Minute)
	got = e.Evaluate(context.Background(), []*compute.BoardReport{report("CARD", nil, 5)})
	if len(got) != 1 || got[0].State != StateResolved {
		t.Fatalf("transitions = %+v, want one resolved alert", got)
	}

	mu.Lock()
	defer mu.Unlock()
	if hits != 0 {
		t.Errorf("webhook hits = %d, want 0", hits)
	}
}
