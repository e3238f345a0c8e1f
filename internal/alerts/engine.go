package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/sprintpulse/sprintpulse/internal/compute"
	"github.com/sprintpulse/sprintpulse/internal/config"
)

const (
	// Reports arrive once per run, so the default cooldown spans a week.
	defaultCooldown = 7 * 24 * time.Hour
	maxHistoryLen   = 200
	recentWindow    = 24 * time.Hour
)

// Alert states.
const (
	StateFiring   = "firing"
	StateResolved = "resolved"
)

// Alert represents a single alert event produced by the rule engine.
type Alert struct {
	ID         string     `json:"id"`
	RuleName   string     `json:"rule_name"`
	Board      string     `json:"board"`
	RunID      string     `json:"run_id"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"`
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"`
}

// Engine evaluates alert rules against board reports and delivers webhook
// notifications when rules fire or resolve.
//
// Engine is safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	rules    []config.AlertRule
	webhooks []config.WebhookConfig
	active   map[string]*Alert    // key: "ruleName:board"
	lastFire map[string]time.Time // last fire time per key (for cooldown)
	history  []*Alert             // recently resolved alerts
	muted    bool

	client *http.Client
	now    func() time.Time
}

// New creates an Engine from the alert configuration.
// An Engine with no rules is valid; Evaluate becomes a no-op.
func New(cfg config.AlertsConfig) *Engine {
	return &Engine{
		rules:    cfg.Rules,
		webhooks: cfg.Webhooks,
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}
}

// Reconfigure swaps rules and webhooks. Alerts for rules that no longer
// exist are dropped without a resolve notification.
func (e *Engine) Reconfigure(cfg config.AlertsConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()

	keep := make(map[string]struct{}, len(cfg.Rules))
	for _, r := range cfg.Rules {
		keep[r.Name] = struct{}{}
	}
	for key, a := range e.active {
		if _, ok := keep[a.RuleName]; !ok {
			delete(e.active, key)
			delete(e.lastFire, key)
		}
	}
	e.rules = cfg.Rules
	e.webhooks = cfg.Webhooks
	slog.Info("alerts: reconfigured", "rules", len(cfg.Rules), "webhooks", len(cfg.Webhooks))
}

// Mute stops webhook delivery. Rules are still evaluated and tracked, so
// Active and the transitions returned by Evaluate are unchanged.
func (e *Engine) Mute() {
	e.mu.Lock()
	e.muted = true
	e.mu.Unlock()
}

// Evaluate tests every rule against every report. Unless the engine is
// muted, firing and resolving alerts are delivered to the webhooks before
// Evaluate returns. Transitions are returned in evaluation order.
func (e *Engine) Evaluate(ctx context.Context, reports []*compute.BoardReport) []*Alert {
	e.mu.Lock()
	rules, muted := e.rules, e.muted
	e.mu.Unlock()
	if len(rules) == 0 {
		return nil
	}

	var transitions []*Alert
	for _, r := range reports {
		for _, rule := range rules {
			if a := e.evaluateRule(rule, r); a != nil {
				transitions = append(transitions, a)
			}
		}
	}
	if muted {
		if len(transitions) > 0 {
			slog.Info("alerts: muted, webhooks not notified", "transitions", len(transitions))
		}
		return transitions
	}
	for _, a := range transitions {
		e.deliver(ctx, a)
	}
	return transitions
}

// evaluateRule returns a copy of the alert when the rule changes state.
func (e *Engine) evaluateRule(rule config.AlertRule, r *compute.BoardReport) *Alert {
	board := r.Board.Name
	key := rule.Name + ":" + board
	fires, value := evalCondition(rule.Condition, r)
	now := e.now()

	e.mu.Lock()
	defer e.mu.Unlock()

	if fires {
		cooldown := rule.Cooldown
		if cooldown <= 0 {
			cooldown = defaultCooldown
		}
		if now.Sub(e.lastFire[key]) <= cooldown {
			return nil
		}
		sev := rule.Severity
		if sev == "" {
			sev = "warning"
		}
		a := &Alert{
			ID:       fmt.Sprintf("%s:%s:%d", rule.Name, board, now.UnixNano()),
			RuleName: rule.Name,
			Board:    board,
			RunID:    r.RunID,
			Severity: sev,
			Value:    value,
			Message: fmt.Sprintf("[%s] %s fired on %s: %s (value %.2f)",
				sev, rule.Name, r.Board.Title(), rule.Condition, value),
			FiredAt: now,
			State:   StateFiring,
		}
		e.active[key] = a
		e.lastFire[key] = now

		slog.Warn("alerts: alert fired",
			"rule", rule.Name,
			"board", board,
			"value", value,
			"severity", sev,
		)
		cp := *a
		return &cp
	}

	a, ok := e.active[key]
	if !ok || a.State != StateFiring {
		return nil
	}
	resolved := now
	a.State = StateResolved
	a.ResolvedAt = &resolved
	delete(e.active, key)

	e.history = append(e.history, a)
	if len(e.history) > maxHistoryLen {
		e.history = e.history[len(e.history)-maxHistoryLen:]
	}

	slog.Info("alerts: alert resolved", "rule", rule.Name, "board", board)
	cp := *a
	return &cp
}

// Active returns copies of all currently firing alerts plus any alerts
// resolved within the past day, newest first.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindow)
	out := make([]*Alert, 0, len(e.active))

	for _, a := range e.active {
		cp := *a
		out = append(out, &cp)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiredAt.After(out[j].FiredAt) })
	return out
}
