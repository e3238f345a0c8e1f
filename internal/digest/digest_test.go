package digest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprintpulse/sprintpulse/internal/alerts"
	"github.com/sprintpulse/sprintpulse/internal/compute"
	"github.com/sprintpulse/sprintpulse/internal/config"
	"github.com/sprintpulse/sprintpulse/internal/mailer"
	"github.com/sprintpulse/sprintpulse/internal/store"
)

type fakeBuilder struct {
	reports []*compute.BoardReport
	err     error
}

func (f *fakeBuilder) BuildReports(_ context.Context, boards []config.Board) ([]*compute.BoardReport, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.reports, nil
}

type fakeSender struct {
	sent []mailer.Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, msg mailer.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeShipper struct {
	shipped [][]*compute.BoardReport
	err     error
}

func (f *fakeShipper) Ship(reports []*compute.BoardReport) error {
	if f.err != nil {
		return f.err
	}
	f.shipped = append(f.shipped, reports)
	return nil
}

type fakeEvaluator struct{ calls int }

func (f *fakeEvaluator) Evaluate(_ context.Context, reports []*compute.BoardReport) []*alerts.Alert {
	f.calls++
	return []*alerts.Alert{{RuleName: "low", Board: reports[0].Board.Name}}
}

type fakePublisher struct{ events []string }

func (f *fakePublisher) Publish(event string) { f.events = append(f.events, event) }

type links struct{}

func (links) VelocityChartURL(id int64) string { return fmt.Sprintf("https://jira.test/velocity/%d", id) }
func (links) BoardURL(id int64) string         { return fmt.Sprintf("https://jira.test/board/%d", id) }

var (
	boards    = []config.Board{{ID: 42, Name: "CARD", DisplayName: "Card Team"}}
	digestCfg = config.DigestConfig{
		Subject: "Velocity Report",
		From:    config.Sender{Email: "noreply@example.com", Name: "Sprint Pulse"},
		To:      []string{"lead@example.com", "pm@example.com"},
	}
)

func reports() []*compute.BoardReport {
	return []*compute.BoardReport{{RunID: "run-7", Board: boards[0]}}
}

func newRunner(opts Options) *Runner {
	r := New(opts)
	r.now = func() time.Time { return time.Date(2024, 3, 8, 10, 0, 0, 0, time.UTC) }
	return r
}

func TestRun_DeliversEverything(t *testing.T) {
	sender, ship, eval, pub := &fakeSender{}, &fakeShipper{}, &fakeEvaluator{}, &fakePublisher{}
	st := store.New(time.Hour)
	r := newRunner(Options{
		Builder: &fakeBuilder{reports: reports()}, Links: links{},
		Sender: sender, Shipper: ship, Store: st, Alerts: eval, Publisher: pub,
	})

	res, err := r.Run(context.Background(), digestCfg, boards)
	require.NoError(t, err)

	assert.Equal(t, "run-7", res.RunID)
	assert.True(t, res.Sent)
	assert.Len(t, res.Alerts, 1)
	assert.Contains(t, res.HTML, "Card Team")
	assert.Contains(t, res.HTML, "03/08/2024")

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "Velocity Report", msg.Subject)
	assert.Equal(t, digestCfg.To, msg.To)
	assert.Equal(t, "noreply@example.com", msg.FromEmail)
	assert.Equal(t, res.HTML, msg.HTML)

	assert.Len(t, ship.shipped, 1)
	assert.Equal(t, 1, eval.calls)
	assert.Equal(t, []string{"run"}, pub.events)

	_, ok := st.Get("CARD")
	assert.True(t, ok)
	last := st.LastRun()
	require.NotNil(t, last)
	assert.Equal(t, "run-7", last.RunID)
	assert.Empty(t, last.Error)
}

func TestRun_DryRunSkipsSend(t *testing.T) {
	ship := &fakeShipper{}
	r := newRunner(Options{Builder: &fakeBuilder{reports: reports()}, Links: links{}, Shipper: ship})

	res, err := r.Run(context.Background(), digestCfg, boards)
	require.NoError(t, err)
	assert.False(t, res.Sent)
	assert.NotEmpty(t, res.HTML)
	assert.Len(t, ship.shipped, 1)
}

func TestRun_DryRunWithMutedAlertsNotifiesNobody(t *testing.T) {
	var hits atomic.Int32
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer hook.Close()
	t.Setenv("DIGEST_TEST_HOOK", hook.URL)

	eng := alerts.New(config.AlertsConfig{
		Rules:    []config.AlertRule{{Name: "idle", Condition: "active_sprints == 0"}},
		Webhooks: []config.WebhookConfig{{Type: "http", URLEnv: "DIGEST_TEST_HOOK"}},
	})
	eng.Mute()
	r := newRunner(Options{Builder: &fakeBuilder{reports: reports()}, Links: links{}, Alerts: eng})

	res, err := r.Run(context.Background(), digestCfg, boards)
	require.NoError(t, err)
	assert.False(t, res.Sent)
	require.Len(t, res.Alerts, 1)
	assert.Equal(t, "idle", res.Alerts[0].RuleName)
	assert.Zero(t, hits.Load())
}

func TestRun_BuildFailureDeliversNothing(t *testing.T) {
	sender, ship := &fakeSender{}, &fakeShipper{}
	st := store.New(time.Hour)
	boom := errors.New("jira unavailable")
	r := newRunner(Options{
		Builder: &fakeBuilder{err: boom}, Links: links{},
		Sender: sender, Shipper: ship, Store: st,
	})

	res, err := r.Run(context.Background(), digestCfg, boards)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrDelivery)
	assert.Empty(t, sender.sent)
	assert.Empty(t, ship.shipped)

	last := st.LastRun()
	require.NotNil(t, last)
	assert.Contains(t, last.Error, "jira unavailable")
	assert.Zero(t, st.Count())
}

func TestRun_SendFailureSkipsExport(t *testing.T) {
	ship := &fakeShipper{}
	r := newRunner(Options{
		Builder: &fakeBuilder{reports: reports()}, Links: links{},
		Sender: &fakeSender{err: &mailer.DeliveryError{StatusCode: 401}}, Shipper: ship,
	})

	_, err := r.Run(context.Background(), digestCfg, boards)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDelivery)
	var de *mailer.DeliveryError
	assert.ErrorAs(t, err, &de)
	assert.Empty(t, ship.shipped)
}

func TestRun_ExportFailureIsDelivery(t *testing.T) {
	r := newRunner(Options{
		Builder: &fakeBuilder{reports: reports()}, Links: links{},
		Shipper: &fakeShipper{err: errors.New("disk full")},
	})
	_, err := r.Run(context.Background(), digestCfg, boards)
	assert.ErrorIs(t, err, ErrDelivery)
}
