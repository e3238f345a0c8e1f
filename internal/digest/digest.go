package digest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sprintpulse/sprintpulse/internal/alerts"
	"github.com/sprintpulse/sprintpulse/internal/compute"
	"github.com/sprintpulse/sprintpulse/internal/config"
	"github.com/sprintpulse/sprintpulse/internal/mailer"
	"github.com/sprintpulse/sprintpulse/internal/store"
	"github.com/sprintpulse/sprintpulse/internal/view"
)

// ErrDelivery marks failures that happen after every report was built:
// sending the email or writing the export.
var ErrDelivery = errors.New("digest: delivery failed")

// Builder computes the reports of one run. *compute.Assembler implements it.
type Builder interface {
	BuildReports(ctx context.Context, boards []config.Board) ([]*compute.BoardReport, error)
}

// Sender delivers the rendered email. *mailer.SendGrid implements it.
type Sender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// Shipper writes the closed-sprint export. *shipper.Shipper implements it.
type Shipper interface {
	Ship(reports []*compute.BoardReport) error
}

// Evaluator runs alert rules over a run's reports. *alerts.Engine implements it.
type Evaluator interface {
	Evaluate(ctx context.Context, reports []*compute.BoardReport) []*alerts.Alert
}

// Publisher announces a finished run to live clients. *ws.Hub implements it.
type Publisher interface {
	Publish(event string)
}

// Options wires a Runner. Builder and Links are required; every other
// collaborator is optional and skipped when nil.
type Options struct {
	Builder Builder
	Links   view.Links

	// Sender is nil for dry runs.
	Sender    Sender
	Shipper   Shipper
	Store     *store.Store
	Alerts    Evaluator
	Publisher Publisher
}

// Result is the outcome of a successful run.
type Result struct {
	RunID   string
	Reports []*compute.BoardReport
	HTML    string
	Alerts  []*alerts.Alert
	Sent    bool
}

// Runner executes the weekly digest: build every board report, render the
// email, send it, then write the export.
type Runner struct {
	opts Options
	now  func() time.Time
}

// New returns a Runner.
func New(opts Options) *Runner {
	return &Runner{opts: opts, now: time.Now}
}

// Run builds the reports for boards and delivers them according to cfg.
// Nothing is sent or written unless every board succeeded. The outcome is
// recorded in the store when one is configured.
func (r *Runner) Run(ctx context.Context, cfg config.DigestConfig, boards []config.Board) (*Result, error) {
	started := r.now()
	res, err := r.run(ctx, cfg, boards)
	if r.opts.Store != nil {
		st := store.RunStatus{StartedAt: started, FinishedAt: r.now(), Boards: len(boards)}
		if res != nil {
			st.RunID = res.RunID
		}
		if err != nil {
			st.Error = err.Error()
		}
		r.opts.Store.RecordRun(st)
	}
	if r.opts.Publisher != nil {
		r.opts.Publisher.Publish("run")
	}
	return res, err
}

func (r *Runner) run(ctx context.Context, cfg config.DigestConfig, boards []config.Board) (*Result, error) {
	reports, err := r.opts.Builder.BuildReports(ctx, boards)
	if err != nil {
		return nil, fmt.Errorf("digest: build reports: %w", err)
	}
	res := &Result{Reports: reports}
	if len(reports) > 0 {
		res.RunID = reports[0].RunID
	}
	log := slog.With("run", res.RunID)

	if r.opts.Store != nil {
		r.opts.Store.PutAll(reports)
	}
	if r.opts.Alerts != nil {
		res.Alerts = r.opts.Alerts.Evaluate(ctx, reports)
		if len(res.Alerts) > 0 {
			log.Info("digest: alert transitions", "count", len(res.Alerts))
		}
	}

	html, err := view.RenderVelocity(cfg.Subject, r.now().In(cfg.Location()), reports, r.opts.Links)
	if err != nil {
		return res, err
	}
	res.HTML = html

	if r.opts.Sender != nil {
		msg := mailer.Message{
			FromEmail: cfg.From.Email,
			FromName:  cfg.From.Name,
			To:        cfg.To,
			Subject:   cfg.Subject,
			HTML:      html,
		}
		if err := r.opts.Sender.Send(ctx, msg); err != nil {
			return res, fmt.Errorf("%w: send email: %w", ErrDelivery, err)
		}
		res.Sent = true
		log.Info("digest: email sent", "recipients", len(cfg.To))
	} else {
		log.Info("digest: dry run, email not sent")
	}

	if r.opts.Shipper != nil {
		if err := r.opts.Shipper.Ship(reports); err != nil {
			return res, fmt.Errorf("%w: export: %w", ErrDelivery, err)
		}
	}
	return res, nil
}
