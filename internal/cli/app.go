package cli

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/sprintpulse/sprintpulse/internal/alerts"
	"github.com/sprintpulse/sprintpulse/internal/clierr"
	"github.com/sprintpulse/sprintpulse/internal/compute"
	"github.com/sprintpulse/sprintpulse/internal/config"
	"github.com/sprintpulse/sprintpulse/internal/connector"
	"github.com/sprintpulse/sprintpulse/internal/digest"
	"github.com/sprintpulse/sprintpulse/internal/mailer"
	"github.com/sprintpulse/sprintpulse/internal/paginate"
)

func loadConfig(g *globalOptions) (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, clierr.Wrap(clierr.ExitConfig, "load config", err)
	}
	return cfg, nil
}

func pageOptions(cfg *config.Config) paginate.Options {
	return paginate.Options{PageSize: cfg.Jira.PageSize, MaxPages: cfg.Jira.MaxPages}
}

// newJira reads the Jira credentials and builds the client.
func newJira(cfg *config.Config) (*connector.Jira, error) {
	creds, err := config.LoadJiraCredentials()
	if err != nil {
		return nil, clierr.Wrap(clierr.ExitConfig, "jira credentials", err)
	}
	base, err := cfg.Jira.ResolveBaseURL(creds)
	if err != nil {
		return nil, clierr.Wrap(clierr.ExitConfig, "jira base url", err)
	}
	j, err := connector.NewJira(connector.JiraOptions{
		BaseURL:  base,
		Username: creds.Username,
		APIKey:   creds.APIKey,
		Timeout:  cfg.Jira.Timeout,
	})
	if err != nil {
		return nil, clierr.Wrap(clierr.ExitConfig, "jira client", err)
	}
	return j, nil
}

func newAssembler(cfg *config.Config, jira *connector.Jira) *compute.Assembler {
	agg := compute.NewAggregator(jira, cfg.Jira.StoryPointsField, pageOptions(cfg))
	return compute.NewAssembler(agg, cfg.Report.Concurrency)
}

func newMailer() (*mailer.SendGrid, error) {
	creds, err := config.LoadSendGridCredentials()
	if err != nil {
		return nil, clierr.Wrap(clierr.ExitConfig, "sendgrid credentials", err)
	}
	return mailer.New(mailer.Options{APIKey: creds.APIKey}), nil
}

// newAlerts builds the alert engine. Dry runs evaluate rules but never
// notify webhooks.
func newAlerts(cfg *config.Config, dryRun bool) *alerts.Engine {
	eng := alerts.New(cfg.Alerts)
	if dryRun {
		eng.Mute()
	}
	return eng
}

// selectBoards returns the configured boards, restricted to ids when given.
func selectBoards(cfg *config.Config, ids []int64) ([]config.Board, error) {
	if len(ids) == 0 {
		if len(cfg.Boards) == 0 {
			return nil, clierr.New(clierr.ExitConfig, "no boards configured")
		}
		return cfg.Boards, nil
	}
	out := make([]config.Board, 0, len(ids))
	for _, id := range ids {
		b, ok := cfg.FindBoard(id)
		if !ok {
			return nil, clierr.New(clierr.ExitConfig, fmt.Sprintf("board %d is not configured", id))
		}
		out = append(out, b)
	}
	return out, nil
}

// exportPath picks the closed-sprint destination: an explicit --out, then
// the xcom path inside the Airflow container, else "" for stdout.
func exportPath(cfg *config.Config, out string) (string, error) {
	if out != "" {
		return out, nil
	}
	rt, err := config.LoadRuntime()
	if err != nil {
		return "", clierr.Wrap(clierr.ExitConfig, "runtime environment", err)
	}
	if rt.IsDocker {
		return cfg.Report.XComPath, nil
	}
	return "", nil
}

// classify attaches an exit code to a run error.
func classify(msg string, err error) error {
	if err == nil {
		return nil
	}
	var ee *clierr.ExitError
	if errors.As(err, &ee) {
		return err
	}
	var ue *url.Error
	var de *mailer.DeliveryError
	switch {
	case errors.Is(err, digest.ErrDelivery), errors.As(err, &de), errors.Is(err, mailer.ErrNoRecipients):
		return clierr.Wrap(clierr.ExitDelivery, msg, err)
	case errors.Is(err, connector.ErrStatus), errors.Is(err, paginate.ErrPageLimit), errors.As(err, &ue):
		return clierr.Wrap(clierr.ExitTransport, msg, err)
	}
	return clierr.Wrap(1, msg, err)
}
