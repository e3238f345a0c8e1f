package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sprintpulse/sprintpulse/internal/api"
	"github.com/sprintpulse/sprintpulse/internal/auth"
	"github.com/sprintpulse/sprintpulse/internal/clierr"
	"github.com/sprintpulse/sprintpulse/internal/config"
	"github.com/sprintpulse/sprintpulse/internal/connector"
	"github.com/sprintpulse/sprintpulse/internal/digest"
	"github.com/sprintpulse/sprintpulse/internal/schedule"
	"github.com/sprintpulse/sprintpulse/internal/store"
	"github.com/sprintpulse/sprintpulse/internal/ws"
)

const (
	// digestTimeout bounds one scheduled digest run.
	digestTimeout   = 30 * time.Minute
	shutdownTimeout = 10 * time.Second
)

// liveConfig is the config currently in effect; hot reloads swap it.
type liveConfig struct {
	mu  sync.RWMutex
	cfg *config.Config
}

func (l *liveConfig) get() *config.Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

func (l *liveConfig) set(cfg *config.Config) {
	l.mu.Lock()
	l.cfg = cfg
	l.mu.Unlock()
}

func newScheduleCmd(g *globalOptions) *cobra.Command {
	var (
		dryRun bool
		runNow bool
	)
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the digest on its cron schedule and serve the reports API",
		Long: `Runs the velocity digest on digest.schedule and keeps the latest reports in
memory. The reports are served read-only over HTTP on server.http_port:

  GET /api/v1/health, /api/v1/reports, /api/v1/reports/{board},
      /api/v1/alerts, /api/v1/snapshot
  GET /ws/stream (websocket feed)

Edits to the config file are picked up without a restart: boards, digest
settings, schedule and alert rules. Stops on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			jira, err := newJira(cfg)
			if err != nil {
				return err
			}
			var sender digest.Sender
			if !dryRun {
				m, err := newMailer()
				if err != nil {
					return err
				}
				sender = m
			}
			path, err := exportPath(cfg, "")
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, g.configPath, cfg, jira, sender, path, runNow, dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "build and serve reports without sending email or alert webhooks")
	cmd.Flags().BoolVar(&runNow, "run-now", false, "run the digest once at startup")
	return cmd
}

func serve(ctx context.Context, configPath string, cfg *config.Config, jira *connector.Jira, sender digest.Sender, exportTo string, runNow, dryRun bool) error {
	live := &liveConfig{cfg: cfg}

	st := store.New(cfg.Server.ReportTTL)
	eng := newAlerts(cfg, dryRun)
	hub := ws.New(st, cfg.Server.BroadcastInterval)

	job := func(ctx context.Context) error {
		c := live.get()
		opts := digest.Options{
			Builder:   newAssembler(c, jira),
			Links:     jira,
			Sender:    sender,
			Store:     st,
			Alerts:    eng,
			Publisher: hub,
		}
		if exportTo != "" || c.Report.TextfilePath != "" {
			opts.Shipper = exportShipper(c, exportTo)
		}
		_, err := digest.New(opts).Run(ctx, c.Digest, c.Boards)
		return err
	}

	sched, err := schedule.New(cfg.Digest.Schedule, cfg.Digest.Location(), digestTimeout, job)
	if err != nil {
		return clierr.Wrap(clierr.ExitConfig, "digest schedule", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", api.New(st, eng))
	mux.Handle("/ws/stream", hub)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           auth.APIKey(cfg.Server.Auth.Mode, cfg.Server.Auth.EffectiveHeader(), cfg.Server.Auth.Key(), mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("sprintpulse: schedule mode starting",
		"boards", len(cfg.Boards),
		"schedule", cfg.Digest.Schedule,
		"next_run", sched.Next(),
		"http_port", cfg.Server.HTTPPort,
		"dry_run", sender == nil,
		"auth_mode", cfg.Server.Auth.Mode,
	)

	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		st.Run(gctx)
		return nil
	})
	grp.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	grp.Go(func() error {
		sched.Run(gctx)
		return nil
	})
	grp.Go(func() error {
		return config.Watch(gctx, configPath, func(c *config.Config) {
			live.set(c)
			eng.Reconfigure(c.Alerts)
			if err := sched.Reschedule(c.Digest.Schedule, c.Digest.Location()); err != nil {
				slog.Error("sprintpulse: reschedule failed, keeping previous schedule", "err", err)
			}
		})
	})
	grp.Go(func() error {
		slog.Info("sprintpulse: http server listening", "port", cfg.Server.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return clierr.Wrap(1, "http server", err)
		}
		return nil
	})
	grp.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if runNow {
		grp.Go(func() error {
			if err := sched.RunNow(gctx); err != nil {
				slog.Error("sprintpulse: startup run failed", "err", err)
			}
			return nil
		})
	}

	err = grp.Wait()
	slog.Info("sprintpulse: schedule mode stopped")
	return err
}
