package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sprintpulse/sprintpulse/internal/config"
	"github.com/sprintpulse/sprintpulse/internal/digest"
	"github.com/sprintpulse/sprintpulse/internal/shipper"
)

type digestFlags struct {
	dryRun   bool
	htmlPath string
	out      string
	boards   []int64
}

func newDigestCmd(g *globalOptions) *cobra.Command {
	f := &digestFlags{}
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Build board reports and email the weekly velocity digest",
		Long: `Builds every board report, renders the HTML velocity digest and sends it
through SendGrid to digest.to. The closed-sprint JSON is written to --out or,
when IS_DOCKER is set, to the xcom path. Alert rules are evaluated against
the reports and notify the configured webhooks.

With --dry-run nothing leaves the process: no email, no webhook calls.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			selected, err := selectBoards(cfg, f.boards)
			if err != nil {
				return err
			}
			path, err := exportPath(cfg, f.out)
			if err != nil {
				return err
			}
			jira, err := newJira(cfg)
			if err != nil {
				return err
			}

			opts := digest.Options{
				Builder: newAssembler(cfg, jira),
				Links:   jira,
				Alerts:  newAlerts(cfg, f.dryRun),
			}
			if !f.dryRun {
				m, err := newMailer()
				if err != nil {
					return err
				}
				opts.Sender = m
			}
			if path != "" || cfg.Report.TextfilePath != "" {
				opts.Shipper = exportShipper(cfg, path)
			}

			res, err := digest.New(opts).Run(cmd.Context(), cfg.Digest, selected)
			if err != nil {
				return classify("digest", err)
			}
			if f.htmlPath != "" {
				if err := shipper.WriteFileAtomic(f.htmlPath, []byte(res.HTML)); err != nil {
					return classify("write html", wrapDelivery(err))
				}
			}
			if f.dryRun && f.htmlPath == "" {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), res.HTML)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "render the digest without sending email or alert webhooks (printed unless --html is set)")
	cmd.Flags().StringVar(&f.htmlPath, "html", "", "also write the rendered HTML to this file")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "write the JSON export to this file")
	cmd.Flags().Int64SliceVar(&f.boards, "board", nil, "restrict the run to these board ids (repeatable)")
	return cmd
}

// exportShipper writes the JSON export to path; an empty path with only a
// textfile configured discards the JSON instead of mixing it into stdout.
func exportShipper(cfg *config.Config, path string) *shipper.Shipper {
	opts := shipper.Options{Path: path, TextfilePath: cfg.Report.TextfilePath}
	if path == "" {
		opts.Out = io.Discard
	}
	return shipper.New(opts)
}

func wrapDelivery(err error) error {
	return fmt.Errorf("%w: %w", digest.ErrDelivery, err)
}
