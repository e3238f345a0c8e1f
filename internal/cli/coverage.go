package cli

import (
	"github.com/spf13/cobra"

	"github.com/sprintpulse/sprintpulse/internal/clierr"
	"github.com/sprintpulse/sprintpulse/internal/config"
	"github.com/sprintpulse/sprintpulse/internal/connector"
	"github.com/sprintpulse/sprintpulse/internal/shipper"
)

func newCoverageCmd(g *globalOptions) *cobra.Command {
	var repo, branch, out string
	cmd := &cobra.Command{
		Use:   "coverage",
		Short: "Fetch branch test coverage from Codecov",
		Long: `Prints the head-commit coverage of --repo/--branch, or of every
codecov.targets entry when no flags are given, as JSON. When
report.textfile_path is set the percentages are also written as gauges.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}

			targets := cfg.Codecov.Targets
			switch {
			case repo != "" && branch != "":
				targets = []config.CoverageTarget{{Repo: repo, Branch: branch}}
			case repo != "" || branch != "":
				return clierr.New(clierr.ExitConfig, "--repo and --branch must be given together")
			case len(targets) == 0:
				return clierr.New(clierr.ExitConfig, "no coverage targets: pass --repo and --branch or set codecov.targets")
			}

			creds, err := config.LoadCodecovCredentials()
			if err != nil {
				return clierr.Wrap(clierr.ExitConfig, "codecov credentials", err)
			}
			cc, err := connector.NewCodecov(connector.CodecovOptions{
				BaseURL: cfg.Codecov.BaseURL,
				Owner:   creds.Owner,
				Token:   creds.Token,
				Timeout: cfg.Codecov.Timeout,
			})
			if err != nil {
				return clierr.Wrap(clierr.ExitConfig, "codecov client", err)
			}

			results := make([]*connector.Coverage, 0, len(targets))
			for _, t := range targets {
				c, err := cc.BranchCoverage(cmd.Context(), t.Repo, t.Branch)
				if err != nil {
					return classify("coverage", err)
				}
				results = append(results, c)
			}

			sh := shipper.New(shipper.Options{
				Path:         out,
				Out:          cmd.OutOrStdout(),
				TextfilePath: cfg.Report.TextfilePath,
			})
			if err := sh.ShipCoverage(results); err != nil {
				return classify("export", wrapDelivery(err))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&repo, "repo", "", "repository name under CODECOV_OWNER")
	cmd.Flags().StringVar(&branch, "branch", "", "branch name")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the JSON to this file")
	return cmd
}
