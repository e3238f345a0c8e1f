package cli

import (
	"github.com/spf13/cobra"

	"github.com/sprintpulse/sprintpulse/internal/shipper"
)

func newVelocityCmd(g *globalOptions) *cobra.Command {
	var (
		out    string
		boards []int64
	)
	cmd := &cobra.Command{
		Use:   "velocity",
		Short: "Build board reports and export the closed sprints as JSON",
		Long: `Computes the velocity report of every configured board (or the --board
subset) and writes the closed-sprint records keyed by board name. The JSON
goes to --out, to the xcom path when IS_DOCKER is set, or to stdout.
Nothing is written unless every board succeeds.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			selected, err := selectBoards(cfg, boards)
			if err != nil {
				return err
			}
			path, err := exportPath(cfg, out)
			if err != nil {
				return err
			}
			jira, err := newJira(cfg)
			if err != nil {
				return err
			}

			reports, err := newAssembler(cfg, jira).BuildReports(cmd.Context(), selected)
			if err != nil {
				return classify("build reports", err)
			}

			sh := shipper.New(shipper.Options{
				Path:         path,
				Out:          cmd.OutOrStdout(),
				TextfilePath: cfg.Report.TextfilePath,
			})
			if err := sh.Ship(reports); err != nil {
				return classify("export", wrapDelivery(err))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the JSON export to this file")
	cmd.Flags().Int64SliceVar(&boards, "board", nil, "restrict the run to these board ids (repeatable)")
	return cmd
}
