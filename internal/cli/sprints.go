package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/sprintpulse/sprintpulse/internal/clierr"
	"github.com/sprintpulse/sprintpulse/internal/compute"
)

func newSprintsCmd(g *globalOptions) *cobra.Command {
	var (
		board      int64
		active     bool
		lastClosed bool
	)
	cmd := &cobra.Command{
		Use:   "sprints",
		Short: "List a board's sprints",
		Long: `Prints the sprints of --board as JSON. --active keeps only the sprints in
progress; --last-closed prints the closed sprint with the latest end date,
or null when the board has none.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if board <= 0 {
				return clierr.New(clierr.ExitConfig, "--board is required")
			}
			if active && lastClosed {
				return clierr.New(clierr.ExitConfig, "--active and --last-closed are mutually exclusive")
			}
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			jira, err := newJira(cfg)
			if err != nil {
				return err
			}
			res := compute.NewResolver(jira, pageOptions(cfg))

			var v any
			switch {
			case active:
				v, err = res.FindActiveSprints(cmd.Context(), board)
			case lastClosed:
				v, err = res.FindLastClosedSprint(cmd.Context(), board)
			default:
				v, err = res.ListSprints(cmd.Context(), board)
			}
			if err != nil {
				return classify("sprints", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(v)
		},
	}
	cmd.Flags().Int64Var(&board, "board", 0, "board id")
	cmd.Flags().BoolVar(&active, "active", false, "only active sprints")
	cmd.Flags().BoolVar(&lastClosed, "last-closed", false, "only the most recently ended closed sprint")
	return cmd
}
