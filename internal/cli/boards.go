package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newBoardsCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "boards",
		Short: "List the boards visible to the Jira credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			jira, err := newJira(cfg)
			if err != nil {
				return err
			}
			boards, err := jira.ListBoards(cmd.Context(), pageOptions(cfg))
			if err != nil {
				return classify("boards", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tTYPE")
			for _, b := range boards {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", b.ID, b.Name, b.Type)
			}
			return tw.Flush()
		},
	}
}
