package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sprintpulse/sprintpulse/internal/clierr"
	"github.com/sprintpulse/sprintpulse/internal/config"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	envFile    string
	logLevel   string
	logFormat  string
}

// NewRootCmd constructs the sprintpulse root command.
func NewRootCmd(version string) *cobra.Command {
	g := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "sprintpulse",
		Short: "Sprint velocity reports for agile boards",
		Long: `sprintpulse computes per-board sprint velocity from Jira, renders the weekly
velocity digest email and exports closed-sprint records for downstream jobs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), g.logLevel, g.logFormat)
			if err != nil {
				return clierr.Wrap(clierr.ExitConfig, "invalid logging flags", err)
			}
			slog.SetDefault(logger)

			var files []string
			if g.envFile != "" {
				files = append(files, g.envFile)
			}
			if err := config.LoadDotEnv(files...); err != nil {
				return clierr.Wrap(clierr.ExitConfig, "load env file", err)
			}
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "pulse.yaml", "path to the YAML config file")
	pf.StringVar(&g.envFile, "env-file", "", "dotenv file with credentials (default .env when present)")
	pf.StringVar(&g.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pf.StringVar(&g.logFormat, "log-format", "json", "log format: json or text")

	cmd.AddCommand(
		newVelocityCmd(g),
		newDigestCmd(g),
		newCoverageCmd(g),
		newSprintsCmd(g),
		newBoardsCmd(g),
		newScheduleCmd(g),
		newVersionCmd(version),
	)
	return cmd
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the sprintpulse version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "sprintpulse version %s\n", version)
		},
	}
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return lvl, nil
}
