package cli

import (
	"fmt"

	"github.com/andy/tally/internal/app"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var appInstance *app.App

var rootCmd = &cobra.Command{
	Use:   "tally",
	Short: "Project billing and budget tracking from the terminal",
	Long: `Tally tracks time against projects, turns it into invoices, records payments,
and shows how each project is doing against its budget.

Running tally without arguments launches the dashboard TUI.
Use subcommands for CLI operations.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("log-level") {
			return nil
		}
		s, _ := cmd.Flags().GetString("log-level")
		level, err := zerolog.ParseLevel(s)
		if err != nil {
			return fmt.Errorf("invalid --log-level %q: %w", s, err)
		}
		zerolog.SetGlobalLevel(level)
		return nil
	},
	RunE: launchTUI,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetApp sets the app instance for commands to use
func SetApp(a *app.App) {
	appInstance = a
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "Override the configured log level (debug, info, warn, error)")

	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(entriesCmd)
	rootCmd.AddCommand(invoicesCmd)
	rootCmd.AddCommand(paymentsCmd)
	rootCmd.AddCommand(budgetCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(tuiCmd)
}
