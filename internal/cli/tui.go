package cli

import (
	"context"

	"github.com/andy/tally/internal/tui"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the dashboard",
	Long:  `Launch the read-only dashboard showing invoices and project budgets.`,
	RunE:  launchTUI,
}

func launchTUI(cmd *cobra.Command, args []string) error {
	if err := appInstance.SweepOverdue(context.Background()); err != nil {
		log.Warn().Err(err).Msg("Overdue sweep failed")
	}
	return tui.Run(appInstance)
}
