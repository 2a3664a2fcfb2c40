package cli

import (
	"context"
	"fmt"

	"github.com/andy/tally/internal/domain"
	"github.com/spf13/cobra"
)

var budgetCmd = &cobra.Command{
	Use:   "budget [project_id_or_name]",
	Short: "Show a project's budget against invoicing, payments and unbilled time",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		project, err := resolveProject(ctx, args[0])
		if err != nil {
			return err
		}

		s, err := appInstance.BudgetService.Summarize(ctx, appInstance.Caller, project.ID)
		if err != nil {
			return fmt.Errorf("failed to summarize budget: %w", err)
		}

		fmt.Printf("Project: %s\n", project.Name)
		fmt.Printf("Budget: %s  Rate: %s\n\n", optionalMoney(s.Budget), optionalMoney(s.HourlyRate))
		fmt.Printf("Invoiced:  %s\n", projectMoney(s.InvoicedAmount))
		fmt.Printf("Paid:      %s\n", projectMoney(s.PaidAmount))
		fmt.Printf("Pending:   %s\n", projectMoney(s.PendingAmount))
		fmt.Printf("Unbilled:  %s h (%s)\n", s.UnbilledHours.StringFixed(2), projectMoney(s.UnbilledAmount))

		if s.Budget.Valid {
			fmt.Printf("\nUtilization: %s%%  Remaining: %s", s.BudgetUtilizationPercentage.StringFixed(2), projectMoney(s.RemainingBudget))
			if s.IsOverBudget {
				fmt.Print("  OVER BUDGET")
			}
			fmt.Println()
		}
		if s.TotalDays > 0 {
			fmt.Printf("Schedule: day %d of %d (%s%%)  Deviation: %s points\n",
				s.ElapsedDays, s.TotalDays, s.TimePercentElapsed.StringFixed(2), s.BudgetDeviationByTimeline.StringFixed(2))
		}

		if len(s.Monthly) > 0 {
			fmt.Printf("\n%-8s %12s %12s %8s\n", "Month", "Invoiced", "Paid", "Hours")
			fmt.Println("------------------------------------------")
			for _, m := range s.Monthly {
				fmt.Printf("%-8s %12s %12s %8s\n", m.Label(), domain.Money(m.InvoicedAmount), domain.Money(m.PaidAmount), m.Hours.StringFixed(2))
			}
		}
		return nil
	},
}
