package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset data in the database",
	Long: `Reset data in the database.

Examples:
  tally reset invoices   # Delete invoices and payments, unbill all time entries
  tally reset entries    # Delete time entries along with invoices and payments
  tally reset all        # Wipe everything including projects`,
}

var resetInvoicesCmd = &cobra.Command{
	Use:   "invoices",
	Short: "Delete all invoices and payments and unbill associated time entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !confirmPrompt("This will delete ALL invoices and payments and unbill all time entries. Continue?") {
			fmt.Println("Cancelled.")
			return nil
		}

		if err := clearTables("payments", "invoice_line_items", "invoices"); err != nil {
			return err
		}

		fmt.Println("All invoices have been deleted and time entries unbilled.")
		return nil
	},
}

var resetEntriesCmd = &cobra.Command{
	Use:   "entries",
	Short: "Delete all time entries, invoices, and payments",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !confirmPrompt("This will delete ALL time entries, invoices, and payments. Continue?") {
			fmt.Println("Cancelled.")
			return nil
		}

		// Order matters due to foreign keys
		if err := clearTables("payments", "invoice_line_items", "invoices", "entry_history", "time_entries"); err != nil {
			return err
		}

		fmt.Println("All time entries, invoices, and payments have been deleted.")
		return nil
	},
}

var resetAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Delete ALL data: projects, entries, invoices, everything",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !confirmPrompt("This will delete ALL data (projects, entries, invoices, payments). Continue?") {
			fmt.Println("Cancelled.")
			return nil
		}

		if err := clearTables("payments", "invoice_line_items", "invoices", "entry_history", "time_entries", "projects"); err != nil {
			return err
		}

		fmt.Println("All data has been deleted.")
		return nil
	},
}

// clearTables unbills every entry and then empties the tables in order, in one transaction
func clearTables(tables ...string) error {
	tx, err := appInstance.DB.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("failed to begin reset: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("UPDATE time_entries SET invoice_id = NULL, is_billed = 0 WHERE is_billed = 1 OR invoice_id IS NOT NULL"); err != nil {
		return fmt.Errorf("failed to unbill entries: %w", err)
	}

	for _, table := range tables {
		if _, err := tx.Exec(fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	return tx.Commit()
}

func confirmPrompt(message string) bool {
	fmt.Printf("%s [y/N] ", message)
	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	input = strings.TrimSpace(strings.ToLower(input))
	return input == "y" || input == "yes"
}

func init() {
	resetCmd.AddCommand(resetInvoicesCmd)
	resetCmd.AddCommand(resetEntriesCmd)
	resetCmd.AddCommand(resetAllCmd)
}
