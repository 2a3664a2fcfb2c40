package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/andy/tally/internal/domain"
	"github.com/andy/tally/internal/service"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var entriesCmd = &cobra.Command{
	Use:   "entries",
	Short: "Manage time entries",
	Long:  `List, add, edit, and delete time entries, and see what is not billed yet.`,
}

var entriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List time entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		var projectID *int64
		if cmd.Flags().Changed("project") {
			s, _ := cmd.Flags().GetString("project")
			project, err := resolveProject(ctx, s)
			if err != nil {
				return err
			}
			projectID = &project.ID
		}

		var start, end *time.Time
		if cmd.Flags().Changed("start") {
			startStr, _ := cmd.Flags().GetString("start")
			t, err := parseDate(startStr)
			if err != nil {
				return fmt.Errorf("invalid start date: %w", err)
			}
			start = &t
		}
		if cmd.Flags().Changed("end") {
			endStr, _ := cmd.Flags().GetString("end")
			t, err := parseDate(endStr)
			if err != nil {
				return fmt.Errorf("invalid end date: %w", err)
			}
			end = &t
		}

		includeBilled, _ := cmd.Flags().GetBool("include-billed")

		entries, err := appInstance.EntryService.List(ctx, appInstance.Caller, projectID, start, end, includeBilled)
		if err != nil {
			return fmt.Errorf("failed to list entries: %w", err)
		}

		if len(entries) == 0 {
			fmt.Println("No entries found")
			return nil
		}

		fmt.Printf("%-5s %-20s %-17s %-8s %-30s %-10s\n", "ID", "Project", "Start", "Hours", "Description", "Status")
		fmt.Println("---------------------------------------------------------------------------------------------")

		names := make(map[int64]string)
		totalHours := decimal.Zero
		for _, entry := range entries {
			name, ok := names[entry.ProjectID]
			if !ok {
				name = fmt.Sprintf("Project #%d", entry.ProjectID)
				if project, err := appInstance.ProjectRepo.GetByID(ctx, entry.ProjectID); err == nil {
					name = project.Name
				}
				names[entry.ProjectID] = name
			}

			fmt.Printf("%-5d %-20s %-17s %8s %-30s %-10s\n",
				entry.ID,
				truncate(name, 20),
				formatOptionalTime(entry.StartTime),
				entry.Hours.StringFixed(2),
				truncate(entry.Description, 30),
				entryStatus(entry),
			)
			totalHours = totalHours.Add(entry.Hours)
		}

		fmt.Println("---------------------------------------------------------------------------------------------")
		fmt.Printf("Total: %d entries, %s hours\n", len(entries), totalHours.StringFixed(2))
		return nil
	},
}

var entriesAddCmd = &cobra.Command{
	Use:   "add [project_id_or_name] [start_time] [end_time] [description]",
	Short: "Add a time entry",
	Args:  cobra.RangeArgs(3, 4),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		project, err := resolveProject(ctx, args[0])
		if err != nil {
			return err
		}

		startTime, err := parseDateTime(args[1])
		if err != nil {
			return fmt.Errorf("invalid start time: %w", err)
		}

		endTime, err := parseDateTime(args[2])
		if err != nil {
			return fmt.Errorf("invalid end time: %w", err)
		}

		description := ""
		if len(args) > 3 {
			description = args[3]
		}
		nonBillable, _ := cmd.Flags().GetBool("non-billable")

		entry, err := appInstance.EntryService.Record(ctx, appInstance.Caller, service.EntryInput{
			ProjectID:   project.ID,
			Description: description,
			Start:       &startTime,
			End:         &endTime,
			NonBillable: nonBillable,
		})
		if err != nil {
			return fmt.Errorf("failed to create entry: %w", err)
		}

		fmt.Printf("✓ Time entry created (ID: %d)\n", entry.ID)
		fmt.Printf("  Project: %s\n", project.Name)
		fmt.Printf("  Hours: %s\n", entry.Hours.StringFixed(2))
		if entry.Billable && project.HasHourlyRate() {
			fmt.Printf("  Amount: %s\n", projectMoney(entry.Hours.Mul(project.HourlyRate.Decimal)))
		}

		return nil
	},
}

var entriesEditCmd = &cobra.Command{
	Use:   "edit [id]",
	Short: "Edit an unbilled time entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid entry ID: %w", err)
		}

		reason, _ := cmd.Flags().GetString("reason")
		if reason == "" {
			return fmt.Errorf("--reason flag is required for editing entries")
		}

		var changes service.EntryUpdate
		if cmd.Flags().Changed("description") {
			description, _ := cmd.Flags().GetString("description")
			changes.Description = &description
		}
		if cmd.Flags().Changed("project") {
			s, _ := cmd.Flags().GetString("project")
			project, err := resolveProject(ctx, s)
			if err != nil {
				return err
			}
			changes.ProjectID = &project.ID
		}
		if cmd.Flags().Changed("start") {
			s, _ := cmd.Flags().GetString("start")
			t, err := parseDateTime(s)
			if err != nil {
				return fmt.Errorf("invalid start time: %w", err)
			}
			changes.Start = &t
		}
		if cmd.Flags().Changed("end") {
			s, _ := cmd.Flags().GetString("end")
			t, err := parseDateTime(s)
			if err != nil {
				return fmt.Errorf("invalid end time: %w", err)
			}
			changes.End = &t
		}
		if cmd.Flags().Changed("billable") {
			billable, _ := cmd.Flags().GetBool("billable")
			changes.Billable = &billable
		}

		entry, err := appInstance.EntryService.Edit(ctx, appInstance.Caller, id, changes, reason)
		if err != nil {
			return fmt.Errorf("failed to update entry: %w", err)
		}

		fmt.Printf("✓ Entry updated (ID: %d, %s hours)\n", entry.ID, entry.Hours.StringFixed(2))
		return nil
	},
}

var entriesDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a time entry (soft delete)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid entry ID: %w", err)
		}

		reason, _ := cmd.Flags().GetString("reason")
		if reason == "" {
			return fmt.Errorf("--reason flag is required for deleting entries")
		}

		if err := appInstance.EntryService.Delete(ctx, appInstance.Caller, id, reason); err != nil {
			return fmt.Errorf("failed to delete entry: %w", err)
		}

		fmt.Printf("✓ Entry deleted (ID: %d)\n", id)
		return nil
	},
}

var entriesHistoryCmd = &cobra.Command{
	Use:   "history [id]",
	Short: "Show edit history for an entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid entry ID: %w", err)
		}

		history, err := appInstance.EntryService.History(ctx, appInstance.Caller, id)
		if err != nil {
			return fmt.Errorf("failed to get history: %w", err)
		}

		if len(history) == 0 {
			fmt.Println("No edit history for this entry")
			return nil
		}

		fmt.Printf("Edit History for Entry #%d:\n\n", id)
		for _, h := range history {
			fmt.Printf("%s - %s: %q -> %q\n", h.ChangedAt.Format("2006-01-02 15:04:05"), h.FieldName, h.OldValue, h.NewValue)
			if h.ChangeReason != "" {
				fmt.Printf("  Reason: %s\n", h.ChangeReason)
			}
			fmt.Println()
		}

		return nil
	},
}

var entriesUnbilledCmd = &cobra.Command{
	Use:   "unbilled [project_id_or_name]",
	Short: "Show billable time not yet on an invoice",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		project, err := resolveProject(ctx, args[0])
		if err != nil {
			return err
		}

		report, err := appInstance.EntryService.Unbilled(ctx, appInstance.Caller, project.ID)
		if err != nil {
			return fmt.Errorf("failed to get unbilled time: %w", err)
		}

		for _, entry := range report.Entries {
			fmt.Printf("%-5d %-17s %8s  %s\n",
				entry.ID,
				formatOptionalTime(entry.StartTime),
				entry.Hours.StringFixed(2),
				truncate(entry.Description, 40),
			)
		}
		fmt.Printf("\n%s: %s unbilled hours", report.Project.Name, report.Hours.StringFixed(2))
		if report.Project.HasHourlyRate() {
			fmt.Printf(" (%s)", projectMoney(report.Amount))
		}
		fmt.Println()
		return nil
	},
}

func init() {
	entriesCmd.AddCommand(entriesListCmd)
	entriesCmd.AddCommand(entriesAddCmd)
	entriesCmd.AddCommand(entriesEditCmd)
	entriesCmd.AddCommand(entriesDeleteCmd)
	entriesCmd.AddCommand(entriesHistoryCmd)
	entriesCmd.AddCommand(entriesUnbilledCmd)

	// List flags
	entriesListCmd.Flags().String("project", "", "Filter by project ID or name")
	entriesListCmd.Flags().String("start", "", "Filter by start date (YYYY-MM-DD or 'today')")
	entriesListCmd.Flags().String("end", "", "Filter by end date (YYYY-MM-DD or 'today')")
	entriesListCmd.Flags().Bool("include-billed", false, "Include invoiced entries")

	// Add flags
	entriesAddCmd.Flags().Bool("non-billable", false, "Record time that is not billed")

	// Edit flags
	entriesEditCmd.Flags().String("description", "", "New description")
	entriesEditCmd.Flags().String("project", "", "Move to another project")
	entriesEditCmd.Flags().String("start", "", "New start time")
	entriesEditCmd.Flags().String("end", "", "New end time")
	entriesEditCmd.Flags().Bool("billable", true, "Whether the entry is billable")
	entriesEditCmd.Flags().String("reason", "", "Reason for edit (required)")

	// Delete flags
	entriesDeleteCmd.Flags().String("reason", "", "Reason for deletion (required)")
}

func entryStatus(entry *domain.TimeEntry) string {
	switch {
	case entry.Billed:
		return "Invoiced"
	case !entry.Billable:
		return "Internal"
	default:
		return "Unbilled"
	}
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}

// parseDate parses a date string in various formats
func parseDate(s string) (time.Time, error) {
	today := domain.StartOfDay(appInstance.Clock.Now())
	switch s {
	case "today":
		return today, nil
	case "yesterday":
		return today.AddDate(0, 0, -1), nil
	default:
		t, err := time.ParseInLocation("2006-01-02", s, time.Local)
		if err != nil {
			return time.Time{}, fmt.Errorf("expected format: YYYY-MM-DD, 'today', or 'yesterday'")
		}
		return t, nil
	}
}

// parseDateTime parses a datetime string in various formats
func parseDateTime(s string) (time.Time, error) {
	for _, layout := range []string{
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
	} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("expected format: YYYY-MM-DD or YYYY-MM-DD HH:MM:SS")
}
