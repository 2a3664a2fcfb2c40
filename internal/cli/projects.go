package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/andy/tally/internal/domain"
	"github.com/andy/tally/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Manage projects",
	Long:  `List, add, edit, and archive projects with their budgets and hourly rates.`,
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		includeArchived, _ := cmd.Flags().GetBool("archived")

		projects, err := appInstance.ProjectRepo.List(ctx, appInstance.Caller.UserID, includeArchived)
		if err != nil {
			return fmt.Errorf("failed to list projects: %w", err)
		}

		if len(projects) == 0 {
			fmt.Println("No projects found")
			return nil
		}

		fmt.Printf("%-5s %-30s %-12s %-12s %-23s %-10s\n", "ID", "Name", "Rate", "Budget", "Schedule", "Status")
		fmt.Println("----------------------------------------------------------------------------------------------")

		for _, project := range projects {
			status := "Active"
			if project.IsArchived {
				status = "Archived"
			}
			fmt.Printf("%-5d %-30s %-12s %-12s %-23s %-10s\n",
				project.ID,
				truncate(project.Name, 30),
				optionalMoney(project.HourlyRate),
				optionalMoney(project.Budget),
				schedule(project),
				status,
			)
		}

		fmt.Printf("\nTotal: %d project(s)\n", len(projects))
		return nil
	},
}

var projectsAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Add a new project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		project := domain.NewProject(appInstance.Caller.UserID, args[0])
		if err := applyProjectFlags(cmd, project); err != nil {
			return err
		}

		if err := project.Validate(); err != nil {
			return fmt.Errorf("invalid project: %w", err)
		}

		if err := appInstance.ProjectRepo.Create(ctx, project); err != nil {
			return fmt.Errorf("failed to create project: %w", err)
		}

		fmt.Printf("✓ Project created: %s (ID: %d)\n", project.Name, project.ID)
		fmt.Printf("  Hourly Rate: %s\n", optionalMoney(project.HourlyRate))
		fmt.Printf("  Budget: %s\n", optionalMoney(project.Budget))

		return nil
	},
}

var projectsEditCmd = &cobra.Command{
	Use:   "edit [id_or_name]",
	Short: "Edit an existing project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		project, err := resolveProject(ctx, args[0])
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("name") {
			name, _ := cmd.Flags().GetString("name")
			project.Name = name
		}
		if err := applyProjectFlags(cmd, project); err != nil {
			return err
		}

		if err := project.Validate(); err != nil {
			return fmt.Errorf("invalid project: %w", err)
		}

		if err := appInstance.ProjectRepo.Update(ctx, project); err != nil {
			return fmt.Errorf("failed to update project: %w", err)
		}

		fmt.Printf("✓ Project updated: %s\n", project.Name)
		return nil
	},
}

var projectsArchiveCmd = &cobra.Command{
	Use:   "archive [id_or_name]",
	Short: "Archive a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		project, err := resolveProject(ctx, args[0])
		if err != nil {
			return err
		}

		if err := appInstance.ProjectRepo.Archive(ctx, project.ID); err != nil {
			return fmt.Errorf("failed to archive project: %w", err)
		}

		fmt.Printf("✓ Project archived: %s\n", project.Name)
		return nil
	},
}

var projectsUnarchiveCmd = &cobra.Command{
	Use:   "unarchive [id_or_name]",
	Short: "Unarchive a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		project, err := resolveProject(ctx, args[0])
		if err != nil {
			return err
		}

		if err := appInstance.ProjectRepo.Unarchive(ctx, project.ID); err != nil {
			return fmt.Errorf("failed to unarchive project: %w", err)
		}

		fmt.Printf("✓ Project unarchived: %s\n", project.Name)
		return nil
	},
}

func init() {
	projectsCmd.AddCommand(projectsListCmd)
	projectsCmd.AddCommand(projectsAddCmd)
	projectsCmd.AddCommand(projectsEditCmd)
	projectsCmd.AddCommand(projectsArchiveCmd)
	projectsCmd.AddCommand(projectsUnarchiveCmd)

	projectsListCmd.Flags().Bool("archived", false, "Include archived projects")

	for _, c := range []*cobra.Command{projectsAddCmd, projectsEditCmd} {
		c.Flags().String("rate", "", "Hourly rate")
		c.Flags().String("budget", "", "Total budget")
		c.Flags().String("start", "", "Project start date (YYYY-MM-DD)")
		c.Flags().String("end", "", "Project end date (YYYY-MM-DD)")
		c.Flags().String("notes", "", "Notes about the project")
	}
	projectsEditCmd.Flags().String("name", "", "New name")
}

// applyProjectFlags copies the rate, budget, schedule and notes flags that were set.
// An empty rate or budget clears it.
func applyProjectFlags(cmd *cobra.Command, project *domain.Project) error {
	if cmd.Flags().Changed("rate") {
		rate, err := nullDecimalFlag(cmd, "rate")
		if err != nil {
			return err
		}
		project.HourlyRate = rate
	}
	if cmd.Flags().Changed("budget") {
		budget, err := nullDecimalFlag(cmd, "budget")
		if err != nil {
			return err
		}
		project.Budget = budget
	}
	if cmd.Flags().Changed("start") {
		s, _ := cmd.Flags().GetString("start")
		start, err := parseDate(s)
		if err != nil {
			return fmt.Errorf("invalid start date: %w", err)
		}
		project.StartDate = &start
	}
	if cmd.Flags().Changed("end") {
		s, _ := cmd.Flags().GetString("end")
		end, err := parseDate(s)
		if err != nil {
			return fmt.Errorf("invalid end date: %w", err)
		}
		project.EndDate = &end
	}
	if cmd.Flags().Changed("notes") {
		project.Notes, _ = cmd.Flags().GetString("notes")
	}
	return nil
}

// resolveProject finds one of the caller's projects by ID or name
func resolveProject(ctx context.Context, idOrName string) (*domain.Project, error) {
	if id, err := strconv.ParseInt(idOrName, 10, 64); err == nil {
		project, err := appInstance.ProjectRepo.GetByID(ctx, id)
		if err != nil || !project.OwnedBy(appInstance.Caller) {
			return nil, fmt.Errorf("project with ID %d not found", id)
		}
		return project, nil
	}

	project, err := appInstance.ProjectRepo.GetByName(ctx, appInstance.Caller.UserID, idOrName)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("project named '%s' not found", idOrName)
	}
	if err != nil {
		return nil, err
	}
	return project, nil
}

func nullDecimalFlag(cmd *cobra.Command, name string) (decimal.NullDecimal, error) {
	s, _ := cmd.Flags().GetString(name)
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("invalid --%s %q: %w", name, s, err)
	}
	return decimal.NewNullDecimal(d), nil
}

func decimalFlag(cmd *cobra.Command, name string) (decimal.Decimal, error) {
	s, _ := cmd.Flags().GetString(name)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid --%s %q: %w", name, s, err)
	}
	return d, nil
}

func optionalMoney(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return projectMoney(d.Decimal)
}

// projectMoney formats project-level amounts in the configured invoice currency
func projectMoney(d decimal.Decimal) string {
	return domain.FormatAmount(d, appInstance.Config.Invoice.Currency)
}

func schedule(project *domain.Project) string {
	if project.StartDate == nil || project.EndDate == nil {
		return "-"
	}
	return project.StartDate.Format("2006-01-02") + ".." + project.EndDate.Format("2006-01-02")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
