package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/andy/tally/internal/app"
	"github.com/andy/tally/internal/billing"
	"github.com/andy/tally/internal/domain"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

const budgetBarWidth = 25

// BudgetModel shows the budget summary of one project at a time
type BudgetModel struct {
	app      *app.App
	projects []*domain.Project
	cursor   int
	summary  *billing.BudgetSummary
	loading  bool
	err      error
}

type budgetProjectsMsg struct {
	projects []*domain.Project
	err      error
}

type budgetSummaryMsg struct {
	projectID int64
	summary   *billing.BudgetSummary
	err       error
}

// NewBudgetModel creates a new budget screen model
func NewBudgetModel(a *app.App) tea.Model {
	return &BudgetModel{
		app:     a,
		loading: true,
	}
}

func (m *BudgetModel) Init() tea.Cmd {
	return m.loadProjects()
}

func (m *BudgetModel) loadProjects() tea.Cmd {
	return func() tea.Msg {
		projects, err := m.app.ProjectRepo.List(context.Background(), m.app.Caller.UserID, false)
		return budgetProjectsMsg{projects: projects, err: err}
	}
}

func (m *BudgetModel) loadSummary() tea.Cmd {
	if len(m.projects) == 0 {
		return nil
	}
	projectID := m.projects[m.cursor].ID
	return func() tea.Msg {
		summary, err := m.app.BudgetService.Summarize(context.Background(), m.app.Caller, projectID)
		return budgetSummaryMsg{projectID: projectID, summary: summary, err: err}
	}
}

func (m *BudgetModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case RefreshDataMsg:
		m.loading = true
		return m, m.loadProjects()

	case budgetProjectsMsg:
		if msg.err != nil {
			m.loading = false
			m.err = msg.err
			return m, nil
		}
		m.projects = msg.projects
		if m.cursor >= len(m.projects) {
			m.cursor = 0
		}
		if len(m.projects) == 0 {
			m.loading = false
			m.summary = nil
			return m, nil
		}
		return m, m.loadSummary()

	case budgetSummaryMsg:
		// Ignore summaries for a project that is no longer selected
		if len(m.projects) == 0 || m.projects[m.cursor].ID != msg.projectID {
			return m, nil
		}
		m.loading = false
		m.err = msg.err
		m.summary = msg.summary
		return m, nil

	case tea.KeyMsg:
		if m.loading {
			return m, nil
		}
		switch {
		case key.Matches(msg, DefaultKeyMap.Left), key.Matches(msg, DefaultKeyMap.Up):
			if m.cursor > 0 {
				m.cursor--
				m.loading = true
				return m, m.loadSummary()
			}
		case key.Matches(msg, DefaultKeyMap.Right), key.Matches(msg, DefaultKeyMap.Down):
			if m.cursor < len(m.projects)-1 {
				m.cursor++
				m.loading = true
				return m, m.loadSummary()
			}
		case key.Matches(msg, DefaultKeyMap.Refresh):
			m.loading = true
			return m, m.loadProjects()
		}
	}
	return m, nil
}

func (m *BudgetModel) View() string {
	if m.loading {
		return "Loading..."
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("Project Budget") + "\n\n")

	if m.err != nil {
		s.WriteString(lipgloss.NewStyle().Foreground(errorColor).
			Render(fmt.Sprintf("  Error: %v", m.err)) + "\n\n")
	}

	if len(m.projects) == 0 {
		s.WriteString(subtitleStyle.Render("  No active projects. Add one with 'tally projects add'."))
		return s.String()
	}

	project := m.projects[m.cursor]
	s.WriteString(fmt.Sprintf("  %s  %s\n\n",
		lipgloss.NewStyle().Bold(true).Render(project.Name),
		subtitleStyle.Render(fmt.Sprintf("(%d of %d)", m.cursor+1, len(m.projects))),
	))

	if m.summary != nil {
		s.WriteString(renderBudgetSummary(m.summary))
		s.WriteString("\n")
		s.WriteString(renderMonthlyBreakdown(m.summary.Monthly))
	}

	s.WriteString("\n" + helpStyle.Render("  h/l: previous/next project  r: refresh"))
	return s.String()
}

func renderBudgetSummary(b *billing.BudgetSummary) string {
	var s strings.Builder
	money := func(d decimal.Decimal) string { return formatMoney(d, "") }

	if b.Budget.Valid {
		s.WriteString(fmt.Sprintf("  %-18s %14s\n", "Budget", money(b.Budget.Decimal)))
	} else {
		s.WriteString(fmt.Sprintf("  %-18s %14s\n", "Budget", "-"))
	}
	if b.HourlyRate.Valid {
		s.WriteString(fmt.Sprintf("  %-18s %14s\n", "Hourly rate", money(b.HourlyRate.Decimal)))
	}
	s.WriteString(fmt.Sprintf("  %-18s %14s\n", "Invoiced", money(b.InvoicedAmount)))
	s.WriteString(fmt.Sprintf("  %-18s %14s\n", "Paid", money(b.PaidAmount)))
	s.WriteString(fmt.Sprintf("  %-18s %14s\n", "Pending", money(b.PendingAmount)))
	s.WriteString(fmt.Sprintf("  %-18s %14s  (%s)\n", "Unbilled", money(b.UnbilledAmount), formatHours(b.UnbilledHours)))

	if b.Budget.Valid {
		usedStyle := lipgloss.NewStyle().Foreground(successColor)
		if b.IsOverBudget {
			usedStyle = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
		} else if b.BudgetDeviationByTimeline.IsPositive() {
			usedStyle = lipgloss.NewStyle().Foreground(warningColor)
		}
		s.WriteString("\n")
		s.WriteString(fmt.Sprintf("  %-18s %s %s\n", "Budget used",
			usedStyle.Render(bar(b.BudgetUtilizationPercentage, domain.Hundred)),
			formatPercent(b.BudgetUtilizationPercentage)))
		s.WriteString(fmt.Sprintf("  %-18s %14s\n", "Remaining", money(b.RemainingBudget)))
		if b.IsOverBudget {
			s.WriteString(lipgloss.NewStyle().Foreground(errorColor).Bold(true).Render("  Over budget") + "\n")
		}
	}

	if b.TotalDays > 0 {
		s.WriteString(fmt.Sprintf("  %-18s %s %s\n", "Time elapsed",
			lipgloss.NewStyle().Foreground(primaryColor).Render(bar(b.TimePercentElapsed, domain.Hundred)),
			fmt.Sprintf("%s (%d/%d days)", formatPercent(b.TimePercentElapsed), b.ElapsedDays, b.TotalDays)))
		s.WriteString(fmt.Sprintf("  %-18s %14s\n", "Deviation", formatPercent(b.BudgetDeviationByTimeline)))
	}

	return s.String()
}

func renderMonthlyBreakdown(months []billing.MonthlyBreakdown) string {
	s := lipgloss.NewStyle().Bold(true).Render("  By Month") + "\n"
	if len(months) == 0 {
		return s + subtitleStyle.Render("    No schedule set") + "\n"
	}

	maxInvoiced := decimal.Zero
	for _, mb := range months {
		if mb.InvoicedAmount.GreaterThan(maxInvoiced) {
			maxInvoiced = mb.InvoicedAmount
		}
	}

	s += subtitleStyle.Render(fmt.Sprintf("    %-8s %-25s %14s %14s %8s",
		"Month", "", "Invoiced", "Paid", "Hours")) + "\n"
	barStyle := lipgloss.NewStyle().Foreground(primaryColor)
	for _, mb := range months {
		s += fmt.Sprintf("    %-8s %s %14s %14s %8s\n",
			mb.Label(),
			barStyle.Render(fmt.Sprintf("%-25s", bar(mb.InvoicedAmount, maxInvoiced))),
			formatMoney(mb.InvoicedAmount, ""),
			formatMoney(mb.PaidAmount, ""),
			mb.Hours.StringFixed(2),
		)
	}
	return s
}

// bar renders value/limit as a block bar capped at budgetBarWidth
func bar(value, limit decimal.Decimal) string {
	if !limit.IsPositive() || !value.IsPositive() {
		return ""
	}
	n := int(value.Mul(decimal.NewFromInt(budgetBarWidth)).Div(limit).IntPart())
	if n > budgetBarWidth {
		n = budgetBarWidth
	}
	return strings.Repeat("█", n)
}
