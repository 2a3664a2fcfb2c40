package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/andy/tally/internal/app"
	"github.com/andy/tally/internal/domain"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type invoiceViewMode int

const (
	invoiceViewList   invoiceViewMode = iota
	invoiceViewDetail                 // Viewing a single invoice
)

// InvoicesModel displays invoices in list and detail views. It never mutates data.
type InvoicesModel struct {
	app      *app.App
	mode     invoiceViewMode
	invoices []*domain.Invoice
	projects map[int64]string
	cursor   int
	selected *domain.Invoice
	loading  bool
	err      error
}

type invoicesDataMsg struct {
	invoices []*domain.Invoice
	projects map[int64]string
	err      error
}

type invoiceDetailMsg struct {
	invoice *domain.Invoice
	err     error
}

// NewInvoicesModel creates a new invoices screen model
func NewInvoicesModel(a *app.App) tea.Model {
	return &InvoicesModel{
		app:     a,
		mode:    invoiceViewList,
		loading: true,
	}
}

func (m *InvoicesModel) Init() tea.Cmd {
	return m.loadInvoices()
}

func (m *InvoicesModel) loadInvoices() tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		invoices, err := m.app.InvoiceService.ListInvoices(ctx, m.app.Caller, nil, nil)
		if err != nil {
			return invoicesDataMsg{err: err}
		}

		projects, err := m.app.ProjectRepo.List(ctx, m.app.Caller.UserID, true)
		if err != nil {
			return invoicesDataMsg{err: err}
		}
		names := make(map[int64]string, len(projects))
		for _, p := range projects {
			names[p.ID] = p.Name
		}

		return invoicesDataMsg{invoices: invoices, projects: names}
	}
}

func (m *InvoicesModel) loadDetail(id int64) tea.Cmd {
	return func() tea.Msg {
		invoice, err := m.app.InvoiceService.GetInvoice(context.Background(), m.app.Caller, id)
		if err != nil {
			return invoiceDetailMsg{err: err}
		}
		return invoiceDetailMsg{invoice: invoice}
	}
}

func (m *InvoicesModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case RefreshDataMsg:
		m.loading = true
		return m, m.loadInvoices()

	case invoicesDataMsg:
		m.loading = false
		m.err = msg.err
		m.invoices = msg.invoices
		m.projects = msg.projects
		if m.cursor >= len(m.invoices) {
			m.cursor = 0
		}
		return m, nil

	case invoiceDetailMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.selected = msg.invoice
		m.mode = invoiceViewDetail
		return m, nil

	case tea.KeyMsg:
		if m.loading {
			return m, nil
		}

		switch m.mode {
		case invoiceViewList:
			return m.updateList(msg)
		case invoiceViewDetail:
			return m.updateDetail(msg)
		}
	}

	return m, nil
}

func (m *InvoicesModel) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.err = nil

	switch {
	case key.Matches(msg, DefaultKeyMap.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, DefaultKeyMap.Down):
		if m.cursor < len(m.invoices)-1 {
			m.cursor++
		}
	case key.Matches(msg, DefaultKeyMap.Select):
		if len(m.invoices) > 0 {
			m.loading = true
			return m, m.loadDetail(m.invoices[m.cursor].ID)
		}
	case key.Matches(msg, DefaultKeyMap.Refresh):
		m.loading = true
		return m, m.loadInvoices()
	}

	return m, nil
}

func (m *InvoicesModel) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, DefaultKeyMap.Back) {
		m.mode = invoiceViewList
		m.selected = nil
	}
	return m, nil
}

func (m *InvoicesModel) View() string {
	if m.loading {
		return "Loading..."
	}

	if m.mode == invoiceViewDetail {
		return m.viewDetail()
	}
	return m.viewList()
}

func (m *InvoicesModel) projectName(id int64) string {
	if name, ok := m.projects[id]; ok {
		return name
	}
	return fmt.Sprintf("#%d", id)
}

func (m *InvoicesModel) viewList() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("Invoices") + "\n\n")

	if m.err != nil {
		s.WriteString(lipgloss.NewStyle().Foreground(errorColor).
			Render(fmt.Sprintf("  Error: %v", m.err)) + "\n\n")
	}

	if len(m.invoices) == 0 && m.err == nil {
		s.WriteString(subtitleStyle.Render("  No invoices yet. Create one with 'tally invoices create'."))
		return s.String()
	}

	today := m.app.Clock.Now()

	s.WriteString(subtitleStyle.Render(fmt.Sprintf(
		"  %-14s  %-18s  %16s  %16s  %-12s  %s",
		"Number", "Project", "Amount", "Due", "Due Date", "Status",
	)) + "\n")

	for i, inv := range m.invoices {
		line := fmt.Sprintf("  %-14s  %-18s  %16s  %16s  %-12s  ",
			truncateStr(inv.InvoiceNumber, 14),
			truncateStr(m.projectName(inv.ProjectID), 18),
			formatMoney(inv.Amount, inv.CurrencyOrDefault()),
			formatMoney(inv.AmountDue, inv.CurrencyOrDefault()),
			formatDate(inv.DueDate),
		)

		if i == m.cursor {
			s.WriteString(selectedStyle.Render(line+string(inv.Status)) + overdueFlag(inv, today) + "\n")
		} else {
			s.WriteString(line + statusBadge(inv.Status) + overdueFlag(inv, today) + "\n")
		}
	}

	s.WriteString("\n" + helpStyle.Render("  j/k: navigate  enter: view detail  r: refresh"))

	return s.String()
}

func (m *InvoicesModel) viewDetail() string {
	inv := m.selected
	if inv == nil {
		return "No invoice selected"
	}
	currency := inv.CurrencyOrDefault()

	var s strings.Builder

	s.WriteString(titleStyle.Render(fmt.Sprintf("Invoice %s", inv.InvoiceNumber)) + "\n\n")
	s.WriteString(fmt.Sprintf("  Project:  %s\n", m.projectName(inv.ProjectID)))
	s.WriteString(fmt.Sprintf("  Issued:   %s\n", inv.IssueDate.Format("Jan 02, 2006")))
	s.WriteString(fmt.Sprintf("  Due:      %s%s\n", formatDate(inv.DueDate), overdueFlag(inv, m.app.Clock.Now())))
	s.WriteString(fmt.Sprintf("  Status:   %s\n", statusBadge(inv.Status)))
	if inv.SentDate != nil {
		s.WriteString(fmt.Sprintf("  Sent:     %s\n", formatDate(inv.SentDate)))
	}
	if inv.PaidDate != nil {
		s.WriteString(fmt.Sprintf("  Paid:     %s\n", formatDate(inv.PaidDate)))
	}
	s.WriteString("\n")

	if len(inv.LineItems) == 0 {
		s.WriteString(subtitleStyle.Render("  No line items") + "\n")
	} else {
		s.WriteString(subtitleStyle.Render(fmt.Sprintf(
			"  %-35s  %8s  %12s  %14s",
			"Description", "Qty", "Unit Price", "Amount",
		)) + "\n")

		for _, item := range inv.LineItems {
			s.WriteString(fmt.Sprintf("  %-35s  %8s  %12s  %14s\n",
				truncateStr(item.Description, 35),
				item.Quantity.StringFixed(2),
				item.UnitPrice.StringFixed(2),
				formatMoney(item.Amount, ""),
			))
		}
	}

	s.WriteString("\n")
	s.WriteString(fmt.Sprintf("  Subtotal:  %16s\n", formatMoney(inv.Subtotal, currency)))
	if inv.TaxRate.Valid {
		s.WriteString(fmt.Sprintf("  Tax:       %16s  (%s)\n", formatMoney(inv.TaxAmount, currency), formatPercent(inv.TaxRate.Decimal)))
	}
	if inv.Discount.IsPositive() {
		s.WriteString(fmt.Sprintf("  Discount:  %16s\n", formatMoney(inv.Discount.Neg(), currency)))
	}
	s.WriteString(lipgloss.NewStyle().Bold(true).Render(
		fmt.Sprintf("  Total:     %16s", formatMoney(inv.Amount, currency)),
	) + "\n")
	s.WriteString(fmt.Sprintf("  Paid:      %16s\n", formatMoney(inv.AmountPaid, currency)))
	s.WriteString(lipgloss.NewStyle().Bold(true).Render(
		fmt.Sprintf("  Due:       %16s", formatMoney(inv.AmountDue, currency)),
	) + "\n")

	if len(inv.Payments) > 0 {
		s.WriteString("\n" + subtitleStyle.Render(fmt.Sprintf(
			"  %-12s  %14s  %-14s  %s",
			"Date", "Amount", "Method", "Status",
		)) + "\n")
		for _, p := range inv.Payments {
			s.WriteString(fmt.Sprintf("  %-12s  %14s  %-14s  %s\n",
				p.Date.Format("Jan 02, 2006"),
				formatMoney(p.Amount, ""),
				string(p.Method),
				paymentBadge(p.Status),
			))
		}
	}

	s.WriteString("\n" + helpStyle.Render("  esc: back to list"))

	return s.String()
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("Jan 02, 2006")
}

// overdueFlag marks invoices past their due date with money outstanding
func overdueFlag(inv *domain.Invoice, today time.Time) string {
	if !inv.IsOverdue(today) {
		return ""
	}
	return lipgloss.NewStyle().Foreground(errorColor).Bold(true).Render(" !")
}

func statusBadge(status domain.InvoiceStatus) string {
	switch status {
	case domain.InvoiceStatusDraft:
		return lipgloss.NewStyle().Foreground(mutedColor).Render("DRAFT")
	case domain.InvoiceStatusSent:
		return lipgloss.NewStyle().Foreground(warningColor).Render("SENT")
	case domain.InvoiceStatusViewed:
		return lipgloss.NewStyle().Foreground(primaryColor).Render("VIEWED")
	case domain.InvoiceStatusPartiallyPaid:
		return lipgloss.NewStyle().Foreground(accentColor).Render("PARTIALLY_PAID")
	case domain.InvoiceStatusPaid:
		return lipgloss.NewStyle().Foreground(successColor).Render("PAID")
	case domain.InvoiceStatusOverdue:
		return lipgloss.NewStyle().Foreground(errorColor).Render("OVERDUE")
	case domain.InvoiceStatusCancelled:
		return lipgloss.NewStyle().Foreground(mutedColor).Strikethrough(true).Render("CANCELLED")
	default:
		return string(status)
	}
}

func paymentBadge(status domain.PaymentStatus) string {
	switch status {
	case domain.PaymentStatusCompleted:
		return lipgloss.NewStyle().Foreground(successColor).Render(string(status))
	case domain.PaymentStatusPending:
		return lipgloss.NewStyle().Foreground(warningColor).Render(string(status))
	case domain.PaymentStatusFailed:
		return lipgloss.NewStyle().Foreground(errorColor).Render(string(status))
	default:
		return lipgloss.NewStyle().Foreground(mutedColor).Render(string(status))
	}
}
