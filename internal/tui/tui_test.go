package tui

import (
	"testing"
	"time"

	"github.com/andy/tally/internal/app"
	"github.com/andy/tally/internal/billing"
	"github.com/andy/tally/internal/domain"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "USD 1,234.50", formatMoney(decimal.RequireFromString("1234.5"), "USD"))
	assert.Equal(t, "0.00", formatMoney(decimal.Zero, ""))
	assert.Equal(t, "EUR -1,000,000.00", formatMoney(decimal.NewFromInt(-1000000), "EUR"))
	assert.Equal(t, "999.99", formatMoney(decimal.RequireFromString("999.994"), ""))
}

func TestFormatHours(t *testing.T) {
	assert.Equal(t, "2h 30m", formatHours(decimal.RequireFromString("2.5")))
	assert.Equal(t, "45m", formatHours(decimal.RequireFromString("0.75")))
	assert.Equal(t, "4h", formatHours(decimal.NewFromInt(4)))
}

func TestBar(t *testing.T) {
	hundred := decimal.NewFromInt(100)
	assert.Equal(t, "", bar(decimal.Zero, hundred))
	assert.Equal(t, "", bar(decimal.NewFromInt(10), decimal.Zero))
	assert.Len(t, []rune(bar(decimal.NewFromInt(50), hundred)), 12)
	assert.Len(t, []rune(bar(decimal.NewFromInt(250), hundred)), budgetBarWidth)
}

func TestModel_SwitchesScreens(t *testing.T) {
	m := New(&app.App{})
	assert.Equal(t, ScreenInvoices, m.currentScreen)

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("b")})
	m = updated.(Model)
	assert.Equal(t, ScreenBudget, m.currentScreen)
	assert.NotNil(t, m.budget)
	assert.NotNil(t, cmd)

	// Revisiting a screen asks it to refresh
	updated, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("i")})
	m = updated.(Model)
	assert.Equal(t, ScreenInvoices, m.currentScreen)
	require.NotNil(t, cmd)
	assert.IsType(t, RefreshDataMsg{}, cmd())
}

func TestInvoicesModel_ShowsOverdueFlag(t *testing.T) {
	now := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	due := now.AddDate(0, 0, -3)
	inv := &domain.Invoice{
		Status:    domain.InvoiceStatusSent,
		DueDate:   &due,
		AmountDue: decimal.NewFromInt(100),
	}

	assert.NotEmpty(t, overdueFlag(inv, now))

	inv.AmountDue = decimal.Zero
	assert.Empty(t, overdueFlag(inv, now))
}

func TestBudgetModel_IgnoresStaleSummary(t *testing.T) {
	m := NewBudgetModel(&app.App{}).(*BudgetModel)
	m.Update(budgetProjectsMsg{projects: []*domain.Project{{ID: 1, Name: "Alpha"}, {ID: 2, Name: "Beta"}}})
	require.True(t, m.loading)

	m.Update(budgetSummaryMsg{projectID: 2, summary: &billing.BudgetSummary{ProjectID: 2}})
	assert.True(t, m.loading)
	assert.Nil(t, m.summary)

	m.Update(budgetSummaryMsg{projectID: 1, summary: &billing.BudgetSummary{ProjectID: 1}})
	assert.False(t, m.loading)
	require.NotNil(t, m.summary)
	assert.Equal(t, int64(1), m.summary.ProjectID)
	assert.Contains(t, m.View(), "Alpha")
}
