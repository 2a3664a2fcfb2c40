package billing

import (
	"testing"
	"time"

	"github.com/andy/tally/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// budgetFixture: Jan 1 to Apr 1 (90 days), budget 1000 at 40/h.
// Invoice 1 is paid in February, invoice 2 has a pending payment in March.
func budgetFixture(t *testing.T) (*domain.Project, []*domain.Invoice, []*domain.TimeEntry) {
	t.Helper()
	project := ratedProject()
	project.Budget = decimal.NewNullDecimal(dec("1000"))
	project.StartDate = day(2026, 1, 1)
	project.EndDate = day(2026, 4, 1)

	ledger := newTestLedger()

	paid := scenarioInvoice(domain.InvoiceStatusSent, day(2026, 2, 15))
	payment := completed(1, "137.50")
	payment.Date = *day(2026, 2, 10)
	require.NoError(t, ledger.AddPayment(paid, payment))

	open := domain.NewInvoice("INV-2026-002", project.ID, *day(2026, 3, 1), day(2026, 3, 31))
	open.ID = 11
	open.Status = domain.InvoiceStatusSent
	open.Subtotal = dec("200")
	pending := completed(2, "50")
	pending.Status = domain.PaymentStatusPending
	pending.Date = *day(2026, 3, 5)
	require.NoError(t, ledger.AddPayment(open, pending))

	unbilled := entry(1, at(10, 0), at(11, 30))
	billed := entry(2, at(9, 0), at(11, 0))
	jan := time.Date(2026, 1, 20, 9, 0, 0, 0, time.UTC)
	janEnd := jan.Add(2 * time.Hour)
	billed.StartTime, billed.EndTime = &jan, &janEnd
	RecordDuration(billed)
	billed.Billed = true

	return project, []*domain.Invoice{paid, open}, []*domain.TimeEntry{unbilled, billed}
}

func TestSummarize(t *testing.T) {
	project, invoices, entries := budgetFixture(t)

	s := Summarize(project, invoices, entries, today)

	assertMoney(t, "137.50", s.InvoicedAmount)
	assertMoney(t, "187.50", s.PaidAmount)
	assertMoney(t, "-50.00", s.PendingAmount)
	assertMoney(t, "1.50", s.UnbilledHours)
	assertMoney(t, "60.00", s.UnbilledAmount)
	assertMoney(t, "19.75", s.BudgetUtilizationPercentage)
	assertMoney(t, "802.50", s.RemainingBudget)
	assert.False(t, s.IsOverBudget)

	assert.Equal(t, 90, s.TotalDays)
	assert.Equal(t, 73, s.ElapsedDays)
	assertMoney(t, "81.11", s.TimePercentElapsed)
	assertMoney(t, "-61.36", s.BudgetDeviationByTimeline)
}

func TestSummarize_MonthlyBreakdown(t *testing.T) {
	project, invoices, entries := budgetFixture(t)

	s := Summarize(project, invoices, entries, today)

	require.Len(t, s.Monthly, 4)
	want := []struct {
		label    string
		invoiced string
		paid     string
		hours    string
	}{
		{"2026-01", "0.00", "0.00", "2.00"},
		{"2026-02", "137.50", "137.50", "0.00"},
		{"2026-03", "200.00", "50.00", "1.50"},
		{"2026-04", "0.00", "0.00", "0.00"},
	}
	for i, w := range want {
		m := s.Monthly[i]
		assert.Equal(t, w.label, m.Label())
		assertMoney(t, w.invoiced, m.InvoicedAmount, w.label)
		assertMoney(t, w.paid, m.PaidAmount, w.label)
		assertMoney(t, w.hours, m.Hours, w.label)
	}
}

func TestSummarize_DoesNotMutateInputs(t *testing.T) {
	project, invoices, entries := budgetFixture(t)
	status := invoices[1].Status
	due := invoices[1].AmountDue

	Summarize(project, invoices, entries, today)

	assert.Equal(t, status, invoices[1].Status)
	assert.True(t, due.Equal(invoices[1].AmountDue))
	assert.False(t, entries[0].Billed)
}

func TestSummarize_OverBudget(t *testing.T) {
	project, invoices, entries := budgetFixture(t)
	project.Budget = decimal.NewNullDecimal(dec("100"))

	s := Summarize(project, invoices, entries, today)

	assertMoney(t, "197.50", s.BudgetUtilizationPercentage)
	assertMoney(t, "0.00", s.RemainingBudget)
	assert.True(t, s.IsOverBudget)
}

func TestSummarize_OverBudgetByCents(t *testing.T) {
	tests := []struct {
		name      string
		invoiced  string
		remaining string
		over      bool
	}{
		{"exactly on budget", "1000000.00", "0.00", false},
		{"four cents over", "1000000.04", "0.00", true},
		{"one cent under", "999999.99", "0.01", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			project := ratedProject()
			project.Budget = decimal.NewNullDecimal(dec("1000000"))
			inv := domain.NewInvoice("INV-2026-009", project.ID, *day(2026, 3, 1), nil)
			inv.AmountPaid = dec(tt.invoiced)

			s := Summarize(project, []*domain.Invoice{inv}, nil, today)

			assertMoney(t, "100.00", s.BudgetUtilizationPercentage)
			assertMoney(t, tt.remaining, s.RemainingBudget)
			assert.Equal(t, tt.over, s.IsOverBudget)
		})
	}
}

func TestSummarize_NoBudgetOrDates(t *testing.T) {
	project, invoices, entries := budgetFixture(t)
	project.Budget = decimal.NullDecimal{}
	project.StartDate = nil

	s := Summarize(project, invoices, entries, today)

	assertMoney(t, "0.00", s.BudgetUtilizationPercentage)
	assertMoney(t, "0.00", s.RemainingBudget)
	assert.False(t, s.IsOverBudget)
	assert.Zero(t, s.TotalDays)
	assertMoney(t, "0.00", s.TimePercentElapsed)
	assert.Empty(t, s.Monthly)
}

func TestSummarize_ZeroBudget(t *testing.T) {
	project, invoices, entries := budgetFixture(t)
	project.Budget = decimal.NewNullDecimal(decimal.Zero)

	s := Summarize(project, invoices, entries, today)

	assertMoney(t, "0.00", s.BudgetUtilizationPercentage)
	assert.False(t, s.IsOverBudget)
}

func TestSummarize_TodayIsClampedToProjectDates(t *testing.T) {
	project, invoices, entries := budgetFixture(t)

	after := Summarize(project, invoices, entries, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 90, after.ElapsedDays)
	assertMoney(t, "100.00", after.TimePercentElapsed)

	before := Summarize(project, invoices, entries, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 0, before.ElapsedDays)
	assertMoney(t, "0.00", before.TimePercentElapsed)
}

func TestSummarize_SameDayProject(t *testing.T) {
	project, invoices, entries := budgetFixture(t)
	project.EndDate = project.StartDate

	s := Summarize(project, invoices, entries, today)

	assert.Zero(t, s.TotalDays)
	assertMoney(t, "0.00", s.TimePercentElapsed)
	require.Len(t, s.Monthly, 1)
}
