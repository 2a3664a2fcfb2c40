package billing

import (
	"time"

	"github.com/andy/tally/internal/domain"
	"github.com/shopspring/decimal"
)

// BudgetSummary is a point-in-time view of a project's money and schedule.
// It is derived on demand and never persisted.
type BudgetSummary struct {
	ProjectID  int64
	Budget     decimal.NullDecimal
	HourlyRate decimal.NullDecimal

	// InvoicedAmount sums invoice AmountPaid, i.e. realized invoicing.
	InvoicedAmount decimal.Decimal
	// PaidAmount sums every payment on the project's invoices whatever its status.
	PaidAmount     decimal.Decimal
	PendingAmount  decimal.Decimal
	UnbilledHours  decimal.Decimal
	UnbilledAmount decimal.Decimal

	BudgetUtilizationPercentage decimal.Decimal
	RemainingBudget             decimal.Decimal
	IsOverBudget                bool

	TotalDays                 int
	ElapsedDays               int
	TimePercentElapsed        decimal.Decimal
	BudgetDeviationByTimeline decimal.Decimal // positive = spending ahead of schedule

	Monthly []MonthlyBreakdown
}

type MonthlyBreakdown struct {
	Month          time.Time // first day of the month, UTC
	InvoicedAmount decimal.Decimal
	PaidAmount     decimal.Decimal
	Hours          decimal.Decimal
}

// Label returns the month as YYYY-MM
func (m MonthlyBreakdown) Label() string {
	return m.Month.Format("2006-01")
}

// Summarize composes the project's invoices, their payments and its time entries into a
// budget summary. Nothing passed in is modified.
func Summarize(project *domain.Project, invoices []*domain.Invoice, entries []*domain.TimeEntry, today time.Time) BudgetSummary {
	s := BudgetSummary{
		ProjectID:  project.ID,
		Budget:     project.Budget,
		HourlyRate: project.HourlyRate,
	}

	invoices = projectInvoices(project, invoices)
	for _, inv := range invoices {
		s.InvoicedAmount = s.InvoicedAmount.Add(inv.AmountPaid)
		for _, p := range inv.Payments {
			s.PaidAmount = s.PaidAmount.Add(p.Amount)
		}
	}
	s.PendingAmount = s.InvoicedAmount.Sub(s.PaidAmount)
	s.UnbilledHours = UnbilledHours(project, entries)
	s.UnbilledAmount = UnbilledAmount(project, entries)

	consumed := s.InvoicedAmount.Add(s.UnbilledAmount)
	if project.Budget.Valid && !project.Budget.Decimal.IsZero() {
		budget := project.Budget.Decimal
		s.BudgetUtilizationPercentage = consumed.Mul(domain.Hundred).DivRound(budget, 2)
		s.RemainingBudget = domain.NonNegative(budget.Sub(consumed))
		// compared unrounded so a few cents over still counts
		s.IsOverBudget = consumed.GreaterThan(budget)
	}

	if project.StartDate != nil && project.EndDate != nil {
		start, end := *project.StartDate, *project.EndDate
		s.TotalDays = domain.DaysBetween(start, end)
		s.ElapsedDays = domain.DaysBetween(start, clampDay(today, start, end))
		if s.TotalDays > 0 {
			s.TimePercentElapsed = decimal.NewFromInt(int64(s.ElapsedDays)).
				Mul(domain.Hundred).
				DivRound(decimal.NewFromInt(int64(s.TotalDays)), 2)
		}
		s.Monthly = monthlyBreakdown(start, end, project, invoices, entries)
	}
	s.BudgetDeviationByTimeline = s.BudgetUtilizationPercentage.Sub(s.TimePercentElapsed)

	return s
}

func projectInvoices(project *domain.Project, invoices []*domain.Invoice) []*domain.Invoice {
	out := make([]*domain.Invoice, 0, len(invoices))
	for _, inv := range invoices {
		if inv.ProjectID == project.ID {
			out = append(out, inv)
		}
	}
	return out
}

func clampDay(t, start, end time.Time) time.Time {
	if domain.DaysBetween(start, t) < 0 {
		return start
	}
	if domain.DaysBetween(t, end) < 0 {
		return end
	}
	return t
}

func monthOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func monthlyBreakdown(start, end time.Time, project *domain.Project, invoices []*domain.Invoice, entries []*domain.TimeEntry) []MonthlyBreakdown {
	first, last := monthOf(start), monthOf(end)
	if last.Before(first) {
		return nil
	}

	var months []MonthlyBreakdown
	index := make(map[time.Time]int)
	for m := first; !m.After(last); m = m.AddDate(0, 1, 0) {
		index[m] = len(months)
		months = append(months, MonthlyBreakdown{Month: m})
	}

	for _, inv := range invoices {
		if inv.DueDate != nil {
			if i, ok := index[monthOf(*inv.DueDate)]; ok {
				months[i].InvoicedAmount = months[i].InvoicedAmount.Add(inv.Amount)
			}
		}
		for _, p := range inv.Payments {
			if i, ok := index[monthOf(p.Date)]; ok {
				months[i].PaidAmount = months[i].PaidAmount.Add(p.Amount)
			}
		}
	}

	for _, e := range entries {
		if e.ProjectID != project.ID || e.IsDeleted || e.StartTime == nil {
			continue
		}
		if i, ok := index[monthOf(*e.StartTime)]; ok {
			months[i].Hours = months[i].Hours.Add(e.Hours)
		}
	}

	return months
}
