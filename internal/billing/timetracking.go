package billing

import (
	"github.com/andy/tally/internal/domain"
	"github.com/shopspring/decimal"
)

var secondsPerHour = decimal.NewFromInt(3600)

// RecordDuration derives DurationSeconds and Hours from the entry's timestamps.
// A missing timestamp zeroes both; end before start floors at zero.
func RecordDuration(entry *domain.TimeEntry) {
	if entry.StartTime == nil || entry.EndTime == nil {
		entry.DurationSeconds = 0
		entry.Hours = decimal.Zero
		return
	}

	seconds := int64(entry.EndTime.Sub(*entry.StartTime).Seconds())
	if seconds < 0 {
		seconds = 0
	}
	entry.DurationSeconds = seconds
	entry.Hours = domain.Round2(decimal.NewFromInt(seconds).Div(secondsPerHour))
}

// MarkBilled links the entries to the invoice. Either every entry passes the checks and
// all are marked, or none are.
func MarkBilled(caller domain.Principal, entries []*domain.TimeEntry, inv *domain.Invoice) error {
	seen := make(map[int64]bool, len(entries))
	for _, e := range entries {
		if seen[e.ID] {
			return reject("MarkBilled", ErrEntryRepeated, "entry %d", e.ID)
		}
		seen[e.ID] = true

		switch {
		case e.UserID != caller.UserID:
			return reject("MarkBilled", ErrEntryNotOwned, "entry %d", e.ID)
		case e.ProjectID != inv.ProjectID:
			return reject("MarkBilled", ErrEntryWrongProject, "entry %d is on project %d, invoice on %d", e.ID, e.ProjectID, inv.ProjectID)
		case e.IsDeleted:
			return reject("MarkBilled", ErrEntryDeleted, "entry %d", e.ID)
		case e.Billed:
			return reject("MarkBilled", ErrEntryAlreadyBilled, "entry %d", e.ID)
		}
	}

	for _, e := range entries {
		invoiceID := inv.ID
		e.Billed = true
		e.InvoiceID = &invoiceID
	}
	return nil
}

// UnbilledHours sums hours of the project's billable entries not yet on an invoice.
func UnbilledHours(project *domain.Project, entries []*domain.TimeEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		if e.ProjectID == project.ID && e.IsUnbilled() {
			total = total.Add(e.Hours)
		}
	}
	return total
}

// UnbilledAmount prices UnbilledHours at the project's hourly rate, zero without a rate.
func UnbilledAmount(project *domain.Project, entries []*domain.TimeEntry) decimal.Decimal {
	if !project.HasHourlyRate() {
		return decimal.Zero
	}
	return domain.Round2(UnbilledHours(project, entries).Mul(project.HourlyRate.Decimal))
}

// EntryLineItem turns a billable entry into an invoice line at the project's hourly rate.
func EntryLineItem(project *domain.Project, entry *domain.TimeEntry) (domain.InvoiceLineItem, error) {
	if !project.HasHourlyRate() {
		return domain.InvoiceLineItem{}, reject("EntryLineItem", ErrProjectHasNoRate, "project %q", project.Name)
	}
	if !entry.Billable {
		return domain.InvoiceLineItem{}, reject("EntryLineItem", ErrEntryNotBillable, "entry %d", entry.ID)
	}

	description := entry.Description
	if description == "" {
		description = project.Name
	}
	if entry.StartTime != nil {
		description = entry.StartTime.Format("2006-01-02") + " " + description
	}

	entryID := entry.ID
	item := domain.NewLineItem(description, entry.Hours, project.HourlyRate.Decimal)
	item.EntryID = &entryID
	return item, nil
}
