package billing

import (
	"time"

	"github.com/andy/tally/internal/domain"
)

// ComputeStatus moves the invoice through its lifecycle based on the amounts computed by
// ComputeAmounts. PARTIALLY_PAID is never assigned here.
func ComputeStatus(inv *domain.Invoice, today time.Time) {
	switch {
	case inv.AmountPaid.IsZero():
		// Statuses other than PAID are sticky while nothing is paid
		if inv.Status == domain.InvoiceStatusPaid {
			inv.Status = domain.InvoiceStatusSent
			inv.PaidDate = nil
		}

	case !inv.AmountDue.IsPositive():
		inv.Status = domain.InvoiceStatusPaid
		if inv.PaidDate == nil {
			paid := domain.StartOfDay(today)
			inv.PaidDate = &paid
		}

	default:
		if inv.Status != domain.InvoiceStatusOverdue && isPastDue(inv, today) {
			inv.Status = domain.InvoiceStatusOverdue
		}
		inv.PaidDate = nil
	}
}

func isPastDue(inv *domain.Invoice, today time.Time) bool {
	return inv.DueDate != nil && inv.DueDate.Before(domain.StartOfDay(today))
}
