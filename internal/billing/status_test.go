package billing

import (
	"testing"

	"github.com/andy/tally/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestComputeStatus_UnpaidStatusesAreSticky(t *testing.T) {
	for _, status := range []domain.InvoiceStatus{
		domain.InvoiceStatusDraft,
		domain.InvoiceStatusSent,
		domain.InvoiceStatusViewed,
		domain.InvoiceStatusOverdue,
		domain.InvoiceStatusCancelled,
	} {
		t.Run(string(status), func(t *testing.T) {
			inv := scenarioInvoice(status, day(2026, 1, 1))
			ComputeStatus(inv, today)
			assert.Equal(t, status, inv.Status)
		})
	}
}

func TestComputeStatus_PaidRevertsToSentWhenNothingPaid(t *testing.T) {
	inv := scenarioInvoice(domain.InvoiceStatusPaid, day(2026, 4, 1))
	inv.PaidDate = day(2026, 3, 10)

	ComputeStatus(inv, today)

	assert.Equal(t, domain.InvoiceStatusSent, inv.Status)
	assert.Nil(t, inv.PaidDate)
}

func TestComputeStatus_FullyPaidKeepsExistingPaidDate(t *testing.T) {
	inv := scenarioInvoice(domain.InvoiceStatusSent, day(2026, 4, 1))
	inv.Payments = append(inv.Payments, completed(1, "137.50"))
	inv.PaidDate = day(2026, 3, 2)

	Reconcile(inv, today)

	assert.Equal(t, domain.InvoiceStatusPaid, inv.Status)
	assert.Equal(t, day(2026, 3, 2), inv.PaidDate)
}

func TestComputeStatus_PartialPastDueBecomesOverdue(t *testing.T) {
	inv := scenarioInvoice(domain.InvoiceStatusViewed, day(2026, 3, 14))
	inv.Payments = append(inv.Payments, completed(1, "10"))

	Reconcile(inv, today)

	assert.Equal(t, domain.InvoiceStatusOverdue, inv.Status)
}

func TestComputeStatus_DueTodayIsNotPastDue(t *testing.T) {
	inv := scenarioInvoice(domain.InvoiceStatusSent, day(2026, 3, 15))
	inv.Payments = append(inv.Payments, completed(1, "10"))

	Reconcile(inv, today)

	assert.Equal(t, domain.InvoiceStatusSent, inv.Status)
}

func TestComputeStatus_PartialClearsPaidDate(t *testing.T) {
	inv := scenarioInvoice(domain.InvoiceStatusPaid, day(2026, 4, 1))
	inv.PaidDate = day(2026, 3, 10)
	inv.Payments = append(inv.Payments, completed(1, "10"))

	Reconcile(inv, today)

	// Partial amounts never assign PARTIALLY_PAID
	assert.Equal(t, domain.InvoiceStatusPaid, inv.Status)
	assert.Nil(t, inv.PaidDate)
}
