package billing

import (
	"slices"
	"testing"

	"github.com/andy/tally/internal/clock"
	"github.com/andy/tally/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger() *Ledger {
	return NewLedger(clock.NewFakeClock(today))
}

func TestAddPayment_FullPaymentMarksPaid(t *testing.T) {
	ledger := newTestLedger()
	inv := scenarioInvoice(domain.InvoiceStatusSent, day(2026, 4, 1))

	require.NoError(t, ledger.AddPayment(inv, completed(1, "137.50")))

	assertMoney(t, "137.50", inv.AmountPaid)
	assertMoney(t, "0.00", inv.AmountDue)
	assert.Equal(t, domain.InvoiceStatusPaid, inv.Status)
	require.NotNil(t, inv.PaidDate)
	assert.Equal(t, *day(2026, 3, 15), *inv.PaidDate)
	assert.Equal(t, inv.ID, inv.Payments[0].InvoiceID)
	assert.Equal(t, domain.PaymentMethodBankTransfer, inv.PaymentMethod)
}

func TestAddPayment_PartialBeforeDueKeepsSent(t *testing.T) {
	ledger := newTestLedger()
	inv := scenarioInvoice(domain.InvoiceStatusSent, day(2026, 4, 1))

	require.NoError(t, ledger.AddPayment(inv, completed(1, "50.00")))

	assertMoney(t, "87.50", inv.AmountDue)
	assert.Equal(t, domain.InvoiceStatusSent, inv.Status)
	assert.Nil(t, inv.PaidDate)
}

func TestAddPayment_PartialAfterDueBecomesOverdue(t *testing.T) {
	ledger := newTestLedger()
	inv := scenarioInvoice(domain.InvoiceStatusSent, day(2026, 3, 1))

	require.NoError(t, ledger.AddPayment(inv, completed(1, "50.00")))

	assertMoney(t, "87.50", inv.AmountDue)
	assert.Equal(t, domain.InvoiceStatusOverdue, inv.Status)
}

func TestAddPayment_PartialKeepsViewed(t *testing.T) {
	ledger := newTestLedger()
	inv := scenarioInvoice(domain.InvoiceStatusViewed, day(2026, 4, 1))

	require.NoError(t, ledger.AddPayment(inv, completed(1, "20")))

	assert.Equal(t, domain.InvoiceStatusViewed, inv.Status)
}

func TestAddPayment_OverpaymentRejectedWithoutChange(t *testing.T) {
	ledger := newTestLedger()
	inv := scenarioInvoice(domain.InvoiceStatusSent, day(2026, 4, 1))
	before := *inv
	before.Payments = slices.Clone(inv.Payments)

	err := ledger.AddPayment(inv, completed(1, "200.00"))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPaymentExceedsDue)
	var pe *PreconditionError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "AddPayment", pe.Op)
	assert.Equal(t, before, *inv)
}

func TestAddPayment_PendingMayExceedDue(t *testing.T) {
	ledger := newTestLedger()
	inv := scenarioInvoice(domain.InvoiceStatusSent, day(2026, 4, 1))
	p := completed(1, "500")
	p.Status = domain.PaymentStatusPending

	require.NoError(t, ledger.AddPayment(inv, p))

	assert.Len(t, inv.Payments, 1)
	assertMoney(t, "0.00", inv.AmountPaid)
	assert.Equal(t, domain.InvoiceStatusSent, inv.Status)
}

func TestAddPayment_InvalidPayments(t *testing.T) {
	ledger := newTestLedger()
	inv := scenarioInvoice(domain.InvoiceStatusSent, day(2026, 4, 1))

	err := ledger.AddPayment(inv, completed(1, "0"))
	assert.ErrorIs(t, err, ErrInvalidPayment)

	err = ledger.AddPayment(inv, completed(1, "-5"))
	assert.ErrorIs(t, err, ErrInvalidPayment)

	inv.Status = domain.InvoiceStatusCancelled
	err = ledger.AddPayment(inv, completed(1, "5"))
	assert.ErrorIs(t, err, ErrInvoiceLocked)

	assert.Empty(t, inv.Payments)
}

func TestAddPayment_KeepsExistingInvoiceMethod(t *testing.T) {
	ledger := newTestLedger()
	inv := scenarioInvoice(domain.InvoiceStatusSent, day(2026, 4, 1))
	inv.PaymentMethod = domain.PaymentMethodCash

	require.NoError(t, ledger.AddPayment(inv, completed(1, "10")))

	assert.Equal(t, domain.PaymentMethodCash, inv.PaymentMethod)
}

func TestRemovePayment_RevertsPaidToSent(t *testing.T) {
	ledger := newTestLedger()
	inv := scenarioInvoice(domain.InvoiceStatusSent, day(2026, 4, 1))
	require.NoError(t, ledger.AddPayment(inv, completed(7, "137.50")))
	require.Equal(t, domain.InvoiceStatusPaid, inv.Status)

	removed, err := ledger.RemovePayment(inv, 7)
	require.NoError(t, err)

	assert.Equal(t, int64(7), removed.ID)
	assert.Zero(t, removed.InvoiceID)
	assert.Empty(t, inv.Payments)
	assertMoney(t, "137.50", inv.AmountDue)
	assert.Equal(t, domain.InvoiceStatusSent, inv.Status)
	assert.Nil(t, inv.PaidDate)
}

func TestRemovePayment_NotFound(t *testing.T) {
	ledger := newTestLedger()
	inv := scenarioInvoice(domain.InvoiceStatusSent, day(2026, 4, 1))

	_, err := ledger.RemovePayment(inv, 99)
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestUpdatePayment_SameInvoiceCountsOwnContribution(t *testing.T) {
	ledger := newTestLedger()
	inv := scenarioInvoice(domain.InvoiceStatusSent, day(2026, 4, 1))
	require.NoError(t, ledger.AddPayment(inv, completed(1, "100")))

	full := dec("137.50")
	updated, err := ledger.UpdatePayment(inv, nil, 1, PaymentUpdate{Amount: &full})
	require.NoError(t, err)

	assertMoney(t, "137.50", updated.Amount)
	assert.Len(t, inv.Payments, 1)
	assert.Equal(t, domain.InvoiceStatusPaid, inv.Status)
}

func TestUpdatePayment_SameInvoiceOverpaymentRejected(t *testing.T) {
	ledger := newTestLedger()
	inv := scenarioInvoice(domain.InvoiceStatusSent, day(2026, 4, 1))
	require.NoError(t, ledger.AddPayment(inv, completed(1, "100")))

	tooMuch := dec("150")
	_, err := ledger.UpdatePayment(inv, inv, 1, PaymentUpdate{Amount: &tooMuch})

	assert.ErrorIs(t, err, ErrPaymentExceedsDue)
	assertMoney(t, "100.00", inv.Payments[0].Amount)
	assertMoney(t, "37.50", inv.AmountDue)
}

func TestUpdatePayment_StatusChangeRecalculates(t *testing.T) {
	ledger := newTestLedger()
	inv := scenarioInvoice(domain.InvoiceStatusSent, day(2026, 4, 1))
	require.NoError(t, ledger.AddPayment(inv, completed(1, "137.50")))

	refunded := domain.PaymentStatusRefunded
	_, err := ledger.UpdatePayment(inv, nil, 1, PaymentUpdate{Status: &refunded})
	require.NoError(t, err)

	assertMoney(t, "0.00", inv.AmountPaid)
	assert.Equal(t, domain.InvoiceStatusSent, inv.Status)
}

func TestUpdatePayment_MoveBetweenInvoices(t *testing.T) {
	ledger := newTestLedger()
	src := scenarioInvoice(domain.InvoiceStatusSent, day(2026, 4, 1))
	dst := scenarioInvoice(domain.InvoiceStatusSent, day(2026, 4, 1))
	dst.ID = 11
	dst.InvoiceNumber = "INV-2026-002"
	require.NoError(t, ledger.AddPayment(src, completed(1, "137.50")))

	moved, err := ledger.UpdatePayment(src, dst, 1, PaymentUpdate{})
	require.NoError(t, err)

	assert.Equal(t, int64(11), moved.InvoiceID)
	assert.Empty(t, src.Payments)
	assert.Equal(t, domain.InvoiceStatusSent, src.Status)
	assert.Nil(t, src.PaidDate)
	require.Len(t, dst.Payments, 1)
	assert.Equal(t, domain.InvoiceStatusPaid, dst.Status)
}

func TestUpdatePayment_MoveValidatesAgainstDestination(t *testing.T) {
	ledger := newTestLedger()
	src := scenarioInvoice(domain.InvoiceStatusSent, day(2026, 4, 1))
	dst := scenarioInvoice(domain.InvoiceStatusSent, day(2026, 4, 1))
	dst.ID = 11
	dst.TaxRate = decimal.NullDecimal{}
	Reconcile(dst, today)
	require.NoError(t, ledger.AddPayment(src, completed(1, "130")))

	_, err := ledger.UpdatePayment(src, dst, 1, PaymentUpdate{})

	assert.ErrorIs(t, err, ErrPaymentExceedsDue)
	assert.Len(t, src.Payments, 1)
	assert.Empty(t, dst.Payments)
}
