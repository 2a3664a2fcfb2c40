package service

import (
	"context"
	"testing"

	"github.com/andy/tally/internal/billing"
	"github.com/andy/tally/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddPayment_PartialKeepsSentStatus(t *testing.T) {
	f := newFixture()
	inv := f.sentInvoice(t, day(2026, 3, 31))

	updated, err := f.paymentSvc.AddPayment(context.Background(), owner, inv.ID, PaymentInput{
		Amount: dec("100"),
		Method: domain.PaymentMethodBankTransfer,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.InvoiceStatusSent, updated.Status)
	assertMoney(t, "100.00", updated.AmountPaid)
	assertMoney(t, "37.50", updated.AmountDue)
	assert.Nil(t, updated.PaidDate)
	require.Len(t, updated.Payments, 1)
	assert.NotZero(t, updated.Payments[0].ID)
	assert.NotEmpty(t, updated.Payments[0].TransactionRef)
	assert.Equal(t, *day(2026, 3, 15), updated.Payments[0].Date)
}

func TestAddPayment_ExceedingDueLeavesInvoiceUntouched(t *testing.T) {
	f := newFixture()
	inv := f.sentInvoice(t, day(2026, 3, 31))

	_, err := f.paymentSvc.AddPayment(context.Background(), owner, inv.ID, PaymentInput{Amount: dec("137.51")})
	assert.ErrorIs(t, err, billing.ErrPaymentExceedsDue)

	stored := f.invoices.invoices[inv.ID]
	assert.Empty(t, stored.Payments)
	assert.Equal(t, domain.InvoiceStatusSent, stored.Status)
	assert.Equal(t, 0, f.invoices.saves)
}

func TestAddPayment_PendingDoesNotCount(t *testing.T) {
	f := newFixture()
	inv := f.sentInvoice(t, day(2026, 3, 31))

	updated, err := f.paymentSvc.AddPayment(context.Background(), owner, inv.ID, PaymentInput{
		Amount: dec("500"),
		Status: domain.PaymentStatusPending,
	})
	require.NoError(t, err)

	assertMoney(t, "0.00", updated.AmountPaid)
	assertMoney(t, "137.50", updated.AmountDue)
	assert.Equal(t, domain.InvoiceStatusSent, updated.Status)
}

func TestAddPayment_FullPaysInvoice(t *testing.T) {
	f := newFixture()
	inv := f.sentInvoice(t, day(2026, 3, 31))

	updated, err := f.paymentSvc.AddPayment(context.Background(), owner, inv.ID, PaymentInput{
		Amount:         dec("137.50"),
		Method:         domain.PaymentMethodCreditCard,
		TransactionRef: "ch_123",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.InvoiceStatusPaid, updated.Status)
	require.NotNil(t, updated.PaidDate)
	assert.Equal(t, *day(2026, 3, 15), *updated.PaidDate)
	assert.Equal(t, "ch_123", updated.Payments[0].TransactionRef)
}

func TestAddPayment_CancelledInvoiceRefused(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	inv := f.sentInvoice(t, day(2026, 3, 31))
	_, err := f.invoiceSvc.Cancel(ctx, owner, inv.ID)
	require.NoError(t, err)

	_, err = f.paymentSvc.AddPayment(ctx, owner, inv.ID, PaymentInput{Amount: dec("10")})
	assert.ErrorIs(t, err, billing.ErrInvoiceLocked)
}

func TestAddPayment_OtherOwner(t *testing.T) {
	f := newFixture()
	inv := f.sentInvoice(t, day(2026, 3, 31))

	_, err := f.paymentSvc.AddPayment(context.Background(), other, inv.ID, PaymentInput{Amount: dec("10")})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, f.invoices.invoices[inv.ID].Payments)
}

func TestRemovePayment_PaidInvoiceLocked(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	inv := f.sentInvoice(t, day(2026, 3, 31))
	paid, err := f.paymentSvc.AddPayment(ctx, owner, inv.ID, PaymentInput{Amount: dec("137.50")})
	require.NoError(t, err)

	_, err = f.paymentSvc.RemovePayment(ctx, owner, paid.Payments[0].ID)
	assert.ErrorIs(t, err, ErrPaidInvoicePaymentLocked)
	assert.Equal(t, domain.InvoiceStatusPaid, f.invoices.invoices[inv.ID].Status)
	assert.Len(t, f.invoices.invoices[inv.ID].Payments, 1)
}

func TestRemovePayment_Partial(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	inv := f.sentInvoice(t, day(2026, 3, 31))
	partial, err := f.paymentSvc.AddPayment(ctx, owner, inv.ID, PaymentInput{Amount: dec("100")})
	require.NoError(t, err)

	updated, err := f.paymentSvc.RemovePayment(ctx, owner, partial.Payments[0].ID)
	require.NoError(t, err)

	assert.Empty(t, updated.Payments)
	assertMoney(t, "0.00", updated.AmountPaid)
	assertMoney(t, "137.50", updated.AmountDue)
	assert.Equal(t, domain.InvoiceStatusSent, updated.Status)
}

func TestRemovePayment_Unknown(t *testing.T) {
	f := newFixture()

	_, err := f.paymentSvc.RemovePayment(context.Background(), owner, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRefundPayment_RevertsPaidToSent(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	inv := f.sentInvoice(t, day(2026, 3, 31))
	paid, err := f.paymentSvc.AddPayment(ctx, owner, inv.ID, PaymentInput{Amount: dec("137.50"), Notes: "wire"})
	require.NoError(t, err)
	paymentID := paid.Payments[0].ID

	refunded, err := f.paymentSvc.RefundPayment(ctx, owner, paymentID)
	require.NoError(t, err)

	assert.Equal(t, domain.InvoiceStatusSent, refunded.Status)
	assert.Nil(t, refunded.PaidDate)
	assertMoney(t, "0.00", refunded.AmountPaid)
	assertMoney(t, "137.50", refunded.AmountDue)
	assert.Equal(t, domain.PaymentStatusRefunded, refunded.Payments[0].Status)
	assert.Equal(t, "wire; refunded 2026-03-15", refunded.Payments[0].Notes)

	_, err = f.paymentSvc.RefundPayment(ctx, owner, paymentID)
	assert.ErrorIs(t, err, ErrNotRefundable)
}

func TestUpdatePayment_SameInvoice(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	inv := f.sentInvoice(t, day(2026, 3, 31))
	partial, err := f.paymentSvc.AddPayment(ctx, owner, inv.ID, PaymentInput{Amount: dec("100")})
	require.NoError(t, err)
	paymentID := partial.Payments[0].ID

	amount := dec("137.50")
	updated, err := f.paymentSvc.UpdatePayment(ctx, owner, paymentID, billing.PaymentUpdate{Amount: &amount}, nil)
	require.NoError(t, err)
	assertMoney(t, "137.50", updated.Amount)
	assert.Equal(t, domain.InvoiceStatusPaid, f.invoices.invoices[inv.ID].Status)

	tooMuch := dec("140")
	_, err = f.paymentSvc.UpdatePayment(ctx, owner, paymentID, billing.PaymentUpdate{Amount: &tooMuch}, nil)
	assert.ErrorIs(t, err, billing.ErrPaymentExceedsDue)
	assertMoney(t, "137.50", f.invoices.invoices[inv.ID].Payments[0].Amount)
}

func TestUpdatePayment_MoveBetweenInvoices(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	src := f.sentInvoice(t, day(2026, 3, 31))
	dst := f.sentInvoice(t, day(2026, 3, 31))
	partial, err := f.paymentSvc.AddPayment(ctx, owner, src.ID, PaymentInput{Amount: dec("100")})
	require.NoError(t, err)

	moved, err := f.paymentSvc.UpdatePayment(ctx, owner, partial.Payments[0].ID, billing.PaymentUpdate{}, &dst.ID)
	require.NoError(t, err)
	assert.Equal(t, dst.ID, moved.InvoiceID)

	storedSrc := f.invoices.invoices[src.ID]
	storedDst := f.invoices.invoices[dst.ID]
	assert.Empty(t, storedSrc.Payments)
	assertMoney(t, "137.50", storedSrc.AmountDue)
	require.Len(t, storedDst.Payments, 1)
	assertMoney(t, "100.00", storedDst.AmountPaid)
	assertMoney(t, "37.50", storedDst.AmountDue)
	assert.Equal(t, domain.InvoiceStatusSent, storedDst.Status)
}

func TestUpdatePayment_MoveOffPaidInvoiceLocked(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	src := f.sentInvoice(t, day(2026, 3, 31))
	dst := f.sentInvoice(t, day(2026, 3, 31))
	paid, err := f.paymentSvc.AddPayment(ctx, owner, src.ID, PaymentInput{Amount: dec("137.50")})
	require.NoError(t, err)

	_, err = f.paymentSvc.UpdatePayment(ctx, owner, paid.Payments[0].ID, billing.PaymentUpdate{}, &dst.ID)
	assert.ErrorIs(t, err, ErrPaidInvoicePaymentLocked)
	assert.Empty(t, f.invoices.invoices[dst.ID].Payments)
}

func TestUpdatePayment_PaidInvoiceKeepsCompletedPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	inv := f.sentInvoice(t, day(2026, 3, 31))
	paid, err := f.paymentSvc.AddPayment(ctx, owner, inv.ID, PaymentInput{Amount: dec("137.50")})
	require.NoError(t, err)
	require.Equal(t, domain.InvoiceStatusPaid, paid.Status)
	pid := paid.Payments[0].ID

	for _, status := range []domain.PaymentStatus{
		domain.PaymentStatusCancelled, domain.PaymentStatusPending, domain.PaymentStatusFailed,
	} {
		status := status
		_, err = f.paymentSvc.UpdatePayment(ctx, owner, pid, billing.PaymentUpdate{Status: &status}, nil)
		assert.ErrorIs(t, err, ErrPaidInvoicePaymentLocked, status)
	}

	lower := dec("100")
	_, err = f.paymentSvc.UpdatePayment(ctx, owner, pid, billing.PaymentUpdate{Amount: &lower}, nil)
	assert.ErrorIs(t, err, ErrPaidInvoicePaymentLocked)

	stored := f.invoices.invoices[inv.ID]
	assert.Equal(t, domain.InvoiceStatusPaid, stored.Status)
	assertMoney(t, "137.50", stored.AmountPaid)
	assertMoney(t, "0.00", stored.AmountDue)

	// Metadata edits are still allowed
	ref := "wire-42"
	updated, err := f.paymentSvc.UpdatePayment(ctx, owner, pid, billing.PaymentUpdate{TransactionRef: &ref}, nil)
	require.NoError(t, err)
	assert.Equal(t, "wire-42", updated.TransactionRef)
}

func TestListPayments(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	inv := f.sentInvoice(t, day(2026, 3, 31))
	_, err := f.paymentSvc.AddPayment(ctx, owner, inv.ID, PaymentInput{Amount: dec("10")})
	require.NoError(t, err)
	_, err = f.paymentSvc.AddPayment(ctx, owner, inv.ID, PaymentInput{Amount: dec("20")})
	require.NoError(t, err)

	payments, err := f.paymentSvc.ListPayments(ctx, owner, inv.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 2)

	_, err = f.paymentSvc.ListPayments(ctx, other, inv.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
