package billing

import (
	"testing"

	"github.com/andy/tally/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeAmounts_LineItemsWithTax(t *testing.T) {
	inv := scenarioInvoice(domain.InvoiceStatusDraft, day(2026, 4, 1))

	assertMoney(t, "125.00", inv.Subtotal)
	assertMoney(t, "12.50", inv.TaxAmount)
	assertMoney(t, "137.50", inv.Amount)
	assertMoney(t, "0.00", inv.AmountPaid)
	assertMoney(t, "137.50", inv.AmountDue)
	assert.Equal(t, domain.InvoiceStatusDraft, inv.Status)
}

func TestComputeAmounts_NoTaxRate(t *testing.T) {
	inv := scenarioInvoice(domain.InvoiceStatusDraft, nil)
	inv.TaxRate = decimal.NullDecimal{}
	ComputeAmounts(inv)

	assertMoney(t, "0.00", inv.TaxAmount)
	assertMoney(t, "125.00", inv.Amount)
}

func TestComputeAmounts_TaxRoundsHalfUp(t *testing.T) {
	inv := domain.NewInvoice("INV-1", 1, *day(2026, 3, 1), nil)
	inv.Subtotal = dec("0.25")
	inv.TaxRate = decimal.NewNullDecimal(dec("10"))
	ComputeAmounts(inv)

	// 0.025 rounds up
	assertMoney(t, "0.03", inv.TaxAmount)
}

func TestComputeAmounts_ExplicitSubtotalWithoutItems(t *testing.T) {
	inv := domain.NewInvoice("INV-1", 1, *day(2026, 3, 1), nil)
	inv.Subtotal = dec("100")
	inv.TaxRate = decimal.NewNullDecimal(dec("5"))
	inv.Discount = dec("10")
	ComputeAmounts(inv)

	assertMoney(t, "5.00", inv.TaxAmount)
	assertMoney(t, "95.00", inv.Amount)
	assertMoney(t, "95.00", inv.AmountDue)
}

func TestComputeAmounts_ZeroValueFieldsAreZero(t *testing.T) {
	inv := &domain.Invoice{}
	ComputeAmounts(inv)

	for _, d := range []decimal.Decimal{inv.Subtotal, inv.TaxAmount, inv.Amount, inv.AmountPaid, inv.AmountDue} {
		assertMoney(t, "0.00", d)
	}
}

func TestComputeAmounts_DiscountLargerThanTotalFloorsDue(t *testing.T) {
	inv := scenarioInvoice(domain.InvoiceStatusDraft, nil)
	inv.Discount = dec("200")
	ComputeAmounts(inv)

	assertMoney(t, "-62.50", inv.Amount)
	assertMoney(t, "0.00", inv.AmountDue)
}

func TestComputeAmounts_OnlyCompletedPaymentsCount(t *testing.T) {
	inv := scenarioInvoice(domain.InvoiceStatusSent, day(2026, 4, 1))
	for _, status := range []domain.PaymentStatus{
		domain.PaymentStatusPending,
		domain.PaymentStatusFailed,
		domain.PaymentStatusRefunded,
		domain.PaymentStatusCancelled,
	} {
		p := completed(0, "40")
		p.Status = status
		inv.Payments = append(inv.Payments, p)
	}
	inv.Payments = append(inv.Payments, completed(0, "30"))
	ComputeAmounts(inv)

	assertMoney(t, "30.00", inv.AmountPaid)
	assertMoney(t, "107.50", inv.AmountDue)
}

func TestComputeAmounts_Invariants(t *testing.T) {
	inv := scenarioInvoice(domain.InvoiceStatusSent, day(2026, 4, 1))
	inv.Discount = dec("7.25")
	inv.Payments = append(inv.Payments, completed(1, "20.10"), completed(2, "3.33"))
	ComputeAmounts(inv)

	assert.True(t, inv.Amount.Equal(inv.Subtotal.Add(inv.TaxAmount).Sub(inv.Discount)))
	assert.True(t, inv.AmountPaid.Equal(CompletedTotal(inv.Payments)))
	assert.True(t, inv.AmountDue.Equal(domain.NonNegative(inv.Amount.Sub(inv.AmountPaid))))
	assert.False(t, inv.AmountDue.IsNegative())
}

func TestReconcile_Idempotent(t *testing.T) {
	inv := scenarioInvoice(domain.InvoiceStatusSent, day(2026, 3, 1))
	inv.Payments = append(inv.Payments, completed(1, "50"))

	Reconcile(inv, today)
	first := *inv
	Reconcile(inv, today)

	assert.Equal(t, first.Status, inv.Status)
	assert.Equal(t, first.PaidDate, inv.PaidDate)
	for _, pair := range [][2]decimal.Decimal{
		{first.Subtotal, inv.Subtotal},
		{first.TaxAmount, inv.TaxAmount},
		{first.Amount, inv.Amount},
		{first.AmountPaid, inv.AmountPaid},
		{first.AmountDue, inv.AmountDue},
	} {
		assert.True(t, pair[0].Equal(pair[1]))
	}
}

func TestAddLineItem_ResetsSubtotal(t *testing.T) {
	inv := scenarioInvoice(domain.InvoiceStatusDraft, nil)

	err := AddLineItem(inv, domain.NewLineItem("Hosting", dec("3"), dec("10.10")), today)
	require.NoError(t, err)

	assertMoney(t, "155.30", inv.Subtotal)
	assertMoney(t, "15.53", inv.TaxAmount)
	assertMoney(t, "170.83", inv.Amount)
	assert.Equal(t, inv.ID, inv.LineItems[2].InvoiceID)
}

func TestAddLineItem_Rejections(t *testing.T) {
	inv := scenarioInvoice(domain.InvoiceStatusDraft, nil)

	err := AddLineItem(inv, domain.NewLineItem("Nothing", dec("0"), dec("10")), today)
	assert.ErrorIs(t, err, ErrInvalidLineItem)

	err = AddLineItem(inv, domain.NewLineItem("Refund", dec("1"), dec("-10")), today)
	assert.ErrorIs(t, err, ErrInvalidLineItem)

	inv.Status = domain.InvoiceStatusSent
	err = AddLineItem(inv, domain.NewLineItem("Late", dec("1"), dec("10")), today)
	assert.ErrorIs(t, err, ErrInvoiceLocked)
	assert.True(t, IsPrecondition(err))
	assert.Len(t, inv.LineItems, 2)
}

func TestUpdateLineItem(t *testing.T) {
	inv := scenarioInvoice(domain.InvoiceStatusDraft, nil)
	qty := dec("4")

	require.NoError(t, UpdateLineItem(inv, 0, LineItemUpdate{Quantity: &qty}, today))

	assertMoney(t, "200.00", inv.LineItems[0].Amount)
	assertMoney(t, "225.00", inv.Subtotal)
	assertMoney(t, "247.50", inv.Amount)

	err := UpdateLineItem(inv, 5, LineItemUpdate{Quantity: &qty}, today)
	assert.ErrorIs(t, err, ErrLineItemNotFound)
}

func TestRemoveLineItem(t *testing.T) {
	inv := scenarioInvoice(domain.InvoiceStatusDraft, nil)

	removed, err := RemoveLineItem(inv, 0, today)
	require.NoError(t, err)

	assert.Equal(t, "Design", removed.Description)
	require.Len(t, inv.LineItems, 1)
	assertMoney(t, "25.00", inv.Subtotal)
	assertMoney(t, "27.50", inv.Amount)
}

func TestSetTaxAndDiscount(t *testing.T) {
	inv := scenarioInvoice(domain.InvoiceStatusDraft, nil)

	require.NoError(t, SetTaxAndDiscount(inv, decimal.NewNullDecimal(dec("20")), dec("5"), today))
	assertMoney(t, "25.00", inv.TaxAmount)
	assertMoney(t, "145.00", inv.Amount)

	err := SetTaxAndDiscount(inv, decimal.NullDecimal{}, dec("-1"), today)
	assert.ErrorIs(t, err, ErrInvalidAdjustment)
	assertMoney(t, "145.00", inv.Amount)
}
