// Package billing derives invoice totals and status, applies payments, tracks billable time
// and aggregates project budgets. It performs no I/O; callers load and save the records.
package billing

import (
	"fmt"
	"time"

	"github.com/andy/tally/internal/domain"
	"github.com/andy/tally/internal/logger"
	"github.com/shopspring/decimal"
)

// ComputeAmounts derives subtotal, tax, total, amount paid and amount due from the
// invoice's current line items and payments. It never touches the status.
func ComputeAmounts(inv *domain.Invoice) {
	if inv.Subtotal.IsZero() && len(inv.LineItems) > 0 {
		subtotal := decimal.Zero
		for _, item := range inv.LineItems {
			subtotal = subtotal.Add(item.Amount)
		}
		inv.Subtotal = subtotal
	}

	inv.TaxAmount = computeTax(inv.Subtotal, inv.TaxRate)
	inv.Amount = inv.Subtotal.Add(inv.TaxAmount).Sub(inv.Discount)
	inv.AmountPaid = CompletedTotal(inv.Payments)
	inv.AmountDue = domain.NonNegative(inv.Amount.Sub(inv.AmountPaid))
}

// CompletedTotal sums the completed payments
func CompletedTotal(payments []domain.Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		if p.IsCompleted() {
			total = total.Add(p.Amount)
		}
	}
	return total
}

// computeTax returns subtotal × rate / 100 rounded to cents. A malformed rate must not make
// the invoice unrenderable, so arithmetic failures degrade to zero tax.
func computeTax(subtotal decimal.Decimal, rate decimal.NullDecimal) (tax decimal.Decimal) {
	if !rate.Valid {
		return decimal.Zero
	}

	defer func() {
		if r := recover(); r != nil {
			log := logger.WithComponent("billing")
			log.Warn().
				Str("subtotal", subtotal.String()).
				Str("tax_rate", rate.Decimal.String()).
				Str("cause", fmt.Sprint(r)).
				Msg("Tax computation failed, using zero tax")
			tax = decimal.Zero
		}
	}()

	return domain.Round2(subtotal.Mul(rate.Decimal).Div(domain.Hundred))
}

// Reconcile recomputes amounts and then status. It is the single entry point used after
// every item or payment mutation and before every save; calling it twice is a no-op.
func Reconcile(inv *domain.Invoice, today time.Time) {
	ComputeAmounts(inv)
	ComputeStatus(inv, today)
}
