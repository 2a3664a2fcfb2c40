package billing

import (
	"time"

	"github.com/andy/tally/internal/clock"
	"github.com/andy/tally/internal/domain"
	"github.com/andy/tally/internal/logger"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PaymentUpdate holds the payment fields to change; nil fields are left alone.
type PaymentUpdate struct {
	Amount         *decimal.Decimal
	Status         *domain.PaymentStatus
	Method         *domain.PaymentMethod
	Date           *time.Time
	TransactionRef *string
	Notes          *string
}

func (u PaymentUpdate) apply(p domain.Payment) domain.Payment {
	if u.Amount != nil {
		p.Amount = *u.Amount
	}
	if u.Status != nil {
		p.Status = *u.Status
	}
	if u.Method != nil {
		p.Method = *u.Method
	}
	if u.Date != nil {
		p.Date = *u.Date
	}
	if u.TransactionRef != nil {
		p.TransactionRef = *u.TransactionRef
	}
	if u.Notes != nil {
		p.Notes = *u.Notes
	}
	return p
}

// Ledger applies and removes payments against invoice balances.
// Authorization is the caller's job; the ledger trusts the invoices it is handed.
type Ledger struct {
	clock clock.Clock
	log   zerolog.Logger
}

func NewLedger(c clock.Clock) *Ledger {
	return &Ledger{
		clock: c,
		log:   logger.WithComponent("ledger"),
	}
}

// AddPayment validates and appends a payment, then reconciles the invoice.
// A completed payment may not exceed the current amount due.
func (l *Ledger) AddPayment(inv *domain.Invoice, payment domain.Payment) error {
	if err := payment.Validate(); err != nil {
		return reject("AddPayment", ErrInvalidPayment, "%v", err)
	}
	if inv.Status == domain.InvoiceStatusCancelled {
		return reject("AddPayment", ErrInvoiceLocked, "status %s", inv.Status)
	}

	due := amountDue(inv, -1)
	if payment.IsCompleted() && payment.Amount.GreaterThan(due) {
		l.log.Warn().
			Str("invoice", inv.InvoiceNumber).
			Str("amount", payment.Amount.String()).
			Str("amount_due", due.String()).
			Msg("Rejected payment exceeding amount due")
		return reject("AddPayment", ErrPaymentExceedsDue, "amount %s, due %s", domain.Money(payment.Amount), domain.Money(due))
	}

	l.apply(inv, payment)
	return nil
}

// RemovePayment drops the payment with the given ID and reconciles the invoice.
func (l *Ledger) RemovePayment(inv *domain.Invoice, paymentID int64) (domain.Payment, error) {
	idx, ok := inv.PaymentIndex(paymentID)
	if !ok {
		return domain.Payment{}, reject("RemovePayment", ErrPaymentNotFound, "payment %d on invoice %s", paymentID, inv.InvoiceNumber)
	}

	removed := l.detach(inv, idx)
	return removed, nil
}

// UpdatePayment changes a payment and, when dst is a different invoice, moves it there.
// Every check runs before either invoice is touched.
func (l *Ledger) UpdatePayment(src, dst *domain.Invoice, paymentID int64, changes PaymentUpdate) (domain.Payment, error) {
	idx, ok := src.PaymentIndex(paymentID)
	if !ok {
		return domain.Payment{}, reject("UpdatePayment", ErrPaymentNotFound, "payment %d on invoice %s", paymentID, src.InvoiceNumber)
	}
	moving := dst != nil && dst != src
	if !moving {
		dst = src
	}

	updated := changes.apply(src.Payments[idx])
	if err := updated.Validate(); err != nil {
		return domain.Payment{}, reject("UpdatePayment", ErrInvalidPayment, "%v", err)
	}
	if moving && dst.Status == domain.InvoiceStatusCancelled {
		return domain.Payment{}, reject("UpdatePayment", ErrInvoiceLocked, "status %s", dst.Status)
	}

	// Staying put: the payment's own previous contribution is available again
	var due decimal.Decimal
	if moving {
		due = amountDue(dst, -1)
	} else {
		due = amountDue(src, idx)
	}
	if updated.IsCompleted() && updated.Amount.GreaterThan(due) {
		return domain.Payment{}, reject("UpdatePayment", ErrPaymentExceedsDue, "amount %s, due %s", domain.Money(updated.Amount), domain.Money(due))
	}

	updated.UpdatedAt = l.clock.Now()
	if !moving {
		src.Payments[idx] = updated
		Reconcile(src, l.clock.Now())
		return updated, nil
	}

	l.detach(src, idx)
	l.apply(dst, updated)
	l.log.Debug().
		Int64("payment_id", paymentID).
		Str("from", src.InvoiceNumber).
		Str("to", dst.InvoiceNumber).
		Msg("Moved payment")
	return dst.Payments[len(dst.Payments)-1], nil
}

func (l *Ledger) apply(inv *domain.Invoice, payment domain.Payment) {
	prior := inv.Status
	payment.InvoiceID = inv.ID
	inv.Payments = append(inv.Payments, payment)
	if inv.PaymentMethod == "" && payment.Method != "" {
		inv.PaymentMethod = payment.Method
	}

	Reconcile(inv, l.clock.Now())

	// A partial payment keeps a sent or viewed invoice where it was unless it is now overdue
	if inv.AmountDue.IsPositive() && (prior == domain.InvoiceStatusSent || prior == domain.InvoiceStatusViewed) &&
		inv.Status != domain.InvoiceStatusOverdue {
		inv.Status = prior
	}

	l.log.Debug().
		Str("invoice", inv.InvoiceNumber).
		Str("amount", payment.Amount.String()).
		Str("payment_status", string(payment.Status)).
		Str("from", string(prior)).
		Str("to", string(inv.Status)).
		Msg("Applied payment")
}

func (l *Ledger) detach(inv *domain.Invoice, idx int) domain.Payment {
	prior := inv.Status
	removed := inv.Payments[idx]
	inv.Payments = append(inv.Payments[:idx:idx], inv.Payments[idx+1:]...)
	removed.InvoiceID = 0

	Reconcile(inv, l.clock.Now())

	l.log.Debug().
		Str("invoice", inv.InvoiceNumber).
		Int64("payment_id", removed.ID).
		Str("from", string(prior)).
		Str("to", string(inv.Status)).
		Msg("Removed payment")
	return removed
}

// amountDue computes what the invoice would owe without the payment at skip (-1 = none),
// leaving the invoice itself unchanged.
func amountDue(inv *domain.Invoice, skip int) decimal.Decimal {
	snapshot := *inv
	if skip >= 0 {
		snapshot.Payments = make([]domain.Payment, 0, len(inv.Payments))
		snapshot.Payments = append(snapshot.Payments, inv.Payments[:skip]...)
		snapshot.Payments = append(snapshot.Payments, inv.Payments[skip+1:]...)
	}
	ComputeAmounts(&snapshot)
	return snapshot.AmountDue
}
