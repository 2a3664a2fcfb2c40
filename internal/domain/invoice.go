package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft   InvoiceStatus = "DRAFT"
	InvoiceStatusSent    InvoiceStatus = "SENT"
	InvoiceStatusViewed  InvoiceStatus = "VIEWED"
	InvoiceStatusOverdue InvoiceStatus = "OVERDUE"
	InvoiceStatusPaid    InvoiceStatus = "PAID"
	// InvoiceStatusPartiallyPaid is accepted from storage but never assigned automatically.
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoiceStatusCancelled     InvoiceStatus = "CANCELLED"
)

// Valid reports whether s is a known invoice status
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusViewed, InvoiceStatusOverdue,
		InvoiceStatusPaid, InvoiceStatusPartiallyPaid, InvoiceStatusCancelled:
		return true
	}
	return false
}

// ParseInvoiceStatus parses a case-insensitive status name
func ParseInvoiceStatus(s string) (InvoiceStatus, error) {
	status := InvoiceStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", fmt.Errorf("unknown invoice status %q", s)
	}
	return status, nil
}

type Invoice struct {
	ID            int64
	ProjectID     int64
	InvoiceNumber string
	Status        InvoiceStatus
	IssueDate     time.Time
	DueDate       *time.Time
	Currency      string
	TaxRate       decimal.NullDecimal // percent, nil = no tax
	Discount      decimal.Decimal
	Subtotal      decimal.Decimal
	TaxAmount     decimal.Decimal
	Amount        decimal.Decimal // grand total
	AmountPaid    decimal.Decimal
	AmountDue     decimal.Decimal
	PaymentMethod PaymentMethod
	SentDate      *time.Time
	PaidDate      *time.Time
	Notes         string
	Version       int64 // optimistic concurrency token, managed by the repository
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// Owned collections (loaded and saved with the invoice)
	LineItems []InvoiceLineItem
	Payments  []Payment
}

type InvoiceLineItem struct {
	ID          int64
	InvoiceID   int64
	EntryID     *int64 // time entry billed by this line, if any
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Amount      decimal.Decimal
}

// NewLineItem creates a line item with its amount derived from quantity and price
func NewLineItem(description string, quantity, unitPrice decimal.Decimal) InvoiceLineItem {
	item := InvoiceLineItem{
		Description: strings.TrimSpace(description),
		Quantity:    quantity,
		UnitPrice:   unitPrice,
	}
	item.Recalculate()
	return item
}

// Recalculate derives the amount from quantity and unit price
func (li *InvoiceLineItem) Recalculate() {
	li.Amount = Round2(li.Quantity.Mul(li.UnitPrice))
}

// Validate returns an error if the line item is invalid
func (li InvoiceLineItem) Validate() error {
	if strings.TrimSpace(li.Description) == "" {
		return errors.New("line item description is required")
	}
	if !li.Quantity.IsPositive() {
		return errors.New("quantity must be greater than zero")
	}
	if li.UnitPrice.IsNegative() {
		return errors.New("unit price cannot be negative")
	}
	return nil
}

// NewInvoice creates a new draft invoice
func NewInvoice(invoiceNumber string, projectID int64, issueDate time.Time, dueDate *time.Time) *Invoice {
	now := time.Now()
	return &Invoice{
		InvoiceNumber: invoiceNumber,
		ProjectID:     projectID,
		Status:        InvoiceStatusDraft,
		IssueDate:     issueDate,
		DueDate:       dueDate,
		Currency:      DefaultCurrency,
		CreatedAt:     now,
		UpdatedAt:     now,
		LineItems:     make([]InvoiceLineItem, 0),
		Payments:      make([]Payment, 0),
	}
}

// CanEdit returns true if items, tax or discount may still change
func (i *Invoice) CanEdit() bool {
	return i.Status != InvoiceStatusSent && i.Status != InvoiceStatusPaid
}

// CanDelete returns true if the invoice may be removed
func (i *Invoice) CanDelete() bool {
	return i.Status != InvoiceStatusSent && i.Status != InvoiceStatusPaid
}

// IsOverdue reports whether the invoice is past due with money outstanding
func (i *Invoice) IsOverdue(today time.Time) bool {
	if i.Status == InvoiceStatusOverdue {
		return true
	}
	if i.Status != InvoiceStatusSent && i.Status != InvoiceStatusViewed {
		return false
	}
	return i.DueDate != nil && i.DueDate.Before(StartOfDay(today)) && i.AmountDue.IsPositive()
}

// PaymentIndex returns the position of the payment with the given ID
func (i *Invoice) PaymentIndex(paymentID int64) (int, bool) {
	for idx, p := range i.Payments {
		if p.ID == paymentID {
			return idx, true
		}
	}
	return -1, false
}

// LineItemIndex returns the position of the line item with the given ID
func (i *Invoice) LineItemIndex(itemID int64) (int, bool) {
	for idx, li := range i.LineItems {
		if li.ID == itemID {
			return idx, true
		}
	}
	return -1, false
}

// CurrencyOrDefault returns the invoice currency, falling back to USD
func (i *Invoice) CurrencyOrDefault() string {
	if i.Currency == "" {
		return DefaultCurrency
	}
	return i.Currency
}

// Validate returns an error if the invoice is invalid
func (i *Invoice) Validate() error {
	if i.InvoiceNumber == "" {
		return errors.New("invoice number is required")
	}
	if i.ProjectID <= 0 {
		return errors.New("project ID is required")
	}
	if i.IssueDate.IsZero() {
		return errors.New("issue date is required")
	}
	if i.DueDate != nil && i.DueDate.Before(StartOfDay(i.IssueDate)) {
		return errors.New("due date must not be before issue date")
	}
	if !i.Status.Valid() {
		return fmt.Errorf("invalid invoice status %q", i.Status)
	}
	if len(i.CurrencyOrDefault()) != 3 {
		return errors.New("currency must be a 3-letter code")
	}
	if i.Discount.IsNegative() {
		return errors.New("discount cannot be negative")
	}
	if i.TaxRate.Valid && i.TaxRate.Decimal.IsNegative() {
		return errors.New("tax rate cannot be negative")
	}
	return nil
}
