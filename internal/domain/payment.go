package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

// Valid reports whether s is a known payment status
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed,
		PaymentStatusRefunded, PaymentStatusCancelled:
		return true
	}
	return false
}

// ParsePaymentStatus parses a case-insensitive status name
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	status := PaymentStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", fmt.Errorf("unknown payment status %q", s)
	}
	return status, nil
}

type PaymentMethod string

const (
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodCreditCard   PaymentMethod = "CREDIT_CARD"
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodCheck        PaymentMethod = "CHECK"
	PaymentMethodPayPal       PaymentMethod = "PAYPAL"
	PaymentMethodOther        PaymentMethod = "OTHER"
)

// Valid reports whether m is a known payment method
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodBankTransfer, PaymentMethodCreditCard, PaymentMethodCash,
		PaymentMethodCheck, PaymentMethodPayPal, PaymentMethodOther:
		return true
	}
	return false
}

// ParsePaymentMethod parses a method name; "bank-transfer" and "bank_transfer" are equivalent
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	method := PaymentMethod(normalized)
	if !method.Valid() {
		return "", fmt.Errorf("unknown payment method %q", s)
	}
	return method, nil
}

type Payment struct {
	ID             int64
	InvoiceID      int64
	Amount         decimal.Decimal
	Method         PaymentMethod
	Date           time.Time
	TransactionRef string
	Status         PaymentStatus
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewPayment creates a completed payment with a generated transaction reference
func NewPayment(amount decimal.Decimal, method PaymentMethod, date time.Time) Payment {
	now := time.Now()
	return Payment{
		Amount:         amount,
		Method:         method,
		Date:           date,
		TransactionRef: uuid.NewString(),
		Status:         PaymentStatusCompleted,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// IsCompleted returns true if the payment counts toward the amount paid
func (p Payment) IsCompleted() bool {
	return p.Status == PaymentStatusCompleted
}

// Validate returns an error if the payment is invalid
func (p Payment) Validate() error {
	if !p.Amount.IsPositive() {
		return errors.New("payment amount must be greater than zero")
	}
	if !p.Status.Valid() {
		return fmt.Errorf("invalid payment status %q", p.Status)
	}
	if p.Method != "" && !p.Method.Valid() {
		return fmt.Errorf("invalid payment method %q", p.Method)
	}
	if p.Date.IsZero() {
		return errors.New("payment date is required")
	}
	return nil
}
