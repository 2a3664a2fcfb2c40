package billing

import (
	"errors"
	"fmt"
)

// Precondition failures. Every operation that returns one of these leaves its inputs untouched.
var (
	ErrInvalidPayment     = errors.New("invalid payment")
	ErrPaymentExceedsDue  = errors.New("payment amount exceeds amount due")
	ErrPaymentNotFound    = errors.New("payment not found on invoice")
	ErrInvalidLineItem    = errors.New("invalid line item")
	ErrLineItemNotFound   = errors.New("line item not found on invoice")
	ErrInvoiceLocked      = errors.New("invoice cannot be modified in its current status")
	ErrEntryNotOwned      = errors.New("time entry is not owned by caller")
	ErrEntryWrongProject  = errors.New("time entry belongs to a different project")
	ErrEntryAlreadyBilled = errors.New("time entry is already billed")
	ErrEntryDeleted       = errors.New("time entry is deleted")
	ErrEntryRepeated      = errors.New("time entry listed more than once")
	ErrEntryNotBillable   = errors.New("time entry is not billable")
	ErrProjectHasNoRate   = errors.New("project has no hourly rate")
	ErrInvalidAdjustment  = errors.New("invalid tax rate or discount")
)

// PreconditionError describes a rejected operation.
type PreconditionError struct {
	// Op is the operation that was rejected (e.g. "AddPayment").
	Op string

	// Err is one of the sentinel errors above.
	Err error

	// Details gives the values that failed the check.
	Details string
}

// Error implements the error interface.
func (e *PreconditionError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("billing: %s rejected: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("billing: %s rejected: %v", e.Op, e.Err)
}

// Unwrap returns the sentinel so errors.Is works.
func (e *PreconditionError) Unwrap() error {
	return e.Err
}

func reject(op string, err error, format string, args ...any) *PreconditionError {
	return &PreconditionError{
		Op:      op,
		Err:     err,
		Details: fmt.Sprintf(format, args...),
	}
}

// IsPrecondition reports whether err is a rejected precondition.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}
