package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/andy/tally/internal/domain"
	"github.com/andy/tally/internal/repository"
)

var (
	// ErrNotFound covers both missing records and records the caller does not own
	ErrNotFound = repository.ErrNotFound

	ErrInvalidTransition        = errors.New("invalid invoice status transition")
	ErrEmptyInvoice             = errors.New("invoice has nothing to bill")
	ErrNothingDue               = errors.New("invoice has no outstanding amount")
	ErrInvoiceHasPayments       = errors.New("invoice has completed payments")
	ErrPaidInvoicePaymentLocked = errors.New("completed payment on a paid invoice cannot be removed; refund it instead")
	ErrNotRefundable            = errors.New("only completed payments can be refunded")
)

// ownedProject loads a project and hides it unless the caller owns it
func ownedProject(ctx context.Context, projects repository.ProjectRepository, caller domain.Principal, id int64) (*domain.Project, error) {
	project, err := projects.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !project.OwnedBy(caller) {
		return nil, fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	return project, nil
}

// ownedInvoice loads an invoice aggregate whose project the caller owns
func ownedInvoice(
	ctx context.Context,
	invoices repository.InvoiceRepository,
	projects repository.ProjectRepository,
	caller domain.Principal,
	id int64,
) (*domain.Invoice, *domain.Project, error) {
	invoice, err := invoices.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	project, err := ownedProject(ctx, projects, caller, invoice.ProjectID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, fmt.Errorf("invoice %d: %w", id, ErrNotFound)
		}
		return nil, nil, err
	}
	return invoice, project, nil
}

func transitionError(invoice *domain.Invoice, to domain.InvoiceStatus) error {
	return fmt.Errorf("%w: %s is %s, cannot become %s", ErrInvalidTransition, invoice.InvoiceNumber, invoice.Status, to)
}
