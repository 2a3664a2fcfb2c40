package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/andy/tally/internal/billing"
	"github.com/andy/tally/internal/clock"
	"github.com/andy/tally/internal/domain"
	"github.com/andy/tally/internal/logger"
	"github.com/andy/tally/internal/repository"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// InvoiceDefaults are applied to new drafts
type InvoiceDefaults struct {
	DueDays      int
	TaxRate      decimal.Decimal // percent, zero = no tax
	NumberPrefix string
	Currency     string
}

// DraftOptions describes a new invoice; zero values fall back to InvoiceDefaults
type DraftOptions struct {
	ProjectID int64
	IssueDate time.Time
	DueDays   *int
	TaxRate   decimal.NullDecimal
	Discount  decimal.Decimal
	Currency  string
	Notes     string
}

// InvoiceService manages the invoice lifecycle
type InvoiceService interface {
	// CreateDraft creates a new draft invoice with auto-generated number
	CreateDraft(ctx context.Context, caller domain.Principal, opts DraftOptions) (*domain.Invoice, error)

	AddLineItem(ctx context.Context, caller domain.Principal, invoiceID int64, item domain.InvoiceLineItem) (*domain.Invoice, error)
	UpdateLineItem(ctx context.Context, caller domain.Principal, invoiceID, itemID int64, changes billing.LineItemUpdate) (*domain.Invoice, error)
	// RemoveLineItem deletes a line item; an entry billed through it becomes unbilled again
	RemoveLineItem(ctx context.Context, caller domain.Principal, invoiceID, itemID int64) (*domain.Invoice, error)

	// AddEntriesToInvoice bills time entries on a draft invoice at the project's hourly rate
	AddEntriesToInvoice(ctx context.Context, caller domain.Principal, invoiceID int64, entryIDs []int64) (*domain.Invoice, error)

	SetTaxAndDiscount(ctx context.Context, caller domain.Principal, invoiceID int64, taxRate decimal.NullDecimal, discount decimal.Decimal) (*domain.Invoice, error)

	// Send moves a draft to SENT
	Send(ctx context.Context, caller domain.Principal, invoiceID int64) (*domain.Invoice, error)
	// MarkViewed moves a sent invoice to VIEWED
	MarkViewed(ctx context.Context, caller domain.Principal, invoiceID int64) (*domain.Invoice, error)
	// MarkPaid records a completed payment for the outstanding amount
	MarkPaid(ctx context.Context, caller domain.Principal, invoiceID int64, method domain.PaymentMethod, paidDate time.Time) (*domain.Invoice, error)
	Cancel(ctx context.Context, caller domain.Principal, invoiceID int64) (*domain.Invoice, error)
	Delete(ctx context.Context, caller domain.Principal, invoiceID int64) error

	// CheckOverdue marks the caller's sent or viewed invoices OVERDUE once past due with money owed
	CheckOverdue(ctx context.Context, caller domain.Principal) ([]*domain.Invoice, error)

	// Recalculate reconciles and saves an invoice
	Recalculate(ctx context.Context, caller domain.Principal, invoiceID int64) (*domain.Invoice, error)

	GetInvoice(ctx context.Context, caller domain.Principal, id int64) (*domain.Invoice, error)
	GetInvoiceByNumber(ctx context.Context, caller domain.Principal, number string) (*domain.Invoice, error)
	ListInvoices(ctx context.Context, caller domain.Principal, projectID *int64, status *domain.InvoiceStatus) ([]*domain.Invoice, error)
}

type invoiceService struct {
	invoiceRepo repository.InvoiceRepository
	entryRepo   repository.TimeEntryRepository
	projectRepo repository.ProjectRepository
	ledger      *billing.Ledger
	clock       clock.Clock
	defaults    InvoiceDefaults
	log         zerolog.Logger
}

// NewInvoiceService creates a new invoice service
func NewInvoiceService(
	invoiceRepo repository.InvoiceRepository,
	entryRepo repository.TimeEntryRepository,
	projectRepo repository.ProjectRepository,
	ledger *billing.Ledger,
	clk clock.Clock,
	defaults InvoiceDefaults,
) InvoiceService {
	return &invoiceService{
		invoiceRepo: invoiceRepo,
		entryRepo:   entryRepo,
		projectRepo: projectRepo,
		ledger:      ledger,
		clock:       clk,
		defaults:    defaults,
		log:         logger.WithComponent("invoice_service"),
	}
}

func (s *invoiceService) CreateDraft(ctx context.Context, caller domain.Principal, opts DraftOptions) (*domain.Invoice, error) {
	if _, err := ownedProject(ctx, s.projectRepo, caller, opts.ProjectID); err != nil {
		return nil, err
	}

	issueDate := opts.IssueDate
	if issueDate.IsZero() {
		issueDate = s.clock.Now()
	}
	issueDate = domain.StartOfDay(issueDate)

	dueDays := s.defaults.DueDays
	if opts.DueDays != nil {
		dueDays = *opts.DueDays
	}
	dueDate := issueDate.AddDate(0, 0, dueDays)

	number, err := s.invoiceRepo.GetNextInvoiceNumber(ctx, s.defaults.NumberPrefix, issueDate.Year())
	if err != nil {
		return nil, fmt.Errorf("failed to generate invoice number: %w", err)
	}

	invoice := domain.NewInvoice(number, opts.ProjectID, issueDate, &dueDate)
	invoice.Notes = opts.Notes
	invoice.Discount = opts.Discount
	invoice.TaxRate = opts.TaxRate
	if !invoice.TaxRate.Valid && s.defaults.TaxRate.IsPositive() {
		invoice.TaxRate = decimal.NewNullDecimal(s.defaults.TaxRate)
	}
	invoice.Currency = strings.ToUpper(opts.Currency)
	if invoice.Currency == "" {
		invoice.Currency = s.defaults.Currency
	}

	billing.Reconcile(invoice, s.clock.Now())
	if err := invoice.Validate(); err != nil {
		return nil, err
	}

	if err := s.invoiceRepo.Create(ctx, invoice); err != nil {
		return nil, err
	}

	s.log.Debug().Str("invoice", invoice.InvoiceNumber).Int64("project_id", invoice.ProjectID).Msg("Created draft invoice")
	return invoice, nil
}

func (s *invoiceService) AddLineItem(ctx context.Context, caller domain.Principal, invoiceID int64, item domain.InvoiceLineItem) (*domain.Invoice, error) {
	return s.mutate(ctx, caller, invoiceID, func(invoice *domain.Invoice, _ *domain.Project) error {
		return billing.AddLineItem(invoice, item, s.clock.Now())
	})
}

func (s *invoiceService) UpdateLineItem(ctx context.Context, caller domain.Principal, invoiceID, itemID int64, changes billing.LineItemUpdate) (*domain.Invoice, error) {
	return s.mutate(ctx, caller, invoiceID, func(invoice *domain.Invoice, _ *domain.Project) error {
		idx, ok := invoice.LineItemIndex(itemID)
		if !ok {
			return fmt.Errorf("line item %d: %w", itemID, billing.ErrLineItemNotFound)
		}
		return billing.UpdateLineItem(invoice, idx, changes, s.clock.Now())
	})
}

func (s *invoiceService) RemoveLineItem(ctx context.Context, caller domain.Principal, invoiceID, itemID int64) (*domain.Invoice, error) {
	var released *int64
	invoice, err := s.mutate(ctx, caller, invoiceID, func(invoice *domain.Invoice, _ *domain.Project) error {
		idx, ok := invoice.LineItemIndex(itemID)
		if !ok {
			return fmt.Errorf("line item %d: %w", itemID, billing.ErrLineItemNotFound)
		}
		removed, err := billing.RemoveLineItem(invoice, idx, s.clock.Now())
		released = removed.EntryID
		return err
	})
	if err != nil {
		return nil, err
	}

	if released != nil {
		if err := s.entryRepo.ReleaseBilled(ctx, []int64{*released}); err != nil {
			return nil, fmt.Errorf("line item removed but entry %d is still billed: %w", *released, err)
		}
	}
	return invoice, nil
}

func (s *invoiceService) AddEntriesToInvoice(ctx context.Context, caller domain.Principal, invoiceID int64, entryIDs []int64) (*domain.Invoice, error) {
	invoice, project, err := ownedInvoice(ctx, s.invoiceRepo, s.projectRepo, caller, invoiceID)
	if err != nil {
		return nil, err
	}
	if !invoice.CanEdit() {
		return nil, fmt.Errorf("invoice %s is %s: %w", invoice.InvoiceNumber, invoice.Status, billing.ErrInvoiceLocked)
	}

	entries := make([]*domain.TimeEntry, 0, len(entryIDs))
	items := make([]domain.InvoiceLineItem, 0, len(entryIDs))
	for _, id := range entryIDs {
		entry, err := s.entryRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		item, err := billing.EntryLineItem(project, entry)
		if err != nil {
			return nil, err
		}
		if err := item.Validate(); err != nil {
			return nil, fmt.Errorf("entry %d: %v: %w", id, err, billing.ErrInvalidLineItem)
		}
		entries = append(entries, entry)
		items = append(items, item)
	}

	if err := billing.MarkBilled(caller, entries, invoice); err != nil {
		return nil, err
	}
	for _, item := range items {
		if err := billing.AddLineItem(invoice, item, s.clock.Now()); err != nil {
			return nil, err
		}
	}

	if err := s.entryRepo.MarkBilled(ctx, entries); err != nil {
		return nil, err
	}
	if err := s.invoiceRepo.Save(ctx, invoice); err != nil {
		if releaseErr := s.entryRepo.ReleaseBilled(ctx, entryIDs); releaseErr != nil {
			s.log.Error().Err(releaseErr).Ints64("entry_ids", entryIDs).Msg("Failed to release entries after invoice save failed")
		}
		return nil, err
	}

	s.log.Debug().Str("invoice", invoice.InvoiceNumber).Int("entries", len(entries)).Msg("Billed time entries")
	return invoice, nil
}

func (s *invoiceService) SetTaxAndDiscount(ctx context.Context, caller domain.Principal, invoiceID int64, taxRate decimal.NullDecimal, discount decimal.Decimal) (*domain.Invoice, error) {
	return s.mutate(ctx, caller, invoiceID, func(invoice *domain.Invoice, _ *domain.Project) error {
		return billing.SetTaxAndDiscount(invoice, taxRate, discount, s.clock.Now())
	})
}

func (s *invoiceService) Send(ctx context.Context, caller domain.Principal, invoiceID int64) (*domain.Invoice, error) {
	return s.mutate(ctx, caller, invoiceID, func(invoice *domain.Invoice, _ *domain.Project) error {
		if invoice.Status != domain.InvoiceStatusDraft {
			return transitionError(invoice, domain.InvoiceStatusSent)
		}

		today := s.clock.Now()
		billing.Reconcile(invoice, today)
		if len(invoice.LineItems) == 0 && invoice.Amount.IsZero() {
			return fmt.Errorf("invoice %s: %w", invoice.InvoiceNumber, ErrEmptyInvoice)
		}

		sent := domain.StartOfDay(today)
		invoice.Status = domain.InvoiceStatusSent
		invoice.SentDate = &sent
		billing.Reconcile(invoice, today)
		return nil
	})
}

func (s *invoiceService) MarkViewed(ctx context.Context, caller domain.Principal, invoiceID int64) (*domain.Invoice, error) {
	return s.mutate(ctx, caller, invoiceID, func(invoice *domain.Invoice, _ *domain.Project) error {
		if invoice.Status != domain.InvoiceStatusSent {
			return transitionError(invoice, domain.InvoiceStatusViewed)
		}
		invoice.Status = domain.InvoiceStatusViewed
		return nil
	})
}

func (s *invoiceService) MarkPaid(ctx context.Context, caller domain.Principal, invoiceID int64, method domain.PaymentMethod, paidDate time.Time) (*domain.Invoice, error) {
	return s.mutate(ctx, caller, invoiceID, func(invoice *domain.Invoice, _ *domain.Project) error {
		switch invoice.Status {
		case domain.InvoiceStatusDraft, domain.InvoiceStatusPaid, domain.InvoiceStatusCancelled:
			return transitionError(invoice, domain.InvoiceStatusPaid)
		}

		billing.ComputeAmounts(invoice)
		if !invoice.AmountDue.IsPositive() {
			return fmt.Errorf("invoice %s: %w", invoice.InvoiceNumber, ErrNothingDue)
		}

		if paidDate.IsZero() {
			paidDate = s.clock.Now()
		}
		payment := domain.NewPayment(invoice.AmountDue, method, domain.StartOfDay(paidDate))
		if err := s.ledger.AddPayment(invoice, payment); err != nil {
			return err
		}

		paid := domain.StartOfDay(paidDate)
		invoice.PaidDate = &paid
		return nil
	})
}

func (s *invoiceService) Cancel(ctx context.Context, caller domain.Principal, invoiceID int64) (*domain.Invoice, error) {
	invoice, err := s.mutate(ctx, caller, invoiceID, func(invoice *domain.Invoice, _ *domain.Project) error {
		switch invoice.Status {
		case domain.InvoiceStatusPaid, domain.InvoiceStatusCancelled:
			return transitionError(invoice, domain.InvoiceStatusCancelled)
		}
		billing.ComputeAmounts(invoice)
		if invoice.AmountPaid.IsPositive() {
			return fmt.Errorf("invoice %s: %w", invoice.InvoiceNumber, ErrInvoiceHasPayments)
		}
		invoice.Status = domain.InvoiceStatusCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Time billed on a cancelled invoice can be billed again
	if ids := billedEntryIDs(invoice); len(ids) > 0 {
		if err := s.entryRepo.ReleaseBilled(ctx, ids); err != nil {
			s.log.Error().Err(err).Str("invoice", invoice.InvoiceNumber).Msg("Failed to release entries of cancelled invoice")
			return invoice, err
		}
	}
	return invoice, nil
}

func (s *invoiceService) Delete(ctx context.Context, caller domain.Principal, invoiceID int64) error {
	invoice, _, err := ownedInvoice(ctx, s.invoiceRepo, s.projectRepo, caller, invoiceID)
	if err != nil {
		return err
	}
	if !invoice.CanDelete() {
		return fmt.Errorf("invoice %s is %s: %w", invoice.InvoiceNumber, invoice.Status, billing.ErrInvoiceLocked)
	}

	if err := s.invoiceRepo.Delete(ctx, invoice.ID); err != nil {
		return err
	}

	s.log.Debug().Str("invoice", invoice.InvoiceNumber).Msg("Deleted invoice")
	return nil
}

func (s *invoiceService) CheckOverdue(ctx context.Context, caller domain.Principal) ([]*domain.Invoice, error) {
	today := s.clock.Now()
	overdue := make([]*domain.Invoice, 0)

	for _, status := range []domain.InvoiceStatus{domain.InvoiceStatusSent, domain.InvoiceStatusViewed} {
		invoices, err := s.ListInvoices(ctx, caller, nil, &status)
		if err != nil {
			return nil, err
		}

		for _, invoice := range invoices {
			billing.ComputeAmounts(invoice)
			if !invoice.IsOverdue(today) {
				continue
			}
			invoice.Status = domain.InvoiceStatusOverdue
			if err := s.invoiceRepo.Save(ctx, invoice); err != nil {
				return overdue, err
			}
			overdue = append(overdue, invoice)
		}
	}

	if len(overdue) > 0 {
		s.log.Info().Int("count", len(overdue)).Msg("Marked invoices overdue")
	}
	return overdue, nil
}

func (s *invoiceService) Recalculate(ctx context.Context, caller domain.Principal, invoiceID int64) (*domain.Invoice, error) {
	return s.mutate(ctx, caller, invoiceID, func(invoice *domain.Invoice, _ *domain.Project) error {
		return nil
	})
}

func (s *invoiceService) GetInvoice(ctx context.Context, caller domain.Principal, id int64) (*domain.Invoice, error) {
	invoice, _, err := ownedInvoice(ctx, s.invoiceRepo, s.projectRepo, caller, id)
	return invoice, err
}

func (s *invoiceService) GetInvoiceByNumber(ctx context.Context, caller domain.Principal, number string) (*domain.Invoice, error) {
	invoice, err := s.invoiceRepo.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if _, err := ownedProject(ctx, s.projectRepo, caller, invoice.ProjectID); err != nil {
		return nil, fmt.Errorf("invoice %s: %w", number, ErrNotFound)
	}
	return invoice, nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, caller domain.Principal, projectID *int64, status *domain.InvoiceStatus) ([]*domain.Invoice, error) {
	return s.invoiceRepo.List(ctx, repository.InvoiceFilter{
		OwnerID:   &caller.UserID,
		ProjectID: projectID,
		Status:    status,
	})
}

// mutate loads an owned invoice, applies fn, reconciles and saves.
// Nothing is saved when fn fails.
func (s *invoiceService) mutate(
	ctx context.Context,
	caller domain.Principal,
	invoiceID int64,
	fn func(*domain.Invoice, *domain.Project) error,
) (*domain.Invoice, error) {
	invoice, project, err := ownedInvoice(ctx, s.invoiceRepo, s.projectRepo, caller, invoiceID)
	if err != nil {
		return nil, err
	}

	before := invoice.Status
	if err := fn(invoice, project); err != nil {
		if billing.IsPrecondition(err) {
			s.log.Warn().Err(err).Str("invoice", invoice.InvoiceNumber).Msg("Rejected invoice change")
		}
		return nil, err
	}
	billing.Reconcile(invoice, s.clock.Now())

	if err := s.invoiceRepo.Save(ctx, invoice); err != nil {
		s.log.Error().Err(err).Str("invoice", invoice.InvoiceNumber).Msg("Failed to save invoice")
		return nil, err
	}

	if invoice.Status != before {
		s.log.Debug().
			Str("invoice", invoice.InvoiceNumber).
			Str("from", string(before)).
			Str("to", string(invoice.Status)).
			Msg("Invoice status changed")
	}
	return invoice, nil
}

func billedEntryIDs(invoice *domain.Invoice) []int64 {
	ids := make([]int64, 0)
	for _, item := range invoice.LineItems {
		if item.EntryID != nil {
			ids = append(ids, *item.EntryID)
		}
	}
	return ids
}
