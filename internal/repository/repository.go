package repository

import (
	"context"
	"errors"
	"time"

	"github.com/andy/tally/internal/domain"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("not found")

	// ErrConcurrentUpdate is returned when an invoice changed since it was loaded
	ErrConcurrentUpdate = errors.New("invoice was modified by another operation")
)

// ProjectRepository manages project persistence
type ProjectRepository interface {
	Create(ctx context.Context, project *domain.Project) error
	GetByID(ctx context.Context, id int64) (*domain.Project, error)
	GetByName(ctx context.Context, ownerID int64, name string) (*domain.Project, error)
	List(ctx context.Context, ownerID int64, includeArchived bool) ([]*domain.Project, error)
	Update(ctx context.Context, project *domain.Project) error
	Archive(ctx context.Context, id int64) error
	Unarchive(ctx context.Context, id int64) error
}

// EntryFilter narrows TimeEntryRepository.List
type EntryFilter struct {
	ProjectID     *int64
	UserID        *int64
	Start         *time.Time
	End           *time.Time
	IncludeBilled bool
}

// TimeEntryRepository manages time entry persistence with audit trail
type TimeEntryRepository interface {
	Create(ctx context.Context, entry *domain.TimeEntry) error
	GetByID(ctx context.Context, id int64) (*domain.TimeEntry, error)
	Update(ctx context.Context, entry *domain.TimeEntry, changedBy domain.Principal, reason string) error // Creates audit records
	SoftDelete(ctx context.Context, id int64, changedBy domain.Principal, reason string) error
	List(ctx context.Context, filter EntryFilter) ([]*domain.TimeEntry, error)
	// MarkBilled persists the billed flag and invoice link of entries already marked in memory
	MarkBilled(ctx context.Context, entries []*domain.TimeEntry) error
	// ReleaseBilled unlinks entries from their invoice
	ReleaseBilled(ctx context.Context, entryIDs []int64) error
	GetHistory(ctx context.Context, entryID int64) ([]*domain.EntryHistory, error)
}

// InvoiceFilter narrows InvoiceRepository.List
type InvoiceFilter struct {
	OwnerID   *int64
	ProjectID *int64
	Status    *domain.InvoiceStatus
}

// InvoiceRepository persists the invoice aggregate: the invoice row, its line items and its payments
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *domain.Invoice) error
	GetByID(ctx context.Context, id int64) (*domain.Invoice, error)
	GetByNumber(ctx context.Context, number string) (*domain.Invoice, error)
	List(ctx context.Context, filter InvoiceFilter) ([]*domain.Invoice, error)
	// Save writes all given invoices in one transaction, failing with ErrConcurrentUpdate
	// if any of them changed since it was loaded
	Save(ctx context.Context, invoices ...*domain.Invoice) error
	Delete(ctx context.Context, id int64) error
	GetNextInvoiceNumber(ctx context.Context, prefix string, year int) (string, error)
}

// PaymentRepository reads payments; writes go through InvoiceRepository.Save
type PaymentRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Payment, error)
	ListByInvoice(ctx context.Context, invoiceID int64) ([]*domain.Payment, error)
}
