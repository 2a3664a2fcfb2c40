package service

import (
	"context"
	"fmt"
	"time"

	"github.com/andy/tally/internal/billing"
	"github.com/andy/tally/internal/domain"
	"github.com/andy/tally/internal/logger"
	"github.com/andy/tally/internal/repository"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// EntryInput describes a new time entry
type EntryInput struct {
	ProjectID   int64
	Description string
	Start       *time.Time
	End         *time.Time
	NonBillable bool
}

// EntryUpdate holds the fields to change; nil fields are left alone
type EntryUpdate struct {
	ProjectID   *int64
	Description *string
	Start       *time.Time
	End         *time.Time
	Billable    *bool
}

// UnbilledReport is the billable time of a project not yet on an invoice
type UnbilledReport struct {
	Project *domain.Project
	Entries []*domain.TimeEntry
	Hours   decimal.Decimal
	Amount  decimal.Decimal
}

// EntryService records time and tracks what has been billed
type EntryService interface {
	Record(ctx context.Context, caller domain.Principal, in EntryInput) (*domain.TimeEntry, error)
	// Edit changes an unbilled entry and records an audit trail
	Edit(ctx context.Context, caller domain.Principal, entryID int64, changes EntryUpdate, reason string) (*domain.TimeEntry, error)
	Delete(ctx context.Context, caller domain.Principal, entryID int64, reason string) error
	// MarkBilled links entries to an invoice without adding line items
	MarkBilled(ctx context.Context, caller domain.Principal, invoiceID int64, entryIDs []int64) error
	Unbilled(ctx context.Context, caller domain.Principal, projectID int64) (*UnbilledReport, error)
	List(ctx context.Context, caller domain.Principal, projectID *int64, start, end *time.Time, includeBilled bool) ([]*domain.TimeEntry, error)
	History(ctx context.Context, caller domain.Principal, entryID int64) ([]*domain.EntryHistory, error)
}

type entryService struct {
	entryRepo   repository.TimeEntryRepository
	projectRepo repository.ProjectRepository
	invoiceRepo repository.InvoiceRepository
	log         zerolog.Logger
}

// NewEntryService creates a new entry service
func NewEntryService(
	entryRepo repository.TimeEntryRepository,
	projectRepo repository.ProjectRepository,
	invoiceRepo repository.InvoiceRepository,
) EntryService {
	return &entryService{
		entryRepo:   entryRepo,
		projectRepo: projectRepo,
		invoiceRepo: invoiceRepo,
		log:         logger.WithComponent("entry_service"),
	}
}

func (s *entryService) Record(ctx context.Context, caller domain.Principal, in EntryInput) (*domain.TimeEntry, error) {
	if _, err := ownedProject(ctx, s.projectRepo, caller, in.ProjectID); err != nil {
		return nil, err
	}

	entry := domain.NewTimeEntry(in.ProjectID, caller.UserID, in.Description)
	entry.StartTime = in.Start
	entry.EndTime = in.End
	entry.Billable = !in.NonBillable
	billing.RecordDuration(entry)

	if err := s.entryRepo.Create(ctx, entry); err != nil {
		return nil, err
	}

	s.log.Debug().Int64("entry_id", entry.ID).Str("hours", entry.Hours.String()).Msg("Recorded time entry")
	return entry, nil
}

func (s *entryService) Edit(ctx context.Context, caller domain.Principal, entryID int64, changes EntryUpdate, reason string) (*domain.TimeEntry, error) {
	entry, err := s.owned(ctx, caller, entryID)
	if err != nil {
		return nil, err
	}
	if entry.IsLocked() {
		return nil, fmt.Errorf("entry %d: %w", entryID, billing.ErrEntryAlreadyBilled)
	}

	if changes.ProjectID != nil && *changes.ProjectID != entry.ProjectID {
		if _, err := ownedProject(ctx, s.projectRepo, caller, *changes.ProjectID); err != nil {
			return nil, err
		}
		entry.ProjectID = *changes.ProjectID
	}
	if changes.Description != nil {
		entry.Description = *changes.Description
	}
	if changes.Start != nil {
		entry.StartTime = changes.Start
	}
	if changes.End != nil {
		entry.EndTime = changes.End
	}
	if changes.Billable != nil {
		entry.Billable = *changes.Billable
	}
	billing.RecordDuration(entry)

	if err := s.entryRepo.Update(ctx, entry, caller, reason); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *entryService) Delete(ctx context.Context, caller domain.Principal, entryID int64, reason string) error {
	entry, err := s.owned(ctx, caller, entryID)
	if err != nil {
		return err
	}
	if entry.IsLocked() {
		return fmt.Errorf("entry %d: %w", entryID, billing.ErrEntryAlreadyBilled)
	}
	return s.entryRepo.SoftDelete(ctx, entryID, caller, reason)
}

func (s *entryService) MarkBilled(ctx context.Context, caller domain.Principal, invoiceID int64, entryIDs []int64) error {
	invoice, _, err := ownedInvoice(ctx, s.invoiceRepo, s.projectRepo, caller, invoiceID)
	if err != nil {
		return err
	}

	entries := make([]*domain.TimeEntry, 0, len(entryIDs))
	for _, id := range entryIDs {
		entry, err := s.entryRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		entries = append(entries, entry)
	}

	if err := billing.MarkBilled(caller, entries, invoice); err != nil {
		return err
	}
	return s.entryRepo.MarkBilled(ctx, entries)
}

func (s *entryService) Unbilled(ctx context.Context, caller domain.Principal, projectID int64) (*UnbilledReport, error) {
	project, err := ownedProject(ctx, s.projectRepo, caller, projectID)
	if err != nil {
		return nil, err
	}

	entries, err := s.entryRepo.List(ctx, repository.EntryFilter{ProjectID: &projectID})
	if err != nil {
		return nil, err
	}

	unbilled := make([]*domain.TimeEntry, 0, len(entries))
	for _, e := range entries {
		if e.IsUnbilled() {
			unbilled = append(unbilled, e)
		}
	}

	return &UnbilledReport{
		Project: project,
		Entries: unbilled,
		Hours:   billing.UnbilledHours(project, unbilled),
		Amount:  billing.UnbilledAmount(project, unbilled),
	}, nil
}

func (s *entryService) List(ctx context.Context, caller domain.Principal, projectID *int64, start, end *time.Time, includeBilled bool) ([]*domain.TimeEntry, error) {
	if projectID != nil {
		if _, err := ownedProject(ctx, s.projectRepo, caller, *projectID); err != nil {
			return nil, err
		}
	}

	return s.entryRepo.List(ctx, repository.EntryFilter{
		ProjectID:     projectID,
		UserID:        &caller.UserID,
		Start:         start,
		End:           end,
		IncludeBilled: includeBilled,
	})
}

func (s *entryService) History(ctx context.Context, caller domain.Principal, entryID int64) ([]*domain.EntryHistory, error) {
	if _, err := s.owned(ctx, caller, entryID); err != nil {
		return nil, err
	}
	return s.entryRepo.GetHistory(ctx, entryID)
}

func (s *entryService) owned(ctx context.Context, caller domain.Principal, entryID int64) (*domain.TimeEntry, error) {
	entry, err := s.entryRepo.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.UserID != caller.UserID || entry.IsDeleted {
		return nil, fmt.Errorf("time entry %d: %w", entryID, ErrNotFound)
	}
	return entry, nil
}
