package service

import (
	"context"

	"github.com/andy/tally/internal/billing"
	"github.com/andy/tally/internal/clock"
	"github.com/andy/tally/internal/domain"
	"github.com/andy/tally/internal/repository"
)

// BudgetService summarizes project budgets
type BudgetService interface {
	Summarize(ctx context.Context, caller domain.Principal, projectID int64) (*billing.BudgetSummary, error)
}

type budgetService struct {
	projectRepo repository.ProjectRepository
	invoiceRepo repository.InvoiceRepository
	entryRepo   repository.TimeEntryRepository
	clock       clock.Clock
}

// NewBudgetService creates a new budget service
func NewBudgetService(
	projectRepo repository.ProjectRepository,
	invoiceRepo repository.InvoiceRepository,
	entryRepo repository.TimeEntryRepository,
	clk clock.Clock,
) BudgetService {
	return &budgetService{
		projectRepo: projectRepo,
		invoiceRepo: invoiceRepo,
		entryRepo:   entryRepo,
		clock:       clk,
	}
}

func (s *budgetService) Summarize(ctx context.Context, caller domain.Principal, projectID int64) (*billing.BudgetSummary, error) {
	project, err := ownedProject(ctx, s.projectRepo, caller, projectID)
	if err != nil {
		return nil, err
	}

	invoices, err := s.invoiceRepo.List(ctx, repository.InvoiceFilter{ProjectID: &projectID})
	if err != nil {
		return nil, err
	}

	entries, err := s.entryRepo.List(ctx, repository.EntryFilter{ProjectID: &projectID, IncludeBilled: true})
	if err != nil {
		return nil, err
	}

	summary := billing.Summarize(project, invoices, entries, s.clock.Now())
	return &summary, nil
}
