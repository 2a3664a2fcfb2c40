package service

import (
	"context"
	"fmt"
	"time"

	"github.com/andy/tally/internal/billing"
	"github.com/andy/tally/internal/clock"
	"github.com/andy/tally/internal/domain"
	"github.com/andy/tally/internal/logger"
	"github.com/andy/tally/internal/repository"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PaymentInput describes a payment to record. Empty status means COMPLETED,
// empty reference gets a generated one, zero date means today.
type PaymentInput struct {
	Amount         decimal.Decimal
	Method         domain.PaymentMethod
	Date           time.Time
	Status         domain.PaymentStatus
	TransactionRef string
	Notes          string
}

// PaymentService applies payments to invoices on behalf of a caller
type PaymentService interface {
	AddPayment(ctx context.Context, caller domain.Principal, invoiceID int64, in PaymentInput) (*domain.Invoice, error)
	// RemovePayment refuses to drop a completed payment from a PAID invoice
	RemovePayment(ctx context.Context, caller domain.Principal, paymentID int64) (*domain.Invoice, error)
	// UpdatePayment changes a payment; a non-nil moveTo moves it to another invoice
	UpdatePayment(ctx context.Context, caller domain.Principal, paymentID int64, changes billing.PaymentUpdate, moveTo *int64) (domain.Payment, error)
	// RefundPayment marks a completed payment REFUNDED
	RefundPayment(ctx context.Context, caller domain.Principal, paymentID int64) (*domain.Invoice, error)
	ListPayments(ctx context.Context, caller domain.Principal, invoiceID int64) ([]domain.Payment, error)
}

type paymentService struct {
	invoiceRepo repository.InvoiceRepository
	paymentRepo repository.PaymentRepository
	projectRepo repository.ProjectRepository
	ledger      *billing.Ledger
	clock       clock.Clock
	log         zerolog.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	invoiceRepo repository.InvoiceRepository,
	paymentRepo repository.PaymentRepository,
	projectRepo repository.ProjectRepository,
	ledger *billing.Ledger,
	clk clock.Clock,
) PaymentService {
	return &paymentService{
		invoiceRepo: invoiceRepo,
		paymentRepo: paymentRepo,
		projectRepo: projectRepo,
		ledger:      ledger,
		clock:       clk,
		log:         logger.WithComponent("payment_service"),
	}
}

func (s *paymentService) AddPayment(ctx context.Context, caller domain.Principal, invoiceID int64, in PaymentInput) (*domain.Invoice, error) {
	invoice, _, err := ownedInvoice(ctx, s.invoiceRepo, s.projectRepo, caller, invoiceID)
	if err != nil {
		return nil, err
	}

	date := in.Date
	if date.IsZero() {
		date = s.clock.Now()
	}
	payment := domain.NewPayment(in.Amount, in.Method, domain.StartOfDay(date))
	if in.Status != "" {
		payment.Status = in.Status
	}
	if in.TransactionRef != "" {
		payment.TransactionRef = in.TransactionRef
	}
	payment.Notes = in.Notes

	if err := s.ledger.AddPayment(invoice, payment); err != nil {
		return nil, err
	}
	if err := s.invoiceRepo.Save(ctx, invoice); err != nil {
		s.log.Error().Err(err).Str("invoice", invoice.InvoiceNumber).Msg("Failed to save payment")
		return nil, err
	}

	return invoice, nil
}

func (s *paymentService) RemovePayment(ctx context.Context, caller domain.Principal, paymentID int64) (*domain.Invoice, error) {
	invoice, payment, err := s.load(ctx, caller, paymentID)
	if err != nil {
		return nil, err
	}
	if err := checkRemovable(invoice, payment); err != nil {
		return nil, err
	}

	if _, err := s.ledger.RemovePayment(invoice, paymentID); err != nil {
		return nil, err
	}
	if err := s.invoiceRepo.Save(ctx, invoice); err != nil {
		return nil, err
	}

	return invoice, nil
}

func (s *paymentService) UpdatePayment(ctx context.Context, caller domain.Principal, paymentID int64, changes billing.PaymentUpdate, moveTo *int64) (domain.Payment, error) {
	src, payment, err := s.load(ctx, caller, paymentID)
	if err != nil {
		return domain.Payment{}, err
	}

	if moveTo == nil || *moveTo == src.ID {
		if err := checkUpdatable(src, payment, changes); err != nil {
			return domain.Payment{}, err
		}
		updated, err := s.ledger.UpdatePayment(src, nil, paymentID, changes)
		if err != nil {
			return domain.Payment{}, err
		}
		if err := s.invoiceRepo.Save(ctx, src); err != nil {
			return domain.Payment{}, err
		}
		return updated, nil
	}

	if err := checkRemovable(src, payment); err != nil {
		return domain.Payment{}, err
	}
	dst, _, err := ownedInvoice(ctx, s.invoiceRepo, s.projectRepo, caller, *moveTo)
	if err != nil {
		return domain.Payment{}, err
	}

	moved, err := s.ledger.UpdatePayment(src, dst, paymentID, changes)
	if err != nil {
		return domain.Payment{}, err
	}
	if err := s.invoiceRepo.Save(ctx, src, dst); err != nil {
		return domain.Payment{}, err
	}

	return moved, nil
}

func (s *paymentService) RefundPayment(ctx context.Context, caller domain.Principal, paymentID int64) (*domain.Invoice, error) {
	invoice, payment, err := s.load(ctx, caller, paymentID)
	if err != nil {
		return nil, err
	}
	if !payment.IsCompleted() {
		return nil, fmt.Errorf("payment %d is %s: %w", paymentID, payment.Status, ErrNotRefundable)
	}

	refunded := domain.PaymentStatusRefunded
	note := "refunded " + s.clock.Now().Format("2006-01-02")
	if payment.Notes != "" {
		note = payment.Notes + "; " + note
	}
	if _, err := s.ledger.UpdatePayment(invoice, nil, paymentID, billing.PaymentUpdate{Status: &refunded, Notes: &note}); err != nil {
		return nil, err
	}
	if err := s.invoiceRepo.Save(ctx, invoice); err != nil {
		return nil, err
	}

	s.log.Info().Int64("payment_id", paymentID).Str("invoice", invoice.InvoiceNumber).Msg("Refunded payment")
	return invoice, nil
}

func (s *paymentService) ListPayments(ctx context.Context, caller domain.Principal, invoiceID int64) ([]domain.Payment, error) {
	invoice, _, err := ownedInvoice(ctx, s.invoiceRepo, s.projectRepo, caller, invoiceID)
	if err != nil {
		return nil, err
	}
	return invoice.Payments, nil
}

// load finds the payment's invoice and checks the caller owns it
func (s *paymentService) load(ctx context.Context, caller domain.Principal, paymentID int64) (*domain.Invoice, domain.Payment, error) {
	stored, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, domain.Payment{}, err
	}

	invoice, _, err := ownedInvoice(ctx, s.invoiceRepo, s.projectRepo, caller, stored.InvoiceID)
	if err != nil {
		return nil, domain.Payment{}, err
	}

	idx, ok := invoice.PaymentIndex(paymentID)
	if !ok {
		return nil, domain.Payment{}, fmt.Errorf("payment %d: %w", paymentID, ErrNotFound)
	}
	return invoice, invoice.Payments[idx], nil
}

// checkRemovable enforces that a PAID invoice keeps its completed payments
func checkRemovable(invoice *domain.Invoice, payment domain.Payment) error {
	if invoice.Status == domain.InvoiceStatusPaid && payment.IsCompleted() {
		return fmt.Errorf("payment %d on %s: %w", payment.ID, invoice.InvoiceNumber, ErrPaidInvoicePaymentLocked)
	}
	return nil
}

// checkUpdatable keeps a PAID invoice's completed payment from being voided or reduced in place
func checkUpdatable(invoice *domain.Invoice, payment domain.Payment, changes billing.PaymentUpdate) error {
	if invoice.Status != domain.InvoiceStatusPaid || !payment.IsCompleted() {
		return nil
	}
	stillCompleted := changes.Status == nil || *changes.Status == domain.PaymentStatusCompleted
	reduced := changes.Amount != nil && changes.Amount.LessThan(payment.Amount)
	if !stillCompleted || reduced {
		return fmt.Errorf("payment %d on %s: %w", payment.ID, invoice.InvoiceNumber, ErrPaidInvoicePaymentLocked)
	}
	return nil
}
