package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/andy/tally/internal/db"
	"github.com/andy/tally/internal/domain"
)

const paymentColumns = `id, invoice_id, amount, method, payment_date, transaction_ref, status, notes, created_at, updated_at`

// PaymentRepo is a SQLite implementation of PaymentRepository
type PaymentRepo struct {
	db *db.DB
}

// NewPaymentRepo creates a new PaymentRepo
func NewPaymentRepo(database *db.DB) *PaymentRepo {
	return &PaymentRepo{db: database}
}

// GetByID retrieves a payment by ID
func (r *PaymentRepo) GetByID(ctx context.Context, id int64) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = ?`

	payment, err := scanPayment(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("payment %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return payment, nil
}

// ListByInvoice retrieves an invoice's payments in the order they were recorded
func (r *PaymentRepo) ListByInvoice(ctx context.Context, invoiceID int64) ([]*domain.Payment, error) {
	return listPayments(ctx, r.db, invoiceID)
}

func listPayments(ctx context.Context, database *db.DB, invoiceID int64) ([]*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE invoice_id = ? ORDER BY id`

	rows, err := database.QueryContext(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	payments := make([]*domain.Payment, 0)
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, payment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payments: %w", err)
	}

	return payments, nil
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	payment := &domain.Payment{}
	var method, status, date, createdAt, updatedAt string

	err := row.Scan(
		&payment.ID,
		&payment.InvoiceID,
		&payment.Amount,
		&method,
		&date,
		&payment.TransactionRef,
		&status,
		&payment.Notes,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	payment.Method = domain.PaymentMethod(method)
	payment.Status = domain.PaymentStatus(status)

	if payment.Date, err = parseTime(date); err != nil {
		return nil, fmt.Errorf("failed to parse payment_date: %w", err)
	}
	if err := parseTimestamps(createdAt, updatedAt, &payment.CreatedAt, &payment.UpdatedAt); err != nil {
		return nil, err
	}

	return payment, nil
}
