package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/andy/tally/internal/db"
	"github.com/andy/tally/internal/domain"
)

const invoiceColumns = `id, invoice_number, project_id, status, issue_date, due_date, currency,
	tax_rate, discount, subtotal, tax_amount, amount, amount_paid, amount_due,
	payment_method, sent_date, paid_date, notes, version, created_at, updated_at`

// InvoiceRepo is a SQLite implementation of InvoiceRepository
type InvoiceRepo struct {
	db *db.DB
}

// NewInvoiceRepo creates a new InvoiceRepo
func NewInvoiceRepo(database *db.DB) *InvoiceRepo {
	return &InvoiceRepo{db: database}
}

// Create inserts a new invoice together with its line items and payments
func (r *InvoiceRepo) Create(ctx context.Context, invoice *domain.Invoice) error {
	if err := invoice.Validate(); err != nil {
		return fmt.Errorf("invalid invoice: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO invoices (
			invoice_number, project_id, status, issue_date, due_date, currency,
			tax_rate, discount, subtotal, tax_amount, amount, amount_paid, amount_due,
			payment_method, sent_date, paid_date, notes, version, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`

	result, err := tx.ExecContext(ctx, query,
		invoice.InvoiceNumber,
		invoice.ProjectID,
		string(invoice.Status),
		invoice.IssueDate.Format(timeLayout),
		nullTime(invoice.DueDate),
		invoice.CurrencyOrDefault(),
		invoice.TaxRate,
		invoice.Discount,
		invoice.Subtotal,
		invoice.TaxAmount,
		invoice.Amount,
		invoice.AmountPaid,
		invoice.AmountDue,
		string(invoice.PaymentMethod),
		nullTime(invoice.SentDate),
		nullTime(invoice.PaidDate),
		invoice.Notes,
		invoice.CreatedAt.Format(timeLayout),
		invoice.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to create invoice: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get invoice ID: %w", err)
	}

	pending := &pendingIDs{}
	if err := r.syncChildren(ctx, tx, id, invoice, pending); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	invoice.ID = id
	invoice.Version = 1
	pending.apply(invoice, id)
	return nil
}

// GetByID retrieves an invoice with its line items and payments
func (r *InvoiceRepo) GetByID(ctx context.Context, id int64) (*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = ?`

	invoice, err := scanInvoice(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("invoice %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}

	if err := r.loadChildren(ctx, invoice); err != nil {
		return nil, err
	}
	return invoice, nil
}

// GetByNumber retrieves an invoice by invoice number
func (r *InvoiceRepo) GetByNumber(ctx context.Context, number string) (*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE invoice_number = ?`

	invoice, err := scanInvoice(r.db.QueryRowContext(ctx, query, number))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("invoice %s: %w", number, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}

	if err := r.loadChildren(ctx, invoice); err != nil {
		return nil, err
	}
	return invoice, nil
}

// List retrieves invoices with optional filters, newest first
func (r *InvoiceRepo) List(ctx context.Context, filter InvoiceFilter) ([]*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE 1=1`
	args := make([]any, 0)

	if filter.OwnerID != nil {
		query += " AND project_id IN (SELECT id FROM projects WHERE owner_id = ?)"
		args = append(args, *filter.OwnerID)
	}

	if filter.ProjectID != nil {
		query += " AND project_id = ?"
		args = append(args, *filter.ProjectID)
	}

	if filter.Status != nil {
		query += " AND status = ?"
		args = append(args, string(*filter.Status))
	}

	query += " ORDER BY issue_date DESC, id DESC"

	invoices, err := r.queryInvoices(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	// Children are loaded after the cursor is closed; the pool holds a single connection
	for _, invoice := range invoices {
		if err := r.loadChildren(ctx, invoice); err != nil {
			return nil, err
		}
	}

	return invoices, nil
}

func (r *InvoiceRepo) queryInvoices(ctx context.Context, query string, args ...any) ([]*domain.Invoice, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	invoices := make([]*domain.Invoice, 0)
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, invoice)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invoices: %w", err)
	}

	return invoices, nil
}

// Save writes the invoices, their line items and their payments in one transaction.
// Rows no longer present in an invoice's collections are deleted.
func (r *InvoiceRepo) Save(ctx context.Context, invoices ...*domain.Invoice) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	updatedAt := time.Now()
	pending := make([]*pendingIDs, len(invoices))
	for i, invoice := range invoices {
		if err := invoice.Validate(); err != nil {
			return fmt.Errorf("invalid invoice %s: %w", invoice.InvoiceNumber, err)
		}
		if err := r.updateRow(ctx, tx, invoice, updatedAt); err != nil {
			return err
		}

		pending[i] = &pendingIDs{}
		if err := r.syncChildren(ctx, tx, invoice.ID, invoice, pending[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	for i, invoice := range invoices {
		invoice.Version++
		invoice.UpdatedAt = updatedAt
		pending[i].apply(invoice, invoice.ID)
	}
	return nil
}

func (r *InvoiceRepo) updateRow(ctx context.Context, tx *sql.Tx, invoice *domain.Invoice, updatedAt time.Time) error {
	query := `
		UPDATE invoices
		SET project_id = ?, status = ?, issue_date = ?, due_date = ?, currency = ?,
		    tax_rate = ?, discount = ?, subtotal = ?, tax_amount = ?, amount = ?,
		    amount_paid = ?, amount_due = ?, payment_method = ?, sent_date = ?, paid_date = ?,
		    notes = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := tx.ExecContext(ctx, query,
		invoice.ProjectID,
		string(invoice.Status),
		invoice.IssueDate.Format(timeLayout),
		nullTime(invoice.DueDate),
		invoice.CurrencyOrDefault(),
		invoice.TaxRate,
		invoice.Discount,
		invoice.Subtotal,
		invoice.TaxAmount,
		invoice.Amount,
		invoice.AmountPaid,
		invoice.AmountDue,
		string(invoice.PaymentMethod),
		nullTime(invoice.SentDate),
		nullTime(invoice.PaidDate),
		invoice.Notes,
		updatedAt.Format(timeLayout),
		invoice.ID,
		invoice.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update invoice: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var current int64
	err = tx.QueryRowContext(ctx, "SELECT version FROM invoices WHERE id = ?", invoice.ID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("invoice %d: %w", invoice.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check invoice version: %w", err)
	}
	return fmt.Errorf("invoice %s at version %d, stored %d: %w", invoice.InvoiceNumber, invoice.Version, current, ErrConcurrentUpdate)
}

// Delete removes an invoice, its line items and payments, and releases its billed entries
func (r *InvoiceRepo) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	statements := []string{
		"UPDATE time_entries SET is_billed = 0, invoice_id = NULL, updated_at = ? WHERE invoice_id = ?",
		"DELETE FROM invoice_line_items WHERE invoice_id = ?",
		"DELETE FROM payments WHERE invoice_id = ?",
	}
	for i, stmt := range statements {
		args := []any{id}
		if i == 0 {
			args = []any{formatTime(), id}
		}
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("failed to delete invoice %d: %w", id, err)
		}
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM invoices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete invoice %d: %w", id, err)
	}
	if err := requireAffected(result, "invoice", id); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetNextInvoiceNumber generates the next invoice number in format "PREFIX-YEAR-SEQUENCE"
func (r *InvoiceRepo) GetNextInvoiceNumber(ctx context.Context, prefix string, year int) (string, error) {
	query := `
		SELECT invoice_number
		FROM invoices
		WHERE invoice_number LIKE ?
		ORDER BY length(invoice_number) DESC, invoice_number DESC
		LIMIT 1
	`

	pattern := fmt.Sprintf("%s-%d-%%", prefix, year)
	var lastNumber string

	err := r.db.QueryRowContext(ctx, query, pattern).Scan(&lastNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Sprintf("%s-%d-001", prefix, year), nil
		}
		return "", fmt.Errorf("failed to get last invoice number: %w", err)
	}

	// Format: PREFIX-YEAR-SEQUENCE (e.g., "INV-2026-005")
	var lastYear, lastSeq int
	if _, err := fmt.Sscanf(lastNumber, prefix+"-%d-%d", &lastYear, &lastSeq); err != nil {
		return fmt.Sprintf("%s-%d-001", prefix, year), nil
	}

	return fmt.Sprintf("%s-%d-%03d", prefix, year, lastSeq+1), nil
}

// loadChildren reads the line items and payments of an invoice
func (r *InvoiceRepo) loadChildren(ctx context.Context, invoice *domain.Invoice) error {
	items, err := r.lineItems(ctx, invoice.ID)
	if err != nil {
		return err
	}
	invoice.LineItems = items

	payments, err := listPayments(ctx, r.db, invoice.ID)
	if err != nil {
		return err
	}
	invoice.Payments = make([]domain.Payment, 0, len(payments))
	for _, p := range payments {
		invoice.Payments = append(invoice.Payments, *p)
	}
	return nil
}

func (r *InvoiceRepo) lineItems(ctx context.Context, invoiceID int64) ([]domain.InvoiceLineItem, error) {
	query := `
		SELECT id, invoice_id, entry_id, description, quantity, unit_price, amount
		FROM invoice_line_items
		WHERE invoice_id = ?
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get line items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.InvoiceLineItem, 0)
	for rows.Next() {
		var item domain.InvoiceLineItem
		var entryID sql.NullInt64

		err := rows.Scan(
			&item.ID,
			&item.InvoiceID,
			&entryID,
			&item.Description,
			&item.Quantity,
			&item.UnitPrice,
			&item.Amount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan line item: %w", err)
		}
		if entryID.Valid {
			id := entryID.Int64
			item.EntryID = &id
		}

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating line items: %w", err)
	}

	return items, nil
}

// pendingIDs collects row IDs assigned inside a transaction so they are only
// copied onto the invoice after commit
type pendingIDs struct {
	items    map[int]int64
	payments map[int]int64
}

func (p *pendingIDs) apply(invoice *domain.Invoice, invoiceID int64) {
	for i := range invoice.LineItems {
		if id, ok := p.items[i]; ok {
			invoice.LineItems[i].ID = id
		}
		invoice.LineItems[i].InvoiceID = invoiceID
	}
	for i := range invoice.Payments {
		if id, ok := p.payments[i]; ok {
			invoice.Payments[i].ID = id
		}
		invoice.Payments[i].InvoiceID = invoiceID
	}
}

func (r *InvoiceRepo) syncChildren(ctx context.Context, tx *sql.Tx, invoiceID int64, invoice *domain.Invoice, pending *pendingIDs) error {
	pending.items = make(map[int]int64)
	pending.payments = make(map[int]int64)

	keep := make([]int64, 0, len(invoice.LineItems))
	for _, item := range invoice.LineItems {
		if item.ID != 0 {
			keep = append(keep, item.ID)
		}
	}
	if err := deleteMissing(ctx, tx, "invoice_line_items", invoiceID, keep); err != nil {
		return err
	}

	for i, item := range invoice.LineItems {
		id, err := upsertLineItem(ctx, tx, invoiceID, item)
		if err != nil {
			return err
		}
		if item.ID == 0 {
			pending.items[i] = id
		}
	}

	keep = keep[:0]
	for _, p := range invoice.Payments {
		if p.ID != 0 {
			keep = append(keep, p.ID)
		}
	}
	if err := deleteMissing(ctx, tx, "payments", invoiceID, keep); err != nil {
		return err
	}

	for i, p := range invoice.Payments {
		id, err := upsertPayment(ctx, tx, invoiceID, p)
		if err != nil {
			return err
		}
		if p.ID == 0 {
			pending.payments[i] = id
		}
	}

	return nil
}

// deleteMissing removes the invoice's child rows whose IDs are not in keep
func deleteMissing(ctx context.Context, tx *sql.Tx, table string, invoiceID int64, keep []int64) error {
	query := "DELETE FROM " + table + " WHERE invoice_id = ?"
	args := []any{invoiceID}
	if len(keep) > 0 {
		placeholders, ids := inClause(keep)
		query += " AND id NOT IN (" + placeholders + ")"
		args = append(args, ids...)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to prune %s: %w", table, err)
	}
	return nil
}

func upsertLineItem(ctx context.Context, tx *sql.Tx, invoiceID int64, item domain.InvoiceLineItem) (int64, error) {
	if item.ID == 0 {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO invoice_line_items (invoice_id, entry_id, description, quantity, unit_price, amount)
			VALUES (?, ?, ?, ?, ?, ?)
		`, invoiceID, item.EntryID, item.Description, item.Quantity, item.UnitPrice, item.Amount)
		if err != nil {
			return 0, fmt.Errorf("failed to add line item: %w", err)
		}
		return result.LastInsertId()
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO invoice_line_items (id, invoice_id, entry_id, description, quantity, unit_price, amount)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			invoice_id = excluded.invoice_id,
			entry_id = excluded.entry_id,
			description = excluded.description,
			quantity = excluded.quantity,
			unit_price = excluded.unit_price,
			amount = excluded.amount
	`, item.ID, invoiceID, item.EntryID, item.Description, item.Quantity, item.UnitPrice, item.Amount)
	if err != nil {
		return 0, fmt.Errorf("failed to save line item %d: %w", item.ID, err)
	}
	return item.ID, nil
}

func upsertPayment(ctx context.Context, tx *sql.Tx, invoiceID int64, p domain.Payment) (int64, error) {
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	args := []any{
		invoiceID,
		p.Amount,
		string(p.Method),
		p.Date.Format(timeLayout),
		p.TransactionRef,
		string(p.Status),
		p.Notes,
		createdAt.Format(timeLayout),
		updatedAt.Format(timeLayout),
	}

	if p.ID == 0 {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO payments (invoice_id, amount, method, payment_date, transaction_ref, status, notes, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, args...)
		if err != nil {
			return 0, fmt.Errorf("failed to add payment: %w", err)
		}
		return result.LastInsertId()
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO payments (id, invoice_id, amount, method, payment_date, transaction_ref, status, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			invoice_id = excluded.invoice_id,
			amount = excluded.amount,
			method = excluded.method,
			payment_date = excluded.payment_date,
			transaction_ref = excluded.transaction_ref,
			status = excluded.status,
			notes = excluded.notes,
			updated_at = excluded.updated_at
	`, append([]any{p.ID}, args...)...)
	if err != nil {
		return 0, fmt.Errorf("failed to save payment %d: %w", p.ID, err)
	}
	return p.ID, nil
}

// scanInvoice reads one invoices row selected with invoiceColumns
func scanInvoice(row rowScanner) (*domain.Invoice, error) {
	invoice := &domain.Invoice{}
	var status, issueDate, method, createdAt, updatedAt string
	var dueDate, sentDate, paidDate sql.NullString

	err := row.Scan(
		&invoice.ID,
		&invoice.InvoiceNumber,
		&invoice.ProjectID,
		&status,
		&issueDate,
		&dueDate,
		&invoice.Currency,
		&invoice.TaxRate,
		&invoice.Discount,
		&invoice.Subtotal,
		&invoice.TaxAmount,
		&invoice.Amount,
		&invoice.AmountPaid,
		&invoice.AmountDue,
		&method,
		&sentDate,
		&paidDate,
		&invoice.Notes,
		&invoice.Version,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	invoice.Status = domain.InvoiceStatus(status)
	invoice.PaymentMethod = domain.PaymentMethod(method)

	if invoice.IssueDate, err = parseTime(issueDate); err != nil {
		return nil, fmt.Errorf("failed to parse issue_date: %w", err)
	}
	if invoice.DueDate, err = parseNullTime("due_date", dueDate); err != nil {
		return nil, err
	}
	if invoice.SentDate, err = parseNullTime("sent_date", sentDate); err != nil {
		return nil, err
	}
	if invoice.PaidDate, err = parseNullTime("paid_date", paidDate); err != nil {
		return nil, err
	}
	if err := parseTimestamps(createdAt, updatedAt, &invoice.CreatedAt, &invoice.UpdatedAt); err != nil {
		return nil, err
	}

	return invoice, nil
}
