package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/andy/tally/internal/db"
	"github.com/andy/tally/internal/domain"
)

const entryColumns = `id, project_id, user_id, description, start_time, end_time, duration_seconds,
	hours, is_billable, is_billed, invoice_id, is_deleted, created_at, updated_at`

// EntryRepo is a SQLite implementation of TimeEntryRepository
type EntryRepo struct {
	db *db.DB
}

// NewEntryRepo creates a new EntryRepo
func NewEntryRepo(database *db.DB) *EntryRepo {
	return &EntryRepo{db: database}
}

// Create inserts a new time entry into the database
func (r *EntryRepo) Create(ctx context.Context, entry *domain.TimeEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid time entry: %w", err)
	}

	query := `
		INSERT INTO time_entries (
			project_id, user_id, description, start_time, end_time, duration_seconds,
			hours, is_billable, is_billed, invoice_id, is_deleted, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		entry.ProjectID,
		entry.UserID,
		entry.Description,
		nullTime(entry.StartTime),
		nullTime(entry.EndTime),
		entry.DurationSeconds,
		entry.Hours,
		entry.Billable,
		entry.Billed,
		entry.InvoiceID,
		entry.IsDeleted,
		entry.CreatedAt.Format(timeLayout),
		entry.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to create time entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get time entry ID: %w", err)
	}

	entry.ID = id
	return nil
}

// GetByID retrieves a time entry by ID
func (r *EntryRepo) GetByID(ctx context.Context, id int64) (*domain.TimeEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM time_entries WHERE id = ?`

	entry, err := scanTimeEntry(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("time entry %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get time entry: %w", err)
	}
	return entry, nil
}

// Update updates an existing time entry and creates audit records for changed fields
func (r *EntryRepo) Update(ctx context.Context, entry *domain.TimeEntry, changedBy domain.Principal, reason string) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid time entry: %w", err)
	}

	// Get current entry for audit trail
	oldEntry, err := r.GetByID(ctx, entry.ID)
	if err != nil {
		return err
	}
	if oldEntry.IsLocked() {
		return fmt.Errorf("cannot update time entry: billed on invoice")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE time_entries
		SET project_id = ?, description = ?, start_time = ?, end_time = ?, duration_seconds = ?,
		    hours = ?, is_billable = ?, updated_at = ?
		WHERE id = ? AND is_deleted = 0 AND is_billed = 0
	`

	entry.UpdatedAt = time.Now()

	result, err := tx.ExecContext(ctx, query,
		entry.ProjectID,
		entry.Description,
		nullTime(entry.StartTime),
		nullTime(entry.EndTime),
		entry.DurationSeconds,
		entry.Hours,
		entry.Billable,
		entry.UpdatedAt.Format(timeLayout),
		entry.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update time entry: %w", err)
	}
	if err := requireAffected(result, "time entry", entry.ID); err != nil {
		return err
	}

	for _, h := range diffEntries(oldEntry, entry, changedBy, reason) {
		if err := insertHistory(ctx, tx, h); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// SoftDelete marks a time entry as deleted
func (r *EntryRepo) SoftDelete(ctx context.Context, id int64, changedBy domain.Principal, reason string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE time_entries
		SET is_deleted = 1, updated_at = ?
		WHERE id = ? AND is_deleted = 0 AND is_billed = 0
	`

	result, err := tx.ExecContext(ctx, query, formatTime(), id)
	if err != nil {
		return fmt.Errorf("failed to delete time entry: %w", err)
	}
	if err := requireAffected(result, "unbilled time entry", id); err != nil {
		return err
	}

	if err := insertHistory(ctx, tx, domain.NewEntryHistory(id, changedBy, "is_deleted", "false", "true", reason)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// List retrieves non-deleted time entries with optional filters
func (r *EntryRepo) List(ctx context.Context, filter EntryFilter) ([]*domain.TimeEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM time_entries WHERE is_deleted = 0`
	args := make([]any, 0)

	if filter.ProjectID != nil {
		query += " AND project_id = ?"
		args = append(args, *filter.ProjectID)
	}

	if filter.UserID != nil {
		query += " AND user_id = ?"
		args = append(args, *filter.UserID)
	}

	if filter.Start != nil {
		query += " AND start_time >= ?"
		args = append(args, filter.Start.Format(timeLayout))
	}

	if filter.End != nil {
		query += " AND start_time <= ?"
		args = append(args, filter.End.Format(timeLayout))
	}

	if !filter.IncludeBilled {
		query += " AND is_billed = 0"
	}

	query += " ORDER BY start_time DESC, id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list time entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*domain.TimeEntry, 0)
	for rows.Next() {
		entry, err := scanTimeEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan time entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating time entries: %w", err)
	}

	return entries, nil
}

// MarkBilled attaches entries to their invoice. An entry that is deleted or already
// billed in the database fails the whole batch.
func (r *EntryRepo) MarkBilled(ctx context.Context, entries []*domain.TimeEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE time_entries
		SET is_billed = 1, invoice_id = ?, updated_at = ?
		WHERE id = ? AND is_billed = 0 AND is_deleted = 0
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	updateTime := formatTime()
	for _, entry := range entries {
		if entry.InvoiceID == nil {
			return fmt.Errorf("entry %d has no invoice", entry.ID)
		}

		result, err := stmt.ExecContext(ctx, *entry.InvoiceID, updateTime, entry.ID)
		if err != nil {
			return fmt.Errorf("failed to bill entry %d: %w", entry.ID, err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected for entry %d: %w", entry.ID, err)
		}
		if rows == 0 {
			return fmt.Errorf("entry %d not found, already billed, or deleted", entry.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ReleaseBilled returns the given entries to the unbilled pool
func (r *EntryRepo) ReleaseBilled(ctx context.Context, entryIDs []int64) error {
	if len(entryIDs) == 0 {
		return nil
	}

	placeholders, ids := inClause(entryIDs)
	query := `
		UPDATE time_entries
		SET is_billed = 0, invoice_id = NULL, updated_at = ?
		WHERE id IN (` + placeholders + `)
	`

	if _, err := r.db.ExecContext(ctx, query, append([]any{formatTime()}, ids...)...); err != nil {
		return fmt.Errorf("failed to release billed entries: %w", err)
	}
	return nil
}

// GetHistory retrieves the audit trail for a time entry
func (r *EntryRepo) GetHistory(ctx context.Context, entryID int64) ([]*domain.EntryHistory, error) {
	query := `
		SELECT id, entry_id, changed_by, field_name, old_value, new_value, change_reason, changed_at
		FROM entry_history
		WHERE entry_id = ?
		ORDER BY changed_at DESC, id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to get entry history: %w", err)
	}
	defer rows.Close()

	history := make([]*domain.EntryHistory, 0)
	for rows.Next() {
		h := &domain.EntryHistory{}
		var oldValue, newValue, reason sql.NullString
		var changedAt string

		err := rows.Scan(
			&h.ID,
			&h.EntryID,
			&h.ChangedBy,
			&h.FieldName,
			&oldValue,
			&newValue,
			&reason,
			&changedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		h.OldValue, h.NewValue, h.ChangeReason = oldValue.String, newValue.String, reason.String

		if h.ChangedAt, err = parseTime(changedAt); err != nil {
			return nil, fmt.Errorf("failed to parse changed_at: %w", err)
		}

		history = append(history, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}

	return history, nil
}

func insertHistory(ctx context.Context, tx *sql.Tx, h *domain.EntryHistory) error {
	query := `
		INSERT INTO entry_history (entry_id, changed_by, field_name, old_value, new_value, change_reason, changed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := tx.ExecContext(ctx, query, h.EntryID, h.ChangedBy, h.FieldName, h.OldValue, h.NewValue, h.ChangeReason, h.ChangedAt.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to audit %s change: %w", h.FieldName, err)
	}
	return nil
}

// diffEntries returns one history record per changed field
func diffEntries(old, new *domain.TimeEntry, changedBy domain.Principal, reason string) []*domain.EntryHistory {
	var history []*domain.EntryHistory
	record := func(field, oldVal, newVal string) {
		if oldVal != newVal {
			history = append(history, domain.NewEntryHistory(new.ID, changedBy, field, oldVal, newVal, reason))
		}
	}

	record("project_id", strconv.FormatInt(old.ProjectID, 10), strconv.FormatInt(new.ProjectID, 10))
	record("description", old.Description, new.Description)
	record("start_time", formatOptional(old.StartTime), formatOptional(new.StartTime))
	record("end_time", formatOptional(old.EndTime), formatOptional(new.EndTime))
	record("hours", old.Hours.StringFixed(2), new.Hours.StringFixed(2))
	record("is_billable", strconv.FormatBool(old.Billable), strconv.FormatBool(new.Billable))

	return history
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(timeLayout)
}

// scanTimeEntry reads one time_entries row selected with entryColumns
func scanTimeEntry(row rowScanner) (*domain.TimeEntry, error) {
	entry := &domain.TimeEntry{}
	var startTime, endTime sql.NullString
	var invoiceID sql.NullInt64
	var createdAt, updatedAt string

	err := row.Scan(
		&entry.ID,
		&entry.ProjectID,
		&entry.UserID,
		&entry.Description,
		&startTime,
		&endTime,
		&entry.DurationSeconds,
		&entry.Hours,
		&entry.Billable,
		&entry.Billed,
		&invoiceID,
		&entry.IsDeleted,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if entry.StartTime, err = parseNullTime("start_time", startTime); err != nil {
		return nil, err
	}
	if entry.EndTime, err = parseNullTime("end_time", endTime); err != nil {
		return nil, err
	}
	if invoiceID.Valid {
		id := invoiceID.Int64
		entry.InvoiceID = &id
	}
	if err := parseTimestamps(createdAt, updatedAt, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
		return nil, err
	}

	return entry, nil
}
