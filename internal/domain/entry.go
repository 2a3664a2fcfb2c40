package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type TimeEntry struct {
	ID              int64
	ProjectID       int64
	UserID          int64
	Description     string
	StartTime       *time.Time
	EndTime         *time.Time // nil if still running
	DurationSeconds int64      // derived from start/end
	Hours           decimal.Decimal
	Billable        bool
	Billed          bool
	InvoiceID       *int64 // set once billed
	IsDeleted       bool   // soft delete
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewTimeEntry creates a new billable time entry
func NewTimeEntry(projectID, userID int64, description string) *TimeEntry {
	now := time.Now()
	return &TimeEntry{
		ProjectID:   projectID,
		UserID:      userID,
		Description: description,
		Billable:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsLocked returns true if the entry is attached to an invoice
func (e *TimeEntry) IsLocked() bool {
	return e.Billed
}

// IsRunning returns true if the entry was started but not stopped
func (e *TimeEntry) IsRunning() bool {
	return e.StartTime != nil && e.EndTime == nil
}

// IsUnbilled returns true if the entry still counts toward unbilled totals
func (e *TimeEntry) IsUnbilled() bool {
	return e.Billable && !e.Billed && !e.IsDeleted
}

// Validate returns an error if the entry is invalid.
// End before start is tolerated; the duration floors at zero.
func (e *TimeEntry) Validate() error {
	if e.ProjectID <= 0 {
		return errors.New("project ID is required")
	}
	if e.UserID <= 0 {
		return errors.New("user ID is required")
	}
	if e.Hours.IsNegative() || e.DurationSeconds < 0 {
		return errors.New("duration cannot be negative")
	}
	return nil
}
