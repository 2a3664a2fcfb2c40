package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Project struct {
	ID         int64
	OwnerID    int64
	Name       string
	Budget     decimal.NullDecimal // nil = no budget tracking
	HourlyRate decimal.NullDecimal // nil = time is not billable by rate
	StartDate  *time.Time
	EndDate    *time.Time
	Notes      string
	IsArchived bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewProject creates a new project owned by the given user
func NewProject(ownerID int64, name string) *Project {
	now := time.Now()
	return &Project{
		OwnerID:   ownerID,
		Name:      strings.TrimSpace(name),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// OwnedBy reports whether the caller owns the project
func (p *Project) OwnedBy(caller Principal) bool {
	return p.OwnerID == caller.UserID
}

// HasHourlyRate returns true if time on this project can be priced
func (p *Project) HasHourlyRate() bool {
	return p.HourlyRate.Valid
}

// Validate returns an error if the project is invalid
func (p *Project) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("project name is required")
	}
	if p.OwnerID <= 0 {
		return errors.New("project owner is required")
	}
	if p.Budget.Valid && p.Budget.Decimal.IsNegative() {
		return errors.New("budget cannot be negative")
	}
	if p.HourlyRate.Valid && p.HourlyRate.Decimal.IsNegative() {
		return errors.New("hourly rate cannot be negative")
	}
	if p.StartDate != nil && p.EndDate != nil && p.EndDate.Before(*p.StartDate) {
		return errors.New("end date must be after start date")
	}
	return nil
}
