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

const projectColumns = `id, owner_id, name, budget, hourly_rate, start_date, end_date, notes, is_archived, created_at, updated_at`

// ProjectRepo is a SQLite implementation of ProjectRepository
type ProjectRepo struct {
	db *db.DB
}

// NewProjectRepo creates a new ProjectRepo
func NewProjectRepo(database *db.DB) *ProjectRepo {
	return &ProjectRepo{db: database}
}

// Create inserts a new project into the database
func (r *ProjectRepo) Create(ctx context.Context, project *domain.Project) error {
	if err := project.Validate(); err != nil {
		return fmt.Errorf("invalid project: %w", err)
	}

	query := `
		INSERT INTO projects (owner_id, name, budget, hourly_rate, start_date, end_date, notes, is_archived, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		project.OwnerID,
		project.Name,
		project.Budget,
		project.HourlyRate,
		nullTime(project.StartDate),
		nullTime(project.EndDate),
		project.Notes,
		project.IsArchived,
		project.CreatedAt.Format(timeLayout),
		project.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get project ID: %w", err)
	}

	project.ID = id
	return nil
}

// GetByID retrieves a project by ID
func (r *ProjectRepo) GetByID(ctx context.Context, id int64) (*domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = ?`

	project, err := scanProject(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("project %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

// GetByName retrieves one of the owner's projects by name
func (r *ProjectRepo) GetByName(ctx context.Context, ownerID int64, name string) (*domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE owner_id = ? AND name = ?`

	project, err := scanProject(r.db.QueryRowContext(ctx, query, ownerID, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("project %q: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

// List retrieves the owner's projects, optionally including archived ones
func (r *ProjectRepo) List(ctx context.Context, ownerID int64, includeArchived bool) ([]*domain.Project, error) {
	query := `
		SELECT ` + projectColumns + `
		FROM projects
		WHERE owner_id = ? AND (is_archived = 0 OR ? = 1)
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query, ownerID, includeArchived)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]*domain.Project, 0)
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}

	return projects, nil
}

// Update updates an existing project
func (r *ProjectRepo) Update(ctx context.Context, project *domain.Project) error {
	if err := project.Validate(); err != nil {
		return fmt.Errorf("invalid project: %w", err)
	}

	project.UpdatedAt = time.Now()

	query := `
		UPDATE projects
		SET name = ?, budget = ?, hourly_rate = ?, start_date = ?, end_date = ?, notes = ?, is_archived = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		project.Name,
		project.Budget,
		project.HourlyRate,
		nullTime(project.StartDate),
		nullTime(project.EndDate),
		project.Notes,
		project.IsArchived,
		project.UpdatedAt.Format(timeLayout),
		project.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}

	return requireAffected(result, "project", project.ID)
}

// Archive marks a project as archived
func (r *ProjectRepo) Archive(ctx context.Context, id int64) error {
	return r.setArchived(ctx, id, true)
}

// Unarchive marks a project as active
func (r *ProjectRepo) Unarchive(ctx context.Context, id int64) error {
	return r.setArchived(ctx, id, false)
}

func (r *ProjectRepo) setArchived(ctx context.Context, id int64, archived bool) error {
	query := `
		UPDATE projects
		SET is_archived = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query, archived, formatTime(), id)
	if err != nil {
		return fmt.Errorf("failed to archive project: %w", err)
	}

	return requireAffected(result, "project", id)
}

func scanProject(row rowScanner) (*domain.Project, error) {
	project := &domain.Project{}
	var startDate, endDate sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&project.ID,
		&project.OwnerID,
		&project.Name,
		&project.Budget,
		&project.HourlyRate,
		&startDate,
		&endDate,
		&project.Notes,
		&project.IsArchived,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if project.StartDate, err = parseNullTime("start_date", startDate); err != nil {
		return nil, err
	}
	if project.EndDate, err = parseNullTime("end_date", endDate); err != nil {
		return nil, err
	}
	if err := parseTimestamps(createdAt, updatedAt, &project.CreatedAt, &project.UpdatedAt); err != nil {
		return nil, err
	}

	return project, nil
}

// requireAffected turns a zero-row update into ErrNotFound
func requireAffected(result sql.Result, what string, id int64) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return nil
}
