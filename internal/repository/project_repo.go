package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/andy/timeledger/internal/db"
	"github.com/andy/timeledger/internal/domain"
)

// ProjectRepo is a SQLite implementation of ProjectRepository
type ProjectRepo struct {
	db *db.DB
}

// NewProjectRepo creates a new ProjectRepo
func NewProjectRepo(database *db.DB) *ProjectRepo {
	return &ProjectRepo{db: database}
}

const projectSelect = `
	SELECT p.id, p.client_id, p.name, p.description, p.hourly_rate, p.budget_hours,
	       p.budget_amount, p.status, p.created_at, p.updated_at, c.name
	FROM projects p
	JOIN clients c ON c.id = p.client_id`

// Create inserts a new project
func (r *ProjectRepo) Create(ctx context.Context, project *domain.Project) error {
	if err := project.Validate(); err != nil {
		return fmt.Errorf("invalid project: %w", err)
	}

	query := `
		INSERT INTO projects (
			client_id, name, description, hourly_rate, budget_hours, budget_amount,
			status, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Conn(ctx).ExecContext(ctx, query,
		project.ClientID,
		project.Name,
		project.Description,
		project.HourlyRate,
		project.BudgetHours,
		project.BudgetAmount,
		string(project.Status),
		project.CreatedAt.Format(timeLayout),
		project.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return wrapWriteErr("create project", err)
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
	project, err := scanProject(r.db.Conn(ctx).QueryRowContext(ctx, projectSelect+" WHERE p.id = ?", id))
	if err != nil {
		return nil, wrapGetErr("project", id, err)
	}
	return project, nil
}

// GetByName retrieves a client's project by name, ignoring case
func (r *ProjectRepo) GetByName(ctx context.Context, clientID int64, name string) (*domain.Project, error) {
	query := projectSelect + " WHERE p.client_id = ? AND p.name = ? COLLATE NOCASE"

	project, err := scanProject(r.db.Conn(ctx).QueryRowContext(ctx, query, clientID, name))
	if err != nil {
		return nil, wrapGetErr("project", name, err)
	}
	return project, nil
}

// List retrieves projects matching the filter
func (r *ProjectRepo) List(ctx context.Context, filter ProjectFilter) ([]*domain.Project, error) {
	conds := make([]string, 0)
	args := make([]any, 0)

	if filter.ClientID != nil {
		conds = append(conds, "p.client_id = ?")
		args = append(args, *filter.ClientID)
	}
	if filter.Status != nil {
		conds = append(conds, "p.status = ?")
		args = append(args, string(*filter.Status))
	}

	query := projectSelect
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY c.name, p.name"

	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, args...)
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

	query := `
		UPDATE projects
		SET name = ?, description = ?, hourly_rate = ?, budget_hours = ?, budget_amount = ?,
		    status = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Conn(ctx).ExecContext(ctx, query,
		project.Name,
		project.Description,
		project.HourlyRate,
		project.BudgetHours,
		project.BudgetAmount,
		string(project.Status),
		formatTime(),
		project.ID,
	)
	if err != nil {
		return wrapWriteErr("update project", err)
	}

	return expectOneRow(result, "project", project.ID)
}

func scanProject(row scanner) (*domain.Project, error) {
	project := &domain.Project{}
	var status, createdAt, updatedAt string

	err := row.Scan(
		&project.ID,
		&project.ClientID,
		&project.Name,
		&project.Description,
		&project.HourlyRate,
		&project.BudgetHours,
		&project.BudgetAmount,
		&status,
		&createdAt,
		&updatedAt,
		&project.ClientName,
	)
	if err != nil {
		return nil, err
	}

	project.Status = domain.ProjectStatus(status)
	if project.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if project.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return project, nil
}
