package repository

import (
	"context"
	"fmt"

	"github.com/andy/timeledger/internal/db"
	"github.com/andy/timeledger/internal/domain"
)

// UserRepo is a SQLite implementation of UserRepository
type UserRepo struct {
	db *db.DB
}

// NewUserRepo creates a new UserRepo
func NewUserRepo(database *db.DB) *UserRepo {
	return &UserRepo{db: database}
}

// Create inserts a new user
func (r *UserRepo) Create(ctx context.Context, user *domain.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("invalid user: %w", err)
	}

	query := `
		INSERT INTO users (name, email, role, is_active, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := r.db.Conn(ctx).ExecContext(ctx, query,
		user.Name,
		user.Email,
		string(user.Role),
		user.IsActive,
		user.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return wrapWriteErr("create user", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get user ID: %w", err)
	}

	user.ID = id
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := "SELECT id, name, email, role, is_active, created_at FROM users WHERE id = ?"

	user, err := scanUser(r.db.Conn(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, wrapGetErr("user", id, err)
	}
	return user, nil
}

// List retrieves all users
func (r *UserRepo) List(ctx context.Context) ([]*domain.User, error) {
	rows, err := r.db.Conn(ctx).QueryContext(ctx, "SELECT id, name, email, role, is_active, created_at FROM users ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]*domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

func scanUser(row scanner) (*domain.User, error) {
	user := &domain.User{}
	var role, createdAt string

	if err := row.Scan(&user.ID, &user.Name, &user.Email, &role, &user.IsActive, &createdAt); err != nil {
		return nil, err
	}

	user.Role = domain.Role(role)
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	user.CreatedAt = t
	return user, nil
}

// SubcontractorRepo is a SQLite implementation of SubcontractorRepository
type SubcontractorRepo struct {
	db *db.DB
}

// NewSubcontractorRepo creates a new SubcontractorRepo
func NewSubcontractorRepo(database *db.DB) *SubcontractorRepo {
	return &SubcontractorRepo{db: database}
}

const subcontractorColumns = `id, name, email, phone, company, hourly_rate, is_active, created_at, updated_at`

// Create inserts a new subcontractor
func (r *SubcontractorRepo) Create(ctx context.Context, sub *domain.Subcontractor) error {
	if err := sub.Validate(); err != nil {
		return fmt.Errorf("invalid subcontractor: %w", err)
	}

	query := `
		INSERT INTO subcontractors (name, email, phone, company, hourly_rate, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Conn(ctx).ExecContext(ctx, query,
		sub.Name,
		sub.Email,
		sub.Phone,
		sub.Company,
		sub.HourlyRate,
		sub.IsActive,
		sub.CreatedAt.Format(timeLayout),
		sub.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return wrapWriteErr("create subcontractor", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get subcontractor ID: %w", err)
	}

	sub.ID = id
	return nil
}

// GetByID retrieves a subcontractor by ID
func (r *SubcontractorRepo) GetByID(ctx context.Context, id int64) (*domain.Subcontractor, error) {
	query := "SELECT " + subcontractorColumns + " FROM subcontractors WHERE id = ?"

	sub, err := scanSubcontractor(r.db.Conn(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, wrapGetErr("subcontractor", id, err)
	}
	return sub, nil
}

// List retrieves subcontractors, optionally including inactive ones
func (r *SubcontractorRepo) List(ctx context.Context, includeInactive bool) ([]*domain.Subcontractor, error) {
	query := "SELECT " + subcontractorColumns + " FROM subcontractors"
	if !includeInactive {
		query += " WHERE is_active = 1"
	}
	query += " ORDER BY name"

	rows, err := r.db.Conn(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list subcontractors: %w", err)
	}
	defer rows.Close()

	subs := make([]*domain.Subcontractor, 0)
	for rows.Next() {
		sub, err := scanSubcontractor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subcontractor: %w", err)
		}
		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subcontractors: %w", err)
	}

	return subs, nil
}

// Update updates an existing subcontractor
func (r *SubcontractorRepo) Update(ctx context.Context, sub *domain.Subcontractor) error {
	if err := sub.Validate(); err != nil {
		return fmt.Errorf("invalid subcontractor: %w", err)
	}

	query := `
		UPDATE subcontractors
		SET name = ?, email = ?, phone = ?, company = ?, hourly_rate = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Conn(ctx).ExecContext(ctx, query,
		sub.Name,
		sub.Email,
		sub.Phone,
		sub.Company,
		sub.HourlyRate,
		sub.IsActive,
		formatTime(),
		sub.ID,
	)
	if err != nil {
		return wrapWriteErr("update subcontractor", err)
	}

	return expectOneRow(result, "subcontractor", sub.ID)
}

// Deactivate marks a subcontractor inactive
func (r *SubcontractorRepo) Deactivate(ctx context.Context, id int64) error {
	result, err := r.db.Conn(ctx).ExecContext(ctx,
		"UPDATE subcontractors SET is_active = 0, updated_at = ? WHERE id = ?", formatTime(), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate subcontractor: %w", err)
	}
	return expectOneRow(result, "subcontractor", id)
}

func scanSubcontractor(row scanner) (*domain.Subcontractor, error) {
	sub := &domain.Subcontractor{}
	var createdAt, updatedAt string

	err := row.Scan(
		&sub.ID,
		&sub.Name,
		&sub.Email,
		&sub.Phone,
		&sub.Company,
		&sub.HourlyRate,
		&sub.IsActive,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if sub.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if sub.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return sub, nil
}
