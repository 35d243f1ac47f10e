package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/andy/timeledger/internal/db"
	"github.com/andy/timeledger/internal/domain"
)

// ClientRepo is a SQLite implementation of ClientRepository
type ClientRepo struct {
	db *db.DB
}

// NewClientRepo creates a new ClientRepo
func NewClientRepo(database *db.DB) *ClientRepo {
	return &ClientRepo{db: database}
}

const clientColumns = `
	id, name, code, billing_rate, default_rate, invoice_email, invoice_cc,
	invoice_recipient_name, payment_terms, notes, is_active, created_at, updated_at`

// Create inserts a new client into the database
func (r *ClientRepo) Create(ctx context.Context, client *domain.Client) error {
	if err := client.Validate(); err != nil {
		return fmt.Errorf("invalid client: %w", err)
	}

	query := `
		INSERT INTO clients (
			name, code, billing_rate, default_rate, invoice_email, invoice_cc,
			invoice_recipient_name, payment_terms, notes, is_active, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Conn(ctx).ExecContext(ctx, query,
		client.Name,
		nullString(client.Code),
		client.BillingRate,
		client.DefaultRate,
		client.InvoiceEmail,
		client.InvoiceCC,
		client.InvoiceRecipientName,
		client.PaymentTerms,
		client.Notes,
		client.IsActive,
		client.CreatedAt.Format(timeLayout),
		client.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return wrapWriteErr("create client", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get client ID: %w", err)
	}

	client.ID = id
	return nil
}

// GetByID retrieves a client by ID
func (r *ClientRepo) GetByID(ctx context.Context, id int64) (*domain.Client, error) {
	query := `SELECT` + clientColumns + ` FROM clients WHERE id = ?`

	client, err := scanClient(r.db.Conn(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, wrapGetErr("client", id, err)
	}
	return client, nil
}

// GetByName retrieves a client by name, ignoring case
func (r *ClientRepo) GetByName(ctx context.Context, name string) (*domain.Client, error) {
	query := `SELECT` + clientColumns + ` FROM clients WHERE name = ? COLLATE NOCASE`

	client, err := scanClient(r.db.Conn(ctx).QueryRowContext(ctx, query, name))
	if err != nil {
		return nil, wrapGetErr("client", name, err)
	}
	return client, nil
}

// List retrieves all clients, optionally including inactive ones
func (r *ClientRepo) List(ctx context.Context, includeInactive bool) ([]*domain.Client, error) {
	query := `SELECT` + clientColumns + ` FROM clients`
	if !includeInactive {
		query += " WHERE is_active = 1"
	}
	query += " ORDER BY name"

	rows, err := r.db.Conn(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	clients := make([]*domain.Client, 0)
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, client)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating clients: %w", err)
	}

	return clients, nil
}

// Update updates an existing client
func (r *ClientRepo) Update(ctx context.Context, client *domain.Client) error {
	if err := client.Validate(); err != nil {
		return fmt.Errorf("invalid client: %w", err)
	}

	query := `
		UPDATE clients
		SET name = ?, code = ?, billing_rate = ?, default_rate = ?, invoice_email = ?,
		    invoice_cc = ?, invoice_recipient_name = ?, payment_terms = ?, notes = ?,
		    is_active = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Conn(ctx).ExecContext(ctx, query,
		client.Name,
		nullString(client.Code),
		client.BillingRate,
		client.DefaultRate,
		client.InvoiceEmail,
		client.InvoiceCC,
		client.InvoiceRecipientName,
		client.PaymentTerms,
		client.Notes,
		client.IsActive,
		formatTime(),
		client.ID,
	)
	if err != nil {
		return wrapWriteErr("update client", err)
	}

	return expectOneRow(result, "client", client.ID)
}

// Deactivate soft-deletes a client
func (r *ClientRepo) Deactivate(ctx context.Context, id int64) error {
	return r.setActive(ctx, id, false)
}

// Reactivate restores a deactivated client
func (r *ClientRepo) Reactivate(ctx context.Context, id int64) error {
	return r.setActive(ctx, id, true)
}

func (r *ClientRepo) setActive(ctx context.Context, id int64, active bool) error {
	query := "UPDATE clients SET is_active = ?, updated_at = ? WHERE id = ?"

	result, err := r.db.Conn(ctx).ExecContext(ctx, query, active, formatTime(), id)
	if err != nil {
		return fmt.Errorf("failed to update client status: %w", err)
	}

	return expectOneRow(result, "client", id)
}

// scanClient reads one row selected with clientColumns
func scanClient(row scanner) (*domain.Client, error) {
	client := &domain.Client{}
	var code sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&client.ID,
		&client.Name,
		&code,
		&client.BillingRate,
		&client.DefaultRate,
		&client.InvoiceEmail,
		&client.InvoiceCC,
		&client.InvoiceRecipientName,
		&client.PaymentTerms,
		&client.Notes,
		&client.IsActive,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	client.Code = code.String
	if client.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if client.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return client, nil
}

// expectOneRow turns an update that matched nothing into ErrNotFound
func expectOneRow(result sql.Result, entity string, id int64) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.NotFound(entity, id)
	}
	return nil
}
