package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/andy/timeledger/internal/db"
	"github.com/andy/timeledger/internal/domain"
)

// InvoiceRepo is a SQLite implementation of InvoiceRepository
type InvoiceRepo struct {
	db *db.DB
}

// NewInvoiceRepo creates a new InvoiceRepo
func NewInvoiceRepo(database *db.DB) *InvoiceRepo {
	return &InvoiceRepo{db: database}
}

const invoiceSelect = `
	SELECT i.id, i.invoice_number, i.client_id, i.invoice_date, i.due_date,
	       i.subtotal, i.tax_rate, i.tax_amount, i.total_amount, i.status,
	       i.payment_status, i.payment_date, i.notes, i.created_at, i.updated_at, c.name
	FROM invoices i
	JOIN clients c ON c.id = i.client_id`

// Create inserts a new invoice and its items
func (r *InvoiceRepo) Create(ctx context.Context, invoice *domain.Invoice) error {
	if err := invoice.Validate(); err != nil {
		return fmt.Errorf("invalid invoice: %w", err)
	}

	return r.db.WithTx(ctx, func(ctx context.Context) error {
		query := `
			INSERT INTO invoices (
				invoice_number, client_id, invoice_date, due_date,
				subtotal, tax_rate, tax_amount, total_amount, status,
				payment_status, payment_date, notes, created_at, updated_at
			)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`

		result, err := r.db.Conn(ctx).ExecContext(ctx, query,
			invoice.InvoiceNumber,
			invoice.ClientID,
			domain.FormatDate(invoice.InvoiceDate),
			domain.FormatDate(invoice.DueDate),
			invoice.Subtotal,
			invoice.TaxRate,
			invoice.TaxAmount,
			invoice.Total,
			string(invoice.Status),
			string(invoice.PaymentStatus),
			nullDate(invoice.PaymentDate),
			invoice.Notes,
			invoice.CreatedAt.Format(timeLayout),
			invoice.UpdatedAt.Format(timeLayout),
		)
		if err != nil {
			return wrapWriteErr("create invoice "+invoice.InvoiceNumber, err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get invoice ID: %w", err)
		}
		invoice.ID = id

		return r.insertItems(ctx, id, invoice.Items)
	})
}

// GetByID retrieves an invoice by ID with its items
func (r *InvoiceRepo) GetByID(ctx context.Context, id int64) (*domain.Invoice, error) {
	invoice, err := scanInvoice(r.db.Conn(ctx).QueryRowContext(ctx, invoiceSelect+" WHERE i.id = ?", id))
	if err != nil {
		return nil, wrapGetErr("invoice", id, err)
	}

	if invoice.Items, err = r.GetItems(ctx, id); err != nil {
		return nil, err
	}
	return invoice, nil
}

// GetByNumber retrieves an invoice by its number with its items
func (r *InvoiceRepo) GetByNumber(ctx context.Context, number string) (*domain.Invoice, error) {
	invoice, err := scanInvoice(r.db.Conn(ctx).QueryRowContext(ctx, invoiceSelect+" WHERE i.invoice_number = ?", number))
	if err != nil {
		return nil, wrapGetErr("invoice", number, err)
	}

	if invoice.Items, err = r.GetItems(ctx, invoice.ID); err != nil {
		return nil, err
	}
	return invoice, nil
}

// List retrieves invoices matching the filter, newest first. Items are not loaded.
func (r *InvoiceRepo) List(ctx context.Context, filter InvoiceFilter) ([]*domain.Invoice, error) {
	conds := make([]string, 0)
	args := make([]any, 0)

	if filter.ClientID != nil {
		conds = append(conds, "i.client_id = ?")
		args = append(args, *filter.ClientID)
	}
	if filter.Status != nil {
		conds = append(conds, "i.status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.PaymentStatus != nil {
		conds = append(conds, "i.payment_status = ?")
		args = append(args, string(*filter.PaymentStatus))
	}
	if filter.From != nil {
		conds = append(conds, "i.invoice_date >= ?")
		args = append(args, domain.FormatDate(*filter.From))
	}
	if filter.To != nil {
		conds = append(conds, "i.invoice_date <= ?")
		args = append(args, domain.FormatDate(*filter.To))
	}

	query := invoiceSelect
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY i.invoice_date DESC, i.invoice_number DESC"

	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, args...)
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

// Update writes the mutable invoice columns
func (r *InvoiceRepo) Update(ctx context.Context, invoice *domain.Invoice) error {
	if err := invoice.Validate(); err != nil {
		return fmt.Errorf("invalid invoice: %w", err)
	}

	query := `
		UPDATE invoices
		SET due_date = ?, subtotal = ?, tax_rate = ?, tax_amount = ?, total_amount = ?,
		    status = ?, payment_status = ?, payment_date = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Conn(ctx).ExecContext(ctx, query,
		domain.FormatDate(invoice.DueDate),
		invoice.Subtotal,
		invoice.TaxRate,
		invoice.TaxAmount,
		invoice.Total,
		string(invoice.Status),
		string(invoice.PaymentStatus),
		nullDate(invoice.PaymentDate),
		invoice.Notes,
		formatTime(),
		invoice.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update invoice: %w", err)
	}

	return expectOneRow(result, "invoice", invoice.ID)
}

// ReplaceItems deletes an invoice's items and inserts the given ones
func (r *InvoiceRepo) ReplaceItems(ctx context.Context, invoiceID int64, items []*domain.InvoiceItem) error {
	return r.db.WithTx(ctx, func(ctx context.Context) error {
		if _, err := r.db.Conn(ctx).ExecContext(ctx, "DELETE FROM invoice_items WHERE invoice_id = ?", invoiceID); err != nil {
			return fmt.Errorf("failed to delete invoice items: %w", err)
		}
		return r.insertItems(ctx, invoiceID, items)
	})
}

// GetItems retrieves all items for an invoice
func (r *InvoiceRepo) GetItems(ctx context.Context, invoiceID int64) ([]*domain.InvoiceItem, error) {
	query := `
		SELECT id, invoice_id, description, quantity, rate, amount, time_entry_ids
		FROM invoice_items
		WHERE invoice_id = ?
		ORDER BY id
	`

	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice items: %w", err)
	}
	defer rows.Close()

	items := make([]*domain.InvoiceItem, 0)
	for rows.Next() {
		item := &domain.InvoiceItem{}
		var entryIDs string

		err := rows.Scan(
			&item.ID,
			&item.InvoiceID,
			&item.Description,
			&item.Quantity,
			&item.Rate,
			&item.Amount,
			&entryIDs,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice item: %w", err)
		}

		if err := json.Unmarshal([]byte(entryIDs), &item.TimeEntryIDs); err != nil {
			return nil, fmt.Errorf("failed to parse time_entry_ids: %w", err)
		}

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invoice items: %w", err)
	}

	return items, nil
}

// Delete removes an invoice and its items
func (r *InvoiceRepo) Delete(ctx context.Context, id int64) error {
	return r.db.WithTx(ctx, func(ctx context.Context) error {
		if _, err := r.db.Conn(ctx).ExecContext(ctx, "DELETE FROM invoice_items WHERE invoice_id = ?", id); err != nil {
			return fmt.Errorf("failed to delete invoice items: %w", err)
		}

		result, err := r.db.Conn(ctx).ExecContext(ctx, "DELETE FROM invoices WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("failed to delete invoice: %w", err)
		}
		return expectOneRow(result, "invoice", id)
	})
}

// NextInvoiceNumber returns the next "{year}-{seq:04d}" number. It must run
// in the transaction that inserts the invoice: write transactions are
// IMMEDIATE, so the read and the insert happen under the write lock.
func (r *InvoiceRepo) NextInvoiceNumber(ctx context.Context, year int) (string, error) {
	// Zero-padded suffixes sort lexicographically within a length, and a
	// longer suffix is always a larger number. Legacy numbers that do not
	// parse are skipped.
	query := `
		SELECT invoice_number
		FROM invoices
		WHERE invoice_number GLOB ?
		ORDER BY LENGTH(invoice_number) DESC, invoice_number DESC
	`

	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, strconv.Itoa(year)+"-[0-9]*")
	if err != nil {
		return "", fmt.Errorf("failed to get last invoice number: %w", err)
	}
	defer rows.Close()

	last := ""
	for rows.Next() {
		var number string
		if err := rows.Scan(&number); err != nil {
			return "", fmt.Errorf("failed to scan invoice number: %w", err)
		}
		if _, _, err := domain.ParseInvoiceNumber(number); err == nil {
			last = number
			break
		}
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("error iterating invoice numbers: %w", err)
	}

	return domain.NextInvoiceNumber(year, last)
}

func (r *InvoiceRepo) insertItems(ctx context.Context, invoiceID int64, items []*domain.InvoiceItem) error {
	if len(items) == 0 {
		return nil
	}

	stmt, err := r.db.Conn(ctx).PrepareContext(ctx, `
		INSERT INTO invoice_items (invoice_id, description, quantity, rate, amount, time_entry_ids)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, item := range items {
		ids := item.TimeEntryIDs
		if ids == nil {
			ids = []int64{}
		}
		entryIDs, err := json.Marshal(ids)
		if err != nil {
			return fmt.Errorf("failed to encode time_entry_ids: %w", err)
		}

		result, err := stmt.ExecContext(ctx, invoiceID, item.Description, item.Quantity, item.Rate, item.Amount, string(entryIDs))
		if err != nil {
			return fmt.Errorf("failed to add invoice item: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get invoice item ID: %w", err)
		}
		item.ID = id
		item.InvoiceID = invoiceID
	}

	return nil
}

// scanInvoice reads one row selected with invoiceSelect
func scanInvoice(row scanner) (*domain.Invoice, error) {
	invoice := &domain.Invoice{Items: make([]*domain.InvoiceItem, 0)}
	var invoiceDate, dueDate, status, paymentStatus, createdAt, updatedAt, clientName string
	var paymentDate sql.NullString

	err := row.Scan(
		&invoice.ID,
		&invoice.InvoiceNumber,
		&invoice.ClientID,
		&invoiceDate,
		&dueDate,
		&invoice.Subtotal,
		&invoice.TaxRate,
		&invoice.TaxAmount,
		&invoice.Total,
		&status,
		&paymentStatus,
		&paymentDate,
		&invoice.Notes,
		&createdAt,
		&updatedAt,
		&clientName,
	)
	if err != nil {
		return nil, err
	}

	invoice.Status = domain.InvoiceStatus(status)
	invoice.PaymentStatus = domain.PaymentStatus(paymentStatus)
	invoice.Client = &domain.Client{ID: invoice.ClientID, Name: clientName}

	if invoice.InvoiceDate, err = domain.ParseDate(invoiceDate); err != nil {
		return nil, fmt.Errorf("failed to parse invoice_date: %w", err)
	}
	if invoice.DueDate, err = domain.ParseDate(dueDate); err != nil {
		return nil, fmt.Errorf("failed to parse due_date: %w", err)
	}
	if invoice.PaymentDate, err = parseNullDate(paymentDate); err != nil {
		return nil, fmt.Errorf("failed to parse payment_date: %w", err)
	}
	if invoice.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if invoice.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return invoice, nil
}
