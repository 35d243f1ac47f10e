package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/andy/timeledger/internal/db"
	"github.com/andy/timeledger/internal/domain"
)

// EntryRepo is a SQLite implementation of TimeEntryRepository
type EntryRepo struct {
	db *db.DB
}

// NewEntryRepo creates a new EntryRepo
func NewEntryRepo(database *db.DB) *EntryRepo {
	return &EntryRepo{db: database}
}

const entrySelect = `
	SELECT e.id, e.user_id, e.subcontractor_id, e.project_id, e.work_date, e.hours,
	       e.description, e.is_billable, e.status, e.rate, e.amount, e.invoice_id,
	       e.invoice_number, e.timer_start, e.timer_end, e.timer_elapsed_seconds,
	       e.timer_is_paused, e.is_deleted, e.import_batch, e.created_at, e.updated_at,
	       p.name, p.client_id, c.name, COALESCE(u.name, s.name, '')
	FROM time_entries e
	JOIN projects p ON p.id = e.project_id
	JOIN clients c ON c.id = p.client_id
	LEFT JOIN users u ON u.id = e.user_id
	LEFT JOIN subcontractors s ON s.id = e.subcontractor_id`

// timerActive matches entries whose timer is running or paused
const timerActive = "e.timer_start IS NOT NULL AND e.timer_end IS NULL"

// Create inserts a new time entry into the database
func (r *EntryRepo) Create(ctx context.Context, entry *domain.TimeEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid time entry: %w", err)
	}

	query := `
		INSERT INTO time_entries (
			user_id, subcontractor_id, project_id, work_date, hours, description,
			is_billable, status, rate, amount, invoice_id, invoice_number,
			timer_start, timer_end, timer_elapsed_seconds, timer_is_paused,
			is_deleted, import_batch, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Conn(ctx).ExecContext(ctx, query,
		nullInt64(entry.UserID),
		nullInt64(entry.SubcontractorID),
		entry.ProjectID,
		domain.FormatDate(entry.WorkDate),
		entry.Hours,
		entry.Description,
		entry.IsBillable,
		string(entry.Status),
		entry.Rate,
		entry.Amount,
		nullInt64(entry.InvoiceID),
		nullString(entry.InvoiceNumber),
		nullTime(entry.TimerStart),
		nullTime(entry.TimerEnd),
		entry.ElapsedSeconds,
		entry.IsPaused,
		entry.IsDeleted,
		nullString(entry.ImportBatch),
		entry.CreatedAt.Format(timeLayout),
		entry.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return wrapWriteErr("create time entry", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get time entry ID: %w", err)
	}

	entry.ID = id
	return nil
}

// GetByID retrieves a time entry by ID, including soft-deleted ones
func (r *EntryRepo) GetByID(ctx context.Context, id int64) (*domain.TimeEntry, error) {
	entry, err := scanEntry(r.db.Conn(ctx).QueryRowContext(ctx, entrySelect+" WHERE e.id = ?", id))
	if err != nil {
		return nil, wrapGetErr("time entry", id, err)
	}
	return entry, nil
}

// Update updates the editable fields of an entry and creates audit records.
// Invoice and timer columns are not touched.
func (r *EntryRepo) Update(ctx context.Context, entry *domain.TimeEntry, reason string) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid time entry: %w", err)
	}

	return r.db.WithTx(ctx, func(ctx context.Context) error {
		// Get current entry for audit trail
		old, err := r.GetByID(ctx, entry.ID)
		if err != nil {
			return err
		}
		if old.IsDeleted {
			return domain.NotFound("time entry", entry.ID)
		}
		if old.IsLocked() {
			return domain.Preconditionf("time entry %d is locked by invoice %s", entry.ID, old.InvoiceNumber)
		}

		query := `
			UPDATE time_entries
			SET project_id = ?, work_date = ?, hours = ?, description = ?, is_billable = ?,
			    status = ?, rate = ?, amount = ?, updated_at = ?
			WHERE id = ? AND is_deleted = 0 AND invoice_id IS NULL
		`

		entry.UpdatedAt = time.Now()
		result, err := r.db.Conn(ctx).ExecContext(ctx, query,
			entry.ProjectID,
			domain.FormatDate(entry.WorkDate),
			entry.Hours,
			entry.Description,
			entry.IsBillable,
			string(entry.Status),
			entry.Rate,
			entry.Amount,
			entry.UpdatedAt.Format(timeLayout),
			entry.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update time entry: %w", err)
		}
		if err := expectOneRow(result, "time entry", entry.ID); err != nil {
			return err
		}

		return r.createAuditRecords(ctx, old, entry, reason)
	})
}

// SoftDelete marks a time entry as deleted
func (r *EntryRepo) SoftDelete(ctx context.Context, id int64, reason string) error {
	return r.db.WithTx(ctx, func(ctx context.Context) error {
		var invoiceID sql.NullInt64
		err := r.db.Conn(ctx).QueryRowContext(ctx,
			"SELECT invoice_id FROM time_entries WHERE id = ? AND is_deleted = 0", id).Scan(&invoiceID)
		if err != nil {
			return wrapGetErr("time entry", id, err)
		}
		if invoiceID.Valid {
			return domain.Preconditionf("cannot delete time entry %d: locked by invoice", id)
		}

		now := formatTime()
		if _, err := r.db.Conn(ctx).ExecContext(ctx,
			"UPDATE time_entries SET is_deleted = 1, updated_at = ? WHERE id = ?", now, id); err != nil {
			return fmt.Errorf("failed to delete time entry: %w", err)
		}

		historyQuery := `
			INSERT INTO entry_history (entry_id, field_name, old_value, new_value, change_reason, changed_at)
			VALUES (?, 'is_deleted', '0', '1', ?, ?)
		`
		if _, err := r.db.Conn(ctx).ExecContext(ctx, historyQuery, id, reason, now); err != nil {
			return fmt.Errorf("failed to create audit record: %w", err)
		}
		return nil
	})
}

// List retrieves non-deleted time entries matching the filter
func (r *EntryRepo) List(ctx context.Context, filter EntryFilter) ([]*domain.TimeEntry, error) {
	query := entrySelect + " WHERE e.is_deleted = 0"
	args := make([]any, 0)

	scope, scopeArgs := scopeClause(filter.Scope, "e")
	query += scope
	args = append(args, scopeArgs...)

	if filter.UserID != nil {
		query += " AND e.user_id = ?"
		args = append(args, *filter.UserID)
	}
	if filter.SubcontractorID != nil {
		query += " AND e.subcontractor_id = ?"
		args = append(args, *filter.SubcontractorID)
	}
	if filter.ClientID != nil {
		query += " AND p.client_id = ?"
		args = append(args, *filter.ClientID)
	}
	if filter.ProjectID != nil {
		query += " AND e.project_id = ?"
		args = append(args, *filter.ProjectID)
	}
	if filter.InvoiceID != nil {
		query += " AND e.invoice_id = ?"
		args = append(args, *filter.InvoiceID)
	}
	if filter.Status != nil {
		query += " AND e.status = ?"
		args = append(args, string(*filter.Status))
	}
	if filter.From != nil {
		query += " AND e.work_date >= ?"
		args = append(args, domain.FormatDate(*filter.From))
	}
	if filter.To != nil {
		query += " AND e.work_date <= ?"
		args = append(args, domain.FormatDate(*filter.To))
	}
	if filter.UnbilledOnly {
		query += " AND e.invoice_id IS NULL"
	}

	query += " ORDER BY e.work_date DESC, e.id DESC"
	if filter.Limit > 0 {
		query += " LIMIT " + strconv.Itoa(filter.Limit)
	}

	return r.query(ctx, "list time entries", query, args...)
}

// ListUnbilled retrieves invoice candidates: billable, unbilled, not deleted,
// in an invoiceable status and with no running timer.
func (r *EntryRepo) ListUnbilled(ctx context.Context, filter UnbilledFilter) ([]*domain.TimeEntry, error) {
	statuses := make([]any, 0, len(domain.InvoiceableStatuses))
	for _, s := range domain.InvoiceableStatuses {
		statuses = append(statuses, string(s))
	}

	query := entrySelect + `
		WHERE e.invoice_id IS NULL
		  AND e.is_billable = 1
		  AND e.is_deleted = 0
		  AND e.status IN (` + placeholders(len(statuses)) + `)
		  AND NOT (` + timerActive + `)`
	args := statuses

	scope, scopeArgs := scopeClause(filter.Scope, "e")
	query += scope
	args = append(args, scopeArgs...)

	if filter.ClientID != nil {
		query += " AND p.client_id = ?"
		args = append(args, *filter.ClientID)
	}
	if len(filter.EntryIDs) > 0 {
		query += " AND e.id IN (" + placeholders(len(filter.EntryIDs)) + ")"
		for _, id := range filter.EntryIDs {
			args = append(args, id)
		}
	}

	query += " ORDER BY c.name, e.work_date, e.id"

	return r.query(ctx, "get unbilled entries", query, args...)
}

// MarkInvoiced attaches entries to an invoice. Every entry must still be
// unbilled, otherwise nothing is marked.
func (r *EntryRepo) MarkInvoiced(ctx context.Context, entryIDs []int64, invoiceID int64, invoiceNumber string) error {
	if len(entryIDs) == 0 {
		return nil
	}

	return r.db.WithTx(ctx, func(ctx context.Context) error {
		// Prepare statement for efficiency
		stmt, err := r.db.Conn(ctx).PrepareContext(ctx, `
			UPDATE time_entries
			SET invoice_id = ?, invoice_number = ?, updated_at = ?
			WHERE id = ? AND invoice_id IS NULL AND is_deleted = 0
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		updateTime := formatTime()
		for _, entryID := range entryIDs {
			result, err := stmt.ExecContext(ctx, invoiceID, invoiceNumber, updateTime, entryID)
			if err != nil {
				return fmt.Errorf("failed to lock entry %d: %w", entryID, err)
			}

			rows, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected for entry %d: %w", entryID, err)
			}
			if rows == 0 {
				return domain.Preconditionf("entry %d not found, already invoiced, or deleted", entryID)
			}
		}
		return nil
	})
}

// ClearInvoice detaches every entry from an invoice and returns how many
// entries were released
func (r *EntryRepo) ClearInvoice(ctx context.Context, invoiceID int64) (int64, error) {
	result, err := r.db.Conn(ctx).ExecContext(ctx, `
		UPDATE time_entries
		SET invoice_id = NULL, invoice_number = NULL, updated_at = ?
		WHERE invoice_id = ?
	`, formatTime(), invoiceID)
	if err != nil {
		return 0, fmt.Errorf("failed to release invoiced entries: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}

// GetHistory retrieves the audit trail for a time entry
func (r *EntryRepo) GetHistory(ctx context.Context, entryID int64) ([]*domain.EntryHistory, error) {
	query := `
		SELECT id, entry_id, field_name, old_value, new_value, change_reason, changed_at
		FROM entry_history
		WHERE entry_id = ?
		ORDER BY changed_at DESC, id DESC
	`

	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to get entry history: %w", err)
	}
	defer rows.Close()

	history := make([]*domain.EntryHistory, 0)
	for rows.Next() {
		h := &domain.EntryHistory{}
		var changedAt string

		err := rows.Scan(
			&h.ID,
			&h.EntryID,
			&h.FieldName,
			&h.OldValue,
			&h.NewValue,
			&h.ChangeReason,
			&changedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}

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

// query runs an entrySelect query and scans every row
func (r *EntryRepo) query(ctx context.Context, action, query string, args ...any) ([]*domain.TimeEntry, error) {
	return queryEntries(ctx, r.db.Conn(ctx), action, query, args...)
}

func queryEntries(ctx context.Context, conn db.Executor, action, query string, args ...any) ([]*domain.TimeEntry, error) {
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", action, err)
	}
	defer rows.Close()

	entries := make([]*domain.TimeEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
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

// createAuditRecords creates history records for changed fields
func (r *EntryRepo) createAuditRecords(ctx context.Context, old, new *domain.TimeEntry, reason string) error {
	changedAt := formatTime()
	query := `
		INSERT INTO entry_history (entry_id, field_name, old_value, new_value, change_reason, changed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	changes := []struct {
		field    string
		oldValue string
		newValue string
	}{
		{"project_id", strconv.FormatInt(old.ProjectID, 10), strconv.FormatInt(new.ProjectID, 10)},
		{"work_date", domain.FormatDate(old.WorkDate), domain.FormatDate(new.WorkDate)},
		{"hours", old.Hours.String(), new.Hours.String()},
		{"description", old.Description, new.Description},
		{"is_billable", strconv.FormatBool(old.IsBillable), strconv.FormatBool(new.IsBillable)},
		{"status", string(old.Status), string(new.Status)},
		{"rate", old.Rate.StringFixed(2), new.Rate.StringFixed(2)},
		{"amount", old.Amount.StringFixed(2), new.Amount.StringFixed(2)},
	}

	for _, c := range changes {
		if c.oldValue == c.newValue {
			continue
		}
		if _, err := r.db.Conn(ctx).ExecContext(ctx, query, new.ID, c.field, c.oldValue, c.newValue, reason, changedAt); err != nil {
			return fmt.Errorf("failed to audit %s change: %w", c.field, err)
		}
	}

	return nil
}

// scanEntry reads one row selected with entrySelect
func scanEntry(row scanner) (*domain.TimeEntry, error) {
	entry := &domain.TimeEntry{}
	var userID, subID, invoiceID sql.NullInt64
	var workDate, status, createdAt, updatedAt string
	var invoiceNumber, timerStart, timerEnd, importBatch sql.NullString

	err := row.Scan(
		&entry.ID,
		&userID,
		&subID,
		&entry.ProjectID,
		&workDate,
		&entry.Hours,
		&entry.Description,
		&entry.IsBillable,
		&status,
		&entry.Rate,
		&entry.Amount,
		&invoiceID,
		&invoiceNumber,
		&timerStart,
		&timerEnd,
		&entry.ElapsedSeconds,
		&entry.IsPaused,
		&entry.IsDeleted,
		&importBatch,
		&createdAt,
		&updatedAt,
		&entry.ProjectName,
		&entry.ClientID,
		&entry.ClientName,
		&entry.PerformerName,
	)
	if err != nil {
		return nil, err
	}

	entry.UserID = int64Ptr(userID)
	entry.SubcontractorID = int64Ptr(subID)
	entry.InvoiceID = int64Ptr(invoiceID)
	entry.InvoiceNumber = invoiceNumber.String
	entry.ImportBatch = importBatch.String
	entry.Status = domain.EntryStatus(status)

	if entry.WorkDate, err = domain.ParseDate(workDate); err != nil {
		return nil, fmt.Errorf("failed to parse work_date: %w", err)
	}
	if entry.TimerStart, err = parseNullTime(timerStart); err != nil {
		return nil, fmt.Errorf("failed to parse timer_start: %w", err)
	}
	if entry.TimerEnd, err = parseNullTime(timerEnd); err != nil {
		return nil, fmt.Errorf("failed to parse timer_end: %w", err)
	}
	if entry.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if entry.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return entry, nil
}

