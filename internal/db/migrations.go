package db

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type migration struct {
	version int
	sql     string
}

// Money, hours and rates are stored as decimal TEXT. Civil dates are
// YYYY-MM-DD TEXT and timestamps are RFC3339 TEXT.
var migrations = []migration{
	{
		version: 1,
		sql: `
-- People
CREATE TABLE users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    email TEXT NOT NULL DEFAULT '',
    role TEXT NOT NULL DEFAULT 'consultant' CHECK (role IN ('admin', 'consultant')),
    is_active INTEGER NOT NULL DEFAULT 1,
    created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
);

INSERT INTO users (id, name, role) VALUES (1, 'Owner', 'admin');

CREATE TABLE subcontractors (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    email TEXT NOT NULL DEFAULT '',
    phone TEXT NOT NULL DEFAULT '',
    company TEXT NOT NULL DEFAULT '',
    hourly_rate TEXT,
    is_active INTEGER NOT NULL DEFAULT 1,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

-- Clients and projects
CREATE TABLE clients (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    code TEXT UNIQUE,
    billing_rate TEXT,
    default_rate TEXT,
    invoice_email TEXT NOT NULL DEFAULT '',
    invoice_cc TEXT NOT NULL DEFAULT '',
    invoice_recipient_name TEXT NOT NULL DEFAULT '',
    payment_terms INTEGER NOT NULL DEFAULT 30,
    notes TEXT NOT NULL DEFAULT '',
    is_active INTEGER NOT NULL DEFAULT 1,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE projects (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    client_id INTEGER NOT NULL REFERENCES clients(id),
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    hourly_rate TEXT,
    budget_hours TEXT,
    budget_amount TEXT,
    status TEXT NOT NULL DEFAULT 'active'
        CHECK (status IN ('active', 'completed', 'on_hold', 'cancelled')),
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    UNIQUE (client_id, name)
);

-- Invoices
CREATE TABLE invoices (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    invoice_number TEXT NOT NULL UNIQUE,
    client_id INTEGER NOT NULL REFERENCES clients(id),
    invoice_date TEXT NOT NULL,
    due_date TEXT NOT NULL,
    subtotal TEXT NOT NULL DEFAULT '0',
    tax_rate TEXT NOT NULL DEFAULT '0',
    tax_amount TEXT NOT NULL DEFAULT '0',
    total_amount TEXT NOT NULL DEFAULT '0',
    status TEXT NOT NULL DEFAULT 'draft' CHECK (status IN ('draft', 'sent', 'cancelled')),
    payment_status TEXT NOT NULL DEFAULT 'unpaid' CHECK (payment_status IN ('unpaid', 'partial', 'paid')),
    payment_date TEXT,
    notes TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE invoice_items (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    invoice_id INTEGER NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
    description TEXT NOT NULL,
    quantity TEXT NOT NULL,
    rate TEXT NOT NULL,
    amount TEXT NOT NULL,
    time_entry_ids TEXT NOT NULL DEFAULT '[]'
);

-- Time entries, including per-entry timers
CREATE TABLE time_entries (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER REFERENCES users(id),
    subcontractor_id INTEGER REFERENCES subcontractors(id),
    project_id INTEGER NOT NULL REFERENCES projects(id),
    work_date TEXT NOT NULL,
    hours TEXT NOT NULL DEFAULT '0',
    description TEXT NOT NULL DEFAULT '',
    is_billable INTEGER NOT NULL DEFAULT 1,
    status TEXT NOT NULL DEFAULT 'draft'
        CHECK (status IN ('draft', 'submitted', 'approved', 'rejected')),
    rate TEXT NOT NULL DEFAULT '0',
    amount TEXT NOT NULL DEFAULT '0',
    invoice_id INTEGER REFERENCES invoices(id),
    invoice_number TEXT,
    timer_start TEXT,
    timer_end TEXT,
    timer_elapsed_seconds INTEGER NOT NULL DEFAULT 0,
    timer_is_paused INTEGER NOT NULL DEFAULT 0,
    is_deleted INTEGER NOT NULL DEFAULT 0,
    import_batch TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    CHECK ((user_id IS NULL) <> (subcontractor_id IS NULL))
);

-- Audit trail for entry edits
CREATE TABLE entry_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    entry_id INTEGER NOT NULL REFERENCES time_entries(id),
    field_name TEXT NOT NULL,
    old_value TEXT NOT NULL DEFAULT '',
    new_value TEXT NOT NULL DEFAULT '',
    change_reason TEXT NOT NULL DEFAULT '',
    changed_at TEXT NOT NULL
);

-- Indexes
CREATE INDEX idx_projects_client ON projects(client_id);
CREATE INDEX idx_entries_project ON time_entries(project_id);
CREATE INDEX idx_entries_user ON time_entries(user_id);
CREATE INDEX idx_entries_work_date ON time_entries(work_date);
CREATE INDEX idx_entries_unbilled ON time_entries(project_id, invoice_id) WHERE invoice_id IS NULL;
CREATE INDEX idx_entries_timers ON time_entries(user_id) WHERE timer_start IS NOT NULL AND timer_end IS NULL;
CREATE INDEX idx_entries_invoice ON time_entries(invoice_id);
CREATE INDEX idx_invoices_client ON invoices(client_id);
CREATE INDEX idx_invoices_status ON invoices(status);
CREATE INDEX idx_history_entry ON entry_history(entry_id);
`,
	},
}

// RunMigrations applies all pending database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	// Ensure schema_version table exists
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	// Apply pending migrations in a transaction
	return db.WithTx(ctx, func(ctx context.Context) error {
		conn := db.Conn(ctx)

		var currentVersion int
		err := conn.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&currentVersion)
		if err != nil {
			return fmt.Errorf("failed to get current schema version: %w", err)
		}

		for _, m := range migrations {
			if m.version <= currentVersion {
				continue
			}

			if _, err := conn.ExecContext(ctx, m.sql); err != nil {
				return fmt.Errorf("failed to apply migration %d: %w", m.version, err)
			}

			if _, err := conn.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
				return fmt.Errorf("failed to record migration %d: %w", m.version, err)
			}
			db.log.Info("applied migration", zap.Int("version", m.version))
		}
		return nil
	})
}

// SchemaVersion returns the highest applied migration
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return v, nil
}
