package db

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ResetScope selects which data Reset deletes
type ResetScope string

const (
	ResetInvoices ResetScope = "invoices" // invoices only; entries become unbilled
	ResetEntries  ResetScope = "entries"  // invoices and every time entry
	ResetAll      ResetScope = "all"      // everything except users
)

// Tables to clear per scope, children first
var resetTables = map[ResetScope][]string{
	ResetInvoices: {"invoice_items", "invoices"},
	ResetEntries:  {"invoice_items", "invoices", "entry_history", "time_entries"},
	ResetAll: {
		"invoice_items", "invoices", "entry_history", "time_entries",
		"projects", "clients", "subcontractors",
	},
}

// Reset deletes data in one transaction
func (db *DB) Reset(ctx context.Context, scope ResetScope) error {
	tables, ok := resetTables[scope]
	if !ok {
		return fmt.Errorf("unknown reset scope %q", scope)
	}

	return db.WithTx(ctx, func(ctx context.Context) error {
		conn := db.Conn(ctx)

		// Clear invoice references from entries before deleting invoices
		if _, err := conn.ExecContext(ctx, "UPDATE time_entries SET invoice_id = NULL WHERE invoice_id IS NOT NULL"); err != nil {
			return fmt.Errorf("failed to unlock entries: %w", err)
		}

		for _, table := range tables {
			if _, err := conn.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		db.log.Warn("database reset", zap.String("scope", string(scope)))
		return nil
	})
}
