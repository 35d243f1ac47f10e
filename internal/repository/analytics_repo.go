package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/andy/timeledger/internal/db"
	"github.com/andy/timeledger/internal/domain"
)

// AnalyticsRepo is a SQLite implementation of AnalyticsRepository
type AnalyticsRepo struct {
	db *db.DB
}

// NewAnalyticsRepo creates a new AnalyticsRepo
func NewAnalyticsRepo(database *db.DB) *AnalyticsRepo {
	return &AnalyticsRepo{db: database}
}

// Facts returns one row per non-deleted, timer-free entry worked in [from, to]
// and visible to the scope. Revenue is derived by the caller from hours and rate.
func (r *AnalyticsRepo) Facts(ctx context.Context, scope domain.Scope, from, to time.Time) ([]EntryFact, error) {
	query := `
		SELECT e.work_date, e.hours, e.rate, e.is_billable, e.invoice_id IS NOT NULL,
		       p.client_id, c.name, e.project_id, p.name, e.user_id, e.subcontractor_id,
		       COALESCE(u.name, s.name, '')
		FROM time_entries e
		JOIN projects p ON p.id = e.project_id
		JOIN clients c ON c.id = p.client_id
		LEFT JOIN users u ON u.id = e.user_id
		LEFT JOIN subcontractors s ON s.id = e.subcontractor_id
		WHERE e.is_deleted = 0
		  AND e.work_date >= ?
		  AND e.work_date <= ?
		  AND NOT (` + timerActive + `)`
	args := []any{domain.FormatDate(from), domain.FormatDate(to)}

	clause, scopeArgs := scopeClause(scope, "e")
	query += clause + " ORDER BY e.work_date"
	args = append(args, scopeArgs...)

	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query analytics facts: %w", err)
	}
	defer rows.Close()

	facts := make([]EntryFact, 0)
	for rows.Next() {
		var f EntryFact
		var workDate string
		var userID, subID sql.NullInt64

		err := rows.Scan(
			&workDate,
			&f.Hours,
			&f.Rate,
			&f.IsBillable,
			&f.Invoiced,
			&f.ClientID,
			&f.ClientName,
			&f.ProjectID,
			&f.ProjectName,
			&userID,
			&subID,
			&f.PerformerName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analytics fact: %w", err)
		}

		if f.WorkDate, err = domain.ParseDate(workDate); err != nil {
			return nil, fmt.Errorf("failed to parse work_date: %w", err)
		}
		f.UserID = int64Ptr(userID)
		f.SubcontractorID = int64Ptr(subID)

		facts = append(facts, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating analytics facts: %w", err)
	}

	return facts, nil
}
