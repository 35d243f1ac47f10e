package repository

import (
	"context"
	"fmt"

	"github.com/andy/timeledger/internal/db"
	"github.com/andy/timeledger/internal/domain"
)

// TimerRepo is a SQLite implementation of TimerRepository. Timers live on
// their time entries; there is no separate timer table.
type TimerRepo struct {
	db *db.DB
}

// NewTimerRepo creates a new TimerRepo
func NewTimerRepo(database *db.DB) *TimerRepo {
	return &TimerRepo{db: database}
}

// GetActive retrieves an active timer owned by userID
func (r *TimerRepo) GetActive(ctx context.Context, id, userID int64, pausedOnly bool) (*domain.TimeEntry, error) {
	query := entrySelect + `
		WHERE e.id = ? AND e.user_id = ? AND ` + timerActive + ` AND e.is_deleted = 0`
	if pausedOnly {
		query += " AND e.timer_is_paused = 1"
	}

	entry, err := scanEntry(r.db.Conn(ctx).QueryRowContext(ctx, query, id, userID))
	if err != nil {
		return nil, wrapGetErr("timer", id, err)
	}
	return entry, nil
}

// ListActive retrieves running and paused timers visible to the scope
func (r *TimerRepo) ListActive(ctx context.Context, scope domain.Scope) ([]*domain.TimeEntry, error) {
	query := entrySelect + " WHERE " + timerActive + " AND e.is_deleted = 0"
	clause, args := scopeClause(scope, "e")
	query += clause + " ORDER BY e.timer_start"

	return queryEntries(ctx, r.db.Conn(ctx), "list active timers", query, args...)
}

// Save writes the timer, hours and money columns of an entry
func (r *TimerRepo) Save(ctx context.Context, entry *domain.TimeEntry) error {
	query := `
		UPDATE time_entries
		SET timer_start = ?, timer_end = ?, timer_elapsed_seconds = ?, timer_is_paused = ?,
		    hours = ?, rate = ?, amount = ?, is_deleted = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Conn(ctx).ExecContext(ctx, query,
		nullTime(entry.TimerStart),
		nullTime(entry.TimerEnd),
		entry.ElapsedSeconds,
		entry.IsPaused,
		entry.Hours,
		entry.Rate,
		entry.Amount,
		entry.IsDeleted,
		entry.UpdatedAt.Format(timeLayout),
		entry.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to save timer: %w", err)
	}

	return expectOneRow(result, "timer", entry.ID)
}
