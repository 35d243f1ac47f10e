package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andy/timeledger/internal/domain"
)

// timeLayout is the RFC3339 format for storing times in SQLite
const timeLayout = time.RFC3339

// parseTime parses a time string in RFC3339 format
func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// formatTime returns the current time formatted as RFC3339
func formatTime() string {
	return time.Now().Format(timeLayout)
}

// nullTime converts an optional timestamp into a column value
func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(timeLayout)
}

// parseNullTime parses an optional RFC3339 column
func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// nullDate converts an optional civil date into a column value
func nullDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return domain.FormatDate(*t)
}

// parseNullDate parses an optional YYYY-MM-DD column
func parseNullDate(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := domain.ParseDate(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// nullInt64 converts an optional id into a column value
func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

// int64Ptr returns the value of a nullable integer column
func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}

// nullString stores empty strings as NULL
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// placeholders returns "?, ?, ?" for n arguments
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
// Both drivers only expose the condition through the message.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// wrapWriteErr classifies a failed insert or update
func wrapWriteErr(action string, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("failed to %s: %w: %v", action, domain.ErrConflict, err)
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}

// wrapGetErr turns sql.ErrNoRows into domain.ErrNotFound
func wrapGetErr(entity string, id any, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %v: %w", entity, id, domain.ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", entity, err)
}

// scanner is implemented by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

// scopeClause restricts time entries aliased as alias to the scope
func scopeClause(scope domain.Scope, alias string) (string, []any) {
	if scope.Privileged {
		return "", nil
	}
	return fmt.Sprintf(" AND %s.user_id = ?", alias), []any{scope.UserID}
}
