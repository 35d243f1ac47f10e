// Package dbtest opens throwaway migrated databases for tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/andy/timeledger/internal/db"
)

// New returns a migrated pure-Go SQLite database under t.TempDir
func New(t testing.TB) *db.DB {
	t.Helper()

	opts := db.Options{
		Path:   filepath.Join(t.TempDir(), "timeledger.db"),
		Driver: db.DriverSQLite,
	}
	database, err := db.Open(opts, "", zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := database.RunMigrations(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return database
}
