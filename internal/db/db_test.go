package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := Open(Options{Path: filepath.Join(t.TempDir(), "test.db"), Driver: DriverSQLite}, "", nil)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.RunMigrations(context.Background()))
	return database
}

func countClients(t *testing.T, database *DB) int {
	t.Helper()
	var n int
	require.NoError(t, database.QueryRow("SELECT COUNT(*) FROM clients").Scan(&n))
	return n
}

const insertClient = `INSERT INTO clients (name, created_at, updated_at) VALUES (?, '2025-01-01T00:00:00Z', '2025-01-01T00:00:00Z')`

func TestRunMigrations_Idempotent(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)

	require.NoError(t, database.RunMigrations(ctx))

	v, err := database.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), v)

	var role string
	require.NoError(t, database.QueryRow("SELECT role FROM users WHERE id = 1").Scan(&role))
	assert.Equal(t, "admin", role)
}

func TestWithTx_CommitAndRollback(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)

	err := database.WithTx(ctx, func(ctx context.Context) error {
		_, err := database.Conn(ctx).ExecContext(ctx, insertClient, "Acme")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countClients(t, database))

	boom := errors.New("boom")
	err = database.WithTx(ctx, func(ctx context.Context) error {
		if _, err := database.Conn(ctx).ExecContext(ctx, insertClient, "Globex"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, countClients(t, database))
}

func TestWithTx_NestedJoinsOuter(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)

	err := database.WithTx(ctx, func(ctx context.Context) error {
		if err := database.WithTx(ctx, func(ctx context.Context) error {
			_, err := database.Conn(ctx).ExecContext(ctx, insertClient, "Inner")
			return err
		}); err != nil {
			return err
		}
		return errors.New("outer fails")
	})
	require.Error(t, err)
	assert.Equal(t, 0, countClients(t, database))
}

func TestSavepoint_UndoesOnlyInnerWork(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)

	err := database.WithTx(ctx, func(ctx context.Context) error {
		if _, err := database.Conn(ctx).ExecContext(ctx, insertClient, "Kept"); err != nil {
			return err
		}
		spErr := database.Savepoint(ctx, "row_1", func(ctx context.Context) error {
			if _, err := database.Conn(ctx).ExecContext(ctx, insertClient, "Dropped"); err != nil {
				return err
			}
			// duplicate name violates the unique constraint
			_, err := database.Conn(ctx).ExecContext(ctx, insertClient, "Kept")
			return err
		})
		assert.Error(t, spErr)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countClients(t, database))

	err = database.Savepoint(ctx, "outside", func(ctx context.Context) error { return nil })
	assert.Error(t, err)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	database := Wrap(sqlDB, DriverSQLite, nil)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO clients").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = database.WithTx(context.Background(), func(ctx context.Context) error {
		_, err := database.Conn(ctx).ExecContext(ctx, insertClient, "Acme")
		return err
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	database := Wrap(sqlDB, DriverSQLite, nil)

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = database.WithTx(context.Background(), func(ctx context.Context) error {
			panic("unexpected")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDataSource(t *testing.T) {
	_, _, err := dataSource(Options{Path: "x.db", Driver: DriverSQLCipher}, "")
	assert.Error(t, err)

	name, dsn, err := dataSource(Options{Path: "x.db", Driver: DriverSQLCipher}, "secret")
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", name)
	assert.Contains(t, dsn, "_key=secret")
	assert.Contains(t, dsn, "_txlock=immediate")

	name, dsn, err = dataSource(Options{Path: "x.db", Driver: DriverSQLite}, "")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", name)
	assert.Contains(t, dsn, "_txlock=immediate")

	_, _, err = dataSource(Options{Path: "x.db", Driver: "postgres"}, "")
	assert.Error(t, err)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)

	_, err := database.ExecContext(ctx, insertClient, "Acme")
	require.NoError(t, err)

	require.NoError(t, database.Reset(ctx, ResetInvoices))
	require.NoError(t, database.Reset(ctx, ResetEntries))
	assert.Equal(t, 1, countClients(t, database))

	require.NoError(t, database.Reset(ctx, ResetAll))
	assert.Equal(t, 0, countClients(t, database))

	var users int
	require.NoError(t, database.QueryRow("SELECT COUNT(*) FROM users").Scan(&users))
	assert.Equal(t, 1, users)

	assert.Error(t, database.Reset(ctx, "everything"))
}
