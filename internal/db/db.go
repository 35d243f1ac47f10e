package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mutecomm/go-sqlcipher/v4"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Supported drivers
const (
	DriverSQLCipher = "sqlcipher"
	DriverSQLite    = "sqlite"
)

// Options configures how the database is opened
type Options struct {
	Path        string
	Driver      string
	BusyTimeout time.Duration
}

// Executor is satisfied by both *sql.DB and *sql.Tx
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

type DB struct {
	*sql.DB
	log    *zap.Logger
	driver string
}

type txKey struct{}

// Open opens the SQLite database described by opts. The key is only used by
// the sqlcipher driver.
func Open(opts Options, key string, log *zap.Logger) (*DB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = 5 * time.Second
	}

	// Create parent directories if they don't exist
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	driverName, dsn, err := dataSource(opts, key)
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Ping to verify connection (and the key, for encrypted databases)
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Debug("database opened", zap.String("path", opts.Path), zap.String("driver", opts.Driver))
	return Wrap(sqlDB, opts.Driver, log), nil
}

// Wrap adapts an already opened *sql.DB
func Wrap(sqlDB *sql.DB, driver string, log *zap.Logger) *DB {
	if log == nil {
		log = zap.NewNop()
	}
	return &DB{DB: sqlDB, log: log, driver: driver}
}

// dataSource builds the driver name and connection string. Foreign keys,
// WAL, the busy timeout and immediate write transactions are set per
// connection through the DSN.
func dataSource(opts Options, key string) (string, string, error) {
	timeout := strconv.FormatInt(opts.BusyTimeout.Milliseconds(), 10)
	q := url.Values{}

	switch opts.Driver {
	case DriverSQLCipher, "":
		if key == "" {
			return "", "", errors.New("sqlcipher driver requires an encryption key")
		}
		q.Set("_key", key)
		q.Set("_foreign_keys", "1")
		q.Set("_busy_timeout", timeout)
		q.Set("_journal_mode", "WAL")
		q.Set("_txlock", "immediate")
		return "sqlite3", opts.Path + "?" + q.Encode(), nil
	case DriverSQLite:
		q.Add("_pragma", "foreign_keys(1)")
		q.Add("_pragma", "busy_timeout("+timeout+")")
		q.Add("_pragma", "journal_mode(WAL)")
		q.Set("_txlock", "immediate")
		return "sqlite", opts.Path + "?" + q.Encode(), nil
	default:
		return "", "", fmt.Errorf("unsupported database driver %q", opts.Driver)
	}
}

// DefaultPath returns ~/.config/timeledger/timeledger.db
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "timeledger", "timeledger.db"), nil
}

// Conn returns the transaction carried by ctx, or the database itself
func (db *DB) Conn(ctx context.Context) Executor {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return db.DB
}

// InTx reports whether ctx carries a transaction
func InTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*sql.Tx)
	return ok
}

// WithTx runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back when it returns an error or panics. Calls
// nested inside an open transaction join it.
func (db *DB) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if InTx(ctx) {
		return fn(ctx)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.log.Warn("rollback failed", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Savepoint runs fn inside a named savepoint of the transaction carried by
// ctx. On error only the work done by fn is undone and the outer transaction
// stays usable.
func (db *DB) Savepoint(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)
	if !ok {
		return errors.New("savepoint requires an open transaction")
	}

	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("failed to create savepoint: %w", err)
	}

	if err := fn(ctx); err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO "+name); rbErr != nil {
			return fmt.Errorf("failed to roll back savepoint: %w", rbErr)
		}
		if _, relErr := tx.ExecContext(ctx, "RELEASE "+name); relErr != nil {
			return fmt.Errorf("failed to release savepoint: %w", relErr)
		}
		return err
	}

	if _, err := tx.ExecContext(ctx, "RELEASE "+name); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}
	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
