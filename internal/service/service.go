package service

import (
	"context"
	"time"

	"github.com/andy/timeledger/internal/domain"
)

// Transactor runs a function inside one database transaction
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SavepointTransactor additionally supports nested savepoints
type SavepointTransactor interface {
	Transactor
	Savepoint(ctx context.Context, name string, fn func(ctx context.Context) error) error
}

// Clock returns the current time. Tests replace it to control timers.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

// requireAdmin rejects callers without a privileged scope
func requireAdmin(scope domain.Scope, action string) error {
	if !scope.Privileged {
		return domain.Forbiddenf("only admins may %s", action)
	}
	return nil
}
