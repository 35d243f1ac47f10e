package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andy/timeledger/internal/domain"
)

// ClientRepository manages client persistence
type ClientRepository interface {
	Create(ctx context.Context, client *domain.Client) error
	GetByID(ctx context.Context, id int64) (*domain.Client, error)
	GetByName(ctx context.Context, name string) (*domain.Client, error) // Case-insensitive
	List(ctx context.Context, includeInactive bool) ([]*domain.Client, error)
	Update(ctx context.Context, client *domain.Client) error
	Deactivate(ctx context.Context, id int64) error
	Reactivate(ctx context.Context, id int64) error
}

// ProjectFilter narrows project listings
type ProjectFilter struct {
	ClientID *int64
	Status   *domain.ProjectStatus
}

// ProjectRepository manages project persistence
type ProjectRepository interface {
	Create(ctx context.Context, project *domain.Project) error
	GetByID(ctx context.Context, id int64) (*domain.Project, error)
	GetByName(ctx context.Context, clientID int64, name string) (*domain.Project, error)
	List(ctx context.Context, filter ProjectFilter) ([]*domain.Project, error)
	Update(ctx context.Context, project *domain.Project) error
}

// UserRepository manages users
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
}

// SubcontractorRepository manages subcontractors
type SubcontractorRepository interface {
	Create(ctx context.Context, sub *domain.Subcontractor) error
	GetByID(ctx context.Context, id int64) (*domain.Subcontractor, error)
	List(ctx context.Context, includeInactive bool) ([]*domain.Subcontractor, error)
	Update(ctx context.Context, sub *domain.Subcontractor) error
	Deactivate(ctx context.Context, id int64) error
}

// EntryFilter narrows time entry listings. Scope is always applied.
type EntryFilter struct {
	Scope           domain.Scope
	UserID          *int64
	SubcontractorID *int64
	ClientID        *int64
	ProjectID       *int64
	InvoiceID       *int64
	Status          *domain.EntryStatus
	From            *time.Time
	To              *time.Time
	UnbilledOnly    bool
	Limit           int
}

// UnbilledFilter selects invoice candidates
type UnbilledFilter struct {
	Scope    domain.Scope
	ClientID *int64
	EntryIDs []int64
}

// TimeEntryRepository manages time entry persistence with audit trail
type TimeEntryRepository interface {
	Create(ctx context.Context, entry *domain.TimeEntry) error
	GetByID(ctx context.Context, id int64) (*domain.TimeEntry, error)
	Update(ctx context.Context, entry *domain.TimeEntry, reason string) error // Creates audit records
	SoftDelete(ctx context.Context, id int64, reason string) error
	List(ctx context.Context, filter EntryFilter) ([]*domain.TimeEntry, error)
	ListUnbilled(ctx context.Context, filter UnbilledFilter) ([]*domain.TimeEntry, error)
	MarkInvoiced(ctx context.Context, entryIDs []int64, invoiceID int64, invoiceNumber string) error
	ClearInvoice(ctx context.Context, invoiceID int64) (int64, error)
	GetHistory(ctx context.Context, entryID int64) ([]*domain.EntryHistory, error)
}

// TimerRepository manages timers stored on their time entries
type TimerRepository interface {
	// GetActive returns the user's active timer entry, or ErrNotFound.
	// pausedOnly additionally requires the timer to be paused.
	GetActive(ctx context.Context, id, userID int64, pausedOnly bool) (*domain.TimeEntry, error)
	ListActive(ctx context.Context, scope domain.Scope) ([]*domain.TimeEntry, error)
	Save(ctx context.Context, entry *domain.TimeEntry) error
}

// InvoiceFilter narrows invoice listings
type InvoiceFilter struct {
	ClientID      *int64
	Status        *domain.InvoiceStatus
	PaymentStatus *domain.PaymentStatus
	From          *time.Time
	To            *time.Time
}

// InvoiceRepository manages invoice persistence
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *domain.Invoice) error // Inserts items too
	GetByID(ctx context.Context, id int64) (*domain.Invoice, error)
	GetByNumber(ctx context.Context, number string) (*domain.Invoice, error)
	List(ctx context.Context, filter InvoiceFilter) ([]*domain.Invoice, error)
	Update(ctx context.Context, invoice *domain.Invoice) error
	ReplaceItems(ctx context.Context, invoiceID int64, items []*domain.InvoiceItem) error
	GetItems(ctx context.Context, invoiceID int64) ([]*domain.InvoiceItem, error)
	Delete(ctx context.Context, id int64) error
	NextInvoiceNumber(ctx context.Context, year int) (string, error)
}

// EntryFact is the slice of a time entry analytics aggregate over
type EntryFact struct {
	WorkDate        time.Time
	Hours           decimal.Decimal
	Rate            decimal.Decimal
	IsBillable      bool
	Invoiced        bool
	ClientID        int64
	ClientName      string
	ProjectID       int64
	ProjectName     string
	UserID          *int64
	SubcontractorID *int64
	PerformerName   string
}

// AnalyticsRepository reads entry facts for aggregation
type AnalyticsRepository interface {
	Facts(ctx context.Context, scope domain.Scope, from, to time.Time) ([]EntryFact, error)
}
