package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/andy/timeledger/internal/domain"
	"github.com/andy/timeledger/internal/repository"
)

// LineItemMode controls how unbilled entries become invoice items
type LineItemMode string

const (
	// LineItemsPerRate emits one item per distinct frozen entry rate
	LineItemsPerRate LineItemMode = "per_rate"
	// LineItemsConsolidated emits a single item at the client-level rate
	LineItemsConsolidated LineItemMode = "consolidated"
)

// Valid reports whether m is a known line item mode
func (m LineItemMode) Valid() bool {
	return m == LineItemsPerRate || m == LineItemsConsolidated
}

// InvoiceOptions carries invoicing defaults from configuration
type InvoiceOptions struct {
	DefaultDueDays int
	DefaultTaxRate decimal.Decimal
	LineItems      LineItemMode
}

// CreateInvoiceRequest selects the entries to bill for one client
type CreateInvoiceRequest struct {
	ClientID    int64
	EntryIDs    []int64 // empty bills every unbilled entry of the client
	TaxRate     *decimal.Decimal
	InvoiceDate *time.Time
	Notes       string
}

// UnbilledGroup summarizes a client's unbilled entries
type UnbilledGroup struct {
	ClientID   int64
	ClientName string
	EntryCount int
	Hours      decimal.Decimal
	Amount     decimal.Decimal
	OldestDate time.Time
	NewestDate time.Time
	Entries    []*domain.TimeEntry
}

// InvoiceService manages invoice aggregation and lifecycle
type InvoiceService interface {
	// CreateInvoice bills the client's unbilled entries in one transaction
	CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*domain.Invoice, error)

	// UnbilledSummary groups invoice candidates by client
	UnbilledSummary(ctx context.Context, scope domain.Scope, clientID *int64) ([]UnbilledGroup, error)

	// DeleteInvoice removes a draft invoice and returns its entries to unbilled
	DeleteInvoice(ctx context.Context, id int64) error

	// UpdateStatus moves the invoice through draft, sent and cancelled
	UpdateStatus(ctx context.Context, id int64, status domain.InvoiceStatus) (*domain.Invoice, error)

	// UpdatePayment records the payment state; paid defaults the date to today
	UpdatePayment(ctx context.Context, id int64, status domain.PaymentStatus, date *time.Time) (*domain.Invoice, error)

	// GetInvoice retrieves an invoice with its items and client
	GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error)

	// ListInvoices lists invoices with optional filters
	ListInvoices(ctx context.Context, filter repository.InvoiceFilter) ([]*domain.Invoice, error)
}

type invoiceService struct {
	tx          Transactor
	invoiceRepo repository.InvoiceRepository
	entryRepo   repository.TimeEntryRepository
	clientRepo  repository.ClientRepository
	opts        InvoiceOptions
	clock       Clock
	log         *zap.Logger
}

// NewInvoiceService creates a new invoice service
func NewInvoiceService(
	tx Transactor,
	invoiceRepo repository.InvoiceRepository,
	entryRepo repository.TimeEntryRepository,
	clientRepo repository.ClientRepository,
	opts InvoiceOptions,
	clock Clock,
	log *zap.Logger,
) InvoiceService {
	if opts.DefaultDueDays <= 0 {
		opts.DefaultDueDays = domain.DefaultPaymentTerms
	}
	if !opts.LineItems.Valid() {
		opts.LineItems = LineItemsPerRate
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &invoiceService{
		tx:          tx,
		invoiceRepo: invoiceRepo,
		entryRepo:   entryRepo,
		clientRepo:  clientRepo,
		opts:        opts,
		clock:       clock,
		log:         log,
	}
}

func (s *invoiceService) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*domain.Invoice, error) {
	taxRate := s.opts.DefaultTaxRate
	if req.TaxRate != nil {
		taxRate = *req.TaxRate
	}
	if taxRate.IsNegative() || taxRate.GreaterThan(decimal.NewFromInt(100)) {
		return nil, domain.Invalid("tax_rate", "tax rate must be between 0 and 100")
	}

	invoiceDate := domain.CivilDate(s.clock.now())
	if req.InvoiceDate != nil {
		invoiceDate = *req.InvoiceDate
	}

	var invoice *domain.Invoice
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		client, err := s.clientRepo.GetByID(ctx, req.ClientID)
		if err != nil {
			return err
		}

		entries, err := s.entryRepo.ListUnbilled(ctx, repository.UnbilledFilter{
			Scope:    domain.AdminScope(),
			ClientID: &client.ID,
			EntryIDs: req.EntryIDs,
		})
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return fmt.Errorf("client %s: %w", client.Name, domain.ErrNoBillableEntries)
		}

		number, err := s.invoiceRepo.NextInvoiceNumber(ctx, invoiceDate.Year())
		if err != nil {
			return fmt.Errorf("failed to generate invoice number: %w", err)
		}

		invoice = domain.NewInvoice(number, client.ID, invoiceDate, client.DueDays(s.opts.DefaultDueDays))
		invoice.TaxRate = taxRate
		invoice.Notes = req.Notes
		invoice.Items = s.buildItems(client, entries)
		invoice.CalculateTotals()
		if err := invoice.Validate(); err != nil {
			return err
		}

		if err := s.invoiceRepo.Create(ctx, invoice); err != nil {
			return err
		}

		ids := make([]int64, 0, len(entries))
		for _, e := range entries {
			ids = append(ids, e.ID)
		}
		if err := s.entryRepo.MarkInvoiced(ctx, ids, invoice.ID, invoice.InvoiceNumber); err != nil {
			return err
		}

		invoice.Client = client
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("invoice created",
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.Int64("client_id", invoice.ClientID),
		zap.Int("items", len(invoice.Items)),
		zap.String("total", invoice.Total.StringFixed(2)),
	)
	return invoice, nil
}

// buildItems turns candidate entries into invoice items
func (s *invoiceService) buildItems(client *domain.Client, entries []*domain.TimeEntry) []*domain.InvoiceItem {
	if s.opts.LineItems == LineItemsConsolidated {
		rate := entries[0].Rate
		if r := domain.ClientLevelRate(client); r.Valid {
			rate = r.Decimal
		}
		return []*domain.InvoiceItem{summarizeEntries(entries, rate)}
	}

	// Group by frozen rate, keeping the order in which rates first appear
	groups := make(map[string][]*domain.TimeEntry)
	order := make([]string, 0)
	for _, e := range entries {
		key := e.Rate.StringFixed(4)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], e)
	}

	items := make([]*domain.InvoiceItem, 0, len(order))
	for _, key := range order {
		group := groups[key]
		items = append(items, summarizeEntries(group, group[0].Rate))
	}
	return items
}

// summarizeEntries builds one item covering every entry at the given rate
func summarizeEntries(entries []*domain.TimeEntry, rate decimal.Decimal) *domain.InvoiceItem {
	hours := decimal.Zero
	ids := make([]int64, 0, len(entries))
	first, last := entries[0].WorkDate, entries[0].WorkDate
	for _, e := range entries {
		hours = hours.Add(e.Hours)
		ids = append(ids, e.ID)
		if e.WorkDate.Before(first) {
			first = e.WorkDate
		}
		if e.WorkDate.After(last) {
			last = e.WorkDate
		}
	}

	description := fmt.Sprintf("Professional services %s to %s", domain.FormatDate(first), domain.FormatDate(last))
	return domain.NewInvoiceItem(description, hours, rate, ids)
}

func (s *invoiceService) UnbilledSummary(
	ctx context.Context,
	scope domain.Scope,
	clientID *int64,
) ([]UnbilledGroup, error) {
	entries, err := s.entryRepo.ListUnbilled(ctx, repository.UnbilledFilter{
		Scope:    scope,
		ClientID: clientID,
	})
	if err != nil {
		return nil, err
	}

	byClient := make(map[int64]*UnbilledGroup)
	for _, e := range entries {
		g, ok := byClient[e.ClientID]
		if !ok {
			g = &UnbilledGroup{
				ClientID:   e.ClientID,
				ClientName: e.ClientName,
				Hours:      decimal.Zero,
				Amount:     decimal.Zero,
				OldestDate: e.WorkDate,
				NewestDate: e.WorkDate,
			}
			byClient[e.ClientID] = g
		}
		g.EntryCount++
		g.Hours = g.Hours.Add(e.Hours)
		g.Amount = g.Amount.Add(e.Hours.Mul(e.Rate).Round(2))
		if e.WorkDate.Before(g.OldestDate) {
			g.OldestDate = e.WorkDate
		}
		if e.WorkDate.After(g.NewestDate) {
			g.NewestDate = e.WorkDate
		}
		g.Entries = append(g.Entries, e)
	}

	groups := make([]UnbilledGroup, 0, len(byClient))
	for _, g := range byClient {
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].ClientName < groups[j].ClientName
	})
	return groups, nil
}

func (s *invoiceService) DeleteInvoice(ctx context.Context, id int64) error {
	var released int64
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		invoice, err := s.invoiceRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !invoice.CanDelete() {
			return domain.Preconditionf("invoice %s is %s; only drafts can be deleted", invoice.InvoiceNumber, invoice.Status)
		}

		if released, err = s.entryRepo.ClearInvoice(ctx, id); err != nil {
			return err
		}
		return s.invoiceRepo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.log.Info("invoice deleted", zap.Int64("invoice_id", id), zap.Int64("entries_released", released))
	return nil
}

func (s *invoiceService) UpdateStatus(
	ctx context.Context,
	id int64,
	status domain.InvoiceStatus,
) (*domain.Invoice, error) {
	var invoice *domain.Invoice
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		invoice, err = s.invoiceRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := invoice.TransitionTo(status); err != nil {
			return err
		}
		return s.invoiceRepo.Update(ctx, invoice)
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

func (s *invoiceService) UpdatePayment(
	ctx context.Context,
	id int64,
	status domain.PaymentStatus,
	date *time.Time,
) (*domain.Invoice, error) {
	paidOn := domain.CivilDate(s.clock.now())
	if date != nil {
		paidOn = *date
	}

	var invoice *domain.Invoice
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		invoice, err = s.invoiceRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := invoice.SetPaymentStatus(status, paidOn); err != nil {
			return err
		}
		return s.invoiceRepo.Update(ctx, invoice)
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error) {
	invoice, err := s.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	client, err := s.clientRepo.GetByID(ctx, invoice.ClientID)
	if err != nil {
		return nil, err
	}
	invoice.Client = client
	return invoice, nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, filter repository.InvoiceFilter) ([]*domain.Invoice, error) {
	return s.invoiceRepo.List(ctx, filter)
}
