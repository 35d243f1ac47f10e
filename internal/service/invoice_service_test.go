package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andy/timeledger/internal/domain"
	"github.com/andy/timeledger/internal/repository"
)

// mock implementations

// passthroughTx runs the function without a database
type passthroughTx struct {
	calls int
}

func (p *passthroughTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	p.calls++
	return fn(ctx)
}

type mockInvoiceRepo struct {
	invoices map[int64]*domain.Invoice
	created  *domain.Invoice
	updated  *domain.Invoice
	deleted  []int64
	next     string
}

func (m *mockInvoiceRepo) Create(ctx context.Context, invoice *domain.Invoice) error {
	invoice.ID = 42
	m.created = invoice
	return nil
}
func (m *mockInvoiceRepo) GetByID(ctx context.Context, id int64) (*domain.Invoice, error) {
	if inv, ok := m.invoices[id]; ok {
		return inv, nil
	}
	return nil, domain.NotFound("invoice", id)
}
func (m *mockInvoiceRepo) GetByNumber(ctx context.Context, number string) (*domain.Invoice, error) {
	return nil, domain.ErrNotFound
}
func (m *mockInvoiceRepo) List(ctx context.Context, filter repository.InvoiceFilter) ([]*domain.Invoice, error) {
	return nil, nil
}
func (m *mockInvoiceRepo) Update(ctx context.Context, invoice *domain.Invoice) error {
	m.updated = invoice
	return nil
}
func (m *mockInvoiceRepo) ReplaceItems(ctx context.Context, invoiceID int64, items []*domain.InvoiceItem) error {
	return nil
}
func (m *mockInvoiceRepo) GetItems(ctx context.Context, invoiceID int64) ([]*domain.InvoiceItem, error) {
	return nil, nil
}
func (m *mockInvoiceRepo) Delete(ctx context.Context, id int64) error {
	m.deleted = append(m.deleted, id)
	return nil
}
func (m *mockInvoiceRepo) NextInvoiceNumber(ctx context.Context, year int) (string, error) {
	if m.next != "" {
		return m.next, nil
	}
	return domain.FormatInvoiceNumber(year, 1), nil
}

type mockEntryRepo struct {
	unbilled  []*domain.TimeEntry
	filter    repository.UnbilledFilter
	marked    []int64
	markErr   error
	released  int64
	clearedID int64
}

func (m *mockEntryRepo) Create(ctx context.Context, entry *domain.TimeEntry) error { return nil }
func (m *mockEntryRepo) GetByID(ctx context.Context, id int64) (*domain.TimeEntry, error) {
	return nil, domain.NotFound("time entry", id)
}
func (m *mockEntryRepo) Update(ctx context.Context, entry *domain.TimeEntry, reason string) error {
	return nil
}
func (m *mockEntryRepo) SoftDelete(ctx context.Context, id int64, reason string) error { return nil }
func (m *mockEntryRepo) List(ctx context.Context, filter repository.EntryFilter) ([]*domain.TimeEntry, error) {
	return nil, nil
}
func (m *mockEntryRepo) ListUnbilled(ctx context.Context, filter repository.UnbilledFilter) ([]*domain.TimeEntry, error) {
	m.filter = filter
	return m.unbilled, nil
}
func (m *mockEntryRepo) MarkInvoiced(ctx context.Context, entryIDs []int64, invoiceID int64, invoiceNumber string) error {
	if m.markErr != nil {
		return m.markErr
	}
	m.marked = entryIDs
	return nil
}
func (m *mockEntryRepo) ClearInvoice(ctx context.Context, invoiceID int64) (int64, error) {
	m.clearedID = invoiceID
	return m.released, nil
}
func (m *mockEntryRepo) GetHistory(ctx context.Context, entryID int64) ([]*domain.EntryHistory, error) {
	return nil, nil
}

type mockClientRepo struct {
	client *domain.Client
}

func (m *mockClientRepo) Create(ctx context.Context, client *domain.Client) error { return nil }
func (m *mockClientRepo) GetByID(ctx context.Context, id int64) (*domain.Client, error) {
	if m.client != nil {
		return m.client, nil
	}
	return &domain.Client{ID: id, Name: "ACME", PaymentTerms: 30, IsActive: true}, nil
}
func (m *mockClientRepo) GetByName(ctx context.Context, name string) (*domain.Client, error) {
	return nil, domain.ErrNotFound
}
func (m *mockClientRepo) List(ctx context.Context, includeInactive bool) ([]*domain.Client, error) {
	return nil, nil
}
func (m *mockClientRepo) Update(ctx context.Context, client *domain.Client) error { return nil }
func (m *mockClientRepo) Deactivate(ctx context.Context, id int64) error          { return nil }
func (m *mockClientRepo) Reactivate(ctx context.Context, id int64) error          { return nil }

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func unbilledEntry(id int64, date time.Time, hours, rate string) *domain.TimeEntry {
	e := domain.NewTimeEntry(1, 1, date, decimal.RequireFromString(hours), "work")
	e.ID = id
	e.ClientID = 7
	e.SetRate(decimal.RequireFromString(rate))
	return e
}

func newMockInvoiceService(inv *mockInvoiceRepo, entries *mockEntryRepo, clients *mockClientRepo, opts InvoiceOptions) *invoiceService {
	now := time.Date(2024, 3, 15, 15, 0, 0, 0, time.UTC)
	return NewInvoiceService(&passthroughTx{}, inv, entries, clients, opts, fixedClock(now), nil).(*invoiceService)
}

func TestCreateInvoice_GroupsByRate(t *testing.T) {
	ctx := context.Background()

	entries := &mockEntryRepo{unbilled: []*domain.TimeEntry{
		unbilledEntry(1, domain.NewDate(2024, 3, 1), "2", "150"),
		unbilledEntry(2, domain.NewDate(2024, 3, 4), "1.5", "200"),
		unbilledEntry(3, domain.NewDate(2024, 3, 2), "3", "150"),
	}}
	invoices := &mockInvoiceRepo{next: "2024-0005"}
	svc := newMockInvoiceService(invoices, entries, &mockClientRepo{}, InvoiceOptions{})

	inv, err := svc.CreateInvoice(ctx, CreateInvoiceRequest{ClientID: 7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if inv.InvoiceNumber != "2024-0005" {
		t.Fatalf("expected number 2024-0005, got %s", inv.InvoiceNumber)
	}
	if len(inv.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(inv.Items))
	}

	first := inv.Items[0]
	if !first.Quantity.Equal(decimal.NewFromInt(5)) || !first.Amount.Equal(decimal.NewFromInt(750)) {
		t.Fatalf("expected 5h / 750.00 at 150, got %s / %s", first.Quantity, first.Amount)
	}
	if first.Description != "Professional services 2024-03-01 to 2024-03-02" {
		t.Fatalf("unexpected description %q", first.Description)
	}
	if len(first.TimeEntryIDs) != 2 {
		t.Fatalf("expected 2 entry ids on first item, got %v", first.TimeEntryIDs)
	}

	if !inv.Subtotal.Equal(decimal.NewFromInt(1050)) || !inv.Total.Equal(decimal.NewFromInt(1050)) {
		t.Fatalf("expected subtotal and total 1050, got %s / %s", inv.Subtotal, inv.Total)
	}
	if got := domain.FormatDate(inv.DueDate); got != "2024-04-14" {
		t.Fatalf("expected due date 2024-04-14, got %s", got)
	}
	if len(entries.marked) != 3 {
		t.Fatalf("expected 3 entries marked invoiced, got %v", entries.marked)
	}
	if !entries.filter.Scope.Privileged || *entries.filter.ClientID != 7 {
		t.Fatalf("expected unbilled lookup for client 7, got %+v", entries.filter)
	}
}

func TestCreateInvoice_Consolidated(t *testing.T) {
	ctx := context.Background()

	client := &domain.Client{
		ID:           7,
		Name:         "ACME",
		DefaultRate:  decimal.NewNullDecimal(decimal.NewFromInt(120)),
		PaymentTerms: 15,
		IsActive:     true,
	}
	entries := &mockEntryRepo{unbilled: []*domain.TimeEntry{
		unbilledEntry(1, domain.NewDate(2024, 3, 1), "2", "150"),
		unbilledEntry(2, domain.NewDate(2024, 3, 4), "1", "200"),
	}}
	tax := decimal.RequireFromString("10")
	svc := newMockInvoiceService(&mockInvoiceRepo{}, entries, &mockClientRepo{client: client},
		InvoiceOptions{LineItems: LineItemsConsolidated})

	inv, err := svc.CreateInvoice(ctx, CreateInvoiceRequest{ClientID: 7, TaxRate: &tax})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(inv.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(inv.Items))
	}
	item := inv.Items[0]
	if !item.Rate.Equal(decimal.NewFromInt(120)) || !item.Quantity.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("expected 3h at 120, got %s at %s", item.Quantity, item.Rate)
	}
	if !inv.TaxAmount.Equal(decimal.NewFromInt(36)) || !inv.Total.Equal(decimal.NewFromInt(396)) {
		t.Fatalf("expected tax 36 and total 396, got %s / %s", inv.TaxAmount, inv.Total)
	}
	if got := domain.FormatDate(inv.DueDate); got != "2024-03-30" {
		t.Fatalf("expected due date from client terms, got %s", got)
	}
}

func TestCreateInvoice_NoBillableEntries(t *testing.T) {
	svc := newMockInvoiceService(&mockInvoiceRepo{}, &mockEntryRepo{}, &mockClientRepo{}, InvoiceOptions{})

	_, err := svc.CreateInvoice(context.Background(), CreateInvoiceRequest{ClientID: 7})
	if !errors.Is(err, domain.ErrNoBillableEntries) {
		t.Fatalf("expected ErrNoBillableEntries, got %v", err)
	}
	if !errors.Is(err, domain.ErrPrecondition) {
		t.Fatalf("expected precondition class, got %v", err)
	}
}

func TestCreateInvoice_MarkFailurePropagates(t *testing.T) {
	entries := &mockEntryRepo{
		unbilled: []*domain.TimeEntry{unbilledEntry(1, domain.NewDate(2024, 3, 1), "1", "100")},
		markErr:  domain.Preconditionf("entry 1 already invoiced"),
	}
	svc := newMockInvoiceService(&mockInvoiceRepo{}, entries, &mockClientRepo{}, InvoiceOptions{})

	if _, err := svc.CreateInvoice(context.Background(), CreateInvoiceRequest{ClientID: 7}); !errors.Is(err, domain.ErrPrecondition) {
		t.Fatalf("expected precondition error, got %v", err)
	}
}

func TestCreateInvoice_RejectsTaxRate(t *testing.T) {
	svc := newMockInvoiceService(&mockInvoiceRepo{}, &mockEntryRepo{}, &mockClientRepo{}, InvoiceOptions{})

	tax := decimal.NewFromInt(101)
	_, err := svc.CreateInvoice(context.Background(), CreateInvoiceRequest{ClientID: 7, TaxRate: &tax})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDeleteInvoice_OnlyDrafts(t *testing.T) {
	ctx := context.Background()

	sent := domain.NewInvoice("2024-0001", 7, domain.NewDate(2024, 1, 1), 30)
	sent.ID = 1
	sent.Status = domain.InvoiceStatusSent
	draft := domain.NewInvoice("2024-0002", 7, domain.NewDate(2024, 1, 2), 30)
	draft.ID = 2

	invoices := &mockInvoiceRepo{invoices: map[int64]*domain.Invoice{1: sent, 2: draft}}
	entries := &mockEntryRepo{released: 3}
	svc := newMockInvoiceService(invoices, entries, &mockClientRepo{}, InvoiceOptions{})

	if err := svc.DeleteInvoice(ctx, 1); !errors.Is(err, domain.ErrPrecondition) {
		t.Fatalf("expected precondition error for sent invoice, got %v", err)
	}
	if len(invoices.deleted) != 0 {
		t.Fatalf("sent invoice must not be deleted")
	}

	if err := svc.DeleteInvoice(ctx, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entries.clearedID != 2 || len(invoices.deleted) != 1 {
		t.Fatalf("expected entries released and invoice 2 deleted")
	}
}

func TestUpdatePayment_DefaultsDate(t *testing.T) {
	inv := domain.NewInvoice("2024-0001", 7, domain.NewDate(2024, 1, 1), 30)
	inv.ID = 1
	inv.Status = domain.InvoiceStatusSent
	invoices := &mockInvoiceRepo{invoices: map[int64]*domain.Invoice{1: inv}}
	svc := newMockInvoiceService(invoices, &mockEntryRepo{}, &mockClientRepo{}, InvoiceOptions{})

	got, err := svc.UpdatePayment(context.Background(), 1, domain.PaymentStatusPaid, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.PaymentDate == nil || domain.FormatDate(*got.PaymentDate) != "2024-03-15" {
		t.Fatalf("expected payment date 2024-03-15, got %v", got.PaymentDate)
	}
	if invoices.updated != inv {
		t.Fatalf("expected invoice update to be called")
	}

	if _, err := svc.UpdatePayment(context.Background(), 1, domain.PaymentStatus("bogus"), nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUnbilledSummary_GroupsByClient(t *testing.T) {
	a1 := unbilledEntry(1, domain.NewDate(2024, 3, 5), "2", "100")
	a2 := unbilledEntry(2, domain.NewDate(2024, 3, 1), "1", "100")
	b1 := unbilledEntry(3, domain.NewDate(2024, 2, 1), "4", "50")
	a1.ClientName, a2.ClientName = "Acme", "Acme"
	b1.ClientID, b1.ClientName = 9, "Beta"

	entries := &mockEntryRepo{unbilled: []*domain.TimeEntry{a1, a2, b1}}
	svc := newMockInvoiceService(&mockInvoiceRepo{}, entries, &mockClientRepo{}, InvoiceOptions{})

	groups, err := svc.UnbilledSummary(context.Background(), domain.AdminScope(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 2 || groups[0].ClientName != "Acme" {
		t.Fatalf("expected Acme then Beta, got %+v", groups)
	}
	acme := groups[0]
	if acme.EntryCount != 2 || !acme.Hours.Equal(decimal.NewFromInt(3)) || !acme.Amount.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("unexpected acme totals %+v", acme)
	}
	if domain.FormatDate(acme.OldestDate) != "2024-03-01" || domain.FormatDate(acme.NewestDate) != "2024-03-05" {
		t.Fatalf("unexpected acme date range %s..%s", acme.OldestDate, acme.NewestDate)
	}
}
