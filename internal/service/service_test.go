package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/andy/timeledger/internal/db"
	"github.com/andy/timeledger/internal/db/dbtest"
	"github.com/andy/timeledger/internal/domain"
	"github.com/andy/timeledger/internal/importer"
	"github.com/andy/timeledger/internal/repository"
)

// testClock is a settable clock shared by the services under test
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type stack struct {
	db        *db.DB
	clock     *testClock
	clients   ClientService
	projects  ProjectService
	people    PeopleService
	entries   EntryService
	timers    TimerService
	invoices  InvoiceService
	analytics AnalyticsService
	imports   ImportService
}

func newStack(t *testing.T) *stack {
	database := dbtest.New(t)
	log := zaptest.NewLogger(t)
	clock := &testClock{now: time.Date(2024, 3, 15, 14, 0, 0, 0, time.UTC)}

	clientRepo := repository.NewClientRepo(database)
	projectRepo := repository.NewProjectRepo(database)
	userRepo := repository.NewUserRepo(database)
	subRepo := repository.NewSubcontractorRepo(database)
	entryRepo := repository.NewEntryRepo(database)
	timerRepo := repository.NewTimerRepo(database)
	invoiceRepo := repository.NewInvoiceRepo(database)
	analyticsRepo := repository.NewAnalyticsRepo(database)

	rates := NewRateResolver(projectRepo, clientRepo)
	return &stack{
		db:        database,
		clock:     clock,
		clients:   NewClientService(clientRepo),
		projects:  NewProjectService(projectRepo, clientRepo),
		people:    NewPeopleService(userRepo, subRepo),
		entries:   NewEntryService(entryRepo, projectRepo, subRepo, rates),
		timers:    NewTimerService(database, timerRepo, entryRepo, rates, clock.Now),
		invoices:  NewInvoiceService(database, invoiceRepo, entryRepo, clientRepo, InvoiceOptions{}, clock.Now, log),
		analytics: NewAnalyticsService(analyticsRepo, invoiceRepo),
		imports:   NewImportService(database, clientRepo, projectRepo, entryRepo, invoiceRepo, rates, log),
	}
}

func (s *stack) clientWithProject(t *testing.T, name string, billingRate string) (*domain.Client, *domain.Project) {
	t.Helper()
	ctx := context.Background()

	client := domain.NewClient(name)
	if billingRate != "" {
		client.BillingRate = decimal.NewNullDecimal(decimal.RequireFromString(billingRate))
	}
	require.NoError(t, s.clients.Create(ctx, client))

	project := domain.NewProject(client.ID, "General")
	require.NoError(t, s.projects.Create(ctx, project))
	return client, project
}

func (s *stack) logHours(t *testing.T, projectID int64, date time.Time, hours string) *domain.TimeEntry {
	t.Helper()
	entry, err := s.entries.Create(context.Background(), domain.AdminScope(), NewEntry{
		UserID:      1,
		ProjectID:   projectID,
		WorkDate:    date,
		Hours:       decimal.RequireFromString(hours),
		Description: "consulting",
	})
	require.NoError(t, err)
	return entry
}

func TestBilling_EndToEnd(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	client, project := s.clientWithProject(t, "Acme", "150")
	for i, h := range []string{"2", "3", "5"} {
		e := s.logHours(t, project.ID, domain.NewDate(2024, 3, 4+i), h)
		assert.True(t, e.Rate.Equal(decimal.NewFromInt(150)), "rate resolves from client billing rate")
	}

	inv, err := s.invoices.CreateInvoice(ctx, CreateInvoiceRequest{ClientID: client.ID})
	require.NoError(t, err)

	assert.Equal(t, "2024-0001", inv.InvoiceNumber)
	require.Len(t, inv.Items, 1)
	assert.True(t, inv.Items[0].Quantity.Equal(decimal.NewFromInt(10)))
	assert.True(t, inv.Items[0].Rate.Equal(decimal.NewFromInt(150)))
	assert.True(t, inv.Items[0].Amount.Equal(decimal.NewFromInt(1500)))
	assert.True(t, inv.Subtotal.Equal(decimal.NewFromInt(1500)))
	assert.True(t, inv.Total.Equal(decimal.NewFromInt(1500)))

	stored, err := s.invoices.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Len(t, stored.Items[0].TimeEntryIDs, 3)
	assert.Equal(t, "Acme", stored.Client.Name)

	invoiced, err := s.entries.List(ctx, repository.EntryFilter{Scope: domain.AdminScope(), InvoiceID: &inv.ID})
	require.NoError(t, err)
	require.Len(t, invoiced, 3)
	for _, e := range invoiced {
		assert.Equal(t, inv.InvoiceNumber, e.InvoiceNumber)
	}
}

func TestInvoice_UnbilledExclusivityAndRestore(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	client, project := s.clientWithProject(t, "Acme", "")
	entry := s.logHours(t, project.ID, domain.NewDate(2024, 3, 1), "1.25")
	assert.True(t, entry.Rate.Equal(domain.DefaultHourlyRate))

	inv, err := s.invoices.CreateInvoice(ctx, CreateInvoiceRequest{ClientID: client.ID})
	require.NoError(t, err)

	_, err = s.invoices.CreateInvoice(ctx, CreateInvoiceRequest{ClientID: client.ID})
	assert.True(t, errors.Is(err, domain.ErrNoBillableEntries))

	// Invoiced entries are locked
	hours := decimal.NewFromInt(2)
	_, err = s.entries.Update(ctx, domain.AdminScope(), entry.ID, domain.EntryPatch{Hours: &hours}, "fix")
	assert.True(t, errors.Is(err, domain.ErrPrecondition))

	require.NoError(t, s.invoices.DeleteInvoice(ctx, inv.ID))

	groups, err := s.invoices.UnbilledSummary(ctx, domain.AdminScope(), &client.ID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, 1, groups[0].EntryCount)

	again, err := s.invoices.CreateInvoice(ctx, CreateInvoiceRequest{ClientID: client.ID})
	require.NoError(t, err)
	assert.Equal(t, "2024-0001", again.InvoiceNumber, "a deleted draft frees its number")

	_, err = s.invoices.UpdateStatus(ctx, again.ID, domain.InvoiceStatusSent)
	require.NoError(t, err)
	assert.True(t, errors.Is(s.invoices.DeleteInvoice(ctx, again.ID), domain.ErrPrecondition))
}

func TestInvoice_NumbersAreSequential(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	numbers := make([]string, 0, 3)
	for _, name := range []string{"A", "B", "C"} {
		client, project := s.clientWithProject(t, name, "100")
		s.logHours(t, project.ID, domain.NewDate(2024, 2, 1), "1")
		inv, err := s.invoices.CreateInvoice(ctx, CreateInvoiceRequest{ClientID: client.ID})
		require.NoError(t, err)
		numbers = append(numbers, inv.InvoiceNumber)
	}
	assert.Equal(t, []string{"2024-0001", "2024-0002", "2024-0003"}, numbers)

	// A new year starts over
	client, project := s.clientWithProject(t, "D", "100")
	s.logHours(t, project.ID, domain.NewDate(2024, 12, 1), "1")
	date := domain.NewDate(2025, 1, 2)
	inv, err := s.invoices.CreateInvoice(ctx, CreateInvoiceRequest{ClientID: client.ID, InvoiceDate: &date})
	require.NoError(t, err)
	assert.Equal(t, "2025-0001", inv.InvoiceNumber)
}

func TestInvoice_ConcurrentNumbersAreUnique(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	const n = 6
	clientIDs := make([]int64, n)
	for i := range clientIDs {
		client, project := s.clientWithProject(t, string(rune('A'+i)), "100")
		s.logHours(t, project.ID, domain.NewDate(2024, 2, 1), "1")
		clientIDs[i] = client.ID
	}

	var wg sync.WaitGroup
	results := make([]string, n)
	errs := make([]error, n)
	for i, id := range clientIDs {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			inv, err := s.invoices.CreateInvoice(ctx, CreateInvoiceRequest{ClientID: id})
			errs[i] = err
			if err == nil {
				results[i] = inv.InvoiceNumber
			}
		}(i, id)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	sort.Strings(results)
	assert.Equal(t, []string{"2024-0001", "2024-0002", "2024-0003", "2024-0004", "2024-0005", "2024-0006"}, results)
}

func TestTimer_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	_, project := s.clientWithProject(t, "Acme", "120")

	timer, err := s.timers.Start(ctx, 1, project.ID, "pairing", true)
	require.NoError(t, err)
	assert.Equal(t, domain.TimerStateRunning, timer.TimerState())
	assert.Equal(t, "2024-03-15", domain.FormatDate(timer.WorkDate))

	s.clock.Advance(20 * time.Minute)
	paused, err := s.timers.Pause(ctx, timer.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1200), paused.ElapsedSeconds)

	// Pausing again changes nothing
	s.clock.Advance(time.Hour)
	again, err := s.timers.Pause(ctx, timer.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1200), again.ElapsedSeconds)
	assert.True(t, again.IsPaused)

	active, err := s.timers.Active(ctx, domain.Scope{UserID: 1})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, domain.TimerStatePaused, active[0].State)
	assert.Equal(t, int64(1200), active[0].ElapsedSeconds)
	assert.True(t, active[0].AccruedValue.Equal(decimal.NewFromInt(40)))

	_, err = s.timers.Resume(ctx, timer.ID, 2)
	assert.True(t, errors.Is(err, domain.ErrNotFound), "other users cannot touch the timer")

	_, err = s.timers.Resume(ctx, timer.ID, 1)
	require.NoError(t, err)
	_, err = s.timers.Resume(ctx, timer.ID, 1)
	assert.True(t, errors.Is(err, domain.ErrNotFound), "resume requires a paused timer")

	s.clock.Advance(10*time.Minute + time.Second)
	committed, err := s.timers.Commit(ctx, timer.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1801), committed.ElapsedSeconds)
	assert.Equal(t, "0.6", committed.Hours.String())
	assert.True(t, committed.Amount.Equal(decimal.NewFromInt(72)))
	assert.Equal(t, domain.TimerStateCommitted, committed.TimerState())

	_, err = s.timers.Commit(ctx, timer.ID, 1)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	// Committed timers are ordinary unbilled entries
	groups, err := s.invoices.UnbilledSummary(ctx, domain.AdminScope(), nil)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.True(t, groups[0].Hours.Equal(decimal.RequireFromString("0.6")))
}

func TestTimer_ActiveTimersAreNotInvoiced(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	client, project := s.clientWithProject(t, "Acme", "100")
	timer, err := s.timers.Start(ctx, 1, project.ID, "", true)
	require.NoError(t, err)

	_, err = s.invoices.CreateInvoice(ctx, CreateInvoiceRequest{ClientID: client.ID})
	assert.True(t, errors.Is(err, domain.ErrNoBillableEntries))

	require.NoError(t, s.timers.Discard(ctx, timer.ID, 1))
	active, err := s.timers.Active(ctx, domain.AdminScope())
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestEntries_ScopeAndWorkflow(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	_, project := s.clientWithProject(t, "Acme", "100")
	consultant, err := s.people.CreateUser(ctx, "Casey", "casey@example.com", domain.RoleConsultant)
	require.NoError(t, err)
	scope := consultant.Scope()

	entry, err := s.entries.Create(ctx, scope, NewEntry{
		ProjectID: project.ID,
		WorkDate:  domain.NewDate(2024, 3, 1),
		Hours:     decimal.RequireFromString("1.5"),
	})
	require.NoError(t, err)
	assert.Equal(t, consultant.ID, *entry.UserID)

	_, err = s.entries.Create(ctx, scope, NewEntry{
		UserID:    1,
		ProjectID: project.ID,
		WorkDate:  domain.NewDate(2024, 3, 1),
		Hours:     decimal.NewFromInt(1),
	})
	assert.True(t, errors.Is(err, domain.ErrForbidden))

	_, err = s.entries.Create(ctx, scope, NewEntry{
		ProjectID: project.ID,
		WorkDate:  domain.NewDate(2024, 3, 1),
		Hours:     decimal.NewFromInt(25),
	})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	owners := s.logHours(t, project.ID, domain.NewDate(2024, 3, 2), "2")
	_, err = s.entries.Get(ctx, scope, owners.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound), "entries of others are hidden")

	_, err = s.entries.Update(ctx, scope, entry.ID, domain.EntryPatch{}, "")
	assert.True(t, errors.Is(err, domain.ErrValidation))

	rate := decimal.NewFromInt(90)
	updated, err := s.entries.Update(ctx, scope, entry.ID, domain.EntryPatch{Rate: &rate}, "discount")
	require.NoError(t, err)
	assert.True(t, updated.Amount.Equal(decimal.NewFromInt(135)))

	_, err = s.entries.Submit(ctx, scope, entry.ID)
	require.NoError(t, err)
	_, err = s.entries.Approve(ctx, scope, entry.ID)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
	_, err = s.entries.Reject(ctx, domain.AdminScope(), entry.ID, "wrong project")
	require.NoError(t, err)
	reopened, err := s.entries.Reopen(ctx, scope, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EntryStatusDraft, reopened.Status)

	history, err := s.entries.History(ctx, scope, entry.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, history)

	require.NoError(t, s.entries.Delete(ctx, scope, entry.ID, ""))
	_, err = s.entries.Get(ctx, scope, entry.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestEntries_LogSubcontractor(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	_, project := s.clientWithProject(t, "Acme", "100")
	sub := &domain.Subcontractor{Name: "Pat Contractor"}
	require.NoError(t, s.people.CreateSubcontractor(ctx, sub))

	req := NewSubcontractorEntry{
		SubcontractorID: sub.ID,
		ProjectID:       project.ID,
		WorkDate:        domain.NewDate(2024, 3, 1),
		Hours:           decimal.NewFromInt(3),
	}
	_, err := s.entries.LogSubcontractor(ctx, domain.Scope{UserID: 5}, req)
	assert.True(t, errors.Is(err, domain.ErrForbidden))

	entry, err := s.entries.LogSubcontractor(ctx, domain.AdminScope(), req)
	require.NoError(t, err)
	assert.Nil(t, entry.UserID)
	assert.Equal(t, sub.ID, *entry.SubcontractorID)
	assert.True(t, entry.Amount.Equal(decimal.NewFromInt(300)))
}

func TestAnalytics_SeriesIsZeroFilled(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	client, project := s.clientWithProject(t, "Acme", "100")
	s.logHours(t, project.ID, domain.NewDate(2024, 1, 10), "2")
	s.logHours(t, project.ID, domain.NewDate(2024, 3, 5), "3")

	nonBillable := false
	_, err := s.entries.Create(ctx, domain.AdminScope(), NewEntry{
		UserID:    1,
		ProjectID: project.ID,
		WorkDate:  domain.NewDate(2024, 3, 6),
		Hours:     decimal.NewFromInt(1),
		Billable:  &nonBillable,
	})
	require.NoError(t, err)

	_, err = s.invoices.CreateInvoice(ctx, CreateInvoiceRequest{ClientID: client.ID, EntryIDs: nil})
	require.NoError(t, err)

	from, to := domain.NewDate(2024, 1, 1), domain.NewDate(2024, 3, 31)
	series, err := s.analytics.RevenueSeries(ctx, domain.AdminScope(), domain.GranularityMonth, from, to)
	require.NoError(t, err)
	require.Len(t, series, 3)

	assert.Equal(t, "2024-01", series[0].Label)
	assert.True(t, series[0].Revenue.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, "2024-02", series[1].Label)
	assert.True(t, series[1].Revenue.IsZero())
	assert.Equal(t, 0, series[1].EntryCount)
	assert.True(t, series[1].Utilization.IsZero())
	assert.True(t, series[2].Hours.Equal(decimal.NewFromInt(4)))
	assert.True(t, series[2].Revenue.Equal(decimal.NewFromInt(300)))
	assert.True(t, series[2].Utilization.Equal(decimal.NewFromInt(75)))

	summary, err := s.analytics.Summary(ctx, domain.AdminScope(), from, to)
	require.NoError(t, err)
	assert.True(t, summary.Revenue.Equal(decimal.NewFromInt(500)))
	assert.True(t, summary.InvoicedRevenue.Equal(decimal.NewFromInt(500)))
	assert.True(t, summary.UnbilledRevenue.IsZero())
	assert.Equal(t, 3, summary.EntryCount)

	weekly, err := s.analytics.StackedSeries(ctx, domain.AdminScope(), domain.GranularityWeek, from, to, 3)
	require.NoError(t, err)
	require.Len(t, weekly.Series, 1)
	assert.Len(t, weekly.Series[0].Values, len(weekly.Periods))
}

func TestAnalytics_ScopeHidesOtherUsers(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	_, project := s.clientWithProject(t, "Acme", "100")
	s.logHours(t, project.ID, domain.NewDate(2024, 3, 1), "4")

	consultant, err := s.people.CreateUser(ctx, "Casey", "", domain.RoleConsultant)
	require.NoError(t, err)

	summary, err := s.analytics.Summary(ctx, consultant.Scope(), domain.NewDate(2024, 1, 1), domain.NewDate(2024, 12, 31))
	require.NoError(t, err)
	assert.Equal(t, 0, summary.EntryCount)
	assert.True(t, summary.Hours.IsZero())
}

func TestImport_UnmappedRowIsSkipped(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	client, project := s.clientWithProject(t, "Acme", "")
	req := ImportRequest{
		UserID: 1,
		Rows: []ImportRow{
			{
				Record:    importer.Record{Date: "2024-01-15", Hours: decimal.NewFromInt(2), Money: decimal.NewFromInt(300)},
				ClientID:  &client.ID,
				ProjectID: &project.ID,
			},
			{
				Record: importer.Record{Date: "2024-01-16", Hours: decimal.NewFromInt(1), Company: "Unknown"},
			},
		},
	}

	result, err := s.imports.Import(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Entries.Imported)
	assert.Equal(t, 1, result.Entries.Skipped)
	assert.Equal(t, 0, result.Entries.Errors)
	assert.NotEmpty(t, result.BatchID)

	entries, err := s.entries.List(ctx, repository.EntryFilter{Scope: domain.AdminScope()})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Rate.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, result.BatchID, entries[0].ImportBatch)
}

func TestImport_LegacyInvoicesAndBadRows(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	row := func(date, hours, money, invoice, status string) ImportRow {
		return ImportRow{
			Record: importer.Record{
				Date:          date,
				Hours:         decimal.RequireFromString(hours),
				Money:         decimal.RequireFromString(money),
				InvoiceNumber: invoice,
				Status:        status,
			},
			ClientName:  "Globex",
			ProjectName: "Audit",
		}
	}

	result, err := s.imports.Import(ctx, ImportRequest{
		UserID: 1,
		Rows: []ImportRow{
			row("1/15/23", "2", "300", "2023-0042", "Paid"),
			row("2023-01-20", "3", "450", "2023-0042", "Paid"),
			row("13/45/23", "1", "150", "2023-0042", "Paid"),
			row("2023-02-01", "0", "0", "", ""),
			row("2023-02-02", "1", "0", "", "Billed"),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Entries.Imported)
	assert.Equal(t, 1, result.Entries.Skipped)
	assert.Equal(t, 1, result.Entries.Errors)
	require.Len(t, result.ErrorDetails, 1)
	assert.Equal(t, 3, result.ErrorDetails[0].Row)
	assert.Equal(t, 1, result.Invoices.Created)
	assert.Equal(t, 0, result.Invoices.Reused)
	assert.Equal(t, 1, result.ClientsCreated)
	assert.Equal(t, 1, result.ProjectsCreated)

	inv, err := s.invoices.ListInvoices(ctx, repository.InvoiceFilter{})
	require.NoError(t, err)
	require.Len(t, inv, 1)
	full, err := s.invoices.GetInvoice(ctx, inv[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusSent, full.Status)
	assert.Equal(t, domain.PaymentStatusPaid, full.PaymentStatus)
	assert.Equal(t, "2023-02-14", domain.FormatDate(full.DueDate))
	require.Len(t, full.Items, 1)
	assert.True(t, full.Items[0].Quantity.Equal(decimal.NewFromInt(5)))
	assert.True(t, full.Total.Equal(decimal.NewFromInt(750)))

	// The unbilled row has no money, so its rate resolves through the chain
	unbilled, err := s.invoices.UnbilledSummary(ctx, domain.AdminScope(), nil)
	require.NoError(t, err)
	require.Len(t, unbilled, 1)
	assert.True(t, unbilled[0].Amount.Equal(domain.DefaultHourlyRate))

	// Re-importing the same number reuses the invoice
	again, err := s.imports.Import(ctx, ImportRequest{UserID: 1, Rows: []ImportRow{row("2023-01-21", "1", "150", "2023-0042", "Paid")}})
	require.NoError(t, err)
	assert.Equal(t, 0, again.Invoices.Created)
	assert.Equal(t, 1, again.Invoices.Reused)
	assert.Equal(t, 0, again.ClientsCreated)

	full, err = s.invoices.GetInvoice(ctx, inv[0].ID)
	require.NoError(t, err)
	assert.True(t, full.Total.Equal(decimal.NewFromInt(900)))
	assertItemsConsistent(t, full)
}

func legacyRow(client, date, hours, money, invoice string) ImportRow {
	return ImportRow{
		Record: importer.Record{
			Date:          date,
			Hours:         decimal.RequireFromString(hours),
			Money:         decimal.RequireFromString(money),
			InvoiceNumber: invoice,
			Status:        "Paid",
		},
		ClientName:  client,
		ProjectName: "Audit",
	}
}

func assertItemsConsistent(t *testing.T, inv *domain.Invoice) {
	t.Helper()
	sum := decimal.Zero
	for _, item := range inv.Items {
		assert.True(t, item.Amount.Equal(item.Quantity.Mul(item.Rate).Round(2)),
			"item %s: %s x %s != %s", item.Description, item.Quantity, item.Rate, item.Amount)
		sum = sum.Add(item.Amount)
	}
	assert.True(t, inv.Subtotal.Equal(sum))
}

func TestImport_InvoiceNumberOfAnotherClientIsRowError(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	first, err := s.imports.Import(ctx, ImportRequest{UserID: 1, Rows: []ImportRow{
		legacyRow("Globex", "2023-01-10", "2", "300", "2023-0042"),
	}})
	require.NoError(t, err)
	require.Equal(t, 1, first.Invoices.Created)

	second, err := s.imports.Import(ctx, ImportRequest{UserID: 1, Rows: []ImportRow{
		legacyRow("Initech", "2023-01-11", "3", "100", "2023-0042"),
	}})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Entries.Imported)
	assert.Equal(t, 1, second.Entries.Errors)
	assert.Equal(t, 0, second.Invoices.Reused)
	require.Len(t, second.ErrorDetails, 1)
	assert.Contains(t, second.ErrorDetails[0].Message, "another client")

	invoices, err := s.invoices.ListInvoices(ctx, repository.InvoiceFilter{})
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	full, err := s.invoices.GetInvoice(ctx, invoices[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Globex", full.Client.Name)
	assert.True(t, full.Total.Equal(decimal.NewFromInt(300)))

	linked, err := s.entries.List(ctx, repository.EntryFilter{Scope: domain.AdminScope(), InvoiceID: &full.ID})
	require.NoError(t, err)
	require.Len(t, linked, 1)
	assert.Equal(t, "Globex", linked[0].ClientName)
}

func TestImport_DoesNotReuseGeneratedInvoice(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	client, project := s.clientWithProject(t, "Acme", "150")
	s.logHours(t, project.ID, domain.NewDate(2024, 3, 4), "2")
	inv, err := s.invoices.CreateInvoice(ctx, CreateInvoiceRequest{ClientID: client.ID})
	require.NoError(t, err)

	row := legacyRow("", "2024-03-05", "1", "90", inv.InvoiceNumber)
	row.ClientID = &client.ID
	row.ProjectID = &project.ID
	result, err := s.imports.Import(ctx, ImportRequest{UserID: 1, Rows: []ImportRow{row}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Entries.Errors)
	assert.Equal(t, 0, result.Invoices.Reused)

	stored, err := s.invoices.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.True(t, stored.Total.Equal(decimal.NewFromInt(300)))
}

func TestImport_LegacyMoneyRoundTrips(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	result, err := s.imports.Import(ctx, ImportRequest{UserID: 1, Rows: []ImportRow{
		legacyRow("Globex", "2023-01-10", "2", "300", "2023-0042"),
		legacyRow("Globex", "2023-01-11", "3", "100", "2023-0042"),
	}})
	require.NoError(t, err)
	require.Equal(t, 2, result.Entries.Imported)

	entries, err := s.entries.List(ctx, repository.EntryFilter{Scope: domain.AdminScope()})
	require.NoError(t, err)
	amounts := make([]string, 0, len(entries))
	for _, e := range entries {
		amounts = append(amounts, e.Amount.StringFixed(2))
	}
	sort.Strings(amounts)
	assert.Equal(t, []string{"100.00", "300.00"}, amounts)

	invoices, err := s.invoices.ListInvoices(ctx, repository.InvoiceFilter{})
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	full, err := s.invoices.GetInvoice(ctx, invoices[0].ID)
	require.NoError(t, err)
	require.Len(t, full.Items, 1)
	assert.True(t, full.Items[0].Quantity.Equal(decimal.NewFromInt(5)))
	assert.True(t, full.Items[0].Rate.Equal(decimal.NewFromInt(80)))
	assertItemsConsistent(t, full)
	assert.True(t, full.Total.Equal(decimal.NewFromInt(400)))
}

func TestImport_HoursRoundedAndCapped(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)

	result, err := s.imports.Import(ctx, ImportRequest{UserID: 1, Rows: []ImportRow{
		legacyRow("Globex", "2023-01-10", "1.333", "200", ""),
		legacyRow("Globex", "2023-01-11", "25", "100", ""),
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Entries.Imported)
	assert.Equal(t, 1, result.Entries.Errors)
	require.Len(t, result.ErrorDetails, 1)
	assert.Equal(t, 2, result.ErrorDetails[0].Row)

	entries, err := s.entries.List(ctx, repository.EntryFilter{Scope: domain.AdminScope()})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "1.33", entries[0].Hours.String())
	assert.True(t, entries[0].Amount.Equal(decimal.NewFromInt(200)))
}
