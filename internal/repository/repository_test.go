package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andy/timeledger/internal/db"
	"github.com/andy/timeledger/internal/db/dbtest"
	"github.com/andy/timeledger/internal/domain"
)

type fixture struct {
	db       *db.DB
	clients  *ClientRepo
	projects *ProjectRepo
	users    *UserRepo
	subs     *SubcontractorRepo
	entries  *EntryRepo
	timers   *TimerRepo
	invoices *InvoiceRepo
	facts    *AnalyticsRepo
}

func newFixture(t *testing.T) *fixture {
	database := dbtest.New(t)
	return &fixture{
		db:       database,
		clients:  NewClientRepo(database),
		projects: NewProjectRepo(database),
		users:    NewUserRepo(database),
		subs:     NewSubcontractorRepo(database),
		entries:  NewEntryRepo(database),
		timers:   NewTimerRepo(database),
		invoices: NewInvoiceRepo(database),
		facts:    NewAnalyticsRepo(database),
	}
}

func (f *fixture) clientAndProject(t *testing.T, name string) (*domain.Client, *domain.Project) {
	t.Helper()
	ctx := context.Background()

	client := domain.NewClient(name)
	require.NoError(t, f.clients.Create(ctx, client))

	project := domain.NewProject(client.ID, name+" retainer")
	require.NoError(t, f.projects.Create(ctx, project))
	return client, project
}

func (f *fixture) entry(t *testing.T, userID, projectID int64, date time.Time, hours string) *domain.TimeEntry {
	t.Helper()
	e := domain.NewTimeEntry(userID, projectID, date, decimal.RequireFromString(hours), "work")
	e.SetRate(decimal.NewFromInt(100))
	require.NoError(t, f.entries.Create(context.Background(), e))
	return e
}

func TestClientRepo_CRUD(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	client := domain.NewClient("Acme Corp")
	client.Code = "ACME"
	client.BillingRate = decimal.NewNullDecimal(decimal.RequireFromString("150.50"))
	require.NoError(t, f.clients.Create(ctx, client))

	got, err := f.clients.GetByName(ctx, "acme corp")
	require.NoError(t, err)
	assert.Equal(t, client.ID, got.ID)
	assert.Equal(t, "ACME", got.Code)
	require.True(t, got.BillingRate.Valid)
	assert.Equal(t, "150.5", got.BillingRate.Decimal.String())
	assert.False(t, got.DefaultRate.Valid)

	dup := domain.NewClient("Acme Corp")
	assert.ErrorIs(t, f.clients.Create(ctx, dup), domain.ErrConflict)

	// empty codes are stored as NULL and do not collide
	require.NoError(t, f.clients.Create(ctx, domain.NewClient("Globex")))
	require.NoError(t, f.clients.Create(ctx, domain.NewClient("Initech")))

	require.NoError(t, f.clients.Deactivate(ctx, client.ID))
	active, err := f.clients.List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	all, err := f.clients.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = f.clients.GetByID(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, f.clients.Reactivate(ctx, 999), domain.ErrNotFound)
}

func TestProjectRepo_ListByClient(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	acme, _ := f.clientAndProject(t, "Acme")
	f.clientAndProject(t, "Globex")

	extra := domain.NewProject(acme.ID, "Audit")
	extra.HourlyRate = decimal.NewNullDecimal(decimal.NewFromInt(210))
	require.NoError(t, f.projects.Create(ctx, extra))

	projects, err := f.projects.List(ctx, ProjectFilter{ClientID: &acme.ID})
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "Acme", projects[0].ClientName)

	got, err := f.projects.GetByName(ctx, acme.ID, "AUDIT")
	require.NoError(t, err)
	assert.True(t, got.HourlyRate.Decimal.Equal(decimal.NewFromInt(210)))

	assert.ErrorIs(t, f.projects.Create(ctx, domain.NewProject(acme.ID, "Audit")), domain.ErrConflict)
}

func TestEntryRepo_ScopeAndFilters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, project := f.clientAndProject(t, "Acme")

	consultant := &domain.User{Name: "Casey", Role: domain.RoleConsultant, IsActive: true, CreatedAt: time.Now()}
	require.NoError(t, f.users.Create(ctx, consultant))

	f.entry(t, 1, project.ID, domain.NewDate(2025, 1, 6), "2")
	f.entry(t, consultant.ID, project.ID, domain.NewDate(2025, 1, 7), "3")
	mine := f.entry(t, consultant.ID, project.ID, domain.NewDate(2025, 2, 3), "1.5")

	all, err := f.entries.List(ctx, EntryFilter{Scope: domain.AdminScope()})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	own, err := f.entries.List(ctx, EntryFilter{Scope: consultant.Scope()})
	require.NoError(t, err)
	assert.Len(t, own, 2)

	from := domain.NewDate(2025, 2, 1)
	feb, err := f.entries.List(ctx, EntryFilter{Scope: consultant.Scope(), From: &from})
	require.NoError(t, err)
	require.Len(t, feb, 1)
	assert.Equal(t, mine.ID, feb[0].ID)
	assert.Equal(t, "Casey", feb[0].PerformerName)
	assert.Equal(t, "Acme", feb[0].ClientName)
	assert.True(t, feb[0].Hours.Equal(decimal.RequireFromString("1.5")))
	assert.True(t, feb[0].Amount.Equal(decimal.NewFromInt(150)))
}

func TestEntryRepo_UpdateWritesAudit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, project := f.clientAndProject(t, "Acme")

	e := f.entry(t, 1, project.ID, domain.NewDate(2025, 1, 6), "2")
	e.Hours = decimal.NewFromInt(3)
	e.Description = "reworked"
	e.RecomputeAmount()
	require.NoError(t, f.entries.Update(ctx, e, "typo"))

	history, err := f.entries.GetHistory(ctx, e.ID)
	require.NoError(t, err)

	fields := map[string]*domain.EntryHistory{}
	for _, h := range history {
		fields[h.FieldName] = h
	}
	require.Contains(t, fields, "hours")
	assert.Equal(t, "2", fields["hours"].OldValue)
	assert.Equal(t, "3", fields["hours"].NewValue)
	assert.Equal(t, "typo", fields["hours"].ChangeReason)
	assert.Contains(t, fields, "description")
	assert.Contains(t, fields, "amount")
	assert.NotContains(t, fields, "rate")
}

func TestEntryRepo_InvoicedEntriesAreLocked(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	client, project := f.clientAndProject(t, "Acme")

	a := f.entry(t, 1, project.ID, domain.NewDate(2025, 1, 6), "2")
	b := f.entry(t, 1, project.ID, domain.NewDate(2025, 1, 7), "3")

	inv := domain.NewInvoice("2025-0001", client.ID, domain.NewDate(2025, 1, 31), 30)
	require.NoError(t, f.invoices.Create(ctx, inv))
	require.NoError(t, f.entries.MarkInvoiced(ctx, []int64{a.ID}, inv.ID, inv.InvoiceNumber))

	// marking an already invoiced entry fails as a whole
	err := f.entries.MarkInvoiced(ctx, []int64{b.ID, a.ID}, inv.ID, inv.InvoiceNumber)
	assert.ErrorIs(t, err, domain.ErrPrecondition)
	got, err := f.entries.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Nil(t, got.InvoiceID)

	locked, err := f.entries.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "2025-0001", locked.InvoiceNumber)
	assert.ErrorIs(t, f.entries.Update(ctx, locked, "edit"), domain.ErrPrecondition)
	assert.ErrorIs(t, f.entries.SoftDelete(ctx, a.ID, "oops"), domain.ErrPrecondition)

	n, err := f.entries.ClearInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, f.entries.SoftDelete(ctx, a.ID, "duplicate"))
	_, err = f.entries.GetHistory(ctx, a.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, f.entries.SoftDelete(ctx, a.ID, "again"), domain.ErrNotFound)
}

func TestEntryRepo_ListUnbilled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acme, acmeProject := f.clientAndProject(t, "Acme")
	_, globexProject := f.clientAndProject(t, "Globex")

	keep := f.entry(t, 1, acmeProject.ID, domain.NewDate(2025, 1, 6), "2")
	f.entry(t, 1, globexProject.ID, domain.NewDate(2025, 1, 6), "2")

	nonBillable := domain.NewTimeEntry(1, acmeProject.ID, domain.NewDate(2025, 1, 7), decimal.NewFromInt(1), "")
	nonBillable.IsBillable = false
	require.NoError(t, f.entries.Create(ctx, nonBillable))

	rejected := domain.NewTimeEntry(1, acmeProject.ID, domain.NewDate(2025, 1, 7), decimal.NewFromInt(1), "")
	rejected.Status = domain.EntryStatusRejected
	require.NoError(t, f.entries.Create(ctx, rejected))

	running := domain.NewTimerEntry(1, acmeProject.ID, "", time.Now())
	require.NoError(t, f.entries.Create(ctx, running))

	deleted := f.entry(t, 1, acmeProject.ID, domain.NewDate(2025, 1, 8), "4")
	require.NoError(t, f.entries.SoftDelete(ctx, deleted.ID, ""))

	got, err := f.entries.ListUnbilled(ctx, UnbilledFilter{Scope: domain.AdminScope(), ClientID: &acme.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, keep.ID, got[0].ID)

	got, err = f.entries.ListUnbilled(ctx, UnbilledFilter{Scope: domain.AdminScope(), EntryIDs: []int64{keep.ID, nonBillable.ID}})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	everyone, err := f.entries.ListUnbilled(ctx, UnbilledFilter{Scope: domain.AdminScope()})
	require.NoError(t, err)
	assert.Len(t, everyone, 2)
}

func TestTimerRepo_GetActive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, project := f.clientAndProject(t, "Acme")

	start := time.Now().Add(-time.Hour).Truncate(time.Second)
	e := domain.NewTimerEntry(1, project.ID, "call", start)
	require.NoError(t, f.entries.Create(ctx, e))

	got, err := f.timers.GetActive(ctx, e.ID, 1, false)
	require.NoError(t, err)
	require.NotNil(t, got.TimerStart)
	assert.True(t, got.TimerStart.Equal(start))

	_, err = f.timers.GetActive(ctx, e.ID, 2, false)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.timers.GetActive(ctx, e.ID, 1, true)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got.Pause(start.Add(30 * time.Minute))
	require.NoError(t, f.timers.Save(ctx, got))

	paused, err := f.timers.GetActive(ctx, e.ID, 1, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1800), paused.ElapsedSeconds)

	require.NoError(t, paused.Commit(start.Add(2*time.Hour), decimal.NewFromInt(100)))
	require.NoError(t, f.timers.Save(ctx, paused))

	_, err = f.timers.GetActive(ctx, e.ID, 1, false)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	active, err := f.timers.ListActive(ctx, domain.AdminScope())
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestInvoiceRepo_NextInvoiceNumber(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	client, _ := f.clientAndProject(t, "Acme")

	n, err := f.invoices.NextInvoiceNumber(ctx, 2025)
	require.NoError(t, err)
	assert.Equal(t, "2025-0001", n)

	for _, number := range []string{"2025-0009", "2025-0010", "2024-0042", "2025-0011-B", "LEGACY-7"} {
		require.NoError(t, f.invoices.Create(ctx, domain.NewInvoice(number, client.ID, domain.NewDate(2025, 1, 1), 30)))
	}

	n, err = f.invoices.NextInvoiceNumber(ctx, 2025)
	require.NoError(t, err)
	assert.Equal(t, "2025-0011", n)

	n, err = f.invoices.NextInvoiceNumber(ctx, 2024)
	require.NoError(t, err)
	assert.Equal(t, "2024-0043", n)

	dup := domain.NewInvoice("2025-0010", client.ID, domain.NewDate(2025, 1, 1), 30)
	assert.ErrorIs(t, f.invoices.Create(ctx, dup), domain.ErrConflict)
}

func TestInvoiceRepo_ItemsRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	client, _ := f.clientAndProject(t, "Acme")

	inv := domain.NewInvoice("2025-0001", client.ID, domain.NewDate(2025, 3, 1), 15)
	inv.Items = []*domain.InvoiceItem{
		domain.NewInvoiceItem("Consulting", decimal.NewFromInt(10), decimal.NewFromInt(150), []int64{1, 2, 3}),
	}
	inv.CalculateTotals()
	require.NoError(t, f.invoices.Create(ctx, inv))

	got, err := f.invoices.GetByNumber(ctx, "2025-0001")
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, []int64{1, 2, 3}, got.Items[0].TimeEntryIDs)
	assert.True(t, got.Total.Equal(decimal.NewFromInt(1500)))
	assert.Equal(t, "Acme", got.Client.Name)
	assert.Equal(t, "2025-03-16", domain.FormatDate(got.DueDate))

	require.NoError(t, got.SetPaymentStatus(domain.PaymentStatusPaid, domain.NewDate(2025, 3, 20)))
	require.NoError(t, f.invoices.Update(ctx, got))

	paid := domain.PaymentStatusPaid
	list, err := f.invoices.List(ctx, InvoiceFilter{PaymentStatus: &paid})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].PaymentDate)
	assert.Equal(t, "2025-03-20", domain.FormatDate(*list[0].PaymentDate))

	require.NoError(t, f.invoices.ReplaceItems(ctx, inv.ID, []*domain.InvoiceItem{
		domain.NewInvoiceItem("A", decimal.NewFromInt(1), decimal.NewFromInt(10), nil),
		domain.NewInvoiceItem("B", decimal.NewFromInt(2), decimal.NewFromInt(10), nil),
	}))
	items, err := f.invoices.GetItems(ctx, inv.ID)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, []int64{}, items[0].TimeEntryIDs)

	require.NoError(t, f.invoices.Delete(ctx, inv.ID))
	_, err = f.invoices.GetByID(ctx, inv.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAnalyticsRepo_FactsRespectScope(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, project := f.clientAndProject(t, "Acme")

	consultant := &domain.User{Name: "Casey", Role: domain.RoleConsultant, IsActive: true, CreatedAt: time.Now()}
	require.NoError(t, f.users.Create(ctx, consultant))

	sub := &domain.Subcontractor{Name: "Sam", IsActive: true, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, f.subs.Create(ctx, sub))

	f.entry(t, 1, project.ID, domain.NewDate(2025, 1, 6), "2")
	f.entry(t, consultant.ID, project.ID, domain.NewDate(2025, 1, 7), "3")
	f.entry(t, consultant.ID, project.ID, domain.NewDate(2025, 3, 7), "3")

	subEntry := domain.NewTimeEntry(1, project.ID, domain.NewDate(2025, 1, 8), decimal.NewFromInt(4), "")
	subEntry.UserID = nil
	subEntry.SubcontractorID = &sub.ID
	require.NoError(t, f.entries.Create(ctx, subEntry))

	from, to := domain.NewDate(2025, 1, 1), domain.NewDate(2025, 1, 31)

	all, err := f.facts.Facts(ctx, domain.AdminScope(), from, to)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Sam", all[2].PerformerName)
	assert.NotNil(t, all[2].SubcontractorID)

	own, err := f.facts.Facts(ctx, consultant.Scope(), from, to)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.True(t, own[0].Hours.Equal(decimal.NewFromInt(3)))
	assert.Equal(t, "Acme", own[0].ClientName)
	assert.False(t, own[0].Invoiced)
}
