package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/andy/timeledger/internal/db/dbtest"
	"github.com/andy/timeledger/internal/domain"
	"github.com/andy/timeledger/internal/export"
	"github.com/andy/timeledger/internal/repository"
	"github.com/andy/timeledger/internal/service"
)

const adminID = 1

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	t      *testing.T
	server *Server
	clock  *clock
	svc    Services
}

func newHarness(t *testing.T) *harness {
	database := dbtest.New(t)
	log := zaptest.NewLogger(t)
	c := &clock{now: time.Date(2024, 3, 15, 14, 0, 0, 0, time.UTC)}

	clientRepo := repository.NewClientRepo(database)
	projectRepo := repository.NewProjectRepo(database)
	subRepo := repository.NewSubcontractorRepo(database)
	entryRepo := repository.NewEntryRepo(database)
	invoiceRepo := repository.NewInvoiceRepo(database)
	rates := service.NewRateResolver(projectRepo, clientRepo)

	svc := Services{
		Clients:   service.NewClientService(clientRepo),
		Projects:  service.NewProjectService(projectRepo, clientRepo),
		People:    service.NewPeopleService(repository.NewUserRepo(database), subRepo),
		Entries:   service.NewEntryService(entryRepo, projectRepo, subRepo, rates),
		Timers:    service.NewTimerService(database, repository.NewTimerRepo(database), entryRepo, rates, c.Now),
		Invoices:  service.NewInvoiceService(database, invoiceRepo, entryRepo, clientRepo, service.InvoiceOptions{}, c.Now, log),
		Analytics: service.NewAnalyticsService(repository.NewAnalyticsRepo(database), invoiceRepo),
		Import:    service.NewImportService(database, clientRepo, projectRepo, entryRepo, invoiceRepo, rates, log),
	}
	opts := Options{Issuer: export.Issuer{Name: "Ledger Consulting"}}
	return &harness{t: t, server: New(svc, opts, log), clock: c, svc: svc}
}

// do sends body as JSON, or verbatim when it is a string
func (h *harness) do(method, path string, userID int64, body any) *httptest.ResponseRecorder {
	h.t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if userID != 0 {
		req.Header.Set(HeaderUserID, strconv.FormatInt(userID, 10))
	}
	rec := httptest.NewRecorder()
	h.server.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// seed creates a client billed at 150 with one project
func (h *harness) seed() (clientView, projectView) {
	h.t.Helper()

	rec := h.do(http.MethodPost, "/api/clients", adminID, map[string]any{"name": "Acme", "billing_rate": "150"})
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	client := decode[clientView](h.t, rec)

	rec = h.do(http.MethodPost, "/api/projects", adminID, map[string]any{"client_id": client.ID, "name": "Website"})
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	return client, decode[projectView](h.t, rec)
}

func (h *harness) consultant() int64 {
	h.t.Helper()
	user, err := h.svc.People.CreateUser(context.Background(), "Casey", "casey@example.com", domain.RoleConsultant)
	require.NoError(h.t, err)
	return user.ID
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/healthz", 0, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))
}

func TestIdentity(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/clients", 0, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/clients", 999, nil).Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/clients", adminID, nil).Code)

	// A role header narrows an admin
	req := httptest.NewRequest(http.MethodPost, "/api/clients", strings.NewReader(`{"name":"X"}`))
	req.Header.Set(HeaderUserID, "1")
	req.Header.Set(HeaderUserRole, "consultant")
	rec := httptest.NewRecorder()
	h.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCatalogWritesRequireAdmin(t *testing.T) {
	h := newHarness(t)
	consultantID := h.consultant()

	rec := h.do(http.MethodPost, "/api/clients", consultantID, map[string]any{"name": "Acme"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Contains(t, body.Error, "admin")

	client, _ := h.seed()
	rec = h.do(http.MethodGet, "/api/clients/"+strconv.FormatInt(client.ID, 10), consultantID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestValidationErrors(t *testing.T) {
	h := newHarness(t)
	_, project := h.seed()

	rec := h.do(http.MethodPost, "/api/time-entries", adminID, map[string]any{
		"project_id": project.ID, "hours": "2", "surprise": true,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[errorBody](t, rec).Fields, "body")

	rec = h.do(http.MethodPost, "/api/time-entries", adminID, map[string]any{
		"project_id": project.ID, "hours": "30", "work_date": "2024-03-01",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[errorBody](t, rec).Fields, "hours")

	rec = h.do(http.MethodPost, "/api/time-entries", adminID, map[string]any{
		"project_id": project.ID, "hours": "1", "work_date": "03/01/2024",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[errorBody](t, rec).Fields, "work_date")

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/api/time-entries/abc", adminID, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/time-entries/404", adminID, nil).Code)
}

func TestBillingFlow(t *testing.T) {
	h := newHarness(t)
	client, project := h.seed()

	for i, hours := range []string{"2", "3", "5"} {
		rec := h.do(http.MethodPost, "/api/time-entries", adminID, map[string]any{
			"project_id":  project.ID,
			"hours":       hours,
			"work_date":   domain.FormatDate(domain.NewDate(2024, 3, 4+i)),
			"description": "consulting",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		entry := decode[entryView](t, rec)
		assert.True(t, entry.Rate.Equal(decimal.NewFromInt(150)))
	}

	rec := h.do(http.MethodGet, "/api/invoices/unbilled", adminID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	groups := decode[[]unbilledView](t, rec)
	require.Len(t, groups, 1)
	assert.Equal(t, 3, groups[0].EntryCount)
	assert.Equal(t, "2024-03-04", groups[0].OldestDate)

	rec = h.do(http.MethodPost, "/api/invoices", adminID, map[string]any{"client_id": client.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	invoice := decode[invoiceView](t, rec)
	assert.Equal(t, "2024-0001", invoice.InvoiceNumber)
	assert.Equal(t, "2024-03-15", invoice.InvoiceDate)
	assert.True(t, invoice.Total.Equal(decimal.NewFromInt(1500)))
	require.Len(t, invoice.Items, 1)
	assert.Len(t, invoice.Items[0].TimeEntryIDs, 3)

	// Nothing left to bill
	rec = h.do(http.MethodPost, "/api/invoices", adminID, map[string]any{"client_id": client.ID})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	invoicePath := "/api/invoices/" + strconv.FormatInt(invoice.ID, 10)
	rec = h.do(http.MethodGet, invoicePath+"/pdf", adminID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))

	rec = h.do(http.MethodPost, invoicePath+"/status", adminID, map[string]any{"status": "sent"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(http.MethodPost, invoicePath+"/payment", adminID, map[string]any{"payment_status": "paid"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	paid := decode[invoiceView](t, rec)
	require.NotNil(t, paid.PaymentDate)
	assert.Equal(t, "2024-03-15", *paid.PaymentDate)

	// Sent invoices cannot be deleted
	assert.Equal(t, http.StatusUnprocessableEntity, h.do(http.MethodDelete, invoicePath, adminID, nil).Code)

	rec = h.do(http.MethodGet, "/api/analytics/summary?from=2024-03-01&to=2024-03-31", adminID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	summary := decode[service.Summary](t, rec)
	assert.True(t, summary.Revenue.Equal(decimal.NewFromInt(1500)))
	assert.True(t, summary.InvoicedRevenue.Equal(decimal.NewFromInt(1500)))
}

func TestInvoicesAreAdminOnly(t *testing.T) {
	h := newHarness(t)
	consultantID := h.consultant()

	assert.Equal(t, http.StatusForbidden, h.do(http.MethodGet, "/api/invoices", consultantID, nil).Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/invoices/unbilled", consultantID, nil).Code)
}

func TestEntriesAreScoped(t *testing.T) {
	h := newHarness(t)
	_, project := h.seed()
	consultantID := h.consultant()

	rec := h.do(http.MethodPost, "/api/time-entries", adminID, map[string]any{
		"project_id": project.ID, "hours": "1", "work_date": "2024-03-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	adminEntry := decode[entryView](t, rec)

	rec = h.do(http.MethodPost, "/api/time-entries", consultantID, map[string]any{
		"project_id": project.ID, "hours": "1.5", "work_date": "2024-03-02", "description": "review, notes",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	own := decode[entryView](t, rec)

	entryPath := "/api/time-entries/" + strconv.FormatInt(adminEntry.ID, 10)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, entryPath, consultantID, nil).Code)

	rec = h.do(http.MethodGet, "/api/time-entries", consultantID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decode[[]entryView](t, rec)
	require.Len(t, listed, 1)
	assert.Equal(t, own.ID, listed[0].ID)

	ownPath := "/api/time-entries/" + strconv.FormatInt(own.ID, 10)
	rec = h.do(http.MethodPatch, ownPath, consultantID, map[string]any{"hours": "2", "reason": "forgot the call"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[entryView](t, rec).Amount.Equal(decimal.NewFromInt(300)))

	rec = h.do(http.MethodGet, ownPath+"/history", consultantID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode[[]historyView](t, rec))

	rec = h.do(http.MethodPost, ownPath+"/submit", consultantID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "submitted", decode[entryView](t, rec).Status)

	assert.Equal(t, http.StatusForbidden, h.do(http.MethodPost, ownPath+"/approve", consultantID, nil).Code)
	rec = h.do(http.MethodPost, ownPath+"/approve", adminID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "approved", decode[entryView](t, rec).Status)

	rec = h.do(http.MethodGet, "/api/time-entries/export.csv", consultantID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "id,work_date"))
	assert.Contains(t, lines[1], `"review, notes"`)
}

func TestTimerRoutes(t *testing.T) {
	h := newHarness(t)
	_, project := h.seed()

	rec := h.do(http.MethodPost, "/api/timers", adminID, map[string]any{"project_id": project.ID, "description": "pairing"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	timer := decode[entryView](t, rec)
	assert.Equal(t, "running", timer.TimerState)

	timerPath := "/api/timers/" + strconv.FormatInt(timer.ID, 10)
	h.clock.Advance(12 * time.Minute)
	rec = h.do(http.MethodPost, timerPath+"/pause", adminID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(720), decode[entryView](t, rec).ElapsedSeconds)

	rec = h.do(http.MethodGet, "/api/timers", adminID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	timers := decode[[]timerView](t, rec)
	require.Len(t, timers, 1)
	assert.Equal(t, "paused", timers[0].State)
	assert.True(t, timers[0].AccruedValue.Equal(decimal.NewFromInt(30)))

	rec = h.do(http.MethodPost, timerPath+"/commit", adminID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	committed := decode[entryView](t, rec)
	assert.Equal(t, "0.2", committed.Hours.String())
	assert.Equal(t, "committed", committed.TimerState)

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodDelete, timerPath, adminID, nil).Code)
}

func TestImportRoutes(t *testing.T) {
	h := newHarness(t)
	h.seed()

	sheet := "Date,Company,Project,Task,Hours,Money\n1/15/24,acme,Website,Homepage,2,300\n"
	rec := h.do(http.MethodPost, "/api/import/analyze", adminID, sheet)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var analysis struct {
		Companies []struct {
			Company          string `json:"company"`
			ProposedClientID *int64 `json:"proposed_client_id"`
		} `json:"companies"`
		Records []json.RawMessage `json:"records"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &analysis))
	require.Len(t, analysis.Companies, 1)
	require.NotNil(t, analysis.Companies[0].ProposedClientID)

	var record map[string]any
	require.NoError(t, json.Unmarshal(analysis.Records[0], &record))
	record["client_id"] = *analysis.Companies[0].ProposedClientID
	record["project_name"] = "Website"

	rec = h.do(http.MethodPost, "/api/import/run", adminID, map[string]any{"rows": []any{record}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[service.ImportResult](t, rec)
	assert.Equal(t, 1, result.Entries.Imported)
	assert.Zero(t, result.ProjectsCreated, "the existing project is reused")
	assert.NotEmpty(t, result.BatchID)
}
