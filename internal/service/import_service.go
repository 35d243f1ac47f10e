package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/andy/timeledger/internal/domain"
	"github.com/andy/timeledger/internal/importer"
	"github.com/andy/timeledger/internal/repository"
)

// legacyDueDays is the payment term given to reconstructed invoices
const legacyDueDays = 30

// ImportRow is an analyzed record with the mapping confirmed by the user.
// A row maps to an existing project, or to a new project under an existing
// or new client.
type ImportRow struct {
	importer.Record
	ClientID    *int64 `json:"client_id"`
	ClientName  string `json:"client_name"`
	ProjectID   *int64 `json:"project_id"`
	ProjectName string `json:"project_name"`
}

func (r ImportRow) mapped() bool {
	if r.ProjectID != nil {
		return true
	}
	hasClient := r.ClientID != nil || strings.TrimSpace(r.ClientName) != ""
	return hasClient && strings.TrimSpace(r.ProjectName) != ""
}

// ImportRequest is a confirmed batch of rows performed by one user
type ImportRequest struct {
	UserID int64       `json:"user_id"`
	Rows   []ImportRow `json:"rows"`
}

// EntryCounts tallies what happened to each row
type EntryCounts struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Errors   int `json:"errors"`
}

// InvoiceCounts tallies legacy invoices
type InvoiceCounts struct {
	Created int `json:"created"`
	Reused  int `json:"reused"`
}

// RowError describes a row that could not be imported
type RowError struct {
	Row     int    `json:"row"`
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// ImportResult summarizes an import batch
type ImportResult struct {
	Entries         EntryCounts   `json:"entries"`
	Invoices        InvoiceCounts `json:"invoices"`
	ClientsCreated  int           `json:"clients_created"`
	ProjectsCreated int           `json:"projects_created"`
	BatchID         string        `json:"batch_id"`
	ErrorDetails    []RowError    `json:"error_details"`
}

// ImportService loads historical billing data
type ImportService interface {
	// Analyze parses a spreadsheet and proposes client mappings without writing
	Analyze(ctx context.Context, r io.Reader) (*importer.Analysis, error)

	// Import writes the confirmed rows in one transaction. A row that fails
	// is rolled back on its own and reported; the other rows are kept.
	Import(ctx context.Context, req ImportRequest) (*ImportResult, error)
}

type importService struct {
	tx          SavepointTransactor
	clientRepo  repository.ClientRepository
	projectRepo repository.ProjectRepository
	entryRepo   repository.TimeEntryRepository
	invoiceRepo repository.InvoiceRepository
	rates       RateResolver
	log         *zap.Logger
}

// NewImportService creates a new import service
func NewImportService(
	tx SavepointTransactor,
	clientRepo repository.ClientRepository,
	projectRepo repository.ProjectRepository,
	entryRepo repository.TimeEntryRepository,
	invoiceRepo repository.InvoiceRepository,
	rates RateResolver,
	log *zap.Logger,
) ImportService {
	if log == nil {
		log = zap.NewNop()
	}
	return &importService{
		tx:          tx,
		clientRepo:  clientRepo,
		projectRepo: projectRepo,
		entryRepo:   entryRepo,
		invoiceRepo: invoiceRepo,
		rates:       rates,
		log:         log,
	}
}

func (s *importService) Analyze(ctx context.Context, r io.Reader) (*importer.Analysis, error) {
	clients, err := s.clientRepo.List(ctx, true)
	if err != nil {
		return nil, err
	}
	return importer.Analyze(r, clients)
}

// rowError marks a failure confined to one row
type rowError struct {
	err error
}

func (e *rowError) Error() string { return e.err.Error() }
func (e *rowError) Unwrap() error { return e.err }

// importBatch holds the caches of one import. Row-local additions are
// staged and only merged after the row's savepoint is released.
type importBatch struct {
	result   *ImportResult
	clients  map[string]*domain.Client // lower-case name
	projects map[string]*domain.Project
	invoices map[string]*domain.Invoice // legacy number
	touched  map[int64]bool
}

type rowChanges struct {
	clients         map[string]*domain.Client
	projects        map[string]*domain.Project
	invoices        map[string]*domain.Invoice
	clientsCreated  int
	projectsCreated int
	invoicesCreated int
	invoicesReused  int
	invoiceID       *int64
}

func projectKey(clientID int64, name string) string {
	return fmt.Sprintf("%d:%s", clientID, strings.ToLower(strings.TrimSpace(name)))
}

func (s *importService) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	if req.UserID <= 0 {
		return nil, domain.Invalid("user_id", "importing user is required")
	}

	batch := &importBatch{
		result: &ImportResult{
			BatchID:      uuid.NewString(),
			ErrorDetails: make([]RowError, 0),
		},
		clients:  make(map[string]*domain.Client),
		projects: make(map[string]*domain.Project),
		invoices: make(map[string]*domain.Invoice),
		touched:  make(map[int64]bool),
	}
	result := batch.result

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		for i, row := range req.Rows {
			if !row.Hours.IsPositive() || !row.mapped() {
				result.Entries.Skipped++
				continue
			}

			changes := &rowChanges{
				clients:  make(map[string]*domain.Client),
				projects: make(map[string]*domain.Project),
				invoices: make(map[string]*domain.Invoice),
			}
			err := s.tx.Savepoint(ctx, "import_row", func(ctx context.Context) error {
				return s.importRow(ctx, req.UserID, batch, changes, row)
			})

			var re *rowError
			switch {
			case err == nil:
				batch.merge(changes)
				result.Entries.Imported++
			case errors.As(err, &re):
				result.Entries.Errors++
				result.ErrorDetails = append(result.ErrorDetails, RowError{Row: i + 1, Line: row.Line, Message: re.Error()})
				s.log.Debug("import row failed", zap.Int("row", i+1), zap.Error(re.err))
			default:
				return err
			}
		}

		return s.reconcileInvoices(ctx, batch.touched)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("import finished",
		zap.String("batch_id", result.BatchID),
		zap.Int("imported", result.Entries.Imported),
		zap.Int("skipped", result.Entries.Skipped),
		zap.Int("errors", result.Entries.Errors),
		zap.Int("invoices_created", result.Invoices.Created),
	)
	return result, nil
}

func (b *importBatch) merge(c *rowChanges) {
	for k, v := range c.clients {
		b.clients[k] = v
	}
	for k, v := range c.projects {
		b.projects[k] = v
	}
	for k, v := range c.invoices {
		b.invoices[k] = v
	}
	if c.invoiceID != nil {
		b.touched[*c.invoiceID] = true
	}
	b.result.ClientsCreated += c.clientsCreated
	b.result.ProjectsCreated += c.projectsCreated
	b.result.Invoices.Created += c.invoicesCreated
	b.result.Invoices.Reused += c.invoicesReused
}

func (s *importService) importRow(
	ctx context.Context,
	userID int64,
	batch *importBatch,
	changes *rowChanges,
	row ImportRow,
) error {
	iso, ok := importer.NormalizeDate(row.Date)
	if !ok {
		return &rowError{fmt.Errorf("invalid date %q", row.Date)}
	}
	workDate, err := domain.ParseDate(iso)
	if err != nil {
		return &rowError{err}
	}

	hours := row.Hours.Round(2)
	if err := domain.ValidateManualHours(hours); err != nil {
		return &rowError{err}
	}

	project, err := s.resolveProject(ctx, batch, changes, row)
	if err != nil {
		return asRowError(err)
	}

	var invoice *domain.Invoice
	if number := strings.TrimSpace(row.InvoiceNumber); number != "" {
		if invoice, err = s.resolveInvoice(ctx, batch, changes, number, project.ClientID, workDate, row.Status); err != nil {
			return asRowError(err)
		}
	}

	rate := domain.PendingRate()
	if row.Money.IsPositive() {
		rate = domain.FixedRate(domain.RateFor(row.Money, hours))
	}
	resolved, err := s.rates.Resolve(ctx, project.ID, rate)
	if err != nil {
		return asRowError(err)
	}

	entry := domain.NewTimeEntry(userID, project.ID, workDate, hours, row.Description)
	entry.Status = importer.EntryStatus(row.Status)
	entry.ImportBatch = batch.result.BatchID
	entry.SetRate(resolved)
	if invoice != nil {
		entry.InvoiceID = &invoice.ID
		entry.InvoiceNumber = invoice.InvoiceNumber
		changes.invoiceID = &invoice.ID
	}

	if err := s.entryRepo.Create(ctx, entry); err != nil {
		return asRowError(err)
	}
	return nil
}

// asRowError confines domain errors to the row; anything else aborts the import
func asRowError(err error) error {
	for _, class := range []error{domain.ErrValidation, domain.ErrNotFound, domain.ErrPrecondition, domain.ErrConflict} {
		if errors.Is(err, class) {
			return &rowError{err}
		}
	}
	return err
}

func (s *importService) resolveProject(
	ctx context.Context,
	batch *importBatch,
	changes *rowChanges,
	row ImportRow,
) (*domain.Project, error) {
	if row.ProjectID != nil {
		project, err := s.projectRepo.GetByID(ctx, *row.ProjectID)
		if err != nil {
			return nil, err
		}
		if row.ClientID != nil && *row.ClientID != project.ClientID {
			return nil, domain.Invalid("project_id", "project does not belong to the mapped client")
		}
		return project, nil
	}

	client, err := s.resolveClient(ctx, batch, changes, row)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(row.ProjectName)
	key := projectKey(client.ID, name)
	if p, ok := batch.projects[key]; ok {
		return p, nil
	}

	project, err := s.projectRepo.GetByName(ctx, client.ID, name)
	if err == nil {
		changes.projects[key] = project
		return project, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	project = domain.NewProject(client.ID, name)
	if err := s.projectRepo.Create(ctx, project); err != nil {
		return nil, err
	}
	changes.projects[key] = project
	changes.projectsCreated++
	return project, nil
}

func (s *importService) resolveClient(
	ctx context.Context,
	batch *importBatch,
	changes *rowChanges,
	row ImportRow,
) (*domain.Client, error) {
	if row.ClientID != nil {
		return s.clientRepo.GetByID(ctx, *row.ClientID)
	}

	name := strings.TrimSpace(row.ClientName)
	key := strings.ToLower(name)
	if c, ok := batch.clients[key]; ok {
		return c, nil
	}

	client, err := s.clientRepo.GetByName(ctx, name)
	if err == nil {
		changes.clients[key] = client
		return client, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	client = domain.NewClient(name)
	if err := s.clientRepo.Create(ctx, client); err != nil {
		return nil, err
	}
	changes.clients[key] = client
	changes.clientsCreated++
	return client, nil
}

// resolveInvoice finds or creates the invoice for a legacy number. At most
// one invoice is created per number. An existing invoice is reused only when
// it belongs to the row's client and holds nothing but imported entries.
func (s *importService) resolveInvoice(
	ctx context.Context,
	batch *importBatch,
	changes *rowChanges,
	number string,
	clientID int64,
	date time.Time,
	legacyStatus string,
) (*domain.Invoice, error) {
	if inv, ok := batch.invoices[number]; ok {
		return inv, sameClient(inv, clientID)
	}

	invoice, err := s.invoiceRepo.GetByNumber(ctx, number)
	if errors.Is(err, domain.ErrNotFound) {
		return s.createLegacyInvoice(ctx, changes, number, clientID, date, legacyStatus)
	}
	if err != nil {
		return nil, err
	}

	if err := sameClient(invoice, clientID); err != nil {
		return nil, err
	}
	imported, err := s.onlyImported(ctx, invoice.ID)
	if err != nil {
		return nil, err
	}
	if !imported {
		return nil, domain.Preconditionf("invoice %s was not created by an import", number)
	}

	changes.invoices[number] = invoice
	changes.invoicesReused++
	return invoice, nil
}

func sameClient(invoice *domain.Invoice, clientID int64) error {
	if invoice.ClientID != clientID {
		return domain.Preconditionf("invoice %s belongs to another client", invoice.InvoiceNumber)
	}
	return nil
}

// onlyImported reports whether every entry on the invoice came from an import
func (s *importService) onlyImported(ctx context.Context, invoiceID int64) (bool, error) {
	entries, err := s.entryRepo.List(ctx, repository.EntryFilter{
		Scope:     domain.AdminScope(),
		InvoiceID: &invoiceID,
	})
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.ImportBatch == "" {
			return false, nil
		}
	}
	return len(entries) > 0, nil
}

func (s *importService) createLegacyInvoice(
	ctx context.Context,
	changes *rowChanges,
	number string,
	clientID int64,
	date time.Time,
	legacyStatus string,
) (*domain.Invoice, error) {
	invoice := domain.NewInvoice(number, clientID, date, legacyDueDays)
	invoice.Status = domain.InvoiceStatusSent
	if importer.IsPaid(legacyStatus) {
		if err := invoice.SetPaymentStatus(domain.PaymentStatusPaid, date); err != nil {
			return nil, err
		}
	}
	invoice.CalculateTotals()

	if err := s.invoiceRepo.Create(ctx, invoice); err != nil {
		return nil, err
	}
	changes.invoices[number] = invoice
	changes.invoicesCreated++
	return invoice, nil
}

// reconcileInvoices rebuilds every touched invoice as one item summing all
// of its linked entries
func (s *importService) reconcileInvoices(ctx context.Context, touched map[int64]bool) error {
	for invoiceID := range touched {
		invoice, err := s.invoiceRepo.GetByID(ctx, invoiceID)
		if err != nil {
			return err
		}

		entries, err := s.entryRepo.List(ctx, repository.EntryFilter{
			Scope:     domain.AdminScope(),
			InvoiceID: &invoiceID,
		})
		if err != nil {
			return err
		}

		if len(entries) == 0 {
			continue
		}

		hours, amount := decimal.Zero, decimal.Zero
		for _, e := range entries {
			hours = hours.Add(e.Hours)
			amount = amount.Add(e.Amount)
		}
		invoice.Items = []*domain.InvoiceItem{summarizeEntries(entries, domain.RateFor(amount, hours))}
		invoice.CalculateTotals()
		if err := s.invoiceRepo.ReplaceItems(ctx, invoice.ID, invoice.Items); err != nil {
			return err
		}
		if err := s.invoiceRepo.Update(ctx, invoice); err != nil {
			return err
		}
	}
	return nil
}
