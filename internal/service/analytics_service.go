package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andy/timeledger/internal/domain"
	"github.com/andy/timeledger/internal/repository"
)

// BreakdownEntity selects what a breakdown groups by
type BreakdownEntity string

const (
	BreakdownClient     BreakdownEntity = "client"
	BreakdownProject    BreakdownEntity = "project"
	BreakdownConsultant BreakdownEntity = "consultant"
)

// ParseBreakdownEntity validates an entity name
func ParseBreakdownEntity(s string) (BreakdownEntity, error) {
	switch e := BreakdownEntity(s); e {
	case BreakdownClient, BreakdownProject, BreakdownConsultant:
		return e, nil
	}
	return "", domain.Invalid("entity", "entity must be client, project or consultant")
}

// DefaultTopN is used when a caller asks for a non-positive top N
const DefaultTopN = 5

// OtherLabel names the row that sums everything outside the top N
const OtherLabel = "Other"

var hundred = decimal.NewFromInt(100)

// Metrics aggregates a set of entries. Revenue is hours × frozen rate over
// billable entries.
type Metrics struct {
	Hours           decimal.Decimal `json:"hours"`
	BillableHours   decimal.Decimal `json:"billable_hours"`
	Revenue         decimal.Decimal `json:"revenue"`
	InvoicedRevenue decimal.Decimal `json:"invoiced_revenue"`
	UnbilledRevenue decimal.Decimal `json:"unbilled_revenue"`
	EntryCount      int             `json:"entry_count"`
	Utilization     decimal.Decimal `json:"utilization"`
}

func (m *Metrics) add(f repository.EntryFact) {
	m.EntryCount++
	m.Hours = m.Hours.Add(f.Hours)
	if !f.IsBillable {
		return
	}
	m.BillableHours = m.BillableHours.Add(f.Hours)
	revenue := f.Hours.Mul(f.Rate)
	m.Revenue = m.Revenue.Add(revenue)
	if f.Invoiced {
		m.InvoicedRevenue = m.InvoicedRevenue.Add(revenue)
	} else {
		m.UnbilledRevenue = m.UnbilledRevenue.Add(revenue)
	}
}

// finish rounds money and derives utilization
func (m *Metrics) finish() {
	m.Revenue = m.Revenue.Round(2)
	m.InvoicedRevenue = m.InvoicedRevenue.Round(2)
	m.UnbilledRevenue = m.UnbilledRevenue.Round(2)
	m.Utilization = decimal.Zero
	if m.Hours.IsPositive() {
		m.Utilization = m.BillableHours.Div(m.Hours).Mul(hundred).Round(1)
	}
}

// Summary is the headline figures for a window
type Summary struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
	Metrics
	Outstanding decimal.Decimal `json:"outstanding"` // sent, not fully paid invoices
}

// SeriesPoint is one period of a time series
type SeriesPoint struct {
	Period time.Time `json:"period"`
	Label  string    `json:"label"`
	Metrics
}

// BreakdownRow is one entity's share of the window. The Other row has ID 0.
type BreakdownRow struct {
	ID   int64  `json:"id"`
	Kind string `json:"kind,omitempty"` // user or subcontractor for consultants
	Name string `json:"name"`
	Metrics
}

// StackedRow is one client's revenue per period
type StackedRow struct {
	ID     int64             `json:"id"`
	Name   string            `json:"name"`
	Values []decimal.Decimal `json:"values"`
}

// StackedSeries is revenue per period split by top clients
type StackedSeries struct {
	Periods []string     `json:"periods"`
	Series  []StackedRow `json:"series"`
}

// AnalyticsService provides aggregations over time entries
type AnalyticsService interface {
	Summary(ctx context.Context, scope domain.Scope, from, to time.Time) (*Summary, error)
	RevenueSeries(ctx context.Context, scope domain.Scope, g domain.Granularity, from, to time.Time) ([]SeriesPoint, error)
	Breakdown(ctx context.Context, scope domain.Scope, entity BreakdownEntity, from, to time.Time, topN int) ([]BreakdownRow, error)
	StackedSeries(ctx context.Context, scope domain.Scope, g domain.Granularity, from, to time.Time, topN int) (*StackedSeries, error)
}

type analyticsService struct {
	analyticsRepo repository.AnalyticsRepository
	invoiceRepo   repository.InvoiceRepository
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(
	analyticsRepo repository.AnalyticsRepository,
	invoiceRepo repository.InvoiceRepository,
) AnalyticsService {
	return &analyticsService{
		analyticsRepo: analyticsRepo,
		invoiceRepo:   invoiceRepo,
	}
}

func (s *analyticsService) facts(ctx context.Context, scope domain.Scope, from, to time.Time) ([]repository.EntryFact, error) {
	if to.Before(from) {
		return nil, domain.Invalid("to", "end date must not precede start date")
	}
	return s.analyticsRepo.Facts(ctx, scope, from, to)
}

func (s *analyticsService) Summary(ctx context.Context, scope domain.Scope, from, to time.Time) (*Summary, error) {
	facts, err := s.facts(ctx, scope, from, to)
	if err != nil {
		return nil, err
	}

	summary := &Summary{From: from, To: to, Outstanding: decimal.Zero}
	for _, f := range facts {
		summary.add(f)
	}
	summary.finish()

	// Outstanding invoices are firm-wide figures
	if scope.Privileged {
		sent := domain.InvoiceStatusSent
		invoices, err := s.invoiceRepo.List(ctx, repository.InvoiceFilter{Status: &sent})
		if err != nil {
			return nil, err
		}
		for _, inv := range invoices {
			if inv.PaymentStatus != domain.PaymentStatusPaid {
				summary.Outstanding = summary.Outstanding.Add(inv.Total)
			}
		}
	}

	return summary, nil
}

func (s *analyticsService) RevenueSeries(
	ctx context.Context,
	scope domain.Scope,
	g domain.Granularity,
	from, to time.Time,
) ([]SeriesPoint, error) {
	axis, err := domain.PeriodAxis(g, from, to)
	if err != nil {
		return nil, err
	}
	facts, err := s.facts(ctx, scope, from, to)
	if err != nil {
		return nil, err
	}

	points := make([]SeriesPoint, len(axis))
	index := make(map[time.Time]int, len(axis))
	for i, p := range axis {
		points[i] = SeriesPoint{Period: p, Label: g.Label(p)}
		index[p] = i
	}

	for _, f := range facts {
		if i, ok := index[g.Truncate(f.WorkDate)]; ok {
			points[i].add(f)
		}
	}
	for i := range points {
		points[i].finish()
	}
	return points, nil
}

// breakdownKey identifies the entity a fact belongs to
type breakdownKey struct {
	kind string
	id   int64
}

func keyFor(entity BreakdownEntity, f repository.EntryFact) (breakdownKey, string) {
	switch entity {
	case BreakdownProject:
		return breakdownKey{id: f.ProjectID}, f.ClientName + " / " + f.ProjectName
	case BreakdownConsultant:
		if f.SubcontractorID != nil {
			return breakdownKey{kind: "subcontractor", id: *f.SubcontractorID}, f.PerformerName
		}
		var id int64
		if f.UserID != nil {
			id = *f.UserID
		}
		return breakdownKey{kind: "user", id: id}, f.PerformerName
	default:
		return breakdownKey{id: f.ClientID}, f.ClientName
	}
}

func (s *analyticsService) Breakdown(
	ctx context.Context,
	scope domain.Scope,
	entity BreakdownEntity,
	from, to time.Time,
	topN int,
) ([]BreakdownRow, error) {
	facts, err := s.facts(ctx, scope, from, to)
	if err != nil {
		return nil, err
	}
	return breakdown(entity, facts, topN), nil
}

// breakdown groups facts by entity, keeps the top N by revenue and folds
// the remainder into an Other row
func breakdown(entity BreakdownEntity, facts []repository.EntryFact, topN int) []BreakdownRow {
	if topN <= 0 {
		topN = DefaultTopN
	}

	byKey := make(map[breakdownKey]*BreakdownRow)
	for _, f := range facts {
		key, name := keyFor(entity, f)
		row, ok := byKey[key]
		if !ok {
			row = &BreakdownRow{ID: key.id, Kind: key.kind, Name: name}
			byKey[key] = row
		}
		row.add(f)
	}

	rows := make([]BreakdownRow, 0, len(byKey))
	for _, row := range byKey {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].Revenue.Equal(rows[j].Revenue) {
			return rows[i].Revenue.GreaterThan(rows[j].Revenue)
		}
		return rows[i].Name < rows[j].Name
	})

	if len(rows) > topN {
		other := BreakdownRow{Name: OtherLabel}
		for _, row := range rows[topN:] {
			other.merge(row.Metrics)
		}
		rows = append(rows[:topN], other)
	}

	for i := range rows {
		rows[i].finish()
	}
	return rows
}

func (m *Metrics) merge(o Metrics) {
	m.EntryCount += o.EntryCount
	m.Hours = m.Hours.Add(o.Hours)
	m.BillableHours = m.BillableHours.Add(o.BillableHours)
	m.Revenue = m.Revenue.Add(o.Revenue)
	m.InvoicedRevenue = m.InvoicedRevenue.Add(o.InvoicedRevenue)
	m.UnbilledRevenue = m.UnbilledRevenue.Add(o.UnbilledRevenue)
}

func (s *analyticsService) StackedSeries(
	ctx context.Context,
	scope domain.Scope,
	g domain.Granularity,
	from, to time.Time,
	topN int,
) (*StackedSeries, error) {
	axis, err := domain.PeriodAxis(g, from, to)
	if err != nil {
		return nil, err
	}
	facts, err := s.facts(ctx, scope, from, to)
	if err != nil {
		return nil, err
	}

	top := breakdown(BreakdownClient, facts, topN)
	rowOf := make(map[int64]int, len(top))
	result := &StackedSeries{
		Periods: make([]string, len(axis)),
		Series:  make([]StackedRow, len(top)),
	}
	for i, row := range top {
		result.Series[i] = StackedRow{ID: row.ID, Name: row.Name, Values: zeroValues(len(axis))}
		if row.ID != 0 {
			rowOf[row.ID] = i
		}
	}
	otherRow := -1
	if n := len(top); n > 0 && top[n-1].ID == 0 && top[n-1].Name == OtherLabel {
		otherRow = n - 1
	}

	index := make(map[time.Time]int, len(axis))
	for i, p := range axis {
		result.Periods[i] = g.Label(p)
		index[p] = i
	}

	for _, f := range facts {
		if !f.IsBillable {
			continue
		}
		col, ok := index[g.Truncate(f.WorkDate)]
		if !ok {
			continue
		}
		row, ok := rowOf[f.ClientID]
		if !ok {
			row = otherRow
		}
		if row < 0 {
			return nil, fmt.Errorf("client %d missing from stacked series", f.ClientID)
		}
		values := result.Series[row].Values
		values[col] = values[col].Add(f.Hours.Mul(f.Rate))
	}

	for _, row := range result.Series {
		for i := range row.Values {
			row.Values[i] = row.Values[i].Round(2)
		}
	}
	return result, nil
}

func zeroValues(n int) []decimal.Decimal {
	values := make([]decimal.Decimal, n)
	for i := range values {
		values[i] = decimal.Zero
	}
	return values
}
