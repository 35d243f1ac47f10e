// Package importer parses legacy billing spreadsheets exported as CSV.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/andy/timeledger/internal/domain"
)

// Record is one normalized spreadsheet row
type Record struct {
	Line          int             `json:"line"`
	Date          string          `json:"date"` // YYYY-MM-DD, or the raw value when invalid
	DateValid     bool            `json:"date_valid"`
	Company       string          `json:"company"`
	Project       string          `json:"project"`
	Description   string          `json:"description"`
	InvoiceNumber string          `json:"invoice_number"`
	Status        string          `json:"status"`
	Hours         decimal.Decimal `json:"hours"`
	Money         decimal.Decimal `json:"money"`
}

// Valid reports whether the row can become a time entry
func (r Record) Valid() bool {
	return r.DateValid && r.Hours.IsPositive()
}

// CompanySummary aggregates the rows of one legacy company
type CompanySummary struct {
	Company            string          `json:"company"`
	RowCount           int             `json:"row_count"`
	TotalHours         decimal.Decimal `json:"total_hours"`
	TotalRevenue       decimal.Decimal `json:"total_revenue"`
	ImpliedRate        decimal.Decimal `json:"implied_rate"`
	ProposedClientID   *int64          `json:"proposed_client_id"`
	ProposedClientName string          `json:"proposed_client_name,omitempty"`
}

// Analysis is the result of a dry run over a spreadsheet
type Analysis struct {
	Headers   []string         `json:"headers"`
	Records   []Record         `json:"records"`
	Companies []CompanySummary `json:"companies"`
	Invalid   int              `json:"invalid_rows"`
}

// columns holds the header index of each known field, -1 when absent
type columns struct {
	date        int
	company     int
	project     int
	description int
	invoice     int
	status      int
	hours       []int
	money       []int
}

func matchColumns(header []string) (columns, error) {
	c := columns{date: -1, company: -1, project: -1, description: -1, invoice: -1, status: -1}
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		switch {
		case name == "date":
			setOnce(&c.date, i)
		case name == "company" || name == "client":
			setOnce(&c.company, i)
		case name == "project":
			setOnce(&c.project, i)
		case name == "description" || name == "task" || name == "notes":
			setOnce(&c.description, i)
		case strings.HasPrefix(name, "invoice"):
			setOnce(&c.invoice, i)
		case name == "status":
			setOnce(&c.status, i)
		case strings.HasPrefix(name, "hours"):
			c.hours = append(c.hours, i)
		case strings.HasPrefix(name, "money"):
			c.money = append(c.money, i)
		}
	}

	v := domain.NewValidationError()
	if c.date < 0 {
		v.Add("date", "no date column found")
	}
	if c.company < 0 {
		v.Add("company", "no company column found")
	}
	if len(c.hours) == 0 {
		v.Add("hours", "no hours column found")
	}
	return c, v.OrNil()
}

func setOnce(dst *int, i int) {
	if *dst < 0 {
		*dst = i
	}
}

// Parse reads every data row of a legacy spreadsheet
func Parse(r io.Reader) ([]string, []Record, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, domain.Invalid("csv", "file is empty")
	}
	if err != nil {
		return nil, nil, domain.Invalid("csv", fmt.Sprintf("unreadable header: %v", err))
	}
	cols, err := matchColumns(header)
	if err != nil {
		return nil, nil, err
	}

	records := make([]Record, 0)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, domain.Invalid("csv", fmt.Sprintf("malformed row: %v", err))
		}
		if blank(row) {
			continue
		}
		line, _ := reader.FieldPos(0)
		records = append(records, cols.record(line, row))
	}
	return header, records, nil
}

func (c columns) record(line int, row []string) Record {
	field := func(i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	raw := field(c.date)
	date, ok := NormalizeDate(raw)
	return Record{
		Line:          line,
		Date:          date,
		DateValid:     ok,
		Company:       field(c.company),
		Project:       field(c.project),
		Description:   field(c.description),
		InvoiceNumber: field(c.invoice),
		Status:        field(c.status),
		Hours:         firstPositive(c.hours, field),
		Money:         firstPositive(c.money, field),
	}
}

// firstPositive returns the first column value that parses to a positive amount
func firstPositive(indexes []int, field func(int) string) decimal.Decimal {
	for _, i := range indexes {
		if d, ok := ParseAmount(field(i)); ok && d.IsPositive() {
			return d
		}
	}
	return decimal.Zero
}

func blank(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// ParseAmount parses a spreadsheet number, tolerating currency symbols and
// thousands separators
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// NormalizeDate converts M/D/YY or M/D/YYYY to YYYY-MM-DD. Two-digit years
// are in the 2000s. ISO dates pass through. Anything else is returned
// unchanged with ok false.
func NormalizeDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if d, err := domain.ParseDate(s); err == nil {
		return domain.FormatDate(d), true
	}

	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return s, false
	}
	month, err1 := strconv.Atoi(parts[0])
	day, err2 := strconv.Atoi(parts[1])
	year, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return s, false
	}
	switch len(parts[2]) {
	case 2:
		year += 2000
	case 4:
	default:
		return s, false
	}

	iso := fmt.Sprintf("%04d-%02d-%02d", year, month, day)
	if _, err := domain.ParseDate(iso); err != nil {
		return s, false
	}
	return iso, true
}

// EntryStatus maps a legacy billing status onto the entry workflow
func EntryStatus(legacy string) domain.EntryStatus {
	switch strings.ToLower(strings.TrimSpace(legacy)) {
	case "paid":
		return domain.EntryStatusApproved
	case "billed":
		return domain.EntryStatusSubmitted
	default:
		return domain.EntryStatusDraft
	}
}

// IsPaid reports whether the legacy status means the invoice was paid
func IsPaid(legacy string) bool {
	return strings.EqualFold(strings.TrimSpace(legacy), "paid")
}

// Analyze parses a spreadsheet and proposes a client for every company
// without writing anything
func Analyze(r io.Reader, clients []*domain.Client) (*Analysis, error) {
	header, records, err := Parse(r)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*domain.Client, len(clients))
	for _, c := range clients {
		byName[strings.ToLower(c.Name)] = c
	}

	analysis := &Analysis{Headers: header, Records: records}
	groups := make(map[string][]Record)
	order := make([]string, 0)
	for _, rec := range records {
		if !rec.Valid() {
			analysis.Invalid++
		}
		if rec.Company == "" {
			continue
		}
		key := strings.ToLower(rec.Company)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], rec)
	}
	sort.Strings(order)

	for _, key := range order {
		summary := summarize(groups[key])
		if c, ok := byName[key]; ok {
			id := c.ID
			summary.ProposedClientID = &id
			summary.ProposedClientName = c.Name
		}
		analysis.Companies = append(analysis.Companies, summary)
	}
	return analysis, nil
}

func summarize(rows []Record) CompanySummary {
	s := CompanySummary{
		Company:      rows[0].Company,
		RowCount:     len(rows),
		TotalHours:   decimal.Zero,
		TotalRevenue: decimal.Zero,
	}

	counts := make(map[int64]int)
	for _, r := range rows {
		s.TotalHours = s.TotalHours.Add(r.Hours)
		s.TotalRevenue = s.TotalRevenue.Add(r.Money)
		if r.Hours.IsPositive() && r.Money.IsPositive() {
			counts[r.Money.Div(r.Hours).Round(0).IntPart()]++
		}
	}

	s.ImpliedRate = decimal.Zero
	if rate, ok := mode(counts); ok {
		s.ImpliedRate = decimal.NewFromInt(rate)
	} else if s.TotalHours.IsPositive() {
		s.ImpliedRate = s.TotalRevenue.Div(s.TotalHours).Round(0)
	}
	return s
}

// mode returns the most frequent rate, preferring the lower rate on ties
func mode(counts map[int64]int) (int64, bool) {
	var best int64
	bestCount := 0
	for rate, n := range counts {
		if n > bestCount || (n == bestCount && rate < best) {
			best, bestCount = rate, n
		}
	}
	return best, bestCount > 0
}
