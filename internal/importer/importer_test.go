package importer

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andy/timeledger/internal/domain"
)

const legacySheet = `Date, Company, Project, Task, Hours Worked, Hours (adj), Money Billed, Invoice #, Status
1/15/24, Acme Corp, Website, Homepage, 2, , $300.00, 2024-0007, Paid
1/16/2024, acme corp, Website, Styles, , 4, 600, 2024-0007, Paid
2/1/24, Acme Corp, Website, Fixes, 1, , 160, , Billed
2024-02-03, Globex, Audit, Review, 3, , 450, , Unbilled
13/45/24, Globex, Audit, Bad date, 1, , 150, ,
, , , , , , , ,
`

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"1/5/24", "2024-01-05", true},
		{"12/31/2023", "2023-12-31", true},
		{"2024-03-09", "2024-03-09", true},
		{"2/30/24", "2/30/24", false},
		{"1/5/124", "1/5/124", false},
		{"yesterday", "yesterday", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := NormalizeDate(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}

func TestParseAmount(t *testing.T) {
	d, ok := ParseAmount("$1,250.50")
	require.True(t, ok)
	assert.True(t, d.Equal(decimal.RequireFromString("1250.50")))

	_, ok = ParseAmount("")
	assert.False(t, ok)

	_, ok = ParseAmount("n/a")
	assert.False(t, ok)
}

func TestParse_MatchesColumnsByPrefix(t *testing.T) {
	header, records, err := Parse(strings.NewReader(legacySheet))
	require.NoError(t, err)
	assert.Len(t, header, 9)
	require.Len(t, records, 5, "blank rows are dropped")

	first := records[0]
	assert.Equal(t, "2024-01-15", first.Date)
	assert.True(t, first.DateValid)
	assert.Equal(t, "Acme Corp", first.Company)
	assert.Equal(t, "Homepage", first.Description)
	assert.Equal(t, "2024-0007", first.InvoiceNumber)
	assert.True(t, first.Hours.Equal(decimal.NewFromInt(2)))
	assert.True(t, first.Money.Equal(decimal.NewFromInt(300)))
	assert.Equal(t, 2, first.Line)

	// The first hours column is empty, so the second one wins
	assert.True(t, records[1].Hours.Equal(decimal.NewFromInt(4)))

	bad := records[4]
	assert.False(t, bad.DateValid)
	assert.Equal(t, "13/45/24", bad.Date)
	assert.False(t, bad.Valid())
}

func TestParse_RequiresColumns(t *testing.T) {
	_, _, err := Parse(strings.NewReader("Client, Notes\nAcme, x\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "date")
	assert.Contains(t, verr.Fields, "hours")

	_, _, err = Parse(strings.NewReader(""))
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestAnalyze_SummarizesCompanies(t *testing.T) {
	clients := []*domain.Client{{ID: 7, Name: "ACME CORP"}}

	analysis, err := Analyze(strings.NewReader(legacySheet), clients)
	require.NoError(t, err)
	assert.Equal(t, 1, analysis.Invalid)
	require.Len(t, analysis.Companies, 2)

	acme := analysis.Companies[0]
	assert.Equal(t, "Acme Corp", acme.Company)
	assert.Equal(t, 3, acme.RowCount)
	assert.True(t, acme.TotalHours.Equal(decimal.NewFromInt(7)))
	assert.True(t, acme.TotalRevenue.Equal(decimal.NewFromInt(1060)))
	// 150, 150, 160
	assert.True(t, acme.ImpliedRate.Equal(decimal.NewFromInt(150)))
	require.NotNil(t, acme.ProposedClientID)
	assert.Equal(t, int64(7), *acme.ProposedClientID)
	assert.Equal(t, "ACME CORP", acme.ProposedClientName)

	globex := analysis.Companies[1]
	assert.Nil(t, globex.ProposedClientID)
	assert.True(t, globex.ImpliedRate.Equal(decimal.NewFromInt(150)))
}

func TestMode_PrefersLowerRateOnTie(t *testing.T) {
	rate, ok := mode(map[int64]int{200: 2, 150: 2, 175: 1})
	require.True(t, ok)
	assert.Equal(t, int64(150), rate)

	_, ok = mode(map[int64]int{})
	assert.False(t, ok)
}

func TestSummarize_FallsBackToAverageRate(t *testing.T) {
	rows := []Record{
		{Company: "Initech", Hours: decimal.NewFromInt(3)},
		{Company: "Initech", Hours: decimal.Zero, Money: decimal.NewFromInt(600)},
	}
	s := summarize(rows)
	assert.True(t, s.ImpliedRate.Equal(decimal.NewFromInt(200)))
}

func TestEntryStatus(t *testing.T) {
	assert.Equal(t, domain.EntryStatusApproved, EntryStatus("Paid"))
	assert.Equal(t, domain.EntryStatusSubmitted, EntryStatus(" billed "))
	assert.Equal(t, domain.EntryStatusDraft, EntryStatus("Unbilled"))
	assert.True(t, IsPaid("PAID"))
	assert.False(t, IsPaid("Billed"))
}
