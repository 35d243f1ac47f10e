package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andy/timeledger/internal/domain"
)

func sampleInvoice() *domain.Invoice {
	inv := domain.NewInvoice("2024-0003", 1, domain.NewDate(2024, 3, 15), 30)
	inv.Client = &domain.Client{ID: 1, Name: "Acme Corp", InvoiceEmail: "ap@acme.test", InvoiceRecipientName: "Wile E."}
	inv.Items = []*domain.InvoiceItem{
		domain.NewInvoiceItem("Consulting (150.00/hr)", decimal.NewFromInt(5), decimal.NewFromInt(150), []int64{1, 2}),
		domain.NewInvoiceItem("Consulting (120.00/hr)", decimal.NewFromInt(2), decimal.NewFromInt(120), []int64{3}),
	}
	inv.TaxRate = decimal.NewFromInt(10)
	inv.Notes = "Payable à réception"
	inv.CalculateTotals()
	return inv
}

func TestInvoicePDF(t *testing.T) {
	var buf bytes.Buffer
	err := InvoicePDF(&buf, sampleInvoice(), Issuer{Name: "Ledger Consulting", Email: "billing@ledger.test"})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestInvoicePDF_RequiresClient(t *testing.T) {
	inv := sampleInvoice()
	inv.Client = nil
	assert.Error(t, InvoicePDF(&bytes.Buffer{}, inv, Issuer{}))
}

func TestSaveInvoicePDF(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	path, err := SaveInvoicePDF(dir, sampleInvoice(), Issuer{Name: "Ledger Consulting"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2024-0003.pdf"), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestEntriesCSV(t *testing.T) {
	userID := int64(4)
	invoiceID := int64(9)
	entries := []*domain.TimeEntry{
		{
			ID:            12,
			UserID:        &userID,
			WorkDate:      domain.NewDate(2024, 3, 1),
			Hours:         decimal.RequireFromString("1.5"),
			Rate:          decimal.NewFromInt(150),
			Amount:        decimal.RequireFromString("225"),
			Description:   "Design review, round 2",
			IsBillable:    true,
			Status:        domain.EntryStatusApproved,
			InvoiceID:     &invoiceID,
			InvoiceNumber: "2024-0001",
			ClientName:    "Acme Corp",
			ProjectName:   "Website",
			PerformerName: "Dana",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, EntriesCSV(&buf, entries))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, entryHeader, rows[0])
	assert.Equal(t, []string{
		"12", "2024-03-01", "Acme Corp", "Website", "Dana", "Design review, round 2",
		"1.50", "150.00", "225.00", "true", "approved", "2024-0001",
	}, rows[1])
}
