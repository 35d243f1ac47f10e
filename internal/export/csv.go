package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/andy/timeledger/internal/domain"
)

var entryHeader = []string{
	"id", "work_date", "client", "project", "performer", "description",
	"hours", "rate", "amount", "billable", "status", "invoice_number",
}

// EntriesCSV writes one row per time entry
func EntriesCSV(w io.Writer, entries []*domain.TimeEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(entryHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, e := range entries {
		row := []string{
			strconv.FormatInt(e.ID, 10),
			domain.FormatDate(e.WorkDate),
			e.ClientName,
			e.ProjectName,
			e.PerformerLabel(),
			e.Description,
			e.Hours.StringFixed(2),
			e.Rate.StringFixed(2),
			e.Amount.StringFixed(2),
			strconv.FormatBool(e.IsBillable),
			string(e.Status),
			e.InvoiceNumber,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write entry %d: %w", e.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
