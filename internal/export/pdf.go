package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/andy/timeledger/internal/domain"
)

// Issuer is the firm printed in the invoice header
type Issuer struct {
	Name    string
	Email   string
	Address string
	Phone   string
}

// InvoicePDF renders an invoice. The invoice must carry its client and items.
func InvoicePDF(w io.Writer, inv *domain.Invoice, from Issuer) error {
	if inv == nil || inv.Client == nil {
		return errors.New("invoice and client are required to render a PDF")
	}

	pdf := gofpdf.New("P", "mm", "Letter", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Invoice "+inv.InvoiceNumber, true)
	pdf.AddPage()

	// Header
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(120, 10, tr(from.Name))
	pdf.CellFormat(0, 10, "INVOICE", "", 1, "R", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	for _, line := range []string{from.Address, from.Email, from.Phone} {
		if line != "" {
			pdf.Cell(120, 5, tr(line))
			pdf.Ln(5)
		}
	}
	pdf.Ln(6)

	// Bill to on the left, invoice facts on the right
	top := pdf.GetY()
	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(95, 6, "Bill To:")
	pdf.Ln(6)
	pdf.SetFont("Arial", "", 10)
	client := inv.Client
	if client.InvoiceRecipientName != "" {
		pdf.Cell(95, 5, tr(client.InvoiceRecipientName))
		pdf.Ln(5)
	}
	pdf.Cell(95, 5, tr(client.Name))
	pdf.Ln(5)
	if client.InvoiceEmail != "" {
		pdf.Cell(95, 5, tr(client.InvoiceEmail))
		pdf.Ln(5)
	}
	left := pdf.GetY()

	pdf.SetXY(120, top)
	facts := [][2]string{
		{"Invoice #", inv.InvoiceNumber},
		{"Date", domain.FormatDate(inv.InvoiceDate)},
		{"Due", domain.FormatDate(inv.DueDate)},
	}
	for _, f := range facts {
		pdf.SetX(120)
		pdf.SetFont("Arial", "B", 10)
		pdf.Cell(30, 5, f[0])
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 5, f[1], "", 1, "R", false, 0, "")
	}
	if pdf.GetY() < left {
		pdf.SetY(left)
	}
	pdf.Ln(8)

	// Items
	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(235, 235, 235)
	pdf.CellFormat(106, 8, "Description", "1", 0, "L", true, 0, "")
	pdf.CellFormat(25, 8, "Hours", "1", 0, "R", true, 0, "")
	pdf.CellFormat(30, 8, "Rate", "1", 0, "R", true, 0, "")
	pdf.CellFormat(35, 8, "Amount", "1", 1, "R", true, 0, "")

	pdf.SetFont("Arial", "", 9)
	for _, item := range inv.Items {
		pdf.CellFormat(106, 7, tr(item.Description), "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 7, item.Quantity.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 7, money(item.Rate), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 7, money(item.Amount), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	// Totals
	pdf.SetFont("Arial", "", 10)
	totalLine(pdf, "Subtotal:", money(inv.Subtotal))
	if inv.TaxRate.IsPositive() {
		totalLine(pdf, fmt.Sprintf("Tax (%s%%):", inv.TaxRate.String()), money(inv.TaxAmount))
	}
	pdf.SetFont("Arial", "B", 12)
	totalLine(pdf, "Total:", money(inv.Total))

	if inv.Notes != "" {
		pdf.Ln(8)
		pdf.SetFont("Arial", "I", 9)
		pdf.MultiCell(0, 5, tr(inv.Notes), "", "L", false)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("failed to render invoice %s: %w", inv.InvoiceNumber, err)
	}
	return pdf.Output(w)
}

// SaveInvoicePDF writes <dir>/<invoice number>.pdf and returns its path
func SaveInvoicePDF(dir string, inv *domain.Invoice, from Issuer) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(dir, inv.InvoiceNumber+".pdf")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := InvoicePDF(f, inv, from); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	return path, f.Close()
}

func totalLine(pdf *gofpdf.Fpdf, label, value string) {
	pdf.CellFormat(161, 7, label, "", 0, "R", false, 0, "")
	pdf.CellFormat(35, 7, value, "", 1, "R", false, 0, "")
}

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}
