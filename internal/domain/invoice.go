package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// Valid reports whether s is a known invoice status
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusCancelled:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
	PaymentStatusPartial PaymentStatus = "partial"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// Valid reports whether s is a known payment status
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusUnpaid, PaymentStatusPartial, PaymentStatusPaid:
		return true
	}
	return false
}

var invoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusDraft: {InvoiceStatusSent, InvoiceStatusCancelled},
	InvoiceStatusSent:  {InvoiceStatusCancelled},
}

type Invoice struct {
	ID            int64
	InvoiceNumber string
	ClientID      int64
	InvoiceDate   time.Time
	DueDate       time.Time
	Subtotal      decimal.Decimal
	TaxRate       decimal.Decimal // percent
	TaxAmount     decimal.Decimal
	Total         decimal.Decimal
	Status        InvoiceStatus
	PaymentStatus PaymentStatus
	PaymentDate   *time.Time
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// Related data (populated by repository)
	Items  []*InvoiceItem
	Client *Client
}

type InvoiceItem struct {
	ID           int64
	InvoiceID    int64
	Description  string
	Quantity     decimal.Decimal // hours
	Rate         decimal.Decimal
	Amount       decimal.Decimal
	TimeEntryIDs []int64
}

// NewInvoiceItem builds an item with amount = quantity × rate
func NewInvoiceItem(description string, quantity, rate decimal.Decimal, entryIDs []int64) *InvoiceItem {
	return &InvoiceItem{
		Description:  description,
		Quantity:     quantity,
		Rate:         rate,
		Amount:       quantity.Mul(rate).Round(2),
		TimeEntryIDs: entryIDs,
	}
}

// NewInvoice creates a new draft, unpaid invoice
func NewInvoice(invoiceNumber string, clientID int64, invoiceDate time.Time, dueDays int) *Invoice {
	now := time.Now()
	return &Invoice{
		InvoiceNumber: invoiceNumber,
		ClientID:      clientID,
		InvoiceDate:   invoiceDate,
		DueDate:       invoiceDate.AddDate(0, 0, dueDays),
		TaxRate:       decimal.Zero,
		Status:        InvoiceStatusDraft,
		PaymentStatus: PaymentStatusUnpaid,
		CreatedAt:     now,
		UpdatedAt:     now,
		Items:         make([]*InvoiceItem, 0),
	}
}

// CanDelete returns true while the invoice is still a draft
func (i *Invoice) CanDelete() bool {
	return i.Status == InvoiceStatusDraft
}

// CalculateTotals recalculates subtotal, tax, and total from items
func (i *Invoice) CalculateTotals() {
	i.Subtotal = decimal.Zero
	for _, item := range i.Items {
		i.Subtotal = i.Subtotal.Add(item.Amount)
	}
	i.TaxAmount = i.Subtotal.Mul(i.TaxRate).Div(decimal.NewFromInt(100)).Round(2)
	i.Total = i.Subtotal.Add(i.TaxAmount)
	i.UpdatedAt = time.Now()
}

// TransitionTo moves the invoice to a new status
func (i *Invoice) TransitionTo(to InvoiceStatus) error {
	if !to.Valid() {
		return Invalid("status", "unknown invoice status")
	}
	for _, allowed := range invoiceTransitions[i.Status] {
		if allowed == to {
			i.Status = to
			i.UpdatedAt = time.Now()
			return nil
		}
	}
	return Preconditionf("cannot move invoice from %s to %s", i.Status, to)
}

// SetPaymentStatus records a payment state change. The payment date is kept
// only while the invoice is paid.
func (i *Invoice) SetPaymentStatus(status PaymentStatus, date time.Time) error {
	if !status.Valid() {
		return Invalid("payment_status", "unknown payment status")
	}
	if i.Status == InvoiceStatusCancelled {
		return Preconditionf("invoice %s is cancelled", i.InvoiceNumber)
	}
	if status == PaymentStatusPaid {
		if i.PaymentStatus != PaymentStatusPaid || i.PaymentDate == nil {
			d := date
			i.PaymentDate = &d
		}
	} else {
		i.PaymentDate = nil
	}
	i.PaymentStatus = status
	i.UpdatedAt = time.Now()
	return nil
}

// Validate returns an error if the invoice is invalid
func (i *Invoice) Validate() error {
	v := NewValidationError()
	if strings.TrimSpace(i.InvoiceNumber) == "" {
		v.Add("invoice_number", "invoice number is required")
	}
	if i.ClientID <= 0 {
		v.Add("client_id", "client ID is required")
	}
	if i.InvoiceDate.IsZero() {
		v.Add("invoice_date", "invoice date is required")
	}
	if i.DueDate.Before(i.InvoiceDate) {
		v.Add("due_date", "due date must not precede invoice date")
	}
	if i.TaxRate.IsNegative() || i.TaxRate.GreaterThan(decimal.NewFromInt(100)) {
		v.Add("tax_rate", "tax rate must be between 0 and 100")
	}
	if !i.Status.Valid() {
		v.Add("status", "unknown invoice status")
	}
	if !i.PaymentStatus.Valid() {
		v.Add("payment_status", "unknown payment status")
	}
	return v.OrNil()
}

// FormatInvoiceNumber renders the "{year}-{seq:04d}" invoice number
func FormatInvoiceNumber(year, seq int) string {
	return fmt.Sprintf("%d-%04d", year, seq)
}

// ParseInvoiceNumber splits a "{year}-{seq}" invoice number
func ParseInvoiceNumber(s string) (year, seq int, err error) {
	prefix, suffix, ok := strings.Cut(s, "-")
	if !ok {
		return 0, 0, fmt.Errorf("invalid invoice number %q", s)
	}
	if year, err = strconv.Atoi(prefix); err != nil {
		return 0, 0, fmt.Errorf("invalid invoice number %q: %w", s, err)
	}
	if seq, err = strconv.Atoi(suffix); err != nil {
		return 0, 0, fmt.Errorf("invalid invoice number %q: %w", s, err)
	}
	return year, seq, nil
}

// NextInvoiceNumber returns the number following last within year.
// An empty last starts the year at 1.
func NextInvoiceNumber(year int, last string) (string, error) {
	if last == "" {
		return FormatInvoiceNumber(year, 1), nil
	}
	lastYear, seq, err := ParseInvoiceNumber(last)
	if err != nil {
		return "", err
	}
	if lastYear != year {
		return "", fmt.Errorf("invoice number %s is not in year %d", last, year)
	}
	return FormatInvoiceNumber(year, seq+1), nil
}
