package domain

import (
	"net/mail"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultPaymentTerms is the number of days until an invoice is due
const DefaultPaymentTerms = 30

type Client struct {
	ID                   int64
	Name                 string
	Code                 string
	BillingRate          decimal.NullDecimal
	DefaultRate          decimal.NullDecimal
	InvoiceEmail         string
	InvoiceCC            string
	InvoiceRecipientName string
	PaymentTerms         int
	Notes                string
	IsActive             bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// ClientPatch lists the mutable client fields
type ClientPatch struct {
	Name                 *string                   `json:"name"`
	Code                 Nullable[string]          `json:"code"`
	BillingRate          Nullable[decimal.Decimal] `json:"billing_rate"`
	DefaultRate          Nullable[decimal.Decimal] `json:"default_rate"`
	InvoiceEmail         *string                   `json:"invoice_email"`
	InvoiceCC            *string                   `json:"invoice_cc"`
	InvoiceRecipientName *string                   `json:"invoice_recipient_name"`
	PaymentTerms         *int                      `json:"payment_terms"`
	Notes                *string                   `json:"notes"`
}

// NewClient creates a new active client with required fields
func NewClient(name string) *Client {
	now := time.Now()
	return &Client{
		Name:         strings.TrimSpace(name),
		PaymentTerms: DefaultPaymentTerms,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Apply copies the set fields of p onto the client
func (c *Client) Apply(p ClientPatch) {
	if p.Name != nil {
		c.Name = strings.TrimSpace(*p.Name)
	}
	if p.Code.Set {
		c.Code = strings.TrimSpace(p.Code.Value)
	}
	applyDecimal(&c.BillingRate, p.BillingRate)
	applyDecimal(&c.DefaultRate, p.DefaultRate)
	if p.InvoiceEmail != nil {
		c.InvoiceEmail = strings.TrimSpace(*p.InvoiceEmail)
	}
	if p.InvoiceCC != nil {
		c.InvoiceCC = strings.TrimSpace(*p.InvoiceCC)
	}
	if p.InvoiceRecipientName != nil {
		c.InvoiceRecipientName = *p.InvoiceRecipientName
	}
	if p.PaymentTerms != nil {
		c.PaymentTerms = *p.PaymentTerms
	}
	if p.Notes != nil {
		c.Notes = *p.Notes
	}
	c.UpdatedAt = time.Now()
}

// DueDays returns the payment terms, or fallback when unset
func (c *Client) DueDays(fallback int) int {
	if c.PaymentTerms > 0 {
		return c.PaymentTerms
	}
	return fallback
}

// Validate returns an error if the client is invalid
func (c *Client) Validate() error {
	v := NewValidationError()
	if strings.TrimSpace(c.Name) == "" {
		v.Add("name", "client name is required")
	}
	if c.BillingRate.Valid && c.BillingRate.Decimal.IsNegative() {
		v.Add("billing_rate", "billing rate cannot be negative")
	}
	if c.DefaultRate.Valid && c.DefaultRate.Decimal.IsNegative() {
		v.Add("default_rate", "default rate cannot be negative")
	}
	if c.PaymentTerms < 0 {
		v.Add("payment_terms", "payment terms cannot be negative")
	}
	if c.InvoiceEmail != "" {
		if _, err := mail.ParseAddress(c.InvoiceEmail); err != nil {
			v.Add("invoice_email", "invalid email address")
		}
	}
	return v.OrNil()
}
