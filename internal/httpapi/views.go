package httpapi

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/andy/timeledger/internal/domain"
	"github.com/andy/timeledger/internal/service"
)

// Wire shapes. Dates are YYYY-MM-DD, timestamps RFC3339.

type clientView struct {
	ID                   int64            `json:"id"`
	Name                 string           `json:"name"`
	Code                 string           `json:"code,omitempty"`
	BillingRate          *decimal.Decimal `json:"billing_rate"`
	DefaultRate          *decimal.Decimal `json:"default_rate"`
	InvoiceEmail         string           `json:"invoice_email,omitempty"`
	InvoiceCC            string           `json:"invoice_cc,omitempty"`
	InvoiceRecipientName string           `json:"invoice_recipient_name,omitempty"`
	PaymentTerms         int              `json:"payment_terms"`
	Notes                string           `json:"notes,omitempty"`
	IsActive             bool             `json:"is_active"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

type projectView struct {
	ID           int64            `json:"id"`
	ClientID     int64            `json:"client_id"`
	ClientName   string           `json:"client_name,omitempty"`
	Name         string           `json:"name"`
	Description  string           `json:"description,omitempty"`
	HourlyRate   *decimal.Decimal `json:"hourly_rate"`
	BudgetHours  *decimal.Decimal `json:"budget_hours"`
	BudgetAmount *decimal.Decimal `json:"budget_amount"`
	Status       string           `json:"status"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

type userView struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

type subcontractorView struct {
	ID         int64            `json:"id"`
	Name       string           `json:"name"`
	Email      string           `json:"email,omitempty"`
	Phone      string           `json:"phone,omitempty"`
	Company    string           `json:"company,omitempty"`
	HourlyRate *decimal.Decimal `json:"hourly_rate"`
	IsActive   bool             `json:"is_active"`
}

type entryView struct {
	ID              int64           `json:"id"`
	UserID          *int64          `json:"user_id"`
	SubcontractorID *int64          `json:"subcontractor_id"`
	Performer       string          `json:"performer"`
	ProjectID       int64           `json:"project_id"`
	ProjectName     string          `json:"project_name,omitempty"`
	ClientID        int64           `json:"client_id,omitempty"`
	ClientName      string          `json:"client_name,omitempty"`
	WorkDate        string          `json:"work_date"`
	Hours           decimal.Decimal `json:"hours"`
	Description     string          `json:"description"`
	IsBillable      bool            `json:"is_billable"`
	Status          string          `json:"status"`
	Rate            decimal.Decimal `json:"rate"`
	Amount          decimal.Decimal `json:"amount"`
	InvoiceID       *int64          `json:"invoice_id"`
	InvoiceNumber   string          `json:"invoice_number,omitempty"`
	TimerState      string          `json:"timer_state"`
	TimerStart      *time.Time      `json:"timer_start,omitempty"`
	TimerEnd        *time.Time      `json:"timer_end,omitempty"`
	ElapsedSeconds  int64           `json:"elapsed_seconds"`
	ImportBatch     string          `json:"import_batch,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type historyView struct {
	FieldName string    `json:"field"`
	OldValue  string    `json:"old_value"`
	NewValue  string    `json:"new_value"`
	Reason    string    `json:"reason,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
}

type timerView struct {
	entryView
	State        string          `json:"state"`
	Elapsed      int64           `json:"elapsed"`
	AccruedValue decimal.Decimal `json:"accrued_value"`
}

type invoiceItemView struct {
	Description  string          `json:"description"`
	Quantity     decimal.Decimal `json:"quantity"`
	Rate         decimal.Decimal `json:"rate"`
	Amount       decimal.Decimal `json:"amount"`
	TimeEntryIDs []int64         `json:"time_entry_ids"`
}

type invoiceView struct {
	ID            int64             `json:"id"`
	InvoiceNumber string            `json:"invoice_number"`
	ClientID      int64             `json:"client_id"`
	ClientName    string            `json:"client_name,omitempty"`
	InvoiceDate   string            `json:"invoice_date"`
	DueDate       string            `json:"due_date"`
	Subtotal      decimal.Decimal   `json:"subtotal"`
	TaxRate       decimal.Decimal   `json:"tax_rate"`
	TaxAmount     decimal.Decimal   `json:"tax_amount"`
	Total         decimal.Decimal   `json:"total"`
	Status        string            `json:"status"`
	PaymentStatus string            `json:"payment_status"`
	PaymentDate   *string           `json:"payment_date"`
	Notes         string            `json:"notes,omitempty"`
	Items         []invoiceItemView `json:"items,omitempty"`
}

type unbilledView struct {
	ClientID   int64           `json:"client_id"`
	ClientName string          `json:"client_name"`
	EntryCount int             `json:"entry_count"`
	Hours      decimal.Decimal `json:"hours"`
	Amount     decimal.Decimal `json:"amount"`
	OldestDate string          `json:"oldest_date"`
	NewestDate string          `json:"newest_date"`
	Entries    []entryView     `json:"entries"`
}

func nullDecimal(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

func toClientView(c *domain.Client) clientView {
	return clientView{
		ID:                   c.ID,
		Name:                 c.Name,
		Code:                 c.Code,
		BillingRate:          nullDecimal(c.BillingRate),
		DefaultRate:          nullDecimal(c.DefaultRate),
		InvoiceEmail:         c.InvoiceEmail,
		InvoiceCC:            c.InvoiceCC,
		InvoiceRecipientName: c.InvoiceRecipientName,
		PaymentTerms:         c.PaymentTerms,
		Notes:                c.Notes,
		IsActive:             c.IsActive,
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
	}
}

func toProjectView(p *domain.Project) projectView {
	return projectView{
		ID:           p.ID,
		ClientID:     p.ClientID,
		ClientName:   p.ClientName,
		Name:         p.Name,
		Description:  p.Description,
		HourlyRate:   nullDecimal(p.HourlyRate),
		BudgetHours:  nullDecimal(p.BudgetHours),
		BudgetAmount: nullDecimal(p.BudgetAmount),
		Status:       string(p.Status),
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func toUserView(u *domain.User) userView {
	return userView{ID: u.ID, Name: u.Name, Email: u.Email, Role: string(u.Role), IsActive: u.IsActive}
}

func toSubcontractorView(s *domain.Subcontractor) subcontractorView {
	return subcontractorView{
		ID:         s.ID,
		Name:       s.Name,
		Email:      s.Email,
		Phone:      s.Phone,
		Company:    s.Company,
		HourlyRate: nullDecimal(s.HourlyRate),
		IsActive:   s.IsActive,
	}
}

func toEntryView(e *domain.TimeEntry) entryView {
	return entryView{
		ID:              e.ID,
		UserID:          e.UserID,
		SubcontractorID: e.SubcontractorID,
		Performer:       e.PerformerLabel(),
		ProjectID:       e.ProjectID,
		ProjectName:     e.ProjectName,
		ClientID:        e.ClientID,
		ClientName:      e.ClientName,
		WorkDate:        domain.FormatDate(e.WorkDate),
		Hours:           e.Hours,
		Description:     e.Description,
		IsBillable:      e.IsBillable,
		Status:          string(e.Status),
		Rate:            e.Rate,
		Amount:          e.Amount,
		InvoiceID:       e.InvoiceID,
		InvoiceNumber:   e.InvoiceNumber,
		TimerState:      string(e.TimerState()),
		TimerStart:      e.TimerStart,
		TimerEnd:        e.TimerEnd,
		ElapsedSeconds:  e.ElapsedSeconds,
		ImportBatch:     e.ImportBatch,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

func toEntryViews(entries []*domain.TimeEntry) []entryView {
	out := make([]entryView, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryView(e))
	}
	return out
}

func toTimerView(t service.ActiveTimer) timerView {
	return timerView{
		entryView:    toEntryView(t.Entry),
		State:        string(t.State),
		Elapsed:      t.ElapsedSeconds,
		AccruedValue: t.AccruedValue,
	}
}

func toInvoiceView(inv *domain.Invoice) invoiceView {
	v := invoiceView{
		ID:            inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		ClientID:      inv.ClientID,
		InvoiceDate:   domain.FormatDate(inv.InvoiceDate),
		DueDate:       domain.FormatDate(inv.DueDate),
		Subtotal:      inv.Subtotal,
		TaxRate:       inv.TaxRate,
		TaxAmount:     inv.TaxAmount,
		Total:         inv.Total,
		Status:        string(inv.Status),
		PaymentStatus: string(inv.PaymentStatus),
		Notes:         inv.Notes,
	}
	if inv.Client != nil {
		v.ClientName = inv.Client.Name
	}
	if inv.PaymentDate != nil {
		d := domain.FormatDate(*inv.PaymentDate)
		v.PaymentDate = &d
	}
	for _, item := range inv.Items {
		v.Items = append(v.Items, invoiceItemView{
			Description:  item.Description,
			Quantity:     item.Quantity,
			Rate:         item.Rate,
			Amount:       item.Amount,
			TimeEntryIDs: item.TimeEntryIDs,
		})
	}
	return v
}

func toUnbilledView(g service.UnbilledGroup) unbilledView {
	return unbilledView{
		ClientID:   g.ClientID,
		ClientName: g.ClientName,
		EntryCount: g.EntryCount,
		Hours:      g.Hours,
		Amount:     g.Amount,
		OldestDate: domain.FormatDate(g.OldestDate),
		NewestDate: domain.FormatDate(g.NewestDate),
		Entries:    toEntryViews(g.Entries),
	}
}
