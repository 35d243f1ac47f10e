package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type EntryStatus string

const (
	EntryStatusDraft     EntryStatus = "draft"
	EntryStatusSubmitted EntryStatus = "submitted"
	EntryStatusApproved  EntryStatus = "approved"
	EntryStatusRejected  EntryStatus = "rejected"
)

// Valid reports whether s is a known entry status
func (s EntryStatus) Valid() bool {
	switch s {
	case EntryStatusDraft, EntryStatusSubmitted, EntryStatusApproved, EntryStatusRejected:
		return true
	}
	return false
}

// Invoiceable reports whether entries in this status may be billed
func (s EntryStatus) Invoiceable() bool {
	return s == EntryStatusDraft || s == EntryStatusSubmitted || s == EntryStatusApproved
}

// InvoiceableStatuses lists the statuses eligible for invoicing
var InvoiceableStatuses = []EntryStatus{EntryStatusDraft, EntryStatusSubmitted, EntryStatusApproved}

var entryTransitions = map[EntryStatus][]EntryStatus{
	EntryStatusDraft:     {EntryStatusSubmitted},
	EntryStatusSubmitted: {EntryStatusApproved, EntryStatusRejected},
	EntryStatusRejected:  {EntryStatusDraft},
}

// MaxManualHours caps a single manually logged entry
var MaxManualHours = decimal.NewFromInt(24)

type TimeEntry struct {
	ID              int64
	UserID          *int64 // performer, exclusive with SubcontractorID
	SubcontractorID *int64
	ProjectID       int64
	WorkDate        time.Time // civil date
	Hours           decimal.Decimal
	Description     string
	IsBillable      bool
	Status          EntryStatus
	Rate            decimal.Decimal // frozen at resolution time
	Amount          decimal.Decimal
	InvoiceID       *int64 // nil = unbilled
	InvoiceNumber   string
	TimerStart      *time.Time
	TimerEnd        *time.Time
	ElapsedSeconds  int64
	IsPaused        bool
	IsDeleted       bool
	ImportBatch     string
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// Populated by list queries
	ProjectName   string
	ClientID      int64
	ClientName    string
	PerformerName string
}

// NewTimeEntry creates a draft entry for a user
func NewTimeEntry(userID, projectID int64, workDate time.Time, hours decimal.Decimal, description string) *TimeEntry {
	now := time.Now()
	return &TimeEntry{
		UserID:      &userID,
		ProjectID:   projectID,
		WorkDate:    workDate,
		Hours:       hours,
		Description: strings.TrimSpace(description),
		IsBillable:  true,
		Status:      EntryStatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// SetRate freezes the rate and recomputes the amount
func (e *TimeEntry) SetRate(rate decimal.Decimal) {
	e.Rate = rate
	e.RecomputeAmount()
}

// RecomputeAmount derives amount from hours, rate and billable flag
func (e *TimeEntry) RecomputeAmount() {
	if !e.IsBillable {
		e.Amount = decimal.Zero
		return
	}
	e.Amount = e.Hours.Mul(e.Rate).Round(2)
}

// IsLocked returns true if the entry is attached to an invoice
func (e *TimeEntry) IsLocked() bool {
	return e.InvoiceID != nil
}

// CanEdit reports whether the entry accepts patches
func (e *TimeEntry) CanEdit() bool {
	if e.IsLocked() || e.IsDeleted {
		return false
	}
	return e.Status == EntryStatusDraft || e.Status == EntryStatusRejected
}

// IsUnbilled reports whether the entry is eligible for invoicing
func (e *TimeEntry) IsUnbilled() bool {
	return e.InvoiceID == nil && e.IsBillable && !e.IsDeleted && e.Status.Invoiceable() && !e.IsTimerActive()
}

// Transition moves the entry to a new workflow status
func (e *TimeEntry) Transition(to EntryStatus) error {
	if e.IsLocked() {
		return Preconditionf("entry %d is invoiced", e.ID)
	}
	if e.IsTimerActive() {
		return Preconditionf("entry %d has a running timer", e.ID)
	}
	for _, allowed := range entryTransitions[e.Status] {
		if allowed == to {
			e.Status = to
			e.UpdatedAt = time.Now()
			return nil
		}
	}
	return Preconditionf("cannot move entry from %s to %s", e.Status, to)
}

// PerformerLabel describes who did the work
func (e *TimeEntry) PerformerLabel() string {
	if e.PerformerName != "" {
		return e.PerformerName
	}
	if e.SubcontractorID != nil {
		return fmt.Sprintf("Subcontractor #%d", *e.SubcontractorID)
	}
	if e.UserID != nil {
		return fmt.Sprintf("User #%d", *e.UserID)
	}
	return "-"
}

// Validate returns an error if the entry is invalid
func (e *TimeEntry) Validate() error {
	v := NewValidationError()
	if (e.UserID == nil) == (e.SubcontractorID == nil) {
		v.Add("performer", "exactly one of user or subcontractor is required")
	}
	if e.ProjectID <= 0 {
		v.Add("project_id", "project ID is required")
	}
	if e.WorkDate.IsZero() {
		v.Add("work_date", "work date is required")
	}
	if e.Hours.IsNegative() {
		v.Add("hours", "hours cannot be negative")
	}
	if e.Rate.IsNegative() {
		v.Add("rate", "rate cannot be negative")
	}
	if !e.Status.Valid() {
		v.Add("status", "unknown entry status")
	}
	if e.TimerEnd != nil && e.TimerStart == nil {
		v.Add("timer_end", "timer end without start")
	}
	return v.OrNil()
}

// ValidateManualHours checks hours typed in by a person
func ValidateManualHours(h decimal.Decimal) error {
	if !h.IsPositive() {
		return Invalid("hours", "hours must be greater than zero")
	}
	if h.GreaterThan(MaxManualHours) {
		return Invalid("hours", "hours cannot exceed 24")
	}
	if !h.Equal(h.Round(2)) {
		return Invalid("hours", "hours allow at most two decimal places")
	}
	return nil
}

// EntryPatch lists the mutable fields of a draft or rejected entry
type EntryPatch struct {
	ProjectID     *int64           `json:"project_id"`
	WorkDate      *string          `json:"work_date"`
	Hours         *decimal.Decimal `json:"hours"`
	Description   *string          `json:"description"`
	IsBillable    *bool            `json:"is_billable"`
	Rate          *decimal.Decimal `json:"rate"`
	RecomputeRate bool             `json:"recompute_rate"`
}

// Empty reports whether the patch changes nothing
func (p EntryPatch) Empty() bool {
	return p.ProjectID == nil && p.WorkDate == nil && p.Hours == nil && p.Description == nil &&
		p.IsBillable == nil && p.Rate == nil && !p.RecomputeRate
}

// EntryHistory is one audited field change
type EntryHistory struct {
	ID           int64
	EntryID      int64
	FieldName    string
	OldValue     string
	NewValue     string
	ChangeReason string
	ChangedAt    time.Time
}

// NewEntryHistory creates a history record for a field change
func NewEntryHistory(entryID int64, fieldName, oldValue, newValue, reason string) *EntryHistory {
	return &EntryHistory{
		EntryID:      entryID,
		FieldName:    fieldName,
		OldValue:     oldValue,
		NewValue:     newValue,
		ChangeReason: reason,
		ChangedAt:    time.Now(),
	}
}
