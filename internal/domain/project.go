package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type ProjectStatus string

const (
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusOnHold    ProjectStatus = "on_hold"
	ProjectStatusCancelled ProjectStatus = "cancelled"
)

// Valid reports whether s is a known project status
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectStatusActive, ProjectStatusCompleted, ProjectStatusOnHold, ProjectStatusCancelled:
		return true
	}
	return false
}

type Project struct {
	ID           int64
	ClientID     int64
	Name         string
	Description  string
	HourlyRate   decimal.NullDecimal
	BudgetHours  decimal.NullDecimal
	BudgetAmount decimal.NullDecimal
	Status       ProjectStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// Populated by some queries
	ClientName string
}

// ProjectPatch lists the mutable project fields
type ProjectPatch struct {
	Name         *string                   `json:"name"`
	Description  *string                   `json:"description"`
	HourlyRate   Nullable[decimal.Decimal] `json:"hourly_rate"`
	BudgetHours  Nullable[decimal.Decimal] `json:"budget_hours"`
	BudgetAmount Nullable[decimal.Decimal] `json:"budget_amount"`
	Status       *ProjectStatus            `json:"status"`
}

// NewProject creates an active project for a client
func NewProject(clientID int64, name string) *Project {
	now := time.Now()
	return &Project{
		ClientID:  clientID,
		Name:      strings.TrimSpace(name),
		Status:    ProjectStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Apply copies the set fields of p onto the project
func (p *Project) Apply(patch ProjectPatch) {
	if patch.Name != nil {
		p.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	applyDecimal(&p.HourlyRate, patch.HourlyRate)
	applyDecimal(&p.BudgetHours, patch.BudgetHours)
	applyDecimal(&p.BudgetAmount, patch.BudgetAmount)
	if patch.Status != nil {
		p.Status = *patch.Status
	}
	p.UpdatedAt = time.Now()
}

// Validate returns an error if the project is invalid
func (p *Project) Validate() error {
	v := NewValidationError()
	if p.ClientID <= 0 {
		v.Add("client_id", "client ID is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		v.Add("name", "project name is required")
	}
	if p.HourlyRate.Valid && p.HourlyRate.Decimal.IsNegative() {
		v.Add("hourly_rate", "hourly rate cannot be negative")
	}
	if p.BudgetHours.Valid && p.BudgetHours.Decimal.IsNegative() {
		v.Add("budget_hours", "budget hours cannot be negative")
	}
	if p.BudgetAmount.Valid && p.BudgetAmount.Decimal.IsNegative() {
		v.Add("budget_amount", "budget amount cannot be negative")
	}
	if !p.Status.Valid() {
		v.Add("status", "unknown project status")
	}
	return v.OrNil()
}
