package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleConsultant Role = "consultant"
)

// User is a consultant or administrator who performs and records work
type User struct {
	ID        int64
	Name      string
	Email     string
	Role      Role
	IsActive  bool
	CreatedAt time.Time
}

// IsAdmin reports whether the user sees and manages everyone's data
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Scope returns the visibility scope for requests made by u
func (u *User) Scope() Scope {
	return Scope{UserID: u.ID, Privileged: u.IsAdmin()}
}

// Validate returns an error if the user is invalid
func (u *User) Validate() error {
	v := NewValidationError()
	if strings.TrimSpace(u.Name) == "" {
		v.Add("name", "user name is required")
	}
	if u.Role != RoleAdmin && u.Role != RoleConsultant {
		v.Add("role", "role must be admin or consultant")
	}
	return v.OrNil()
}

// Subcontractor is an outside performer whose work is logged by staff
type Subcontractor struct {
	ID         int64
	Name       string
	Email      string
	Phone      string
	Company    string
	HourlyRate decimal.NullDecimal
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SubcontractorPatch lists the mutable subcontractor fields
type SubcontractorPatch struct {
	Name       *string                   `json:"name"`
	Email      *string                   `json:"email"`
	Phone      *string                   `json:"phone"`
	Company    *string                   `json:"company"`
	HourlyRate Nullable[decimal.Decimal] `json:"hourly_rate"`
}

// Apply copies the set fields of p onto the subcontractor
func (s *Subcontractor) Apply(p SubcontractorPatch) {
	if p.Name != nil {
		s.Name = strings.TrimSpace(*p.Name)
	}
	if p.Email != nil {
		s.Email = *p.Email
	}
	if p.Phone != nil {
		s.Phone = *p.Phone
	}
	if p.Company != nil {
		s.Company = *p.Company
	}
	applyDecimal(&s.HourlyRate, p.HourlyRate)
	s.UpdatedAt = time.Now()
}

// Validate returns an error if the subcontractor is invalid
func (s *Subcontractor) Validate() error {
	v := NewValidationError()
	if strings.TrimSpace(s.Name) == "" {
		v.Add("name", "subcontractor name is required")
	}
	if s.HourlyRate.Valid && s.HourlyRate.Decimal.IsNegative() {
		v.Add("hourly_rate", "hourly rate cannot be negative")
	}
	return v.OrNil()
}

// Scope restricts reads and writes to what the caller may see
type Scope struct {
	UserID     int64
	Privileged bool
}

// AdminScope is used by offline batch jobs
func AdminScope() Scope {
	return Scope{Privileged: true}
}

// Owns reports whether the scope may act on work performed by userID
func (s Scope) Owns(userID *int64) bool {
	if s.Privileged {
		return true
	}
	return userID != nil && *userID == s.UserID
}
