package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andy/timeledger/internal/domain"
	"github.com/andy/timeledger/internal/repository"
)

// NewEntry is a manually logged unit of work by a user
type NewEntry struct {
	UserID      int64 // zero means the caller
	ProjectID   int64
	WorkDate    time.Time
	Hours       decimal.Decimal
	Description string
	Billable    *bool
	Rate        domain.Rate
}

// NewSubcontractorEntry is work logged by staff on behalf of a subcontractor
type NewSubcontractorEntry struct {
	SubcontractorID int64
	ProjectID       int64
	WorkDate        time.Time
	Hours           decimal.Decimal
	Description     string
	Billable        *bool
	Rate            domain.Rate
}

// EntryService manages manually logged time entries and their workflow
type EntryService interface {
	Create(ctx context.Context, scope domain.Scope, req NewEntry) (*domain.TimeEntry, error)
	LogSubcontractor(ctx context.Context, scope domain.Scope, req NewSubcontractorEntry) (*domain.TimeEntry, error)
	Get(ctx context.Context, scope domain.Scope, id int64) (*domain.TimeEntry, error)
	List(ctx context.Context, filter repository.EntryFilter) ([]*domain.TimeEntry, error)

	// Update applies a patch to a draft or rejected entry and records history
	Update(ctx context.Context, scope domain.Scope, id int64, patch domain.EntryPatch, reason string) (*domain.TimeEntry, error)

	// Delete soft-deletes an unbilled entry
	Delete(ctx context.Context, scope domain.Scope, id int64, reason string) error

	Submit(ctx context.Context, scope domain.Scope, id int64) (*domain.TimeEntry, error)
	Approve(ctx context.Context, scope domain.Scope, id int64) (*domain.TimeEntry, error)
	Reject(ctx context.Context, scope domain.Scope, id int64, reason string) (*domain.TimeEntry, error)
	Reopen(ctx context.Context, scope domain.Scope, id int64) (*domain.TimeEntry, error)
	History(ctx context.Context, scope domain.Scope, id int64) ([]*domain.EntryHistory, error)
}

type entryService struct {
	entryRepo   repository.TimeEntryRepository
	projectRepo repository.ProjectRepository
	subRepo     repository.SubcontractorRepository
	rates       RateResolver
}

// NewEntryService creates a new entry service
func NewEntryService(
	entryRepo repository.TimeEntryRepository,
	projectRepo repository.ProjectRepository,
	subRepo repository.SubcontractorRepository,
	rates RateResolver,
) EntryService {
	return &entryService{
		entryRepo:   entryRepo,
		projectRepo: projectRepo,
		subRepo:     subRepo,
		rates:       rates,
	}
}

func (s *entryService) Create(ctx context.Context, scope domain.Scope, req NewEntry) (*domain.TimeEntry, error) {
	if req.UserID == 0 {
		req.UserID = scope.UserID
	}
	if !scope.Owns(&req.UserID) {
		return nil, domain.Forbiddenf("cannot log time for user %d", req.UserID)
	}
	if err := domain.ValidateManualHours(req.Hours); err != nil {
		return nil, err
	}

	rate, err := s.rates.Resolve(ctx, req.ProjectID, req.Rate)
	if err != nil {
		return nil, err
	}

	entry := domain.NewTimeEntry(req.UserID, req.ProjectID, req.WorkDate, req.Hours, req.Description)
	if req.Billable != nil {
		entry.IsBillable = *req.Billable
	}
	entry.SetRate(rate)

	if err := s.entryRepo.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *entryService) LogSubcontractor(
	ctx context.Context,
	scope domain.Scope,
	req NewSubcontractorEntry,
) (*domain.TimeEntry, error) {
	if err := requireAdmin(scope, "log subcontractor time"); err != nil {
		return nil, err
	}
	if err := domain.ValidateManualHours(req.Hours); err != nil {
		return nil, err
	}

	sub, err := s.subRepo.GetByID(ctx, req.SubcontractorID)
	if err != nil {
		return nil, err
	}
	if !sub.IsActive {
		return nil, domain.Preconditionf("subcontractor %s is inactive", sub.Name)
	}

	rate, err := s.rates.Resolve(ctx, req.ProjectID, req.Rate)
	if err != nil {
		return nil, err
	}

	entry := domain.NewTimeEntry(0, req.ProjectID, req.WorkDate, req.Hours, req.Description)
	entry.UserID = nil
	entry.SubcontractorID = &sub.ID
	if req.Billable != nil {
		entry.IsBillable = *req.Billable
	}
	entry.SetRate(rate)

	if err := s.entryRepo.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Get hides entries outside the scope as not found
func (s *entryService) Get(ctx context.Context, scope domain.Scope, id int64) (*domain.TimeEntry, error) {
	entry, err := s.entryRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry.IsDeleted || !scope.Owns(entry.UserID) {
		return nil, domain.NotFound("time entry", id)
	}
	return entry, nil
}

func (s *entryService) List(ctx context.Context, filter repository.EntryFilter) ([]*domain.TimeEntry, error) {
	return s.entryRepo.List(ctx, filter)
}

func (s *entryService) Update(
	ctx context.Context,
	scope domain.Scope,
	id int64,
	patch domain.EntryPatch,
	reason string,
) (*domain.TimeEntry, error) {
	if patch.Empty() {
		return nil, domain.Invalid("patch", "no fields to update")
	}

	entry, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if entry.IsTimerActive() {
		return nil, domain.Preconditionf("time entry %d has an active timer", id)
	}
	if !entry.CanEdit() {
		return nil, domain.Preconditionf("time entry %d cannot be edited in status %s", id, entry.Status)
	}

	if err := s.applyPatch(ctx, entry, patch); err != nil {
		return nil, err
	}

	if strings.TrimSpace(reason) == "" {
		reason = "edited"
	}
	if err := s.entryRepo.Update(ctx, entry, reason); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *entryService) applyPatch(ctx context.Context, entry *domain.TimeEntry, patch domain.EntryPatch) error {
	v := domain.NewValidationError()

	if patch.ProjectID != nil && *patch.ProjectID != entry.ProjectID {
		if _, err := s.projectRepo.GetByID(ctx, *patch.ProjectID); err != nil {
			return err
		}
		entry.ProjectID = *patch.ProjectID
	}
	if patch.WorkDate != nil {
		d, err := domain.ParseDate(*patch.WorkDate)
		if err != nil {
			v.Add("work_date", "work date must be YYYY-MM-DD")
		} else {
			entry.WorkDate = d
		}
	}
	if patch.Hours != nil {
		if err := domain.ValidateManualHours(*patch.Hours); err != nil {
			v.Add("hours", err.Error())
		} else {
			entry.Hours = *patch.Hours
		}
	}
	if patch.Description != nil {
		entry.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.IsBillable != nil {
		entry.IsBillable = *patch.IsBillable
	}
	if err := v.OrNil(); err != nil {
		return err
	}

	switch {
	case patch.Rate != nil:
		rate, err := s.rates.Resolve(ctx, entry.ProjectID, domain.FixedRate(*patch.Rate))
		if err != nil {
			return err
		}
		entry.Rate = rate
	case patch.RecomputeRate:
		rate, err := s.rates.Resolve(ctx, entry.ProjectID, domain.PendingRate())
		if err != nil {
			return err
		}
		entry.Rate = rate
	}

	entry.RecomputeAmount()
	return nil
}

func (s *entryService) Delete(ctx context.Context, scope domain.Scope, id int64, reason string) error {
	if _, err := s.Get(ctx, scope, id); err != nil {
		return err
	}
	if strings.TrimSpace(reason) == "" {
		reason = "deleted"
	}
	return s.entryRepo.SoftDelete(ctx, id, reason)
}

func (s *entryService) Submit(ctx context.Context, scope domain.Scope, id int64) (*domain.TimeEntry, error) {
	return s.transition(ctx, scope, id, domain.EntryStatusSubmitted, "submitted for approval")
}

func (s *entryService) Approve(ctx context.Context, scope domain.Scope, id int64) (*domain.TimeEntry, error) {
	if err := requireAdmin(scope, "approve time entries"); err != nil {
		return nil, err
	}
	return s.transition(ctx, scope, id, domain.EntryStatusApproved, "approved")
}

func (s *entryService) Reject(ctx context.Context, scope domain.Scope, id int64, reason string) (*domain.TimeEntry, error) {
	if err := requireAdmin(scope, "reject time entries"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		reason = "rejected"
	}
	return s.transition(ctx, scope, id, domain.EntryStatusRejected, reason)
}

func (s *entryService) Reopen(ctx context.Context, scope domain.Scope, id int64) (*domain.TimeEntry, error) {
	return s.transition(ctx, scope, id, domain.EntryStatusDraft, "reopened")
}

func (s *entryService) transition(
	ctx context.Context,
	scope domain.Scope,
	id int64,
	to domain.EntryStatus,
	reason string,
) (*domain.TimeEntry, error) {
	entry, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if err := entry.Transition(to); err != nil {
		return nil, err
	}
	if err := s.entryRepo.Update(ctx, entry, reason); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *entryService) History(ctx context.Context, scope domain.Scope, id int64) ([]*domain.EntryHistory, error) {
	if _, err := s.Get(ctx, scope, id); err != nil {
		return nil, err
	}
	return s.entryRepo.GetHistory(ctx, id)
}
