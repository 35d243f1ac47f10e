package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andy/timeledger/internal/domain"
	"github.com/andy/timeledger/internal/repository"
)

// ActiveTimer is a running or paused timer with its live totals
type ActiveTimer struct {
	Entry          *domain.TimeEntry
	State          domain.TimerState
	ElapsedSeconds int64
	AccruedValue   decimal.Decimal
}

// Elapsed returns the accumulated time as a duration
func (t ActiveTimer) Elapsed() time.Duration {
	return time.Duration(t.ElapsedSeconds) * time.Second
}

// TimerService manages the timer state machine. Every transition is scoped
// to the timer's entry and its owning user.
type TimerService interface {
	// Start creates a running timer on a new draft entry
	Start(ctx context.Context, userID, projectID int64, description string, billable bool) (*domain.TimeEntry, error)

	// Pause folds the running session into the accumulator. Pausing a
	// paused timer returns it unchanged.
	Pause(ctx context.Context, id, userID int64) (*domain.TimeEntry, error)

	// Resume restarts a paused timer
	Resume(ctx context.Context, id, userID int64) (*domain.TimeEntry, error)

	// Commit finalizes the timer into rounded hours at a freshly resolved rate
	Commit(ctx context.Context, id, userID int64) (*domain.TimeEntry, error)

	// Stop is the older name for Commit
	Stop(ctx context.Context, id, userID int64) (*domain.TimeEntry, error)

	// Discard soft-deletes an active timer without finalizing hours
	Discard(ctx context.Context, id, userID int64) error

	// Active lists the timers visible to the scope with live elapsed time
	Active(ctx context.Context, scope domain.Scope) ([]ActiveTimer, error)
}

type timerService struct {
	tx        Transactor
	timerRepo repository.TimerRepository
	entryRepo repository.TimeEntryRepository
	rates     RateResolver
	clock     Clock
}

// NewTimerService creates a new timer service
func NewTimerService(
	tx Transactor,
	timerRepo repository.TimerRepository,
	entryRepo repository.TimeEntryRepository,
	rates RateResolver,
	clock Clock,
) TimerService {
	return &timerService{
		tx:        tx,
		timerRepo: timerRepo,
		entryRepo: entryRepo,
		rates:     rates,
		clock:     clock,
	}
}

func (s *timerService) Start(
	ctx context.Context,
	userID, projectID int64,
	description string,
	billable bool,
) (*domain.TimeEntry, error) {
	rate, err := s.rates.Resolve(ctx, projectID, domain.PendingRate())
	if err != nil {
		return nil, err
	}

	entry := domain.NewTimerEntry(userID, projectID, description, s.clock.now())
	entry.IsBillable = billable
	entry.SetRate(rate)

	if err := s.entryRepo.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *timerService) Pause(ctx context.Context, id, userID int64) (*domain.TimeEntry, error) {
	var entry *domain.TimeEntry
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		entry, err = s.timerRepo.GetActive(ctx, id, userID, false)
		if err != nil {
			return err
		}
		if !entry.Pause(s.clock.now()) {
			return nil
		}
		return s.timerRepo.Save(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *timerService) Resume(ctx context.Context, id, userID int64) (*domain.TimeEntry, error) {
	var entry *domain.TimeEntry
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		entry, err = s.timerRepo.GetActive(ctx, id, userID, true)
		if err != nil {
			return err
		}
		if err := entry.Resume(s.clock.now()); err != nil {
			return err
		}
		return s.timerRepo.Save(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *timerService) Commit(ctx context.Context, id, userID int64) (*domain.TimeEntry, error) {
	var entry *domain.TimeEntry
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		entry, err = s.timerRepo.GetActive(ctx, id, userID, false)
		if err != nil {
			return err
		}

		// Re-resolve so rate changes made while the timer ran take effect
		rate, err := s.rates.Resolve(ctx, entry.ProjectID, domain.PendingRate())
		if err != nil {
			return err
		}
		if err := entry.Commit(s.clock.now(), rate); err != nil {
			return err
		}
		return s.timerRepo.Save(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *timerService) Stop(ctx context.Context, id, userID int64) (*domain.TimeEntry, error) {
	return s.Commit(ctx, id, userID)
}

func (s *timerService) Discard(ctx context.Context, id, userID int64) error {
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		entry, err := s.timerRepo.GetActive(ctx, id, userID, false)
		if err != nil {
			return err
		}
		entry.IsDeleted = true
		entry.UpdatedAt = s.clock.now()
		return s.timerRepo.Save(ctx, entry)
	})
}

func (s *timerService) Active(ctx context.Context, scope domain.Scope) ([]ActiveTimer, error) {
	entries, err := s.timerRepo.ListActive(ctx, scope)
	if err != nil {
		return nil, err
	}

	now := s.clock.now()
	timers := make([]ActiveTimer, 0, len(entries))
	for _, e := range entries {
		elapsed := e.Elapsed(now)
		value := decimal.Zero
		if e.IsBillable {
			value = decimal.NewFromInt(elapsed).Div(decimal.NewFromInt(3600)).Mul(e.Rate).Round(2)
		}
		timers = append(timers, ActiveTimer{
			Entry:          e,
			State:          e.TimerState(),
			ElapsedSeconds: elapsed,
			AccruedValue:   value,
		})
	}
	return timers, nil
}
