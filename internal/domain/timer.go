package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TimerState string

const (
	TimerStateStopped   TimerState = "stopped"
	TimerStateRunning   TimerState = "running"
	TimerStatePaused    TimerState = "paused"
	TimerStateCommitted TimerState = "committed"
	TimerStateDiscarded TimerState = "discarded"
)

// HoursFromSeconds converts elapsed seconds to billable hours, rounding up to
// the next tenth of an hour. Any nonzero time bills at least 0.1h.
func HoursFromSeconds(seconds int64) decimal.Decimal {
	if seconds <= 0 {
		return decimal.Zero
	}
	// 360 seconds per tenth of an hour
	tenths := (seconds + 359) / 360
	return decimal.New(tenths, -1)
}

// NewTimerEntry creates a running timer entry for a user
func NewTimerEntry(userID, projectID int64, description string, now time.Time) *TimeEntry {
	e := NewTimeEntry(userID, projectID, CivilDate(now), decimal.Zero, description)
	start := now
	e.TimerStart = &start
	e.CreatedAt = now
	e.UpdatedAt = now
	return e
}

// TimerState derives the timer state from the entry fields
func (e *TimeEntry) TimerState() TimerState {
	switch {
	case e.TimerStart == nil:
		return TimerStateStopped
	case e.IsDeleted && e.TimerEnd == nil:
		return TimerStateDiscarded
	case e.TimerEnd != nil:
		return TimerStateCommitted
	case e.IsPaused:
		return TimerStatePaused
	default:
		return TimerStateRunning
	}
}

// IsTimerActive reports whether the timer is running or paused
func (e *TimeEntry) IsTimerActive() bool {
	return e.TimerStart != nil && e.TimerEnd == nil && !e.IsDeleted
}

// Elapsed returns the accumulated seconds including the current session
func (e *TimeEntry) Elapsed(now time.Time) int64 {
	total := e.ElapsedSeconds
	if e.IsTimerActive() && !e.IsPaused {
		if session := int64(now.Sub(*e.TimerStart).Seconds()); session > 0 {
			total += session
		}
	}
	return total
}

// Pause folds the current session into the accumulator.
// It returns false when the timer was already paused.
func (e *TimeEntry) Pause(now time.Time) bool {
	if e.IsPaused {
		return false
	}
	e.ElapsedSeconds = e.Elapsed(now)
	e.IsPaused = true
	e.UpdatedAt = now
	return true
}

// Resume starts a new session on a paused timer
func (e *TimeEntry) Resume(now time.Time) error {
	if !e.IsPaused {
		return Preconditionf("timer %d is not paused", e.ID)
	}
	start := now
	e.TimerStart = &start
	e.IsPaused = false
	e.UpdatedAt = now
	return nil
}

// Commit finalizes the timer into hours at the given rate
func (e *TimeEntry) Commit(now time.Time, rate decimal.Decimal) error {
	if !e.IsTimerActive() {
		return Preconditionf("timer %d is not active", e.ID)
	}
	e.ElapsedSeconds = e.Elapsed(now)
	e.Hours = HoursFromSeconds(e.ElapsedSeconds)
	end := now
	e.TimerEnd = &end
	e.IsPaused = false
	e.SetRate(rate)
	e.UpdatedAt = now
	return nil
}
